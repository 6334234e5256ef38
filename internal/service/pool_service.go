package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	ws "backend/internal/websocket"
	"backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type PoolResponse struct {
	ID                  string `json:"id"`
	TotalMilkLiters     string `json:"total_milk_liters"`
	TotalFatUnits       string `json:"total_fat_units"`
	TotalSnfUnits       string `json:"total_snf_units"`
	RemainingMilkLiters string `json:"remaining_milk_liters"`
	RemainingFatUnits   string `json:"remaining_fat_units"`
	RemainingSnfUnits   string `json:"remaining_snf_units"`
	CurrentAvgFat       string `json:"current_avg_fat"`
	CurrentAvgSnf       string `json:"current_avg_snf"`
	OriginalAvgFat      string `json:"original_avg_fat"`
	OriginalAvgSnf      string `json:"original_avg_snf"`
	Status              string `json:"status"`
	CreatedAt           string `json:"created_at"`
	ArchivedAt          *string `json:"archived_at,omitempty"`
}

type WithdrawRequest struct {
	QuantityLiters decimal.Decimal `json:"quantity_liters" binding:"required"`
	Note           string          `json:"note"`
}

// ResetSummary is the reconciliation figure returned by a pool reset.
// MilkUsed is lifetime pooled volume minus what was still unconsumed at the
// moment of archival. The counts are informational and degrade to zero when
// they cannot be computed.
type ResetSummary struct {
	MilkUsed         string `json:"milk_used"`
	CollectionsCount int64  `json:"collections_count"`
	UsageCount       int64  `json:"usage_count"`
	InventoryCount   int64  `json:"inventory_count"`
	ArchivedPoolID   string `json:"archived_pool_id"`
	NewPoolID        string `json:"new_pool_id"`
}

// --- Interface ---

type PoolService interface {
	EnsureActivePool(ctx context.Context) error
	GetActivePool(ctx context.Context) (PoolResponse, error)
	ListPools(ctx context.Context, page, limit int) ([]PoolResponse, int64, error)
	ListTransactions(ctx context.Context, poolID string, page, limit int) ([]model.PoolTransaction, int64, error)
	Withdraw(ctx context.Context, userID string, req WithdrawRequest) (PoolResponse, error)
	ResetPool(ctx context.Context, poolID string, userID string) (ResetSummary, error)
}

type poolService struct {
	poolRepo       repository.PoolRepository
	collectionRepo repository.CollectionRepository
	auditRepo      repository.AuditRepository
	txManager      repository.TransactionManager
	hub            *ws.Hub
	logger         *zap.Logger
}

func NewPoolService(
	poolRepo repository.PoolRepository,
	collectionRepo repository.CollectionRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
	logger *zap.Logger,
) PoolService {
	return &poolService{
		poolRepo:       poolRepo,
		collectionRepo: collectionRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
		hub:            hub,
		logger:         logger,
	}
}

// --- Implementation ---

// EnsureActivePool creates the initial zeroed active pool on first boot.
func (s *poolService) EnsureActivePool(ctx context.Context) error {
	count, err := s.poolRepo.CountActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to count active pools: %w", err)
	}
	switch {
	case count == 0:
		pool := &model.MilkPool{ID: uuid.New(), Status: model.PoolActive}
		if err := s.poolRepo.Create(ctx, pool); err != nil {
			return fmt.Errorf("failed to create initial pool: %w", err)
		}
		s.logger.Info("created initial active milk pool", zap.String("pool_id", pool.ID.String()))
	case count > 1:
		// Representational invariant violation; requires operator intervention.
		return apperr.NoActivePool("%d pools are active, expected exactly one", count)
	}
	return nil
}

func (s *poolService) GetActivePool(ctx context.Context) (PoolResponse, error) {
	pool, err := s.poolRepo.FindActive(ctx)
	if err != nil {
		return PoolResponse{}, err
	}
	return toPoolResponse(pool), nil
}

func (s *poolService) ListPools(ctx context.Context, page, limit int) ([]PoolResponse, int64, error) {
	pools, total, err := s.poolRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	res := make([]PoolResponse, 0, len(pools))
	for i := range pools {
		res = append(res, toPoolResponse(&pools[i]))
	}
	return res, total, nil
}

func (s *poolService) ListTransactions(ctx context.Context, poolID string, page, limit int) ([]model.PoolTransaction, int64, error) {
	id, err := uuid.Parse(poolID)
	if err != nil {
		return nil, 0, apperr.Validation("invalid pool id: %s", poolID)
	}
	return s.poolRepo.ListTransactions(ctx, id, page, limit)
}

// Withdraw removes quantity from the active pool's remaining balance. The
// averages of what stays in the pool are unchanged. Runs under the pool row
// lock; retried on lost serialization races.
func (s *poolService) Withdraw(ctx context.Context, userID string, req WithdrawRequest) (PoolResponse, error) {
	if req.QuantityLiters.LessThanOrEqual(decimal.Zero) {
		return PoolResponse{}, apperr.Validation("withdraw quantity must be positive")
	}

	uid := parseUserID(userID)

	var updated *model.MilkPool
	err := runWithConflictRetry(ctx, s.logger, func() error {
		return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			pool, err := s.poolRepo.FindActiveForUpdate(txCtx)
			if err != nil {
				return err
			}

			if err := pool.Withdraw(req.QuantityLiters); err != nil {
				return err
			}

			if err := s.poolRepo.Save(txCtx, pool); err != nil {
				return fmt.Errorf("failed to save pool: %w", err)
			}

			poolTx := &model.PoolTransaction{
				ID:             uuid.New(),
				PoolID:         pool.ID,
				Type:           model.PoolTxWithdraw,
				QuantityLiters: req.QuantityLiters,
				RemainingAfter: pool.RemainingMilkLiters,
				CreatedBy:      uid,
				Note:           req.Note,
			}
			if err := s.poolRepo.RecordTransaction(txCtx, poolTx); err != nil {
				return fmt.Errorf("failed to record pool transaction: %w", err)
			}

			details, _ := json.Marshal(map[string]interface{}{
				"quantity_liters": req.QuantityLiters.StringFixed(3),
				"remaining_after": pool.RemainingMilkLiters.StringFixed(3),
				"note":            req.Note,
			})
			audit := &model.AuditLog{
				ID:       uuid.New(),
				UserID:   uid,
				Action:   model.ActionWithdrawPool,
				EntityID: pool.ID.String(),
				Details:  string(details),
			}
			if err := s.auditRepo.Log(txCtx, audit); err != nil {
				return fmt.Errorf("failed to write audit log: %w", err)
			}

			updated = pool
			return nil
		})
	})
	if err != nil {
		return PoolResponse{}, err
	}

	s.broadcastPool("pool_withdrawn", updated)
	return toPoolResponse(updated), nil
}

// ResetPool archives the given active pool and replaces it with a fresh
// zeroed one, all inside a single transaction so no window with zero active
// pools can be observed. Returns the reconciliation summary.
func (s *poolService) ResetPool(ctx context.Context, poolID string, userID string) (ResetSummary, error) {
	id, err := uuid.Parse(poolID)
	if err != nil {
		return ResetSummary{}, apperr.Validation("invalid pool id: %s", poolID)
	}

	uid := parseUserID(userID)

	var summary ResetSummary
	var archived, fresh *model.MilkPool
	err = runWithConflictRetry(ctx, s.logger, func() error {
		return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			pool, err := s.poolRepo.FindByIDForUpdate(txCtx, id)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NoActivePool("pool %s does not exist", poolID)
				}
				return err
			}
			if pool.Status != model.PoolActive {
				return apperr.NoActivePool("pool %s is not active", poolID)
			}

			milkUsed := pool.TotalMilkLiters.Sub(pool.RemainingMilkLiters)

			// Informational counts; a failure here must not block the reset.
			collectionsCount, err := s.collectionRepo.CountByPool(txCtx, pool.ID)
			if err != nil {
				s.logger.Warn("failed to count pool collections", zap.Error(err))
				collectionsCount = 0
			}
			usageCount, err := s.poolRepo.CountTransactions(txCtx, pool.ID, model.PoolTxWithdraw)
			if err != nil {
				s.logger.Warn("failed to count pool withdrawals", zap.Error(err))
				usageCount = 0
			}
			inventoryCount, err := s.poolRepo.CountTransactions(txCtx, pool.ID, model.PoolTxFold)
			if err != nil {
				s.logger.Warn("failed to count pool folds", zap.Error(err))
				inventoryCount = 0
			}

			now := time.Now()
			pool.Status = model.PoolArchived
			pool.ArchivedAt = &now
			if err := s.poolRepo.Save(txCtx, pool); err != nil {
				return fmt.Errorf("failed to archive pool: %w", err)
			}

			newPool := &model.MilkPool{
				ID:        uuid.New(),
				Status:    model.PoolActive,
				CreatedBy: uid,
			}
			if err := s.poolRepo.Create(txCtx, newPool); err != nil {
				return fmt.Errorf("failed to create replacement pool: %w", err)
			}

			details, _ := json.Marshal(map[string]interface{}{
				"archived_pool_id":  pool.ID.String(),
				"new_pool_id":       newPool.ID.String(),
				"milk_used":         milkUsed.StringFixed(3),
				"collections_count": collectionsCount,
			})
			audit := &model.AuditLog{
				ID:       uuid.New(),
				UserID:   uid,
				Action:   model.ActionResetPool,
				EntityID: pool.ID.String(),
				Details:  string(details),
			}
			if err := s.auditRepo.Log(txCtx, audit); err != nil {
				return fmt.Errorf("failed to write audit log: %w", err)
			}

			summary = ResetSummary{
				MilkUsed:         milkUsed.StringFixed(3),
				CollectionsCount: collectionsCount,
				UsageCount:       usageCount,
				InventoryCount:   inventoryCount,
				ArchivedPoolID:   pool.ID.String(),
				NewPoolID:        newPool.ID.String(),
			}
			archived = pool
			fresh = newPool
			return nil
		})
	})
	if err != nil {
		return ResetSummary{}, err
	}

	s.logger.Info("pool reset",
		zap.String("archived_pool_id", archived.ID.String()),
		zap.String("new_pool_id", fresh.ID.String()),
		zap.String("milk_used", summary.MilkUsed))
	s.broadcastPool("pool_reset", fresh)
	return summary, nil
}

// broadcastPool pushes a pool snapshot to connected clients. Only called
// after the surrounding transaction has committed.
func (s *poolService) broadcastPool(event string, pool *model.MilkPool) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(ws.PoolEvent{Event: event, Pool: toPoolEventData(pool)})
	if err != nil {
		return
	}
	select {
	case s.hub.Broadcast <- payload:
	default:
		s.logger.Warn("dropping pool broadcast, hub busy", zap.String("event", event))
	}
}

// --- Helpers ---

func toPoolResponse(p *model.MilkPool) PoolResponse {
	resp := PoolResponse{
		ID:                  p.ID.String(),
		TotalMilkLiters:     p.TotalMilkLiters.StringFixed(3),
		TotalFatUnits:       p.TotalFatUnits.StringFixed(3),
		TotalSnfUnits:       p.TotalSnfUnits.StringFixed(3),
		RemainingMilkLiters: p.RemainingMilkLiters.StringFixed(3),
		RemainingFatUnits:   p.RemainingFatUnits.StringFixed(3),
		RemainingSnfUnits:   p.RemainingSnfUnits.StringFixed(3),
		CurrentAvgFat:       p.CurrentAvgFat().StringFixed(3),
		CurrentAvgSnf:       p.CurrentAvgSNF().StringFixed(3),
		OriginalAvgFat:      p.OriginalAvgFat.StringFixed(2),
		OriginalAvgSnf:      p.OriginalAvgSnf.StringFixed(2),
		Status:              p.Status,
		CreatedAt:           p.CreatedAt.Format(time.RFC3339),
	}
	if p.ArchivedAt != nil {
		at := p.ArchivedAt.Format(time.RFC3339)
		resp.ArchivedAt = &at
	}
	return resp
}

func toPoolEventData(p *model.MilkPool) map[string]interface{} {
	return map[string]interface{}{
		"id":                    p.ID.String(),
		"remaining_milk_liters": p.RemainingMilkLiters.StringFixed(3),
		"current_avg_fat":       p.CurrentAvgFat().StringFixed(3),
		"current_avg_snf":       p.CurrentAvgSNF().StringFixed(3),
		"status":                p.Status,
	}
}

func parseUserID(userID string) *uuid.UUID {
	if parsed, err := uuid.Parse(userID); err == nil {
		return &parsed
	}
	return nil
}
