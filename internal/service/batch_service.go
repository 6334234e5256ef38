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

type CreateBatchRequest struct {
	CollectionIDs []string        `json:"collection_ids" binding:"required,min=1"`
	ProductID     string          `json:"product_id" binding:"required"`
	YieldQuantity decimal.Decimal `json:"yield_quantity" binding:"required"`
	BatchCode     string          `json:"batch_code"`
	ExpiryDate    *time.Time      `json:"expiry_date"`
}

type BatchResponse struct {
	ID            string   `json:"id"`
	BatchCode     string   `json:"batch_code"`
	ProductID     string   `json:"product_id"`
	ProductName   string   `json:"product_name,omitempty"`
	YieldQuantity string   `json:"yield_quantity"`
	ExpiryDate    *string  `json:"expiry_date,omitempty"`
	QCStatus      string   `json:"qc_status"`
	CollectionIDs []string `json:"collection_ids"`
	PooledLiters  string   `json:"pooled_liters"`
	CreatedAt     string   `json:"created_at"`
}

// --- Interface ---

type BatchService interface {
	CreateBatch(ctx context.Context, userID string, req CreateBatchRequest) (BatchResponse, error)
	GetBatch(ctx context.Context, id string) (BatchResponse, error)
	ListBatches(ctx context.Context, page, limit int) ([]BatchResponse, int64, error)
}

type batchService struct {
	batchRepo      repository.BatchRepository
	collectionRepo repository.CollectionRepository
	poolRepo       repository.PoolRepository
	productRepo    repository.ProductRepository
	auditRepo      repository.AuditRepository
	txManager      repository.TransactionManager
	hub            *ws.Hub
	logger         *zap.Logger
}

func NewBatchService(
	batchRepo repository.BatchRepository,
	collectionRepo repository.CollectionRepository,
	poolRepo repository.PoolRepository,
	productRepo repository.ProductRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
	logger *zap.Logger,
) BatchService {
	return &batchService{
		batchRepo:      batchRepo,
		collectionRepo: collectionRepo,
		poolRepo:       poolRepo,
		productRepo:    productRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
		hub:            hub,
		logger:         logger,
	}
}

// --- Implementation ---

// CreateBatch atomically turns a set of approved, unconsumed collections into
// a production batch: their volume and quality mass are folded into the
// active pool, the batch record is created, and every collection is marked
// consumed. All three effects commit together or not at all; otherwise a
// collection could feed a second batch while its volume is already counted
// in the pool.
func (s *batchService) CreateBatch(ctx context.Context, userID string, req CreateBatchRequest) (BatchResponse, error) {
	collectionIDs, err := parseCollectionIDs(req.CollectionIDs)
	if err != nil {
		return BatchResponse{}, err
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return BatchResponse{}, apperr.Validation("invalid product id: %s", req.ProductID)
	}
	if req.YieldQuantity.LessThanOrEqual(decimal.Zero) {
		return BatchResponse{}, apperr.Validation("yield quantity must be positive")
	}

	uid := parseUserID(userID)

	var batch *model.ProductionBatch
	var pool *model.MilkPool
	var pooledLiters decimal.Decimal
	err = runWithConflictRetry(ctx, s.logger, func() error {
		return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			product, err := s.productRepo.FindByID(txCtx, productID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("product %s not found", req.ProductID)
				}
				return fmt.Errorf("failed to load product: %w", err)
			}

			// Locking the pool row first serializes concurrent batch
			// creations; both will re-read the collections under the lock.
			p, err := s.poolRepo.FindActiveForUpdate(txCtx)
			if err != nil {
				return err
			}

			collections, err := s.loadEligibleCollections(txCtx, collectionIDs)
			if err != nil {
				return err
			}

			code := req.BatchCode
			if code == "" {
				code, err = s.generateBatchCode(txCtx)
				if err != nil {
					return fmt.Errorf("failed to generate batch code: %w", err)
				}
			}

			b := &model.ProductionBatch{
				ID:            uuid.New(),
				BatchCode:     code,
				ProductID:     product.ID,
				YieldQuantity: req.YieldQuantity,
				ExpiryDate:    req.ExpiryDate,
				QCStatus:      model.BatchQCPending,
				CreatedBy:     uid,
			}
			if err := s.batchRepo.Create(txCtx, b); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return apperr.Validation("batch code %q is already in use", code)
				}
				return fmt.Errorf("failed to create batch: %w", err)
			}

			pooled := decimal.Zero
			for i := range collections {
				c := &collections[i]

				// A zero-liter collection joins the batch but moves no
				// volume, so it gets no fold and no journal row.
				if c.QuantityLiters.IsPositive() {
					if err := p.Fold(c.QuantityLiters, c.FatOrZero(), c.SnfOrZero()); err != nil {
						return err
					}
					pooled = pooled.Add(c.QuantityLiters)
				}

				rows, err := s.collectionRepo.MarkConsumed(txCtx, c.ID, b.ID, p.ID)
				if err != nil {
					return fmt.Errorf("failed to mark collection consumed: %w", err)
				}
				if rows == 0 {
					// Lost a race with another batch between the eligibility
					// read and the conditional write.
					return apperr.Conflict("collection %s was consumed concurrently", c.ID)
				}

				if !c.QuantityLiters.IsPositive() {
					continue
				}
				poolTx := &model.PoolTransaction{
					ID:             uuid.New(),
					PoolID:         p.ID,
					BatchID:        &b.ID,
					Type:           model.PoolTxFold,
					QuantityLiters: c.QuantityLiters,
					FatUnits:       c.QuantityLiters.Mul(c.FatOrZero()),
					SnfUnits:       c.QuantityLiters.Mul(c.SnfOrZero()),
					RemainingAfter: p.RemainingMilkLiters,
					CreatedBy:      uid,
				}
				if err := s.poolRepo.RecordTransaction(txCtx, poolTx); err != nil {
					return fmt.Errorf("failed to record pool transaction: %w", err)
				}
			}

			if err := s.poolRepo.Save(txCtx, p); err != nil {
				return fmt.Errorf("failed to save pool: %w", err)
			}

			details, _ := json.Marshal(map[string]interface{}{
				"batch_code":     b.BatchCode,
				"product_sku":    product.SKU,
				"yield_quantity": req.YieldQuantity.StringFixed(3),
				"collection_ids": req.CollectionIDs,
				"pooled_liters":  pooled.StringFixed(3),
			})
			audit := &model.AuditLog{
				ID:         uuid.New(),
				UserID:     uid,
				Action:     model.ActionCreateBatch,
				EntityID:   b.ID.String(),
				EntityName: b.BatchCode,
				Details:    string(details),
			}
			if err := s.auditRepo.Log(txCtx, audit); err != nil {
				return fmt.Errorf("failed to write audit log: %w", err)
			}

			batch = b
			pool = p
			pooledLiters = pooled
			return nil
		})
	})
	if err != nil {
		return BatchResponse{}, err
	}

	s.logger.Info("batch created",
		zap.String("batch_code", batch.BatchCode),
		zap.String("pooled_liters", pooledLiters.StringFixed(3)))
	s.broadcastPool("pool_folded", pool)

	resp := toBatchResponse(batch)
	resp.CollectionIDs = req.CollectionIDs
	resp.PooledLiters = pooledLiters.StringFixed(3)
	return resp, nil
}

func (s *batchService) GetBatch(ctx context.Context, id string) (BatchResponse, error) {
	batchID, err := uuid.Parse(id)
	if err != nil {
		return BatchResponse{}, apperr.Validation("invalid batch id: %s", id)
	}

	batch, err := s.batchRepo.FindByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return BatchResponse{}, apperr.NotFound("batch %s not found", id)
		}
		return BatchResponse{}, fmt.Errorf("failed to load batch: %w", err)
	}

	return toBatchResponse(batch), nil
}

func (s *batchService) ListBatches(ctx context.Context, page, limit int) ([]BatchResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	batches, total, err := s.batchRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]BatchResponse, 0, len(batches))
	for i := range batches {
		res = append(res, toBatchResponse(&batches[i]))
	}
	return res, total, nil
}

// loadEligibleCollections loads the referenced collections and requires each
// to be APPROVED and unconsumed, naming every offending id at once.
func (s *batchService) loadEligibleCollections(ctx context.Context, ids []uuid.UUID) ([]model.MilkCollection, error) {
	collections, err := s.collectionRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load collections: %w", err)
	}

	found := make(map[uuid.UUID]*model.MilkCollection, len(collections))
	for i := range collections {
		found[collections[i].ID] = &collections[i]
	}

	var offending []string
	ordered := make([]model.MilkCollection, 0, len(ids))
	for _, id := range ids {
		c, ok := found[id]
		if !ok || !c.Poolable() {
			offending = append(offending, id.String())
			continue
		}
		ordered = append(ordered, *c)
	}
	if len(offending) > 0 {
		return nil, apperr.InvalidCollectionState(offending)
	}
	return ordered, nil
}

// generateBatchCode produces BATCH-YYYYMMDD-NNNNN under an advisory lock so
// two concurrent creations cannot draw the same sequence number.
func (s *batchService) generateBatchCode(ctx context.Context) (string, error) {
	today := time.Now().Format("20060102")
	prefix := "BATCH-" + today + "-"

	s.batchRepo.LockCodePrefix(ctx, prefix)

	count, err := s.batchRepo.CountByCodePrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}

func (s *batchService) broadcastPool(event string, pool *model.MilkPool) {
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

func parseCollectionIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, apperr.Validation("at least one collection id is required")
	}

	seen := make(map[uuid.UUID]bool, len(raw))
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, apperr.Validation("invalid collection id: %s", r)
		}
		if seen[id] {
			return nil, apperr.Validation("duplicate collection id: %s", r)
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

func toBatchResponse(b *model.ProductionBatch) BatchResponse {
	resp := BatchResponse{
		ID:            b.ID.String(),
		BatchCode:     b.BatchCode,
		ProductID:     b.ProductID.String(),
		YieldQuantity: b.YieldQuantity.StringFixed(3),
		QCStatus:      b.QCStatus,
		CreatedAt:     b.CreatedAt.Format(time.RFC3339),
	}
	if b.Product != nil {
		resp.ProductName = b.Product.Name
	}
	if b.ExpiryDate != nil {
		d := b.ExpiryDate.Format(time.RFC3339)
		resp.ExpiryDate = &d
	}
	pooled := decimal.Zero
	for i := range b.Collections {
		resp.CollectionIDs = append(resp.CollectionIDs, b.Collections[i].ID.String())
		pooled = pooled.Add(b.Collections[i].QuantityLiters)
	}
	resp.PooledLiters = pooled.StringFixed(3)
	return resp
}
