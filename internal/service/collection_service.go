package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateCollectionRequest struct {
	SupplierID     string           `json:"supplier_id" binding:"required"`
	QuantityLiters decimal.Decimal  `json:"quantity_liters" binding:"required"`
	FatPct         *decimal.Decimal `json:"fat_pct"`
	SnfPct         *decimal.Decimal `json:"snf_pct"`
	PricePerLiter  *decimal.Decimal `json:"price_per_liter"`
	PhotoURL       string           `json:"photo_url"`
}

type AdjustQCRequest struct {
	Status string `json:"status" binding:"required,oneof=APPROVED REJECTED"`
}

type CollectionFilterRequest struct {
	QCStatus          string
	ConsumptionStatus string
	SupplierID        string
	Page              int
	Limit             int
}

// --- Interface ---

type CollectionService interface {
	CreateCollection(ctx context.Context, operatorID string, req CreateCollectionRequest) (*model.MilkCollection, error)
	AdjustQCStatus(ctx context.Context, reviewerID string, collectionID string, newStatus string) (*model.MilkCollection, error)
	GetCollection(ctx context.Context, id string) (*model.MilkCollection, error)
	ListCollections(ctx context.Context, filter CollectionFilterRequest) ([]model.MilkCollection, int64, error)
}

type collectionService struct {
	collectionRepo repository.CollectionRepository
	supplierRepo   repository.SupplierRepository
	auditRepo      repository.AuditRepository
	txManager      repository.TransactionManager
	logger         *zap.Logger
}

func NewCollectionService(
	collectionRepo repository.CollectionRepository,
	supplierRepo repository.SupplierRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	logger *zap.Logger,
) CollectionService {
	return &collectionService{
		collectionRepo: collectionRepo,
		supplierRepo:   supplierRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
		logger:         logger,
	}
}

// --- Implementation ---

var hundred = decimal.NewFromInt(100)

// CreateCollection records one intake event. Quantity and quality are frozen
// from this point on; only the two status fields may ever change.
func (s *collectionService) CreateCollection(ctx context.Context, operatorID string, req CreateCollectionRequest) (*model.MilkCollection, error) {
	supplierID, err := uuid.Parse(req.SupplierID)
	if err != nil {
		return nil, apperr.Validation("invalid supplier id: %s", req.SupplierID)
	}
	if req.QuantityLiters.IsNegative() {
		return nil, apperr.Validation("quantity must be non-negative")
	}
	if err := validatePct("fat_pct", req.FatPct); err != nil {
		return nil, err
	}
	if err := validatePct("snf_pct", req.SnfPct); err != nil {
		return nil, err
	}

	supplier, err := s.supplierRepo.FindByID(ctx, supplierID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("supplier %s not found", req.SupplierID)
		}
		return nil, fmt.Errorf("failed to load supplier: %w", err)
	}

	uid := parseUserID(operatorID)
	collection := &model.MilkCollection{
		ID:                uuid.New(),
		SupplierID:        supplier.ID,
		OperatorID:        uid,
		QuantityLiters:    req.QuantityLiters,
		FatPct:            req.FatPct,
		SnfPct:            req.SnfPct,
		PricePerLiter:     req.PricePerLiter,
		PhotoURL:          req.PhotoURL,
		QCStatus:          model.QCPending,
		ConsumptionStatus: model.ConsumptionNew,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.collectionRepo.Create(txCtx, collection); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"supplier_code":   supplier.Code,
			"quantity_liters": req.QuantityLiters.StringFixed(3),
		})
		audit := &model.AuditLog{
			ID:         uuid.New(),
			UserID:     uid,
			Action:     model.ActionCreateCollection,
			EntityID:   collection.ID.String(),
			EntityName: supplier.Name,
			Details:    string(details),
		}
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return collection, nil
}

// AdjustQCStatus performs the single allowed QC transition
// PENDING -> APPROVED|REJECTED. The transition is a per-row compare-and-set;
// a second review attempt finds zero rows and fails without side effects.
func (s *collectionService) AdjustQCStatus(ctx context.Context, reviewerID string, collectionID string, newStatus string) (*model.MilkCollection, error) {
	if newStatus != model.QCApproved && newStatus != model.QCRejected {
		return nil, apperr.Validation("qc status must be APPROVED or REJECTED, got %q", newStatus)
	}

	id, err := uuid.Parse(collectionID)
	if err != nil {
		return nil, apperr.Validation("invalid collection id: %s", collectionID)
	}
	reviewer, err := uuid.Parse(reviewerID)
	if err != nil {
		return nil, apperr.Validation("invalid reviewer id: %s", reviewerID)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rows, err := s.collectionRepo.Review(txCtx, id, newStatus, reviewer, time.Now())
		if err != nil {
			return fmt.Errorf("failed to update qc status: %w", err)
		}
		if rows == 0 {
			// Either the entry does not exist or it was already reviewed.
			if _, findErr := s.collectionRepo.FindByID(txCtx, id); findErr != nil {
				if errors.Is(findErr, gorm.ErrRecordNotFound) {
					return apperr.NotFound("collection %s not found", collectionID)
				}
				return fmt.Errorf("failed to load collection: %w", findErr)
			}
			return apperr.InvalidCollectionState([]string{collectionID})
		}

		details, _ := json.Marshal(map[string]interface{}{"new_status": newStatus})
		audit := &model.AuditLog{
			ID:       uuid.New(),
			UserID:   &reviewer,
			Action:   model.ActionReviewCollection,
			EntityID: collectionID,
			Details:  string(details),
		}
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.collectionRepo.FindByID(ctx, id)
}

func (s *collectionService) GetCollection(ctx context.Context, id string) (*model.MilkCollection, error) {
	collectionID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid collection id: %s", id)
	}

	collection, err := s.collectionRepo.FindByID(ctx, collectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("collection %s not found", id)
		}
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	return collection, nil
}

func (s *collectionService) ListCollections(ctx context.Context, filter CollectionFilterRequest) ([]model.MilkCollection, int64, error) {
	repoFilter := repository.CollectionFilter{
		QCStatus:          filter.QCStatus,
		ConsumptionStatus: filter.ConsumptionStatus,
		Page:              filter.Page,
		Limit:             filter.Limit,
	}
	if repoFilter.Page <= 0 {
		repoFilter.Page = 1
	}
	if repoFilter.Limit <= 0 {
		repoFilter.Limit = 20
	}
	if filter.SupplierID != "" {
		id, err := uuid.Parse(filter.SupplierID)
		if err != nil {
			return nil, 0, apperr.Validation("invalid supplier id: %s", filter.SupplierID)
		}
		repoFilter.SupplierID = &id
	}

	return s.collectionRepo.List(ctx, repoFilter)
}

func validatePct(field string, v *decimal.Decimal) error {
	if v == nil {
		return nil
	}
	if v.IsNegative() || v.GreaterThan(hundred) {
		return apperr.Validation("%s must be between 0 and 100", field)
	}
	return nil
}
