package repository

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CollectionFilter narrows collection listings
type CollectionFilter struct {
	QCStatus          string
	ConsumptionStatus string
	SupplierID        *uuid.UUID
	Page              int
	Limit             int
}

type CollectionRepository interface {
	Create(ctx context.Context, c *model.MilkCollection) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.MilkCollection, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.MilkCollection, error)
	List(ctx context.Context, filter CollectionFilter) ([]model.MilkCollection, int64, error)
	Review(ctx context.Context, id uuid.UUID, newStatus string, reviewerID uuid.UUID, at time.Time) (int64, error)
	MarkConsumed(ctx context.Context, id, batchID, poolID uuid.UUID) (int64, error)
	CountByPool(ctx context.Context, poolID uuid.UUID) (int64, error)
}

type collectionRepository struct {
	db *gorm.DB
}

func NewCollectionRepository(db *gorm.DB) CollectionRepository {
	return &collectionRepository{db: db}
}

func (r *collectionRepository) Create(ctx context.Context, c *model.MilkCollection) error {
	return GetDB(ctx, r.db).Create(c).Error
}

func (r *collectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.MilkCollection, error) {
	var c model.MilkCollection
	if err := GetDB(ctx, r.db).Preload("Supplier").First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *collectionRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.MilkCollection, error) {
	var collections []model.MilkCollection
	if err := GetDB(ctx, r.db).Where("id IN ?", ids).Find(&collections).Error; err != nil {
		return nil, err
	}
	return collections, nil
}

func (r *collectionRepository) List(ctx context.Context, filter CollectionFilter) ([]model.MilkCollection, int64, error) {
	var collections []model.MilkCollection
	var total int64

	db := GetDB(ctx, r.db).Model(&model.MilkCollection{})
	if filter.QCStatus != "" {
		db = db.Where("qc_status = ?", filter.QCStatus)
	}
	if filter.ConsumptionStatus != "" {
		db = db.Where("consumption_status = ?", filter.ConsumptionStatus)
	}
	if filter.SupplierID != nil {
		db = db.Where("supplier_id = ?", *filter.SupplierID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := db.Preload("Supplier").
		Order("created_at desc").Offset(offset).Limit(filter.Limit).
		Find(&collections).Error; err != nil {
		return nil, 0, err
	}

	return collections, total, nil
}

// Review transitions qc_status PENDING -> newStatus with a compare-and-set;
// the returned row count is zero when the entry was already reviewed.
func (r *collectionRepository) Review(ctx context.Context, id uuid.UUID, newStatus string, reviewerID uuid.UUID, at time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.MilkCollection{}).
		Where("id = ? AND qc_status = ?", id, model.QCPending).
		Updates(map[string]interface{}{
			"qc_status":   newStatus,
			"reviewed_by": reviewerID,
			"reviewed_at": at,
		})
	return res.RowsAffected, res.Error
}

// MarkConsumed transitions consumption_status NEW -> USED_IN_BATCH, guarded
// on the entry still being approved and unconsumed. Zero rows affected means
// another batch won the race.
func (r *collectionRepository) MarkConsumed(ctx context.Context, id, batchID, poolID uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.MilkCollection{}).
		Where("id = ? AND qc_status = ? AND consumption_status = ?",
			id, model.QCApproved, model.ConsumptionNew).
		Updates(map[string]interface{}{
			"consumption_status": model.ConsumptionUsedInBatch,
			"batch_id":           batchID,
			"pool_id":            poolID,
		})
	return res.RowsAffected, res.Error
}

func (r *collectionRepository) CountByPool(ctx context.Context, poolID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.MilkCollection{}).
		Where("pool_id = ?", poolID).Count(&count).Error
	return count, err
}
