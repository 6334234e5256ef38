package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BatchRepository interface {
	Create(ctx context.Context, batch *model.ProductionBatch) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ProductionBatch, error)
	List(ctx context.Context, page, limit int) ([]model.ProductionBatch, int64, error)
	CountByCodePrefix(ctx context.Context, prefix string) (int64, error)
	LockCodePrefix(ctx context.Context, prefix string)
}

type batchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) Create(ctx context.Context, batch *model.ProductionBatch) error {
	return GetDB(ctx, r.db).Create(batch).Error
}

func (r *batchRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ProductionBatch, error) {
	var batch model.ProductionBatch
	if err := GetDB(ctx, r.db).
		Preload("Product").
		Preload("Collections").
		Preload("Collections.Supplier").
		First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepository) List(ctx context.Context, page, limit int) ([]model.ProductionBatch, int64, error) {
	var batches []model.ProductionBatch
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.ProductionBatch{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.
		Preload("Product").
		Preload("Collections").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&batches).Error; err != nil {
		return nil, 0, err
	}

	return batches, total, nil
}

func (r *batchRepository) CountByCodePrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.ProductionBatch{}).
		Where("batch_code LIKE ?", prefix+"%").Count(&count).Error
	return count, err
}

// LockCodePrefix takes a transaction-scoped advisory lock on the code prefix
// so concurrent creations cannot draw the same sequence number. No-op on
// dialects without advisory locks; the unique index still backstops.
func (r *batchRepository) LockCodePrefix(ctx context.Context, prefix string) {
	db := GetDB(ctx, r.db)
	if db.Dialector.Name() == "postgres" {
		db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix)
	}
}
