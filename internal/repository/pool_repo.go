package repository

import (
	"context"
	"errors"

	"backend/internal/model"
	"backend/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PoolRepository interface {
	Create(ctx context.Context, pool *model.MilkPool) error
	Save(ctx context.Context, pool *model.MilkPool) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.MilkPool, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.MilkPool, error)
	FindActive(ctx context.Context) (*model.MilkPool, error)
	FindActiveForUpdate(ctx context.Context) (*model.MilkPool, error)
	CountActive(ctx context.Context) (int64, error)
	List(ctx context.Context, page, limit int) ([]model.MilkPool, int64, error)
	RecordTransaction(ctx context.Context, tx *model.PoolTransaction) error
	ListTransactions(ctx context.Context, poolID uuid.UUID, page, limit int) ([]model.PoolTransaction, int64, error)
	CountTransactions(ctx context.Context, poolID uuid.UUID, txType string) (int64, error)
}

type poolRepository struct {
	db *gorm.DB
}

func NewPoolRepository(db *gorm.DB) PoolRepository {
	return &poolRepository{db: db}
}

func (r *poolRepository) Create(ctx context.Context, pool *model.MilkPool) error {
	return GetDB(ctx, r.db).Create(pool).Error
}

func (r *poolRepository) Save(ctx context.Context, pool *model.MilkPool) error {
	return GetDB(ctx, r.db).Save(pool).Error
}

func (r *poolRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.MilkPool, error) {
	var pool model.MilkPool
	if err := GetDB(ctx, r.db).First(&pool, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &pool, nil
}

func (r *poolRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.MilkPool, error) {
	var pool model.MilkPool
	if err := lockForUpdate(GetDB(ctx, r.db)).
		Where("id = ?", id).First(&pool).Error; err != nil {
		return nil, err
	}
	return &pool, nil
}

func (r *poolRepository) FindActive(ctx context.Context) (*model.MilkPool, error) {
	var pool model.MilkPool
	err := GetDB(ctx, r.db).Where("status = ?", model.PoolActive).First(&pool).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NoActivePool("no active milk pool exists")
		}
		return nil, err
	}
	return &pool, nil
}

// FindActiveForUpdate locks the single active pool row for the duration of
// the surrounding transaction. Every read-modify-write of the pool balance
// goes through this lock so two concurrent batch creations cannot both
// validate against the same remaining balance.
func (r *poolRepository) FindActiveForUpdate(ctx context.Context) (*model.MilkPool, error) {
	var pool model.MilkPool
	err := lockForUpdate(GetDB(ctx, r.db)).
		Where("status = ?", model.PoolActive).First(&pool).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NoActivePool("no active milk pool exists")
		}
		return nil, err
	}
	return &pool, nil
}

func (r *poolRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.MilkPool{}).
		Where("status = ?", model.PoolActive).Count(&count).Error
	return count, err
}

func (r *poolRepository) List(ctx context.Context, page, limit int) ([]model.MilkPool, int64, error) {
	var pools []model.MilkPool
	var total int64

	db := GetDB(ctx, r.db).Model(&model.MilkPool{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&pools).Error; err != nil {
		return nil, 0, err
	}

	return pools, total, nil
}

func (r *poolRepository) RecordTransaction(ctx context.Context, tx *model.PoolTransaction) error {
	return GetDB(ctx, r.db).Create(tx).Error
}

func (r *poolRepository) ListTransactions(ctx context.Context, poolID uuid.UUID, page, limit int) ([]model.PoolTransaction, int64, error) {
	var txs []model.PoolTransaction
	var total int64

	db := GetDB(ctx, r.db).Model(&model.PoolTransaction{}).Where("pool_id = ?", poolID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&txs).Error; err != nil {
		return nil, 0, err
	}

	return txs, total, nil
}

func (r *poolRepository) CountTransactions(ctx context.Context, poolID uuid.UUID, txType string) (int64, error) {
	var count int64
	db := GetDB(ctx, r.db).Model(&model.PoolTransaction{}).Where("pool_id = ?", poolID)
	if txType != "" {
		db = db.Where("type = ?", txType)
	}
	err := db.Count(&count).Error
	return count, err
}

// lockForUpdate applies SELECT ... FOR UPDATE on dialects that support it.
// SQLite (used by the test suite) serializes writers on the connection, so
// the clause is skipped there.
func lockForUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
