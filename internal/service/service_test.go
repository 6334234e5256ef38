package service

import (
	"context"
	"testing"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// testEnv wires the full service stack over an in-memory database. Row locks
// and advisory locks degrade to no-ops on this dialect; the semantics under
// test do not depend on them.
type testEnv struct {
	db *gorm.DB

	poolRepo       repository.PoolRepository
	collectionRepo repository.CollectionRepository
	batchRepo      repository.BatchRepository
	auditRepo      repository.AuditRepository

	pools       PoolService
	collections CollectionService
	batches     BatchService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&model.User{},
		&model.Supplier{},
		&model.Product{},
		&model.MilkCollection{},
		&model.MilkPool{},
		&model.PoolTransaction{},
		&model.ProductionBatch{},
		&model.AuditLog{},
	)
	require.NoError(t, err)

	txManager := repository.NewTransactionManager(db)
	poolRepo := repository.NewPoolRepository(db)
	collectionRepo := repository.NewCollectionRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	productRepo := repository.NewProductRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	logger := zap.NewNop()

	return &testEnv{
		db:             db,
		poolRepo:       poolRepo,
		collectionRepo: collectionRepo,
		batchRepo:      batchRepo,
		auditRepo:      auditRepo,
		pools:          NewPoolService(poolRepo, collectionRepo, auditRepo, txManager, nil, logger),
		collections:    NewCollectionService(collectionRepo, supplierRepo, auditRepo, txManager, logger),
		batches:        NewBatchService(batchRepo, collectionRepo, poolRepo, productRepo, auditRepo, txManager, nil, logger),
	}
}

func (e *testEnv) createSupplier(t *testing.T) *model.Supplier {
	t.Helper()
	supplier := &model.Supplier{
		ID:   uuid.New(),
		Code: "SUP-" + uuid.NewString()[:8],
		Name: "Test Supplier",
	}
	require.NoError(t, e.db.Create(supplier).Error)
	return supplier
}

func (e *testEnv) createProduct(t *testing.T) *model.Product {
	t.Helper()
	product := &model.Product{
		ID:   uuid.New(),
		SKU:  "SKU-" + uuid.NewString()[:8],
		Name: "Paneer",
		Unit: model.UnitKilogram,
	}
	require.NoError(t, e.db.Create(product).Error)
	return product
}

func (e *testEnv) createActivePool(t *testing.T) *model.MilkPool {
	t.Helper()
	pool := &model.MilkPool{ID: uuid.New(), Status: model.PoolActive}
	require.NoError(t, e.db.Create(pool).Error)
	return pool
}

// createCollection seeds a collection in the given qc state with a quality
// reading attached.
func (e *testEnv) createCollection(t *testing.T, supplierID uuid.UUID, qty, fat, snf string, qcStatus string) *model.MilkCollection {
	t.Helper()
	fatPct := mustDecimal(t, fat)
	snfPct := mustDecimal(t, snf)
	c := &model.MilkCollection{
		ID:                uuid.New(),
		SupplierID:        supplierID,
		QuantityLiters:    mustDecimal(t, qty),
		FatPct:            &fatPct,
		SnfPct:            &snfPct,
		QCStatus:          qcStatus,
		ConsumptionStatus: model.ConsumptionNew,
	}
	require.NoError(t, e.db.Create(c).Error)
	return c
}

func (e *testEnv) reloadPool(t *testing.T, id uuid.UUID) *model.MilkPool {
	t.Helper()
	pool, err := e.poolRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return pool
}

func (e *testEnv) reloadCollection(t *testing.T, id uuid.UUID) *model.MilkCollection {
	t.Helper()
	c, err := e.collectionRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (e *testEnv) countAuditRows(t *testing.T, action string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&model.AuditLog{}).Where("action = ?", action).Count(&count).Error)
	return count
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}
