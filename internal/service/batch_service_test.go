package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"backend/internal/model"
	"backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchService_CreateBatch(t *testing.T) {
	ctx := context.Background()
	userID := uuid.NewString()

	t.Run("folds collections into the pool and marks them consumed", func(t *testing.T) {
		env := newTestEnv(t)
		supplier := env.createSupplier(t)
		product := env.createProduct(t)
		pool := env.createActivePool(t)
		c1 := env.createCollection(t, supplier.ID, "60", "3.0", "8.0", model.QCApproved)
		c2 := env.createCollection(t, supplier.ID, "40", "6.0", "9.0", model.QCApproved)

		resp, err := env.batches.CreateBatch(ctx, userID, CreateBatchRequest{
			CollectionIDs: []string{c1.ID.String(), c2.ID.String()},
			ProductID:     product.ID.String(),
			YieldQuantity: mustDecimal(t, "12.5"),
		})
		require.NoError(t, err)

		assert.Equal(t, "100.000", resp.PooledLiters)
		assert.Equal(t, model.BatchQCPending, resp.QCStatus)
		assert.True(t, strings.HasPrefix(resp.BatchCode, "BATCH-"+time.Now().Format("20060102")+"-"))

		// Pool carries the weighted quality mass of both collections
		reloaded := env.reloadPool(t, pool.ID)
		assert.True(t, reloaded.RemainingMilkLiters.Equal(mustDecimal(t, "100")))
		assert.True(t, reloaded.RemainingFatUnits.Equal(mustDecimal(t, "420"))) // 60*3 + 40*6
		assert.True(t, reloaded.RemainingSnfUnits.Equal(mustDecimal(t, "840"))) // 60*8 + 40*9
		assert.True(t, reloaded.CurrentAvgFat().Equal(mustDecimal(t, "4.2")))

		// Both collections consumed and linked to batch and pool
		for _, id := range []uuid.UUID{c1.ID, c2.ID} {
			c := env.reloadCollection(t, id)
			assert.Equal(t, model.ConsumptionUsedInBatch, c.ConsumptionStatus)
			require.NotNil(t, c.BatchID)
			assert.Equal(t, resp.ID, c.BatchID.String())
			require.NotNil(t, c.PoolID)
			assert.Equal(t, pool.ID, *c.PoolID)
		}

		// One FOLD journal row per collection
		txs, total, err := env.pools.ListTransactions(ctx, pool.ID.String(), 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, tx := range txs {
			assert.Equal(t, model.PoolTxFold, tx.Type)
			require.NotNil(t, tx.BatchID)
			assert.Equal(t, resp.ID, tx.BatchID.String())
		}

		assert.Equal(t, int64(1), env.countAuditRows(t, model.ActionCreateBatch))
	})

	t.Run("sequence numbers advance within the same day", func(t *testing.T) {
		env := newTestEnv(t)
		supplier := env.createSupplier(t)
		product := env.createProduct(t)
		env.createActivePool(t)
		c1 := env.createCollection(t, supplier.ID, "10", "4.0", "8.0", model.QCApproved)
		c2 := env.createCollection(t, supplier.ID, "10", "4.0", "8.0", model.QCApproved)

		first, err := env.batches.CreateBatch(ctx, userID, CreateBatchRequest{
			CollectionIDs: []string{c1.ID.String()},
			ProductID:     product.ID.String(),
			YieldQuantity: mustDecimal(t, "1"),
		})
		require.NoError(t, err)
		second, err := env.batches.CreateBatch(ctx, userID, CreateBatchRequest{
			CollectionIDs: []string{c2.ID.String()},
			ProductID:     product.ID.String(),
			YieldQuantity: mustDecimal(t, "1"),
		})
		require.NoError(t, err)

		assert.True(t, strings.HasSuffix(first.BatchCode, "-00001"), first.BatchCode)
		assert.True(t, strings.HasSuffix(second.BatchCode, "-00002"), second.BatchCode)
	})

	t.Run("honors a caller-supplied batch code", func(t *testing.T) {
		env := newTestEnv(t)
		supplier := env.createSupplier(t)
		product := env.createProduct(t)
		env.createActivePool(t)
		c := env.createCollection(t, supplier.ID, "10", "4.0", "8.0", model.QCApproved)

		resp, err := env.batches.CreateBatch(ctx, userID, CreateBatchRequest{
			CollectionIDs: []string{c.ID.String()},
			ProductID:     product.ID.String(),
			YieldQuantity: mustDecimal(t, "1"),
			BatchCode:     "GHEE-TRIAL-7",
		})
		require.NoError(t, err)
		assert.Equal(t, "GHEE-TRIAL-7", resp.BatchCode)
	})

	t.Run("a reused batch code is a validation error and rolls back", func(t *testing.T) {
		env := newTestEnv(t)
		supplier := env.createSupplier(t)
		product := env.createProduct(t)
		pool := env.createActivePool(t)
		c1 := env.createCollection(t, supplier.ID, "20", "4.0", "8.0", model.QCApproved)
		c2 := env.createCollection(t, supplier.ID, "30", "4.0", "8.0", model.QCApproved)

		_, err := env.batches.CreateBatch(ctx, userID, CreateBatchRequest{
			CollectionIDs: []string{c1.ID.String()},
			ProductID:     product.ID.String(),
			YieldQuantity: mustDecimal(t, "2"),
			BatchCode:     "GHEE-TRIAL-7",
		})
		require.NoError(t, err)

		_, err = env.batches.CreateBatch(ctx, userID, CreateBatchRequest{
			CollectionIDs: []string{c2.ID.String()},
			ProductID:     product.ID.String(),
			YieldQuantity: mustDecimal(t, "2"),
			BatchCode:     "GHEE-TRIAL-7",
		})
		require.Error(t, err)
		assert.Equal(t, apperr.CodeValidation, apperr.Code(err))
		assert.Contains(t, err.Error(), "GHEE-TRIAL-7")

		// The second request rolled back: its collection is still available
		// and the pool only carries the first fold.
		c := env.reloadCollection(t, c2.ID)
		assert.Equal(t, model.ConsumptionNew, c.ConsumptionStatus)
		reloaded := env.reloadPool(t, pool.ID)
		assert.True(t, reloaded.TotalMilkLiters.Equal(mustDecimal(t, "20")))
	})

	t.Run("a zero-liter collection joins the batch without moving the pool", func(t *testing.T) {
		env := newTestEnv(t)
		supplier := env.createSupplier(t)
		product := env.createProduct(t)
		pool := env.createActivePool(t)
		empty := env.createCollection(t, supplier.ID, "0", "4.0", "8.0", model.QCApproved)
		full := env.createCollection(t, supplier.ID, "50", "4.0", "8.0", model.QCApproved)

		resp, err := env.batches.CreateBatch(ctx, userID, CreateBatchRequest{
			CollectionIDs: []string{empty.ID.String(), full.ID.String()},
			ProductID:     product.ID.String(),
			YieldQuantity: mustDecimal(t, "5"),
		})
		require.NoError(t, err)
		assert.Equal(t, "50.000", resp.PooledLiters)

		// Both collections are consumed, but only the 50L one folded
		for _, id := range []uuid.UUID{empty.ID, full.ID} {
			c := env.reloadCollection(t, id)
			assert.Equal(t, model.ConsumptionUsedInBatch, c.ConsumptionStatus)
		}
		reloaded := env.reloadPool(t, pool.ID)
		assert.True(t, reloaded.TotalMilkLiters.Equal(mustDecimal(t, "50")))

		// Exactly one journal row; the empty collection wrote none
		_, total, err := env.pools.ListTransactions(ctx, pool.ID.String(), 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("a consumed collection cannot feed a second batch", func(t *testing.T) {
		env := newTestEnv(t)
		supplier := env.createSupplier(t)
		product := env.createProduct(t)
		pool := env.createActivePool(t)
		c := env.createCollection(t, supplier.ID, "50", "4.0", "8.0", model.QCApproved)

		_, err := env.batches.CreateBatch(ctx, userID, CreateBatchRequest{
			CollectionIDs: []string{c.ID.String()},
			ProductID:     product.ID.String(),
			YieldQuantity: mustDecimal(t, "5"),
		})
		require.NoError(t, err)

		_, err = env.batches.CreateBatch(ctx, userID, CreateBatchRequest{
			CollectionIDs: []string{c.ID.String()},
			ProductID:     product.ID.String(),
			YieldQuantity: mustDecimal(t, "5"),
		})
		require.Error(t, err)
		assert.Equal(t, apperr.CodeInvalidCollectionState, apperr.Code(err))
		assert.Contains(t, err.Error(), c.ID.String())

		// The pool was folded exactly once
		reloaded := env.reloadPool(t, pool.ID)
		assert.True(t, reloaded.TotalMilkLiters.Equal(mustDecimal(t, "50")))
	})

	t.Run("rejects unreviewed and rejected collections, naming each offender", func(t *testing.T) {
		env := newTestEnv(t)
		supplier := env.createSupplier(t)
		product := env.createProduct(t)
		pool := env.createActivePool(t)
		approved := env.createCollection(t, supplier.ID, "10", "4.0", "8.0", model.QCApproved)
		pending := env.createCollection(t, supplier.ID, "10", "4.0", "8.0", model.QCPending)
		rejected := env.createCollection(t, supplier.ID, "10", "4.0", "8.0", model.QCRejected)

		_, err := env.batches.CreateBatch(ctx, userID, CreateBatchRequest{
			CollectionIDs: []string{approved.ID.String(), pending.ID.String(), rejected.ID.String()},
			ProductID:     product.ID.String(),
			YieldQuantity: mustDecimal(t, "1"),
		})
		require.Error(t, err)
		assert.Equal(t, apperr.CodeInvalidCollectionState, apperr.Code(err))
		assert.Contains(t, err.Error(), pending.ID.String())
		assert.Contains(t, err.Error(), rejected.ID.String())
		assert.NotContains(t, err.Error(), approved.ID.String())

		// The whole request rolled back; even the approved one is untouched
		c := env.reloadCollection(t, approved.ID)
		assert.Equal(t, model.ConsumptionNew, c.ConsumptionStatus)
		reloaded := env.reloadPool(t, pool.ID)
		assert.True(t, reloaded.TotalMilkLiters.IsZero())
	})

	t.Run("rejects a reference to a collection that does not exist", func(t *testing.T) {
		env := newTestEnv(t)
		product := env.createProduct(t)
		env.createActivePool(t)
		ghost := uuid.NewString()

		_, err := env.batches.CreateBatch(ctx, userID, CreateBatchRequest{
			CollectionIDs: []string{ghost},
			ProductID:     product.ID.String(),
			YieldQuantity: mustDecimal(t, "1"),
		})
		require.Error(t, err)
		assert.Equal(t, apperr.CodeInvalidCollectionState, apperr.Code(err))
		assert.Contains(t, err.Error(), ghost)
	})

	t.Run("rejects duplicate collection ids", func(t *testing.T) {
		env := newTestEnv(t)
		supplier := env.createSupplier(t)
		product := env.createProduct(t)
		env.createActivePool(t)
		c := env.createCollection(t, supplier.ID, "10", "4.0", "8.0", model.QCApproved)

		_, err := env.batches.CreateBatch(ctx, userID, CreateBatchRequest{
			CollectionIDs: []string{c.ID.String(), c.ID.String()},
			ProductID:     product.ID.String(),
			YieldQuantity: mustDecimal(t, "1"),
		})
		require.Error(t, err)
		assert.Equal(t, apperr.CodeValidation, apperr.Code(err))
	})

	t.Run("rejects an unknown product", func(t *testing.T) {
		env := newTestEnv(t)
		supplier := env.createSupplier(t)
		env.createActivePool(t)
		c := env.createCollection(t, supplier.ID, "10", "4.0", "8.0", model.QCApproved)

		_, err := env.batches.CreateBatch(ctx, userID, CreateBatchRequest{
			CollectionIDs: []string{c.ID.String()},
			ProductID:     uuid.NewString(),
			YieldQuantity: mustDecimal(t, "1"),
		})
		require.Error(t, err)
		assert.Equal(t, apperr.CodeNotFound, apperr.Code(err))
	})

	t.Run("rejects non-positive yield", func(t *testing.T) {
		env := newTestEnv(t)
		supplier := env.createSupplier(t)
		product := env.createProduct(t)
		env.createActivePool(t)
		c := env.createCollection(t, supplier.ID, "10", "4.0", "8.0", model.QCApproved)

		_, err := env.batches.CreateBatch(ctx, userID, CreateBatchRequest{
			CollectionIDs: []string{c.ID.String()},
			ProductID:     product.ID.String(),
			YieldQuantity: mustDecimal(t, "0"),
		})
		require.Error(t, err)
		assert.Equal(t, apperr.CodeValidation, apperr.Code(err))
	})

	t.Run("fails without an active pool", func(t *testing.T) {
		env := newTestEnv(t)
		supplier := env.createSupplier(t)
		product := env.createProduct(t)
		c := env.createCollection(t, supplier.ID, "10", "4.0", "8.0", model.QCApproved)

		_, err := env.batches.CreateBatch(ctx, userID, CreateBatchRequest{
			CollectionIDs: []string{c.ID.String()},
			ProductID:     product.ID.String(),
			YieldQuantity: mustDecimal(t, "1"),
		})
		require.Error(t, err)
		assert.Equal(t, apperr.CodeNoActivePool, apperr.Code(err))
	})

	t.Run("a collection without quality readings folds volume only", func(t *testing.T) {
		env := newTestEnv(t)
		supplier := env.createSupplier(t)
		product := env.createProduct(t)
		pool := env.createActivePool(t)

		c := &model.MilkCollection{
			ID:                uuid.New(),
			SupplierID:        supplier.ID,
			QuantityLiters:    mustDecimal(t, "30"),
			QCStatus:          model.QCApproved,
			ConsumptionStatus: model.ConsumptionNew,
		}
		require.NoError(t, env.db.Create(c).Error)

		_, err := env.batches.CreateBatch(ctx, userID, CreateBatchRequest{
			CollectionIDs: []string{c.ID.String()},
			ProductID:     product.ID.String(),
			YieldQuantity: mustDecimal(t, "1"),
		})
		require.NoError(t, err)

		reloaded := env.reloadPool(t, pool.ID)
		assert.True(t, reloaded.RemainingMilkLiters.Equal(mustDecimal(t, "30")))
		assert.True(t, reloaded.RemainingFatUnits.IsZero())
		assert.True(t, reloaded.CurrentAvgFat().IsZero())
	})
}

func TestBatchService_GetBatch(t *testing.T) {
	ctx := context.Background()
	userID := uuid.NewString()

	t.Run("returns the batch with its input collections", func(t *testing.T) {
		env := newTestEnv(t)
		supplier := env.createSupplier(t)
		product := env.createProduct(t)
		env.createActivePool(t)
		c := env.createCollection(t, supplier.ID, "25", "4.0", "8.0", model.QCApproved)

		created, err := env.batches.CreateBatch(ctx, userID, CreateBatchRequest{
			CollectionIDs: []string{c.ID.String()},
			ProductID:     product.ID.String(),
			YieldQuantity: mustDecimal(t, "3"),
		})
		require.NoError(t, err)

		got, err := env.batches.GetBatch(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.BatchCode, got.BatchCode)
		assert.Equal(t, "Paneer", got.ProductName)
		assert.Equal(t, []string{c.ID.String()}, got.CollectionIDs)
		assert.Equal(t, "25.000", got.PooledLiters)
	})

	t.Run("unknown id is a not found error", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.batches.GetBatch(ctx, uuid.NewString())
		require.Error(t, err)
		assert.Equal(t, apperr.CodeNotFound, apperr.Code(err))
	})

	t.Run("malformed id is a validation error", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.batches.GetBatch(ctx, "nope")
		require.Error(t, err)
		assert.Equal(t, apperr.CodeValidation, apperr.Code(err))
	})
}
