package service

import (
	"context"
	"testing"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedIntake inserts a collection with independently optional quality
// readings; pass "" to leave a reading unmeasured.
func seedIntake(t *testing.T, env *testEnv, supplierID uuid.UUID, qty, fat, snf, qcStatus string) *model.MilkCollection {
	t.Helper()
	c := &model.MilkCollection{
		ID:                uuid.New(),
		SupplierID:        supplierID,
		QuantityLiters:    mustDecimal(t, qty),
		QCStatus:          qcStatus,
		ConsumptionStatus: model.ConsumptionNew,
	}
	if fat != "" {
		v := mustDecimal(t, fat)
		c.FatPct = &v
	}
	if snf != "" {
		v := mustDecimal(t, snf)
		c.SnfPct = &v
	}
	require.NoError(t, env.db.Create(c).Error)
	return c
}

func statsRange() (time.Time, time.Time) {
	now := time.Now()
	return now.Add(-time.Hour), now.Add(time.Hour)
}

func assertDecimalNear(t *testing.T, expected string, got decimal.Decimal) {
	t.Helper()
	want := decimal.RequireFromString(expected)
	assert.True(t, got.Sub(want).Abs().LessThan(decimal.RequireFromString("0.0001")),
		"expected ~%s, got %s", expected, got)
}

func TestStatisticsService_GetStatistics(t *testing.T) {
	ctx := context.Background()

	t.Run("averages use per-field measured volume", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewStatisticsService(env.db)
		supplier := env.createSupplier(t)

		// SNF measured on 100 L, fat on none: the SNF average must not be
		// diluted by volume that only lacks a fat reading.
		seedIntake(t, env, supplier.ID, "100", "", "8.0", model.QCPending)

		start, end := statsRange()
		stats, err := svc.GetStatistics(ctx, start, end)
		require.NoError(t, err)

		assertDecimalNear(t, "8.0", stats.AvgSnfPct)
		assert.True(t, stats.AvgFatPct.IsZero(), "no fat reading anywhere, got %s", stats.AvgFatPct)
	})

	t.Run("each average is weighted over its own measured volume", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewStatisticsService(env.db)
		supplier := env.createSupplier(t)

		seedIntake(t, env, supplier.ID, "100", "", "8.0", model.QCApproved) // snf only
		seedIntake(t, env, supplier.ID, "50", "3.0", "", model.QCPending)   // fat only
		seedIntake(t, env, supplier.ID, "50", "6.0", "9.0", model.QCRejected)

		start, end := statsRange()
		stats, err := svc.GetStatistics(ctx, start, end)
		require.NoError(t, err)

		// fat: (50*3 + 50*6) / 100; snf: (100*8 + 50*9) / 150
		assertDecimalNear(t, "4.5", stats.AvgFatPct)
		assertDecimalNear(t, "8.333333", stats.AvgSnfPct)

		assertDecimalNear(t, "200", stats.TotalCollectedLiters)
		assertDecimalNear(t, "100", stats.TotalApprovedLiters)
		assertDecimalNear(t, "50", stats.TotalRejectedLiters)
	})

	t.Run("counts batches and total yield in the range", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewStatisticsService(env.db)
		product := env.createProduct(t)

		for i, yield := range []string{"12.5", "7.5"} {
			require.NoError(t, env.db.Create(&model.ProductionBatch{
				ID:            uuid.New(),
				BatchCode:     "BATCH-STATS-" + string(rune('A'+i)),
				ProductID:     product.ID,
				YieldQuantity: mustDecimal(t, yield),
				QCStatus:      model.BatchQCPending,
			}).Error)
		}

		start, end := statsRange()
		stats, err := svc.GetStatistics(ctx, start, end)
		require.NoError(t, err)

		assert.Equal(t, int64(2), stats.TotalBatches)
		assertDecimalNear(t, "20", stats.TotalYield)
	})

	t.Run("ranks suppliers by delivered volume", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewStatisticsService(env.db)
		big := env.createSupplier(t)
		small := env.createSupplier(t)

		seedIntake(t, env, big.ID, "80", "4.0", "8.0", model.QCApproved)
		seedIntake(t, env, big.ID, "40", "5.0", "8.0", model.QCPending)
		seedIntake(t, env, small.ID, "30", "3.5", "8.0", model.QCApproved)

		start, end := statsRange()
		stats, err := svc.GetStatistics(ctx, start, end)
		require.NoError(t, err)

		require.Len(t, stats.TopSuppliers, 2)
		assert.Equal(t, big.ID.String(), stats.TopSuppliers[0].SupplierID)
		assertDecimalNear(t, "120", stats.TopSuppliers[0].TotalLiters)
		// (80*4 + 40*5) / 120
		assertDecimalNear(t, "4.333333", stats.TopSuppliers[0].AvgFatPct)
		assert.Equal(t, small.ID.String(), stats.TopSuppliers[1].SupplierID)
	})

	t.Run("entries outside the range are excluded", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewStatisticsService(env.db)
		supplier := env.createSupplier(t)

		old := seedIntake(t, env, supplier.ID, "500", "4.0", "8.0", model.QCApproved)
		require.NoError(t, env.db.Model(old).
			Update("created_at", time.Now().Add(-48*time.Hour)).Error)
		seedIntake(t, env, supplier.ID, "10", "4.0", "8.0", model.QCApproved)

		start, end := statsRange()
		stats, err := svc.GetStatistics(ctx, start, end)
		require.NoError(t, err)

		assertDecimalNear(t, "10", stats.TotalCollectedLiters)
	})
}
