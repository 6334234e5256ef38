package model

import (
	"testing"

	"backend/pkg/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestMilkPool_Fold(t *testing.T) {
	t.Run("grows totals and remaining by the same amount", func(t *testing.T) {
		p := &MilkPool{Status: PoolActive}

		err := p.Fold(d("100"), d("4.0"), d("8.5"))
		require.NoError(t, err)

		assert.True(t, p.TotalMilkLiters.Equal(d("100")))
		assert.True(t, p.TotalFatUnits.Equal(d("400")))
		assert.True(t, p.TotalSnfUnits.Equal(d("850")))
		assert.True(t, p.RemainingMilkLiters.Equal(d("100")))
		assert.True(t, p.RemainingFatUnits.Equal(d("400")))
		assert.True(t, p.RemainingSnfUnits.Equal(d("850")))
	})

	t.Run("average is volume weighted across folds", func(t *testing.T) {
		p := &MilkPool{Status: PoolActive}

		require.NoError(t, p.Fold(d("100"), d("3.0"), d("8.0")))
		require.NoError(t, p.Fold(d("50"), d("6.0"), d("9.0")))

		// (100*3 + 50*6) / 150 = 4, not the naive (3+6)/2 = 4.5
		assert.True(t, p.CurrentAvgFat().Equal(d("4")), "got %s", p.CurrentAvgFat())
		assert.True(t, p.CurrentAvgSNF().Sub(d("8.3333333")).Abs().LessThan(d("0.0001")),
			"got %s", p.CurrentAvgSNF())
	})

	t.Run("fold order does not matter", func(t *testing.T) {
		a := &MilkPool{Status: PoolActive}
		require.NoError(t, a.Fold(d("20"), d("5.5"), d("8.0")))
		require.NoError(t, a.Fold(d("80"), d("3.25"), d("9.1")))

		b := &MilkPool{Status: PoolActive}
		require.NoError(t, b.Fold(d("80"), d("3.25"), d("9.1")))
		require.NoError(t, b.Fold(d("20"), d("5.5"), d("8.0")))

		assert.True(t, a.RemainingFatUnits.Equal(b.RemainingFatUnits))
		assert.True(t, a.RemainingSnfUnits.Equal(b.RemainingSnfUnits))
		assert.True(t, a.CurrentAvgFat().Equal(b.CurrentAvgFat()))
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		p := &MilkPool{Status: PoolActive}

		err := p.Fold(decimal.Zero, d("4.0"), d("8.5"))
		require.Error(t, err)
		assert.Equal(t, apperr.CodeValidation, apperr.Code(err))

		err = p.Fold(d("-5"), d("4.0"), d("8.5"))
		require.Error(t, err)
		assert.Equal(t, apperr.CodeValidation, apperr.Code(err))
		assert.True(t, p.TotalMilkLiters.IsZero())
	})

	t.Run("zero quality volume dilutes the average", func(t *testing.T) {
		p := &MilkPool{Status: PoolActive}

		require.NoError(t, p.Fold(d("100"), d("4.0"), d("8.0")))
		require.NoError(t, p.Fold(d("100"), decimal.Zero, decimal.Zero))

		assert.True(t, p.CurrentAvgFat().Equal(d("2")))
		assert.True(t, p.CurrentAvgSNF().Equal(d("4")))
	})
}

func TestMilkPool_Withdraw(t *testing.T) {
	t.Run("leaves the remaining average unchanged", func(t *testing.T) {
		p := &MilkPool{Status: PoolActive}
		require.NoError(t, p.Fold(d("100"), d("4.0"), d("8.5")))

		require.NoError(t, p.Withdraw(d("40")))

		assert.True(t, p.RemainingMilkLiters.Equal(d("60")))
		assert.True(t, p.RemainingFatUnits.Equal(d("240")))
		assert.True(t, p.RemainingSnfUnits.Equal(d("510")))
		assert.True(t, p.CurrentAvgFat().Equal(d("4")))
		assert.True(t, p.CurrentAvgSNF().Equal(d("8.5")))
	})

	t.Run("does not touch lifetime totals", func(t *testing.T) {
		p := &MilkPool{Status: PoolActive}
		require.NoError(t, p.Fold(d("100"), d("4.0"), d("8.5")))

		require.NoError(t, p.Withdraw(d("40")))

		assert.True(t, p.TotalMilkLiters.Equal(d("100")))
		assert.True(t, p.TotalFatUnits.Equal(d("400")))
		assert.True(t, p.TotalSnfUnits.Equal(d("850")))
	})

	t.Run("can drain the pool exactly", func(t *testing.T) {
		p := &MilkPool{Status: PoolActive}
		require.NoError(t, p.Fold(d("75.5"), d("4.2"), d("8.1")))

		require.NoError(t, p.Withdraw(d("75.5")))

		assert.True(t, p.RemainingMilkLiters.IsZero())
		assert.True(t, p.RemainingFatUnits.IsZero())
		assert.True(t, p.RemainingSnfUnits.IsZero())
		assert.True(t, p.CurrentAvgFat().IsZero())
		assert.True(t, p.CurrentAvgSNF().IsZero())
	})

	t.Run("rejects withdrawal above the remaining balance", func(t *testing.T) {
		p := &MilkPool{Status: PoolActive}
		require.NoError(t, p.Fold(d("50"), d("4.0"), d("8.5")))

		err := p.Withdraw(d("50.001"))
		require.Error(t, err)
		assert.Equal(t, apperr.CodeInsufficientPool, apperr.Code(err))

		// Balance untouched after the rejection
		assert.True(t, p.RemainingMilkLiters.Equal(d("50")))
		assert.True(t, p.RemainingFatUnits.Equal(d("200")))
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		p := &MilkPool{Status: PoolActive}
		require.NoError(t, p.Fold(d("50"), d("4.0"), d("8.5")))

		err := p.Withdraw(decimal.Zero)
		require.Error(t, err)
		assert.Equal(t, apperr.CodeValidation, apperr.Code(err))
	})
}

func TestMilkCollection_Poolable(t *testing.T) {
	fat := d("4.0")
	c := &MilkCollection{
		QuantityLiters:    d("10"),
		FatPct:            &fat,
		QCStatus:          QCApproved,
		ConsumptionStatus: ConsumptionNew,
	}
	assert.True(t, c.Poolable())

	c.ConsumptionStatus = ConsumptionUsedInBatch
	assert.False(t, c.Poolable())

	c.ConsumptionStatus = ConsumptionNew
	c.QCStatus = QCPending
	assert.False(t, c.Poolable())

	c.QCStatus = QCRejected
	assert.False(t, c.Poolable())
}

func TestMilkCollection_QualityCoalescing(t *testing.T) {
	c := &MilkCollection{QuantityLiters: d("10")}
	assert.True(t, c.FatOrZero().IsZero())
	assert.True(t, c.SnfOrZero().IsZero())

	fat, snf := d("4.5"), d("8.2")
	c.FatPct, c.SnfPct = &fat, &snf
	assert.True(t, c.FatOrZero().Equal(fat))
	assert.True(t, c.SnfOrZero().Equal(snf))
}
