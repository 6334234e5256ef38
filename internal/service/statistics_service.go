package service

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StatisticsService interface {
	GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.StatisticsResponse, error)
}

type statisticsService struct {
	db *gorm.DB
}

func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// GetStatistics aggregates intake and production figures over a time range.
// Averages are volume-weighted over collections that carry a quality reading.
func (s *statisticsService) GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.StatisticsResponse, error) {
	var response model.StatisticsResponse
	response.TimeRangeStartDate = startDate
	response.TimeRangeEndDate = endDate

	// Fat and SNF readings can be missing independently, so each average
	// carries its own measured-volume denominator.
	var intake struct {
		Collected   decimal.Decimal
		Approved    decimal.Decimal
		Rejected    decimal.Decimal
		FatMass     decimal.Decimal
		SnfMass     decimal.Decimal
		FatMeasured decimal.Decimal
		SnfMeasured decimal.Decimal
	}
	s.db.WithContext(ctx).Table("milk_collections").
		Select(`COALESCE(SUM(quantity_liters), 0) as collected,
			COALESCE(SUM(CASE WHEN qc_status = ? THEN quantity_liters ELSE 0 END), 0) as approved,
			COALESCE(SUM(CASE WHEN qc_status = ? THEN quantity_liters ELSE 0 END), 0) as rejected,
			COALESCE(SUM(quantity_liters * COALESCE(fat_pct, 0)), 0) as fat_mass,
			COALESCE(SUM(quantity_liters * COALESCE(snf_pct, 0)), 0) as snf_mass,
			COALESCE(SUM(CASE WHEN fat_pct IS NOT NULL THEN quantity_liters ELSE 0 END), 0) as fat_measured,
			COALESCE(SUM(CASE WHEN snf_pct IS NOT NULL THEN quantity_liters ELSE 0 END), 0) as snf_measured`,
			model.QCApproved, model.QCRejected).
		Where("created_at >= ? AND created_at <= ?", startDate, endDate).
		Scan(&intake)

	response.TotalCollectedLiters = intake.Collected
	response.TotalApprovedLiters = intake.Approved
	response.TotalRejectedLiters = intake.Rejected
	if intake.FatMeasured.IsPositive() {
		response.AvgFatPct = intake.FatMass.Div(intake.FatMeasured)
	}
	if intake.SnfMeasured.IsPositive() {
		response.AvgSnfPct = intake.SnfMass.Div(intake.SnfMeasured)
	}

	var production struct {
		Batches int64
		Yield   decimal.Decimal
	}
	s.db.WithContext(ctx).Table("production_batches").
		Select("COUNT(*) as batches, COALESCE(SUM(yield_quantity), 0) as yield").
		Where("created_at >= ? AND created_at <= ?", startDate, endDate).
		Scan(&production)
	response.TotalBatches = production.Batches
	response.TotalYield = production.Yield

	var topSuppliers []model.SupplierRanking
	s.db.WithContext(ctx).Table("milk_collections").
		Select(`suppliers.id as supplier_id, suppliers.name as supplier_name, suppliers.code as supplier_code,
			COALESCE(SUM(milk_collections.quantity_liters), 0) as total_liters,
			COALESCE(SUM(milk_collections.quantity_liters * COALESCE(milk_collections.fat_pct, 0)), 0)
				/ NULLIF(SUM(milk_collections.quantity_liters), 0) as avg_fat_pct`).
		Joins("JOIN suppliers ON suppliers.id = milk_collections.supplier_id").
		Where("milk_collections.created_at >= ? AND milk_collections.created_at <= ?", startDate, endDate).
		Group("suppliers.id, suppliers.name, suppliers.code").
		Order("total_liters DESC").
		Limit(5).
		Scan(&topSuppliers)
	response.TopSuppliers = topSuppliers

	return response, nil
}
