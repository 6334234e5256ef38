package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatisticsResponse aggregates intake and production figures for dashboards
type StatisticsResponse struct {
	TotalCollectedLiters decimal.Decimal   `json:"total_collected_liters"`
	TotalApprovedLiters  decimal.Decimal   `json:"total_approved_liters"`
	TotalRejectedLiters  decimal.Decimal   `json:"total_rejected_liters"`
	AvgFatPct            decimal.Decimal   `json:"avg_fat_pct"`
	AvgSnfPct            decimal.Decimal   `json:"avg_snf_pct"`
	TotalBatches         int64             `json:"total_batches"`
	TotalYield           decimal.Decimal   `json:"total_yield"`
	TopSuppliers         []SupplierRanking `json:"top_suppliers"`
	TimeRangeStartDate   time.Time         `json:"time_range_start_date"`
	TimeRangeEndDate     time.Time         `json:"time_range_end_date"`
}

// SupplierRanking represents a supplier ranked by delivered volume
type SupplierRanking struct {
	SupplierID   string          `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	SupplierCode string          `json:"supplier_code"`
	TotalLiters  decimal.Decimal `json:"total_liters"`
	AvgFatPct    decimal.Decimal `json:"avg_fat_pct"`
}
