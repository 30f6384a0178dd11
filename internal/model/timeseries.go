package model

// MonthlyCensus is one (deal, month) census row (DealMonthlyCensus).
type MonthlyCensus struct {
	DealID              int64    `json:"deal_id"`
	Month               string   `json:"month"`
	AverageDailyCensus  *float64 `json:"average_daily_census"`
	OccupancyPercentage *float64 `json:"occupancy_percentage"`
	MedicarePct         *float64 `json:"medicare_pct"`
	MedicaidPct         *float64 `json:"medicaid_pct"`
	PrivatePayPct       *float64 `json:"private_pay_pct"`
	OtherPayerPct       *float64 `json:"other_payer_pct"`
	Source              string   `json:"source,omitempty"`
}

// MonthlyFinancials is one (deal, month) financial row.
type MonthlyFinancials struct {
	DealID             int64    `json:"deal_id"`
	Month              string   `json:"month"`
	TotalRevenue       *float64 `json:"total_revenue"`
	TotalExpenses      *float64 `json:"total_expenses"`
	NetOperatingIncome *float64 `json:"net_operating_income"`
	Source             string   `json:"source,omitempty"`
}
