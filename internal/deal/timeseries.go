package deal

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/snf-deals/internal/model"
	"github.com/sells-group/snf-deals/internal/reconcile"
)

// Accepted payload keys per column, in preference order.
var (
	censusKeys = map[string][]string{
		"average_daily_census": {"average_daily_census", "avg_daily_census", "adc", "census"},
		"occupancy_percentage": {"occupancy_percentage", "occupancy_pct", "occupancy"},
		"medicare_pct":         {"medicare_pct", "medicare_percentage"},
		"medicaid_pct":         {"medicaid_pct", "medicaid_percentage"},
		"private_pay_pct":      {"private_pay_pct", "private_pay_percentage"},
		"other_payer_pct":      {"other_payer_pct", "other_pct"},
	}
	financialKeys = map[string][]string{
		"total_revenue":        {"total_revenue", "revenue"},
		"total_expenses":       {"total_expenses", "expenses"},
		"net_operating_income": {"net_operating_income", "noi"},
	}
	monthKeys = []string{"month", "period", "date"}
)

var monthLayouts = []string{
	"2006-01",
	"2006-01-02",
	"2006/01",
	"01/2006",
	"1/2006",
	"January 2006",
	"Jan 2006",
	"Jan-2006",
	"Jan-06",
	time.RFC3339,
}

// TimeSeriesPayload is the monthly section of an AI extraction result.
type TimeSeriesPayload struct {
	BedCount          any              `json:"bed_count"`
	MonthlyCensus     []map[string]any `json:"monthlyCensus"`
	MonthlyFinancials []map[string]any `json:"monthlyFinancials"`
}

// StoreResult counts what StoreTimeSeries wrote and dropped.
type StoreResult struct {
	CensusRows     int64  `json:"census_rows"`
	FinancialRows  int64  `json:"financial_rows"`
	SkippedRows    int    `json:"skipped_rows"`
	BedCountSource string `json:"bed_count_source,omitempty"`
}

// ParseTimeSeries decodes an extraction payload. Numbers are kept as
// json.Number so string and numeric forms coerce the same way.
func ParseTimeSeries(raw []byte) (*TimeSeriesPayload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var p TimeSeriesPayload
	if err := dec.Decode(&p); err != nil {
		return nil, eris.Wrapf(ErrInvalidPayload, "decode: %v", err)
	}
	return &p, nil
}

// StoreTimeSeries reconciles and upserts the payload's monthly rows for a
// deal. The payload's bed count wins over the deal's. Rows without a
// readable month are skipped.
func (s *Service) StoreTimeSeries(ctx context.Context, dealID int64, raw []byte) (*StoreResult, error) {
	p, err := ParseTimeSeries(raw)
	if err != nil {
		return nil, err
	}

	d, err := s.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, eris.Wrapf(err, "deal: load %d", dealID)
	}
	if d == nil {
		return nil, eris.Wrapf(ErrNotFound, "deal %d", dealID)
	}

	res := &StoreResult{}
	var beds *int
	if n, ok := model.ToInt(p.BedCount); ok && n > 0 {
		beds = &n
		res.BedCountSource = "payload"
	} else if d.BedCount != nil && *d.BedCount > 0 {
		beds = d.BedCount
		res.BedCountSource = "deal"
	}

	census := make([]model.MonthlyCensus, 0, len(p.MonthlyCensus))
	for _, row := range p.MonthlyCensus {
		month, ok := rowMonth(row)
		if !ok {
			res.SkippedRows++
			continue
		}
		census = append(census, model.MonthlyCensus{
			DealID:              dealID,
			Month:               month,
			AverageDailyCensus:  floatKey(row, censusKeys["average_daily_census"]),
			OccupancyPercentage: floatKey(row, censusKeys["occupancy_percentage"]),
			MedicarePct:         floatKey(row, censusKeys["medicare_pct"]),
			MedicaidPct:         floatKey(row, censusKeys["medicaid_pct"]),
			PrivatePayPct:       floatKey(row, censusKeys["private_pay_pct"]),
			OtherPayerPct:       floatKey(row, censusKeys["other_payer_pct"]),
			Source:              string(model.SourceAIExtraction),
		})
	}
	census = reconcile.ReconcileMonthly(census, beds)

	financials := make([]model.MonthlyFinancials, 0, len(p.MonthlyFinancials))
	for _, row := range p.MonthlyFinancials {
		month, ok := rowMonth(row)
		if !ok {
			res.SkippedRows++
			continue
		}
		financials = append(financials, model.MonthlyFinancials{
			DealID:             dealID,
			Month:              month,
			TotalRevenue:       floatKey(row, financialKeys["total_revenue"]),
			TotalExpenses:      floatKey(row, financialKeys["total_expenses"]),
			NetOperatingIncome: floatKey(row, financialKeys["net_operating_income"]),
			Source:             string(model.SourceAIExtraction),
		})
	}

	if res.CensusRows, err = s.store.UpsertMonthlyCensus(ctx, census); err != nil {
		return nil, eris.Wrapf(err, "deal: store census for %d", dealID)
	}
	if res.FinancialRows, err = s.store.UpsertMonthlyFinancials(ctx, financials); err != nil {
		return nil, eris.Wrapf(err, "deal: store financials for %d", dealID)
	}

	s.log.Info("time series stored",
		zap.Int64("deal_id", dealID),
		zap.Int64("census_rows", res.CensusRows),
		zap.Int64("financial_rows", res.FinancialRows),
		zap.Int("skipped_rows", res.SkippedRows),
	)
	return res, nil
}

// NormalizeMonth renders any accepted month spelling as YYYY-MM.
func NormalizeMonth(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01"), true
		}
	}
	return "", false
}

func rowMonth(row map[string]any) (string, bool) {
	for _, k := range monthKeys {
		if v, ok := row[k]; ok && v != nil {
			return NormalizeMonth(model.ToString(v))
		}
	}
	return "", false
}

func floatKey(row map[string]any, keys []string) *float64 {
	for _, k := range keys {
		v, ok := row[k]
		if !ok || v == nil {
			continue
		}
		if f, ok := model.ToFloat(v); ok {
			return &f
		}
	}
	return nil
}
