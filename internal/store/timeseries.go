package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/snf-deals/internal/db"
	"github.com/sells-group/snf-deals/internal/model"
	"github.com/sells-group/snf-deals/internal/resilience"
)

var censusUpsert = db.UpsertConfig{
	Table: "deal_monthly_census",
	Columns: []string{
		"deal_id", "month", "average_daily_census", "occupancy_percentage",
		"medicare_pct", "medicaid_pct", "private_pay_pct", "other_payer_pct", "source",
	},
	ConflictKeys: []string{"deal_id", "month"},
	Touch:        "updated_at",
}

var financialsUpsert = db.UpsertConfig{
	Table: "deal_monthly_financials",
	Columns: []string{
		"deal_id", "month", "total_revenue", "total_expenses", "net_operating_income", "source",
	},
	ConflictKeys: []string{"deal_id", "month"},
	Touch:        "updated_at",
}

// UpsertMonthlyCensus writes census rows keyed on (deal_id, month).
func (s *Postgres) UpsertMonthlyCensus(ctx context.Context, rows []model.MonthlyCensus) (int64, error) {
	data := make([][]any, len(rows))
	for i, r := range rows {
		data[i] = []any{
			r.DealID, r.Month, r.AverageDailyCensus, r.OccupancyPercentage,
			r.MedicarePct, r.MedicaidPct, r.PrivatePayPct, r.OtherPayerPct, sourceOrDefault(r.Source),
		}
	}
	n, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (int64, error) {
		return db.BulkUpsert(ctx, s.pool, censusUpsert, data)
	})
	return n, eris.Wrap(err, "store: upsert monthly census")
}

// UpsertMonthlyFinancials writes financial rows keyed on (deal_id, month).
func (s *Postgres) UpsertMonthlyFinancials(ctx context.Context, rows []model.MonthlyFinancials) (int64, error) {
	data := make([][]any, len(rows))
	for i, r := range rows {
		data[i] = []any{
			r.DealID, r.Month, r.TotalRevenue, r.TotalExpenses, r.NetOperatingIncome, sourceOrDefault(r.Source),
		}
	}
	n, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (int64, error) {
		return db.BulkUpsert(ctx, s.pool, financialsUpsert, data)
	})
	return n, eris.Wrap(err, "store: upsert monthly financials")
}

// ListMonthlyCensus returns a deal's census rows in month order.
func (s *Postgres) ListMonthlyCensus(ctx context.Context, dealID int64) ([]model.MonthlyCensus, error) {
	rows, err := s.pool.Query(ctx, `SELECT deal_id, month, average_daily_census, occupancy_percentage,
		medicare_pct, medicaid_pct, private_pay_pct, other_payer_pct, source
		FROM deal_monthly_census WHERE deal_id = $1 ORDER BY month`, dealID)
	if err != nil {
		return nil, eris.Wrapf(err, "store: list census for deal %d", dealID)
	}
	defer rows.Close()

	var out []model.MonthlyCensus
	for rows.Next() {
		var r model.MonthlyCensus
		if err := rows.Scan(&r.DealID, &r.Month, &r.AverageDailyCensus, &r.OccupancyPercentage,
			&r.MedicarePct, &r.MedicaidPct, &r.PrivatePayPct, &r.OtherPayerPct, &r.Source); err != nil {
			return nil, eris.Wrap(err, "store: scan census")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate census")
}

// ListMonthlyFinancials returns a deal's financial rows in month order.
func (s *Postgres) ListMonthlyFinancials(ctx context.Context, dealID int64) ([]model.MonthlyFinancials, error) {
	rows, err := s.pool.Query(ctx, `SELECT deal_id, month, total_revenue, total_expenses, net_operating_income, source
		FROM deal_monthly_financials WHERE deal_id = $1 ORDER BY month`, dealID)
	if err != nil {
		return nil, eris.Wrapf(err, "store: list financials for deal %d", dealID)
	}
	defer rows.Close()

	var out []model.MonthlyFinancials
	for rows.Next() {
		var r model.MonthlyFinancials
		if err := rows.Scan(&r.DealID, &r.Month, &r.TotalRevenue, &r.TotalExpenses, &r.NetOperatingIncome, &r.Source); err != nil {
			return nil, eris.Wrap(err, "store: scan financials")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate financials")
}

func sourceOrDefault(s string) string {
	if s == "" {
		return string(model.SourceAIExtraction)
	}
	return s
}
