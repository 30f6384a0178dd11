// Package deal serves the deal read path and stores extracted monthly time
// series, reconciling census and occupancy on both sides.
package deal

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/snf-deals/internal/model"
	"github.com/sells-group/snf-deals/internal/reconcile"
)

// ErrNotFound is returned when the requested deal does not exist.
var ErrNotFound = eris.New("deal: not found")

// ErrInvalidPayload is returned when a time series payload cannot be decoded.
var ErrInvalidPayload = eris.New("deal: invalid time series payload")

// Store is the persistence the service needs. *store.Postgres satisfies it.
type Store interface {
	GetDeal(ctx context.Context, id int64) (*model.Deal, error)
	ListFacilities(ctx context.Context, dealID int64) ([]model.Facility, error)
	ListMonthlyCensus(ctx context.Context, dealID int64) ([]model.MonthlyCensus, error)
	ListMonthlyFinancials(ctx context.Context, dealID int64) ([]model.MonthlyFinancials, error)
	UpsertMonthlyCensus(ctx context.Context, rows []model.MonthlyCensus) (int64, error)
	UpsertMonthlyFinancials(ctx context.Context, rows []model.MonthlyFinancials) (int64, error)
}

// View is a deal with its facilities and reconciled time series.
type View struct {
	*model.Deal
	Facilities        []model.Facility          `json:"facilities"`
	MonthlyCensus     []model.MonthlyCensus     `json:"monthly_census"`
	MonthlyFinancials []model.MonthlyFinancials `json:"monthly_financials"`
}

// Service implements the deal read path and the time-series write path.
type Service struct {
	store Store
	log   *zap.Logger
}

// NewService creates a Service over store.
func NewService(store Store) *Service {
	return &Service{
		store: store,
		log:   zap.L().With(zap.String("component", "deal")),
	}
}

// GetDeal loads a deal with its facilities and monthly rows. Census rows are
// re-reconciled against the current bed count, and current_occupancy is
// filled from their mean when the deal has none. Neither change is persisted.
func (s *Service) GetDeal(ctx context.Context, id int64) (*View, error) {
	d, err := s.store.GetDeal(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "deal: load %d", id)
	}
	if d == nil {
		return nil, eris.Wrapf(ErrNotFound, "deal %d", id)
	}

	v := &View{Deal: d}
	var census []model.MonthlyCensus

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		v.Facilities, err = s.store.ListFacilities(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		census, err = s.store.ListMonthlyCensus(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		v.MonthlyFinancials, err = s.store.ListMonthlyFinancials(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrapf(err, "deal: load related rows for %d", id)
	}

	v.MonthlyCensus = reconcile.ReconcileMonthly(census, d.BedCount)
	if d.CurrentOccupancy == nil {
		d.CurrentOccupancy = reconcile.MeanOccupancy(v.MonthlyCensus)
	}
	if v.Facilities == nil {
		v.Facilities = []model.Facility{}
	}
	if v.MonthlyCensus == nil {
		v.MonthlyCensus = []model.MonthlyCensus{}
	}
	if v.MonthlyFinancials == nil {
		v.MonthlyFinancials = []model.MonthlyFinancials{}
	}
	return v, nil
}
