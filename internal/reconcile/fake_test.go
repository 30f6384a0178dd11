package reconcile

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/snf-deals/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type memStore struct {
	mu          sync.Mutex
	deals       map[int64]*model.Deal
	facilities  map[int64]*model.Facility
	nextFacID   int64
	updates     []model.DealUpdate
	facilityErr error
	updateErr   error
}

func newMemStore(deals ...*model.Deal) *memStore {
	s := &memStore{deals: map[int64]*model.Deal{}, facilities: map[int64]*model.Facility{}}
	for _, d := range deals {
		s.deals[d.ID] = d
	}
	return s
}

func (s *memStore) GetDeal(_ context.Context, id int64) (*model.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deals[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) UpdateDealSync(_ context.Context, id int64, u model.DealUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	d := s.deals[id]
	d.ApplyColumns(u.Columns)
	if u.Slot == model.SlotEnhanced {
		d.EnhancedExtractionData = u.Document
	} else {
		d.ExtractionData = u.Document
	}
	s.updates = append(s.updates, u)
	return nil
}

func (s *memStore) FindOrCreateFacility(_ context.Context, dealID int64) (*model.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.facilityErr != nil {
		return nil, s.facilityErr
	}
	for _, f := range s.facilities {
		if f.DealID == dealID && f.FacilityRole == model.RoleSubject {
			cp := *f
			return &cp, nil
		}
	}
	s.nextFacID++
	f := &model.Facility{ID: s.nextFacID, DealID: dealID, FacilityRole: model.RoleSubject}
	s.facilities[f.ID] = f
	cp := *f
	return &cp, nil
}

func (s *memStore) UpdateFacility(_ context.Context, id int64, cols map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.facilities[id]
	if !ok {
		return errors.New("no facility")
	}
	f.ApplyColumns(cols)
	return nil
}

type memHistory struct {
	mu   sync.Mutex
	rows []model.ExtractionHistory
	err  error
}

func (h *memHistory) InsertHistory(_ context.Context, row *model.ExtractionHistory) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	row.ID = int64(len(h.rows) + 1)
	h.rows = append(h.rows, *row)
	return nil
}

func (h *memHistory) ListHistory(_ context.Context, dealID int64, limit, offset int) ([]model.ExtractionHistory, int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var matched []model.ExtractionHistory
	for _, r := range h.rows {
		if r.DealID == dealID {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}
