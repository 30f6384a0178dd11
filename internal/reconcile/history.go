package reconcile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/snf-deals/internal/model"
	"github.com/sells-group/snf-deals/internal/resilience"
)

// ErrInvalidSource is returned for a history source outside the vocabulary.
var ErrInvalidSource = eris.New("reconcile: invalid history source")

// HistoryStore persists extraction-history rows.
type HistoryStore interface {
	InsertHistory(ctx context.Context, h *model.ExtractionHistory) error
	ListHistory(ctx context.Context, dealID int64, limit, offset int) ([]model.ExtractionHistory, int, error)
}

// HistoryEntry is one mutation to audit.
type HistoryEntry struct {
	DealID        int64
	Document      json.RawMessage
	Source        model.HistorySource
	ChangedFields []string
	Actor         string
}

// Page selects a window of history rows.
type Page struct {
	Limit  int
	Offset int
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// HistoryPage is one page of history, most recent first.
type HistoryPage struct {
	Entries []model.ExtractionHistory `json:"entries"`
	Total   int                       `json:"total"`
	Limit   int                       `json:"limit"`
	Offset  int                       `json:"offset"`
}

// Recorder writes the extraction-history audit log. Inserts run through a
// circuit breaker.
type Recorder struct {
	store   HistoryStore
	breaker *resilience.CircuitBreaker
	now     func() time.Time
}

// NewRecorder creates a recorder. A nil breaker uses the default config.
func NewRecorder(store HistoryStore, breaker *resilience.CircuitBreaker) *Recorder {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig())
	}
	return &Recorder{store: store, breaker: breaker, now: time.Now}
}

// Record appends one history row. The error is informational: callers log
// it and carry on, and the returned record is nil whenever it is set.
func (r *Recorder) Record(ctx context.Context, e HistoryEntry) (*model.ExtractionHistory, error) {
	if !e.Source.Valid() {
		return nil, eris.Wrapf(ErrInvalidSource, "reconcile: source %q", e.Source)
	}
	doc := e.Document
	if len(doc) == 0 {
		doc = json.RawMessage(`{}`)
	}
	fields := e.ChangedFields
	if fields == nil {
		fields = []string{}
	}
	h := &model.ExtractionHistory{
		DealID:         e.DealID,
		ExtractionData: doc,
		Source:         e.Source,
		ChangedFields:  fields,
		CreatedBy:      e.Actor,
		CreatedAt:      r.now().UTC(),
	}

	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.store.InsertHistory(ctx, h)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: record history for deal %d", e.DealID)
	}

	zap.L().Debug("extraction history recorded",
		zap.Int64("deal_id", e.DealID),
		zap.String("source", string(e.Source)),
		zap.Strings("changed_fields", fields),
	)
	return h, nil
}

// List returns a page of a deal's history, most recent first.
func (r *Recorder) List(ctx context.Context, dealID int64, p Page) (*HistoryPage, error) {
	p = p.normalize()
	rows, total, err := r.store.ListHistory(ctx, dealID, p.Limit, p.Offset)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: list history for deal %d", dealID)
	}
	if rows == nil {
		rows = []model.ExtractionHistory{}
	}
	return &HistoryPage{Entries: rows, Total: total, Limit: p.Limit, Offset: p.Offset}, nil
}
