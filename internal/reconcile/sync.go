// Package reconcile keeps a deal's flat columns, its facility row, and its
// extraction document in step when a canonical facility record arrives.
package reconcile

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/snf-deals/internal/model"
)

// ErrNotFound is returned when the referenced deal does not exist.
var ErrNotFound = eris.New("reconcile: deal not found")

// DefaultSource labels incoming records that carry no source.
const DefaultSource = "Database"

// DealStore is the persistence surface the coordinator writes through.
// GetDeal returns (nil, nil) when the deal does not exist.
type DealStore interface {
	GetDeal(ctx context.Context, id int64) (*model.Deal, error)
	UpdateDealSync(ctx context.Context, id int64, u model.DealUpdate) error
	FindOrCreateFacility(ctx context.Context, dealID int64) (*model.Facility, error)
	UpdateFacility(ctx context.Context, id int64, cols map[string]any) error
}

// SyncRequest is one incoming canonical facility record for a deal.
type SyncRequest struct {
	DealID                int64              `json:"deal_id"`
	Facility              model.FacilityData `json:"facility"`
	Source                string             `json:"source"`
	SkipConflictDetection bool               `json:"skip_conflict_detection"`
	// ResolvedConflicts maps a field to the value the user chose for it.
	ResolvedConflicts map[string]any      `json:"resolved_conflicts,omitempty"`
	Actor             string              `json:"actor,omitempty"`
	HistorySource     model.HistorySource `json:"history_source,omitempty"`
}

// SyncResult holds the written state and the conflicts raised by this call.
type SyncResult struct {
	Deal          *model.Deal      `json:"deal"`
	Facility      *model.Facility  `json:"facility"`
	Conflicts     []model.Conflict `json:"conflicts"`
	WrittenFields []string         `json:"written_fields"`
}

// Coordinator runs the three-way facility sync.
type Coordinator struct {
	store    DealStore
	detector *Detector
	history  *Recorder
	now      func() time.Time
	log      *zap.Logger
}

// NewCoordinator creates a coordinator. A nil detector uses the default
// rules; a nil recorder disables history.
func NewCoordinator(store DealStore, detector *Detector, history *Recorder) *Coordinator {
	if detector == nil {
		detector = NewDetector()
	}
	return &Coordinator{
		store:    store,
		detector: detector,
		history:  history,
		now:      time.Now,
		log:      zap.L().With(zap.String("component", "reconcile.sync")),
	}
}

// Sync writes req.Facility onto the deal's columns, its subject facility row,
// and its authoritative extraction document. Conflicted fields keep their
// extracted value everywhere. Only a missing deal or a failed deal write is
// returned as an error; facility and history failures are logged.
func (c *Coordinator) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	source := req.Source
	if source == "" {
		source = DefaultSource
	}
	log := c.log.With(zap.Int64("deal_id", req.DealID), zap.String("source", source))

	deal, err := c.store.GetDeal(ctx, req.DealID)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: load deal %d", req.DealID)
	}
	if deal == nil {
		return nil, eris.Wrapf(ErrNotFound, "reconcile: deal %d", req.DealID)
	}

	ext, err := model.ResolveExtraction(deal.EnhancedExtractionData, deal.ExtractionData)
	if err != nil {
		log.Warn("malformed extraction data, treating as empty",
			zap.String("slot", string(ext.Slot)), zap.Error(err))
	}
	doc := ext.Document
	now := c.now().UTC()

	data := req.Facility
	c.applyResolutions(log, doc, &data, req.ResolvedConflicts, req.Actor, now)

	detection := Detection{Conflicts: []model.Conflict{}, Skip: map[string]bool{}}
	if !req.SkipConflictDetection {
		detection = c.detector.Detect(doc, data, source)
	}

	written := selectFields(data, detection)

	// facility_type belongs to the facility row only; the deal columns, the
	// extraction document and its history never carry it.
	dealCols := make(map[string]any, len(written))
	facilityCols := make(map[string]any, len(written))
	changed := make([]string, 0, len(written))
	for _, field := range written {
		v, _ := data.Value(field)
		facilityCols[field] = v
		if field == model.FieldFacilityType {
			continue
		}
		dealCols[field] = v
		doc.Set(field, v, source, model.ConfidenceHigh)
		changed = append(changed, field)
	}
	doc.MergeConflicts(detection.Conflicts)

	encoded, err := ext.Encode()
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: encode extraction for deal %d", req.DealID)
	}

	if err := c.store.UpdateDealSync(ctx, deal.ID, model.DealUpdate{
		Columns:  dealCols,
		Slot:     ext.Slot,
		Document: encoded,
	}); err != nil {
		return nil, eris.Wrapf(err, "reconcile: update deal %d", req.DealID)
	}
	deal.ApplyColumns(dealCols)
	switch ext.Slot {
	case model.SlotEnhanced:
		deal.EnhancedExtractionData = encoded
	default:
		deal.ExtractionData = encoded
	}

	facility := c.syncFacility(ctx, log, deal.ID, facilityCols)

	if len(changed) > 0 && c.history != nil {
		snapshot, err := json.Marshal(doc)
		if err != nil {
			log.Warn("history snapshot encode failed", zap.Error(err))
		} else {
			hs := req.HistorySource
			if hs == "" {
				hs = model.SourceFacilitySync
			}
			if _, err := c.history.Record(ctx, HistoryEntry{
				DealID:        deal.ID,
				Document:      snapshot,
				Source:        hs,
				ChangedFields: changed,
				Actor:         req.Actor,
			}); err != nil {
				log.Warn("extraction history not recorded", zap.Error(err))
			}
		}
	}

	log.Info("facility sync complete",
		zap.Strings("written", written),
		zap.Int("conflicts", len(detection.Conflicts)),
	)

	return &SyncResult{
		Deal:          deal,
		Facility:      facility,
		Conflicts:     detection.Conflicts,
		WrittenFields: written,
	}, nil
}

// applyResolutions closes unresolved conflicts named in resolved and makes
// each chosen value the incoming value for its field.
func (c *Coordinator) applyResolutions(log *zap.Logger, doc *model.ExtractionDocument, data *model.FacilityData, resolved map[string]any, actor string, now time.Time) {
	fields := make([]string, 0, len(resolved))
	for f := range resolved {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		value := resolved[field]
		if i := doc.UnresolvedConflict(field); i >= 0 {
			doc.Conflicts[i].Resolve(value, actor, now)
		}
		if !data.Set(field, value) {
			log.Warn("resolved value not applicable", zap.String("field", field), zap.Any("value", value))
		}
	}
}

func (c *Coordinator) syncFacility(ctx context.Context, log *zap.Logger, dealID int64, cols map[string]any) *model.Facility {
	facility, err := c.store.FindOrCreateFacility(ctx, dealID)
	if err != nil {
		log.Error("facility find-or-create failed", zap.Error(err))
		return nil
	}
	if len(cols) == 0 {
		return facility
	}
	if err := c.store.UpdateFacility(ctx, facility.ID, cols); err != nil {
		log.Error("facility update failed", zap.Int64("facility_id", facility.ID), zap.Error(err))
		return facility
	}
	facility.ApplyColumns(cols)
	return facility
}

// selectFields returns the supplied fields that are not protected by a
// conflict, in canonical order.
func selectFields(data model.FacilityData, d Detection) []string {
	var out []string
	for _, field := range model.FacilityFields {
		if _, ok := data.Value(field); !ok {
			continue
		}
		if d.Skipped(field) {
			continue
		}
		out = append(out, field)
	}
	return out
}
