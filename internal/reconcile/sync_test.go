package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/snf-deals/internal/model"
	"github.com/sells-group/snf-deals/internal/resilience"
)

func newTestCoordinator(store *memStore, hist *memHistory) *Coordinator {
	c := NewCoordinator(store, fixedDetector(), NewRecorder(hist, nil))
	c.now = func() time.Time { return fixedNow }
	return c
}

func storedDoc(t *testing.T, raw []byte) *model.ExtractionDocument {
	t.Helper()
	doc, err := model.ParseExtractionDocument(raw)
	require.NoError(t, err)
	return doc
}

func TestSync_NoConflict(t *testing.T) {
	store := newMemStore(&model.Deal{ID: 1})
	hist := &memHistory{}
	c := newTestCoordinator(store, hist)

	res, err := c.Sync(context.Background(), SyncRequest{
		DealID: 1,
		Facility: model.FacilityData{
			BedCount:      intp(120),
			StreetAddress: strp("123 Main St"),
			City:          strp("Austin"),
		},
		Source: "ALF Database",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, []string{"street_address", "city", "bed_count"}, res.WrittenFields)

	deal := store.deals[1]
	require.NotNil(t, deal.BedCount)
	assert.Equal(t, 120, *deal.BedCount)
	assert.Equal(t, "Austin", deal.City)

	doc := storedDoc(t, deal.ExtractionData)
	assert.EqualValues(t, 120, doc.Fields["bed_count"])
	assert.Equal(t, "ALF Database", doc.SourceMap["bed_count"])
	assert.Equal(t, model.ConfidenceHigh, doc.ConfidenceMap["city"])
	assert.Empty(t, deal.EnhancedExtractionData)

	require.NotNil(t, res.Facility)
	assert.Equal(t, "123 Main St", store.facilities[res.Facility.ID].StreetAddress)

	require.Len(t, hist.rows, 1)
	assert.Equal(t, model.SourceFacilitySync, hist.rows[0].Source)
	assert.Equal(t, []string{"street_address", "city", "bed_count"}, hist.rows[0].ChangedFields)
}

func TestSync_BedCountConflict(t *testing.T) {
	store := newMemStore(&model.Deal{
		ID:             1,
		BedCount:       intp(100),
		ExtractionData: []byte(`{"bed_count":100,"_sourceMap":{"bed_count":"AI Extraction"}}`),
	})
	hist := &memHistory{}
	c := newTestCoordinator(store, hist)

	res, err := c.Sync(context.Background(), SyncRequest{
		DealID:   1,
		Facility: model.FacilityData{BedCount: intp(120), FacilityName: strp("Sunrise")},
		Source:   "ALF Database",
	})
	require.NoError(t, err)
	require.Len(t, res.Conflicts, 1)
	assert.EqualValues(t, 100, res.Conflicts[0].ExtractedValue)
	assert.EqualValues(t, 120, res.Conflicts[0].DatabaseValue)

	deal := store.deals[1]
	assert.Equal(t, 100, *deal.BedCount)
	assert.Equal(t, "Sunrise", deal.FacilityName)

	doc := storedDoc(t, deal.ExtractionData)
	assert.EqualValues(t, 100, doc.Fields["bed_count"])
	assert.Equal(t, "AI Extraction", doc.SourceMap["bed_count"])
	require.Len(t, doc.Conflicts, 1)
	assert.False(t, doc.Conflicts[0].Resolved)

	assert.Nil(t, store.facilities[res.Facility.ID].BedCount)
	require.Len(t, hist.rows, 1)
	assert.Equal(t, []string{"facility_name"}, hist.rows[0].ChangedFields)
}

func TestSync_ConflictExclusivityAcrossFields(t *testing.T) {
	store := newMemStore(&model.Deal{
		ID:             1,
		StreetAddress:  "1 Oak Ln",
		City:           "Austin",
		ExtractionData: []byte(`{"street_address":"1 Oak Ln","city":"Austin","bed_count":90}`),
	})
	c := newTestCoordinator(store, &memHistory{})

	res, err := c.Sync(context.Background(), SyncRequest{
		DealID: 1,
		Facility: model.FacilityData{
			StreetAddress: strp("77 Elm Ave"),
			City:          strp("Dallas"),
			BedCount:      intp(91),
			State:         strp("TX"),
		},
		Source: "CMS",
	})
	require.NoError(t, err)
	assert.Len(t, res.Conflicts, 3)
	assert.Equal(t, []string{"state"}, res.WrittenFields)

	doc := storedDoc(t, store.deals[1].ExtractionData)
	assert.Equal(t, "1 Oak Ln", doc.Fields["street_address"])
	assert.Equal(t, "Austin", doc.Fields["city"])
	assert.EqualValues(t, 90, doc.Fields["bed_count"])
	assert.Equal(t, "TX", doc.Fields["state"])
	assert.Equal(t, "1 Oak Ln", store.deals[1].StreetAddress)
}

func TestSync_Idempotent(t *testing.T) {
	store := newMemStore(&model.Deal{ID: 1})
	c := newTestCoordinator(store, &memHistory{})
	req := SyncRequest{
		DealID:   1,
		Facility: model.FacilityData{BedCount: intp(120), City: strp("Austin"), State: strp("TX")},
		Source:   "ALF Database",
	}

	_, err := c.Sync(context.Background(), req)
	require.NoError(t, err)
	first := append([]byte(nil), store.deals[1].ExtractionData...)

	res, err := c.Sync(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, res.Conflicts)
	assert.JSONEq(t, string(first), string(store.deals[1].ExtractionData))
	assert.Len(t, store.facilities, 1)
}

func TestSync_RepeatedConflictKeepsDetectedAt(t *testing.T) {
	store := newMemStore(&model.Deal{ID: 1, ExtractionData: []byte(`{"city":"Austen"}`)})
	c := newTestCoordinator(store, &memHistory{})
	req := SyncRequest{DealID: 1, Facility: model.FacilityData{City: strp("Austin")}, Source: "x"}

	_, err := c.Sync(context.Background(), req)
	require.NoError(t, err)

	later := fixedNow.Add(24 * time.Hour)
	c.detector = NewDetector(WithClock(func() time.Time { return later }))
	res, err := c.Sync(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Conflicts, 1)
	assert.True(t, res.Conflicts[0].DetectedAt.Equal(fixedNow))

	doc := storedDoc(t, store.deals[1].ExtractionData)
	require.Len(t, doc.Conflicts, 1)
	assert.True(t, doc.Conflicts[0].DetectedAt.Equal(fixedNow))
}

func TestSync_ResolvedConflictReplay(t *testing.T) {
	store := newMemStore(&model.Deal{ID: 1, ExtractionData: []byte(`{"city":"Austen"}`)})
	c := newTestCoordinator(store, &memHistory{})
	ctx := context.Background()

	res, err := c.Sync(ctx, SyncRequest{DealID: 1, Facility: model.FacilityData{City: strp("Austin")}, Source: "ALF Database"})
	require.NoError(t, err)
	require.Len(t, res.Conflicts, 1)

	res, err = c.Sync(ctx, SyncRequest{
		DealID:                1,
		Facility:              model.FacilityData{City: strp("Austin")},
		Source:                "ALF Database",
		SkipConflictDetection: true,
		ResolvedConflicts:     map[string]any{"city": "Austin"},
		Actor:                 "analyst@example.com",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Conflicts)

	res, err = c.Sync(ctx, SyncRequest{DealID: 1, Facility: model.FacilityData{City: strp("Austin")}, Source: "ALF Database"})
	require.NoError(t, err)
	assert.Empty(t, res.Conflicts)

	doc := storedDoc(t, store.deals[1].ExtractionData)
	assert.Equal(t, "Austin", doc.Fields["city"])
	require.Len(t, doc.Conflicts, 1)
	assert.True(t, doc.Conflicts[0].Resolved)
	assert.Equal(t, "Austin", doc.Conflicts[0].ResolvedValue)
	require.NotNil(t, doc.Conflicts[0].ResolvedBy)
	assert.Equal(t, "analyst@example.com", *doc.Conflicts[0].ResolvedBy)
	assert.Equal(t, "Austin", store.deals[1].City)
}

func TestSync_ResolvedToExtractedValueStaysProtected(t *testing.T) {
	store := newMemStore(&model.Deal{ID: 1, City: "Austen", ExtractionData: []byte(`{"city":"Austen"}`)})
	c := newTestCoordinator(store, &memHistory{})
	ctx := context.Background()

	_, err := c.Sync(ctx, SyncRequest{DealID: 1, Facility: model.FacilityData{City: strp("Austin")}})
	require.NoError(t, err)
	_, err = c.Sync(ctx, SyncRequest{
		DealID:                1,
		Facility:              model.FacilityData{City: strp("Austin")},
		SkipConflictDetection: true,
		ResolvedConflicts:     map[string]any{"city": "Austen"},
	})
	require.NoError(t, err)

	res, err := c.Sync(ctx, SyncRequest{DealID: 1, Facility: model.FacilityData{City: strp("Austin")}})
	require.NoError(t, err)
	assert.Empty(t, res.Conflicts)
	assert.Empty(t, res.WrittenFields)
	assert.Equal(t, "Austen", store.deals[1].City)
}

func TestSync_EnhancedNestedDocument(t *testing.T) {
	store := newMemStore(&model.Deal{
		ID:                     1,
		ExtractionData:         []byte(`{"city":"Old"}`),
		EnhancedExtractionData: []byte(`{"monthlyCensus":[],"extractedData":{"bed_count":80}}`),
	})
	c := newTestCoordinator(store, &memHistory{})

	res, err := c.Sync(context.Background(), SyncRequest{DealID: 1, Facility: model.FacilityData{BedCount: intp(80), ZipCode: strp("78701")}})
	require.NoError(t, err)
	assert.Empty(t, res.Conflicts)

	deal := store.deals[1]
	assert.JSONEq(t, `{"city":"Old"}`, string(deal.ExtractionData))

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(deal.EnhancedExtractionData, &env))
	assert.Contains(t, env, "monthlyCensus")
	doc := storedDoc(t, env["extractedData"])
	assert.Equal(t, "78701", doc.Fields["zip_code"])
	assert.Equal(t, DefaultSource, doc.SourceMap["zip_code"])
}

func TestSync_MalformedDocumentTreatedAsEmpty(t *testing.T) {
	store := newMemStore(&model.Deal{ID: 1, ExtractionData: []byte(`{not json`)})
	c := newTestCoordinator(store, &memHistory{})

	res, err := c.Sync(context.Background(), SyncRequest{DealID: 1, Facility: model.FacilityData{City: strp("Austin")}})
	require.NoError(t, err)
	assert.Empty(t, res.Conflicts)
	doc := storedDoc(t, store.deals[1].ExtractionData)
	assert.Equal(t, "Austin", doc.Fields["city"])
}

func TestSync_NotFound(t *testing.T) {
	c := newTestCoordinator(newMemStore(), &memHistory{})
	_, err := c.Sync(context.Background(), SyncRequest{DealID: 42})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSync_DealWriteFailureAborts(t *testing.T) {
	store := newMemStore(&model.Deal{ID: 1})
	store.updateErr = errors.New("connection reset")
	hist := &memHistory{}
	c := newTestCoordinator(store, hist)

	_, err := c.Sync(context.Background(), SyncRequest{DealID: 1, Facility: model.FacilityData{City: strp("Austin")}})
	require.Error(t, err)
	assert.Empty(t, hist.rows)
}

func TestSync_FacilityAndHistoryFailuresAreSwallowed(t *testing.T) {
	store := newMemStore(&model.Deal{ID: 1})
	store.facilityErr = errors.New("insert failed")
	hist := &memHistory{err: errors.New("audit table locked")}
	c := newTestCoordinator(store, hist)

	res, err := c.Sync(context.Background(), SyncRequest{DealID: 1, Facility: model.FacilityData{City: strp("Austin")}})
	require.NoError(t, err)
	assert.Nil(t, res.Facility)
	assert.Equal(t, "Austin", store.deals[1].City)
}

func TestSync_NothingSuppliedSkipsHistory(t *testing.T) {
	store := newMemStore(&model.Deal{ID: 1})
	hist := &memHistory{}
	c := newTestCoordinator(store, hist)

	res, err := c.Sync(context.Background(), SyncRequest{DealID: 1})
	require.NoError(t, err)
	assert.Empty(t, res.WrittenFields)
	assert.Empty(t, hist.rows)
	require.Len(t, store.updates, 1)
	assert.Empty(t, store.updates[0].Columns)
}

func TestSync_HistoryBreakerOpens(t *testing.T) {
	store := newMemStore(&model.Deal{ID: 1})
	hist := &memHistory{err: errors.New("down")}
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = 1
	breaker := resilience.NewCircuitBreaker(cfg)
	c := NewCoordinator(store, fixedDetector(), NewRecorder(hist, breaker))

	for range 3 {
		_, err := c.Sync(context.Background(), SyncRequest{DealID: 1, Facility: model.FacilityData{State: strp("TX")}})
		require.NoError(t, err)
	}
	assert.Equal(t, resilience.CircuitOpen, breaker.State())
}

func TestSync_NumericResolvedByKeepsDocument(t *testing.T) {
	store := newMemStore(&model.Deal{
		ID: 1,
		ExtractionData: []byte(`{"bed_count":100,"street_address":"9 Elm Rd",
			"_conflicts":[{"field":"bed_count","extracted_value":100,"database_value":120,
				"resolved":true,"resolved_value":100,"resolved_by":42}]}`),
	})
	c := newTestCoordinator(store, &memHistory{})

	res, err := c.Sync(context.Background(), SyncRequest{
		DealID:   1,
		Facility: model.FacilityData{FacilityName: strp("Elm")},
		Source:   "ALF Database",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"facility_name"}, res.WrittenFields)

	doc := storedDoc(t, store.deals[1].ExtractionData)
	assert.EqualValues(t, 100, doc.Fields["bed_count"])
	assert.Equal(t, "9 Elm Rd", doc.Fields["street_address"])
	assert.Equal(t, "Elm", doc.Fields["facility_name"])
	require.Len(t, doc.Conflicts, 1)
	assert.True(t, doc.Conflicts[0].Resolved)
	require.NotNil(t, doc.Conflicts[0].ResolvedBy)
	assert.Equal(t, "42", *doc.Conflicts[0].ResolvedBy)
}

func TestSync_BlankStringsNeverOverwrite(t *testing.T) {
	store := newMemStore(&model.Deal{
		ID:             1,
		StreetAddress:  "123 Main St",
		City:           "Austin",
		ExtractionData: []byte(`{"street_address":"123 Main St","city":"Austin","_sourceMap":{"city":"OM page 2"}}`),
	})
	hist := &memHistory{}
	c := newTestCoordinator(store, hist)

	res, err := c.Sync(context.Background(), SyncRequest{
		DealID:   1,
		Facility: model.FacilityData{StreetAddress: strp(""), City: strp("  ")},
		Source:   "ALF Database",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Conflicts)
	assert.Empty(t, res.WrittenFields)

	deal := store.deals[1]
	assert.Equal(t, "123 Main St", deal.StreetAddress)
	assert.Equal(t, "Austin", deal.City)
	doc := storedDoc(t, deal.ExtractionData)
	assert.Equal(t, "123 Main St", doc.Fields["street_address"])
	assert.Equal(t, "Austin", doc.Fields["city"])
	assert.Equal(t, "OM page 2", doc.SourceMap["city"])
	assert.NotContains(t, doc.SourceMap, "street_address")
	assert.Empty(t, hist.rows)
}

func TestSync_FacilityTypeStaysOnFacilityRow(t *testing.T) {
	store := newMemStore(&model.Deal{ID: 1})
	hist := &memHistory{}
	c := newTestCoordinator(store, hist)

	res, err := c.Sync(context.Background(), SyncRequest{
		DealID:   1,
		Facility: model.FacilityData{City: strp("Austin"), FacilityType: strp("SNF")},
		Source:   "CMS",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"city", "facility_type"}, res.WrittenFields)
	assert.Equal(t, "SNF", store.facilities[res.Facility.ID].FacilityType)

	doc := storedDoc(t, store.deals[1].ExtractionData)
	assert.NotContains(t, doc.Fields, "facility_type")
	assert.NotContains(t, doc.SourceMap, "facility_type")
	assert.NotContains(t, doc.ConfidenceMap, "facility_type")
	assert.NotContains(t, store.updates[0].Columns, "facility_type")

	require.Len(t, hist.rows, 1)
	assert.Equal(t, []string{"city"}, hist.rows[0].ChangedFields)
}

func TestSync_FacilityTypeAloneSkipsHistory(t *testing.T) {
	store := newMemStore(&model.Deal{ID: 1})
	hist := &memHistory{}
	c := newTestCoordinator(store, hist)

	res, err := c.Sync(context.Background(), SyncRequest{
		DealID:   1,
		Facility: model.FacilityData{FacilityType: strp("ALF")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"facility_type"}, res.WrittenFields)
	assert.Equal(t, "ALF", store.facilities[res.Facility.ID].FacilityType)
	assert.Empty(t, hist.rows)
}
