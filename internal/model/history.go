package model

import (
	"encoding/json"
	"time"
)

// HistorySource is the fixed vocabulary of extraction-history sources.
type HistorySource string

// Extraction-history sources.
const (
	SourceAIExtraction HistorySource = "ai_extraction"
	SourceManualEdit   HistorySource = "manual_edit"
	SourceALFMatch     HistorySource = "alf_match"
	SourceFacilitySync HistorySource = "facility_sync"
	SourceBulkImport   HistorySource = "bulk_import"
)

// Valid reports whether s is part of the vocabulary.
func (s HistorySource) Valid() bool {
	switch s {
	case SourceAIExtraction, SourceManualEdit, SourceALFMatch, SourceFacilitySync, SourceBulkImport:
		return true
	}
	return false
}

// ExtractionHistory is an append-only audit row of an extraction-data mutation.
type ExtractionHistory struct {
	ID             int64           `json:"id"`
	DealID         int64           `json:"deal_id"`
	ExtractionData json.RawMessage `json:"extraction_data"`
	Source         HistorySource   `json:"source"`
	ChangedFields  []string        `json:"changed_fields"`
	CreatedBy      string          `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
