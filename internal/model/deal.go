// Package model defines the deal, facility, extraction, and time-series types
// shared by the reconciliation core, the stores, and the HTTP layer.
package model

import (
	"encoding/json"
	"time"
)

// Canonical field keys used in deal columns, facility rows, and extraction documents.
const (
	FieldFacilityName  = "facility_name"
	FieldStreetAddress = "street_address"
	FieldCity          = "city"
	FieldState         = "state"
	FieldZipCode       = "zip_code"
	FieldBedCount      = "bed_count"
	FieldLatitude      = "latitude"
	FieldLongitude     = "longitude"
	FieldFacilityType  = "facility_type"
)

// FacilityFields lists every facility-identifying field in write order.
var FacilityFields = []string{
	FieldFacilityName,
	FieldStreetAddress,
	FieldCity,
	FieldState,
	FieldZipCode,
	FieldBedCount,
	FieldLatitude,
	FieldLongitude,
	FieldFacilityType,
}

// Deal is an acquisition target with flat normalized columns and two
// extraction documents.
type Deal struct {
	ID                     int64           `json:"id"`
	DealName               string          `json:"deal_name"`
	FacilityName           string          `json:"facility_name"`
	StreetAddress          string          `json:"street_address"`
	City                   string          `json:"city"`
	State                  string          `json:"state"`
	ZipCode                string          `json:"zip_code"`
	BedCount               *int            `json:"bed_count"`
	Latitude               *float64        `json:"latitude"`
	Longitude              *float64        `json:"longitude"`
	CurrentOccupancy       *float64        `json:"current_occupancy"`
	ExtractionData         json.RawMessage `json:"extraction_data,omitempty"`
	EnhancedExtractionData json.RawMessage `json:"enhanced_extraction_data,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// ApplyColumns copies written column values onto the in-memory deal so the
// caller sees the same state that was persisted.
func (d *Deal) ApplyColumns(cols map[string]any) {
	for k, v := range cols {
		switch k {
		case FieldFacilityName:
			d.FacilityName, _ = v.(string)
		case FieldStreetAddress:
			d.StreetAddress, _ = v.(string)
		case FieldCity:
			d.City, _ = v.(string)
		case FieldState:
			d.State, _ = v.(string)
		case FieldZipCode:
			d.ZipCode, _ = v.(string)
		case FieldBedCount:
			if n, ok := ToInt(v); ok {
				d.BedCount = &n
			}
		case FieldLatitude:
			if f, ok := ToFloat(v); ok {
				d.Latitude = &f
			}
		case FieldLongitude:
			if f, ok := ToFloat(v); ok {
				d.Longitude = &f
			}
		}
	}
}

// Facility roles for portfolio deals.
const (
	RoleSubject    = "subject"
	RoleCompetitor = "competitor"
)

// Facility is a physical location tied to exactly one deal (DealFacilities).
type Facility struct {
	ID             int64           `json:"id"`
	DealID         int64           `json:"deal_id"`
	FacilityName   string          `json:"facility_name"`
	StreetAddress  string          `json:"street_address"`
	City           string          `json:"city"`
	State          string          `json:"state"`
	ZipCode        string          `json:"zip_code"`
	FacilityType   string          `json:"facility_type"`
	FacilityRole   string          `json:"facility_role"`
	DisplayOrder   int             `json:"display_order"`
	BedCount       *int            `json:"bed_count"`
	Latitude       *float64        `json:"latitude"`
	Longitude      *float64        `json:"longitude"`
	ExtractionData json.RawMessage `json:"extraction_data,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ApplyColumns copies written column values onto the in-memory facility.
func (f *Facility) ApplyColumns(cols map[string]any) {
	for k, v := range cols {
		switch k {
		case FieldFacilityName:
			f.FacilityName, _ = v.(string)
		case FieldStreetAddress:
			f.StreetAddress, _ = v.(string)
		case FieldCity:
			f.City, _ = v.(string)
		case FieldState:
			f.State, _ = v.(string)
		case FieldZipCode:
			f.ZipCode, _ = v.(string)
		case FieldFacilityType:
			f.FacilityType, _ = v.(string)
		case FieldBedCount:
			if n, ok := ToInt(v); ok {
				f.BedCount = &n
			}
		case FieldLatitude:
			if x, ok := ToFloat(v); ok {
				f.Latitude = &x
			}
		case FieldLongitude:
			if x, ok := ToFloat(v); ok {
				f.Longitude = &x
			}
		}
	}
}

// DealUpdate is one sync write: flat column values plus the authoritative
// extraction document re-encoded for its slot.
type DealUpdate struct {
	Columns  map[string]any
	Slot     DocumentSlot
	Document []byte
}
