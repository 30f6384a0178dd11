package model

import (
	"encoding/json"
	"strings"
)

// FacilityData is an incoming canonical facility record: a manual edit, an AI
// re-extraction, or a facility-match candidate. Nil fields were not supplied.
type FacilityData struct {
	FacilityName  *string  `json:"facility_name,omitempty"`
	StreetAddress *string  `json:"street_address,omitempty"`
	City          *string  `json:"city,omitempty"`
	State         *string  `json:"state,omitempty"`
	ZipCode       *string  `json:"zip_code,omitempty"`
	BedCount      *int     `json:"bed_count,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	FacilityType  *string  `json:"facility_type,omitempty"`
}

// UnmarshalJSON accepts both the canonical key names and the facility-match
// record names (address, capacity, ...), with numbers given as strings.
func (f *FacilityData) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*f = FacilityData{
		FacilityName:  stringField(raw, FieldFacilityName, "name"),
		StreetAddress: stringField(raw, FieldStreetAddress, "address"),
		City:          stringField(raw, FieldCity),
		State:         stringField(raw, FieldState),
		ZipCode:       stringField(raw, FieldZipCode, "zip"),
		BedCount:      intField(raw, FieldBedCount, "capacity", "total_beds"),
		Latitude:      floatField(raw, FieldLatitude, "lat"),
		Longitude:     floatField(raw, FieldLongitude, "lng", "lon"),
		FacilityType:  stringField(raw, FieldFacilityType),
	}
	return nil
}

// Value returns the supplied value for a canonical field key.
func (f FacilityData) Value(field string) (any, bool) {
	switch field {
	case FieldFacilityName:
		return derefString(f.FacilityName)
	case FieldStreetAddress:
		return derefString(f.StreetAddress)
	case FieldCity:
		return derefString(f.City)
	case FieldState:
		return derefString(f.State)
	case FieldZipCode:
		return derefString(f.ZipCode)
	case FieldFacilityType:
		return derefString(f.FacilityType)
	case FieldBedCount:
		if f.BedCount == nil {
			return nil, false
		}
		return *f.BedCount, true
	case FieldLatitude:
		if f.Latitude == nil {
			return nil, false
		}
		return *f.Latitude, true
	case FieldLongitude:
		if f.Longitude == nil {
			return nil, false
		}
		return *f.Longitude, true
	}
	return nil, false
}

// Set overrides a field from a loosely typed value. Unconvertible values
// leave the field untouched and return false.
func (f *FacilityData) Set(field string, v any) bool {
	switch field {
	case FieldFacilityName, FieldStreetAddress, FieldCity, FieldState, FieldZipCode, FieldFacilityType:
		if v == nil {
			return false
		}
		s := ToString(v)
		switch field {
		case FieldFacilityName:
			f.FacilityName = &s
		case FieldStreetAddress:
			f.StreetAddress = &s
		case FieldCity:
			f.City = &s
		case FieldState:
			f.State = &s
		case FieldZipCode:
			f.ZipCode = &s
		case FieldFacilityType:
			f.FacilityType = &s
		}
		return true
	case FieldBedCount:
		n, ok := ToInt(v)
		if ok {
			f.BedCount = &n
		}
		return ok
	case FieldLatitude, FieldLongitude:
		x, ok := ToFloat(v)
		if !ok {
			return false
		}
		if field == FieldLatitude {
			f.Latitude = &x
		} else {
			f.Longitude = &x
		}
		return true
	}
	return false
}

// Empty reports whether no field was supplied.
func (f FacilityData) Empty() bool {
	for _, k := range FacilityFields {
		if _, ok := f.Value(k); ok {
			return false
		}
	}
	return true
}

// derefString treats a blank string as not supplied: an unknown value never
// overwrites a known one.
func derefString(s *string) (any, bool) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, false
	}
	return *s, true
}

func stringField(raw map[string]any, keys ...string) *string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(ToString(v))
		if s == "" {
			continue
		}
		return &s
	}
	return nil
}

func intField(raw map[string]any, keys ...string) *int {
	for _, k := range keys {
		if n, ok := ToInt(raw[k]); ok {
			return &n
		}
	}
	return nil
}

func floatField(raw map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		if x, ok := ToFloat(raw[k]); ok {
			return &x
		}
	}
	return nil
}
