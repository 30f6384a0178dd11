package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Conflict records a disagreement between a previously extracted value and
// an incoming canonical value for the same field. Stored under _conflicts.
type Conflict struct {
	Field           string     `json:"field"`
	ExtractedValue  any        `json:"extracted_value"`
	DatabaseValue   any        `json:"database_value"`
	SourceExtracted string     `json:"source_extracted"`
	SourceDatabase  string     `json:"source_database"`
	DetectedAt      time.Time  `json:"detected_at"`
	Resolved        bool       `json:"resolved"`
	ResolvedValue   any        `json:"resolved_value"`
	ResolvedBy      *string    `json:"resolved_by"`
	ResolvedAt      *time.Time `json:"resolved_at"`
}

// SameDisagreement reports whether c and other describe the same pair of
// values for the same field.
func (c Conflict) SameDisagreement(other Conflict) bool {
	return c.Field == other.Field &&
		ValuesEqual(c.ExtractedValue, other.ExtractedValue) &&
		ValuesEqual(c.DatabaseValue, other.DatabaseValue)
}

// Resolve marks the conflict resolved. Resolved conflicts are never reopened.
func (c *Conflict) Resolve(value any, by string, at time.Time) {
	if c.Resolved {
		return
	}
	c.Resolved = true
	c.ResolvedValue = value
	if by != "" {
		c.ResolvedBy = &by
	}
	c.ResolvedAt = &at
}

// UnmarshalJSON accepts any scalar for resolved_by. Numeric user ids are
// stored as their decimal string.
func (c *Conflict) UnmarshalJSON(b []byte) error {
	type plain Conflict
	var aux struct {
		plain
		ResolvedBy any `json:"resolved_by"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*c = Conflict(aux.plain)
	c.ResolvedBy = nil
	switch aux.ResolvedBy.(type) {
	case nil, map[string]any, []any:
	default:
		if by := strings.TrimSpace(ToString(aux.ResolvedBy)); by != "" {
			c.ResolvedBy = &by
		}
	}
	return nil
}
