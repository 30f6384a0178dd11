package reconcile

import (
	"time"

	"github.com/sells-group/snf-deals/internal/model"
)

// FieldRule describes one conflict-checked field: the document keys probed
// for the extracted value (canonical first) and the equivalence test.
// Differs reports whether the two values disagree meaningfully.
type FieldRule struct {
	Field   string
	Keys    []string
	Differs func(extracted, incoming any) bool
}

// DefaultRules returns the fields that affect calculations or identity.
func DefaultRules() []FieldRule {
	return []FieldRule{
		{
			Field:   model.FieldBedCount,
			Keys:    []string{"bed_count", "total_beds", "beds", "licensed_beds"},
			Differs: intDiffers,
		},
		{
			Field:   model.FieldStreetAddress,
			Keys:    []string{"street_address", "address", "facility_address"},
			Differs: normalizedDiffers(NormalizeAddress),
		},
		{
			Field:   model.FieldCity,
			Keys:    []string{"city", "facility_city"},
			Differs: normalizedDiffers(NormalizeCity),
		},
	}
}

// intDiffers only flags a conflict when both sides parse as integers.
func intDiffers(a, b any) bool {
	x, okA := model.ToInt(a)
	y, okB := model.ToInt(b)
	return okA && okB && x != y
}

func normalizedDiffers(norm func(string) string) func(a, b any) bool {
	return func(a, b any) bool {
		x := norm(model.ToString(a))
		y := norm(model.ToString(b))
		if x == "" || y == "" {
			return false
		}
		return x != y
	}
}

// Detection is the outcome of a conflict check. Skip holds every field whose
// extracted value must not be overwritten by the incoming record.
type Detection struct {
	Conflicts []model.Conflict
	Skip      map[string]bool
}

// Skipped reports whether field is protected from overwrite.
func (d Detection) Skipped(field string) bool {
	return d.Skip[field]
}

// Option configures a Detector.
type Option func(*Detector)

// WithRules appends extra checked fields after the defaults.
func WithRules(rules ...FieldRule) Option {
	return func(d *Detector) { d.rules = append(d.rules, rules...) }
}

// WithClock overrides the detection timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// Detector compares incoming facility records against extracted values.
type Detector struct {
	rules []FieldRule
	now   func() time.Time
}

// NewDetector builds a detector over DefaultRules plus any options.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{rules: DefaultRules(), now: time.Now}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Fields returns the checked field names in rule order.
func (d *Detector) Fields() []string {
	out := make([]string, len(d.rules))
	for i, r := range d.rules {
		out[i] = r.Field
	}
	return out
}

// Detect checks every rule against doc and data. Fields with an unknown value
// on either side are never in conflict. A detection that repeats an already
// resolved disagreement is not raised again; the field stays protected unless
// the resolution accepted the incoming value.
func (d *Detector) Detect(doc *model.ExtractionDocument, data model.FacilityData, source string) Detection {
	out := Detection{Conflicts: []model.Conflict{}, Skip: make(map[string]bool)}
	if doc == nil {
		return out
	}
	now := d.now().UTC()

	for _, rule := range d.rules {
		key, extracted, ok := doc.Lookup(rule.Keys...)
		if !ok {
			continue
		}
		incoming, ok := data.Value(rule.Field)
		if !ok || incoming == nil {
			continue
		}
		if !rule.Differs(extracted, incoming) {
			continue
		}

		c := model.Conflict{
			Field:           rule.Field,
			ExtractedValue:  extracted,
			DatabaseValue:   incoming,
			SourceExtracted: doc.Source(key),
			SourceDatabase:  source,
			DetectedAt:      now,
		}

		if prior, found := resolvedMatch(doc, c); found {
			if !model.ValuesEqual(prior.ResolvedValue, incoming) {
				out.Skip[rule.Field] = true
			}
			continue
		}

		out.Conflicts = append(out.Conflicts, c)
		out.Skip[rule.Field] = true
	}
	return out
}

func resolvedMatch(doc *model.ExtractionDocument, c model.Conflict) (model.Conflict, bool) {
	for _, existing := range doc.Conflicts {
		if existing.Resolved && existing.SameDisagreement(c) {
			return existing, true
		}
	}
	return model.Conflict{}, false
}
