package model

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Metadata keys inside an extraction document. The names are part of the
// persisted JSON shape read by other services.
const (
	KeySourceMap     = "_sourceMap"
	KeyConfidenceMap = "_confidenceMap"
	KeyConflicts     = "_conflicts"

	keyExtractedData = "extractedData"
)

// Confidence levels recorded in _confidenceMap.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// DefaultExtractedSource labels values with no _sourceMap entry.
const DefaultExtractedSource = "AI Extraction"

// ExtractionDocument is a deal's extraction JSON: free-form field values plus
// the provenance maps and conflict list owned by the reconciliation core.
type ExtractionDocument struct {
	Fields        map[string]any
	SourceMap     map[string]string
	ConfidenceMap map[string]string
	Conflicts     []Conflict

	// opaque holds _conflicts entries that could not be decoded. They are
	// written back untouched.
	opaque []json.RawMessage
}

// NewExtractionDocument returns an empty document.
func NewExtractionDocument() *ExtractionDocument {
	return &ExtractionDocument{
		Fields:        make(map[string]any),
		SourceMap:     make(map[string]string),
		ConfidenceMap: make(map[string]string),
	}
}

// ParseExtractionDocument decodes raw JSON. Empty or null input yields an
// empty document. On error the returned document is empty and usable.
func ParseExtractionDocument(raw []byte) (*ExtractionDocument, error) {
	raw, err := unwrapJSONString(raw)
	if err != nil {
		return NewExtractionDocument(), err
	}
	if !populated(raw) {
		return NewExtractionDocument(), nil
	}
	doc := NewExtractionDocument()
	if err := json.Unmarshal(raw, doc); err != nil {
		return NewExtractionDocument(), eris.Wrap(err, "model: parse extraction document")
	}
	return doc, nil
}

// Get returns the value stored under key. Nil values count as absent.
func (d *ExtractionDocument) Get(key string) (any, bool) {
	v, ok := d.Fields[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Lookup returns the first present value among keys, in order.
func (d *ExtractionDocument) Lookup(keys ...string) (string, any, bool) {
	for _, k := range keys {
		if v, ok := d.Get(k); ok {
			return k, v, true
		}
	}
	return "", nil, false
}

// Source returns the provenance label for key.
func (d *ExtractionDocument) Source(key string) string {
	if s := d.SourceMap[key]; s != "" {
		return s
	}
	return DefaultExtractedSource
}

// Set writes a value and stamps its provenance.
func (d *ExtractionDocument) Set(key string, value any, source, confidence string) {
	d.Fields[key] = value
	d.SourceMap[key] = source
	d.ConfidenceMap[key] = confidence
}

// UnresolvedConflict returns the index of the unresolved conflict for field, or -1.
func (d *ExtractionDocument) UnresolvedConflict(field string) int {
	for i := range d.Conflicts {
		if d.Conflicts[i].Field == field && !d.Conflicts[i].Resolved {
			return i
		}
	}
	return -1
}

// MergeConflicts appends newly detected conflicts. Each replaces any prior
// unresolved conflict for the same field; resolved entries are kept. When a
// detection repeats the prior unresolved disagreement, the original
// detected_at is carried over into both the stored and the incoming entry.
func (d *ExtractionDocument) MergeConflicts(incoming []Conflict) {
	for i := range incoming {
		c := &incoming[i]
		kept := make([]Conflict, 0, len(d.Conflicts)+1)
		for _, existing := range d.Conflicts {
			if existing.Field == c.Field && !existing.Resolved {
				if existing.SameDisagreement(*c) && !existing.DetectedAt.IsZero() {
					c.DetectedAt = existing.DetectedAt
				}
				continue
			}
			kept = append(kept, existing)
		}
		d.Conflicts = append(kept, *c)
	}
}

// UnmarshalJSON splits metadata keys from field values.
func (d *ExtractionDocument) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	d.Fields = make(map[string]any, len(raw))
	d.SourceMap = make(map[string]string)
	d.ConfidenceMap = make(map[string]string)
	d.Conflicts = nil
	d.opaque = nil

	for k, v := range raw {
		switch k {
		case KeySourceMap:
			d.SourceMap = decodeLabelMap(v)
		case KeyConfidenceMap:
			d.ConfidenceMap = decodeLabelMap(v)
		case KeyConflicts:
			d.Conflicts, d.opaque = decodeConflicts(v)
		default:
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			d.Fields[k] = val
		}
	}
	return nil
}

// MarshalJSON writes fields and metadata back into one flat object.
func (d *ExtractionDocument) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+3)
	for k, v := range d.Fields {
		out[k] = v
	}
	if len(d.SourceMap) > 0 {
		out[KeySourceMap] = d.SourceMap
	}
	if len(d.ConfidenceMap) > 0 {
		out[KeyConfidenceMap] = d.ConfidenceMap
	}
	if len(d.Conflicts) > 0 || len(d.opaque) > 0 {
		entries := make([]any, 0, len(d.Conflicts)+len(d.opaque))
		for _, c := range d.Conflicts {
			entries = append(entries, c)
		}
		for _, r := range d.opaque {
			entries = append(entries, r)
		}
		out[KeyConflicts] = entries
	}
	return json.Marshal(out)
}

// decodeConflicts reads the _conflicts list entry by entry. An entry that
// does not decode is kept raw instead of failing the whole document.
func decodeConflicts(raw json.RawMessage) ([]Conflict, []json.RawMessage) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		zap.L().Warn("model: _conflicts is not a list, dropping it", zap.Error(err))
		return nil, nil
	}
	var (
		conflicts []Conflict
		opaque    []json.RawMessage
	)
	for i, e := range entries {
		var c Conflict
		if err := json.Unmarshal(e, &c); err != nil {
			zap.L().Warn("model: undecodable conflict entry kept as-is",
				zap.Int("index", i), zap.Error(err))
			opaque = append(opaque, e)
			continue
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, opaque
}

// decodeLabelMap reads a key->label object, stringifying non-string labels
// and dropping anything unreadable.
func decodeLabelMap(raw json.RawMessage) map[string]string {
	var m map[string]any
	out := make(map[string]string)
	if err := json.Unmarshal(raw, &m); err != nil {
		return out
	}
	for k, v := range m {
		if v == nil {
			continue
		}
		out[k] = ToString(v)
	}
	return out
}

// DocumentSlot names the deal column an extraction document lives in.
type DocumentSlot string

// Deal columns holding extraction documents.
const (
	SlotExtraction DocumentSlot = "extraction_data"
	SlotEnhanced   DocumentSlot = "enhanced_extraction_data"
)

// ResolvedExtraction is the authoritative extraction document of a deal
// together with where it must be written back.
type ResolvedExtraction struct {
	Slot     DocumentSlot
	Nested   bool
	Document *ExtractionDocument

	envelope map[string]json.RawMessage
}

// ResolveExtraction picks the authoritative document: the enhanced document
// (its extractedData sub-object when present), else the regular one, else a
// fresh document destined for extraction_data. A parse error is returned
// alongside a usable empty document.
func ResolveExtraction(enhanced, regular []byte) (*ResolvedExtraction, error) {
	enhanced, encErr := unwrapJSONString(enhanced)
	if encErr == nil && populated(enhanced) {
		res := &ResolvedExtraction{Slot: SlotEnhanced, Document: NewExtractionDocument()}
		var env map[string]json.RawMessage
		if err := json.Unmarshal(enhanced, &env); err != nil {
			return res, eris.Wrap(err, "model: parse enhanced extraction envelope")
		}
		if nested, ok := env[keyExtractedData]; ok && isObject(nested) {
			res.Nested = true
			res.envelope = env
			doc, err := ParseExtractionDocument(nested)
			res.Document = doc
			return res, err
		}
		doc, err := ParseExtractionDocument(enhanced)
		res.Document = doc
		return res, err
	}

	regular, regErr := unwrapJSONString(regular)
	if regErr == nil && populated(regular) {
		doc, err := ParseExtractionDocument(regular)
		return &ResolvedExtraction{Slot: SlotExtraction, Document: doc}, err
	}

	res := &ResolvedExtraction{Slot: SlotExtraction, Document: NewExtractionDocument()}
	if encErr != nil {
		res.Slot = SlotEnhanced
		return res, eris.Wrap(encErr, "model: decode enhanced extraction")
	}
	if regErr != nil {
		return res, eris.Wrap(regErr, "model: decode extraction")
	}
	return res, nil
}

// Encode serializes the document for its slot, re-wrapping it in the
// enhanced envelope when it was read from extractedData.
func (r *ResolvedExtraction) Encode() ([]byte, error) {
	doc, err := json.Marshal(r.Document)
	if err != nil {
		return nil, eris.Wrap(err, "model: encode extraction document")
	}
	if !r.Nested {
		return doc, nil
	}
	env := make(map[string]json.RawMessage, len(r.envelope))
	for k, v := range r.envelope {
		env[k] = v
	}
	env[keyExtractedData] = doc
	out, err := json.Marshal(env)
	if err != nil {
		return nil, eris.Wrap(err, "model: encode enhanced envelope")
	}
	return out, nil
}

// unwrapJSONString handles documents stored as a JSON string containing JSON.
func unwrapJSONString(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return trimmed, nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil, eris.Wrap(err, "model: decode string-encoded document")
	}
	return bytes.TrimSpace([]byte(s)), nil
}

func populated(raw []byte) bool {
	s := string(raw)
	return s != "" && s != "null" && s != "{}"
}

func isObject(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '{'
}
