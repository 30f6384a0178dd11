// Package cms ingests CMS nursing-home quality-measure extracts (MDS and
// claims CSVs) into staging tables and transforms them into gold tables.
package cms

import (
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Kind is the measure family of an extract file.
type Kind string

// Extract kinds.
const (
	KindMDS    Kind = "mds"
	KindClaims Kind = "claims"
)

const (
	mdsPrefix    = "NH_QualityMsr_MDS_"
	claimsPrefix = "NH_QualityMsr_Claims_"
)

var (
	extractDateRe = regexp.MustCompile(`(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)(\d{4})`)
	nonAlnumRe    = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// File is one discovered extract CSV.
type File struct {
	Path      string
	Name      string
	Kind      Kind
	ExtractID string    // YYYYMM
	AsOfDate  time.Time // first of the extract month
}

// KindOf classifies an extract file name, returning false for anything else.
func KindOf(name string) (Kind, bool) {
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		return "", false
	}
	switch {
	case strings.Contains(name, mdsPrefix):
		return KindMDS, true
	case strings.Contains(name, claimsPrefix):
		return KindClaims, true
	}
	return "", false
}

// ParseExtractDate reads the MonYYYY stamp from a file name.
// NH_QualityMsr_MDS_Jan2024.csv yields ("202401", 2024-01-01).
func ParseExtractDate(name string) (string, time.Time, error) {
	m := extractDateRe.FindStringSubmatch(name)
	if m == nil {
		return "", time.Time{}, eris.Errorf("cms: no extract date in file name %q", name)
	}
	t, err := time.Parse("Jan2006", m[1]+m[2])
	if err != nil {
		return "", time.Time{}, eris.Wrapf(err, "cms: parse extract date %q", name)
	}
	return t.Format("200601"), t, nil
}

// StandardizeCCN normalizes a CMS Certification Number to six characters:
// non-alphanumerics are dropped, short values are left-padded with zeros,
// long values are cut. Empty input yields "".
func StandardizeCCN(raw string) string {
	s := nonAlnumRe.ReplaceAllString(strings.TrimSpace(raw), "")
	if s == "" {
		return ""
	}
	if len(s) < 6 {
		s = strings.Repeat("0", 6-len(s)) + s
	}
	return s[:6]
}
