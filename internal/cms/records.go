package cms

import (
	"strconv"
	"strings"
	"time"
)

// CSV column names after legacy aliases are applied.
const (
	colCCN             = "CMS Certification Number (CCN)"
	colProviderName    = "Provider Name"
	colProviderAddress = "Provider Address"
	colCity            = "City/Town"
	colState           = "State"
	colZIP             = "ZIP Code"
	colMeasureCode     = "Measure Code"
	colMeasureDesc     = "Measure Description"
	colResidentType    = "Resident type"
	colStarRating      = "Used in Quality Measure Five Star Rating"
	colMeasurePeriod   = "Measure Period"
	colLocation        = "Location"
	colProcessingDate  = "Processing Date"
	colFourQuarterAvg  = "Four Quarter Average Score"
	colFourQuarterNote = "Footnote for Four Quarter Average Score"
	colAdjustedScore   = "Adjusted Score"
	colObservedScore   = "Observed Score"
	colExpectedScore   = "Expected Score"
	colScoreFootnote   = "Footnote for Score"
)

// columnAliases maps pre-2021 column names to the current ones.
var columnAliases = map[string]string{
	"Federal Provider Number":  colCCN,
	"CMS Certification Number": colCCN,
	"Provider City":            colCity,
	"City":                     colCity,
	"Provider State":           colState,
	"Provider Zip Code":        colZIP,
	"Zip Code":                 colZIP,
}

// Provider holds the facility columns shared by both extract kinds.
type Provider struct {
	ExtractID       string
	AsOfDate        time.Time
	SourceFile      string
	CCN             string
	ProviderName    string
	ProviderAddress string
	City            string
	State           string
	ZipCode         string
	MeasureCode     string
	MeasureDesc     string
	ResidentType    string
	StarRating      string
	MeasurePeriod   string
	Location        string
	ProcessingDate  *time.Time
}

// MDSRecord is one facility/measure row of an MDS extract.
type MDSRecord struct {
	Provider
	Scores    [4]*float64 // Q1..Q4
	Footnotes [4]string
	AvgScore  *float64
	AvgNote   string
}

// ClaimsRecord is one facility/measure row of a claims extract.
type ClaimsRecord struct {
	Provider
	Adjusted *float64
	Observed *float64
	Expected *float64
	Footnote string
}

var mdsStagingColumns = []string{
	"extract_id", "as_of_date", "source_file", "ccn", "provider_name",
	"provider_address", "city", "state", "zip_code", "measure_code",
	"measure_description", "resident_type", "q1_score", "q1_footnote",
	"q2_score", "q2_footnote", "q3_score", "q3_footnote", "q4_score",
	"q4_footnote", "four_quarter_avg", "four_quarter_footnote",
	"used_in_star_rating", "measure_period", "location", "processing_date",
}

var claimsStagingColumns = []string{
	"extract_id", "as_of_date", "source_file", "ccn", "provider_name",
	"provider_address", "city", "state", "zip_code", "measure_code",
	"measure_description", "resident_type", "adjusted_score",
	"observed_score", "expected_score", "footnote", "used_in_star_rating",
	"measure_period", "location", "processing_date",
}

// row renders the record in mdsStagingColumns order.
func (r MDSRecord) row() []any {
	p := r.Provider
	return []any{
		p.ExtractID, p.AsOfDate, p.SourceFile, p.CCN, text(p.ProviderName),
		text(p.ProviderAddress), text(p.City), text(p.State), text(p.ZipCode), p.MeasureCode,
		text(p.MeasureDesc), text(p.ResidentType), r.Scores[0], text(r.Footnotes[0]),
		r.Scores[1], text(r.Footnotes[1]), r.Scores[2], text(r.Footnotes[2]), r.Scores[3],
		text(r.Footnotes[3]), r.AvgScore, text(r.AvgNote),
		text(p.StarRating), text(p.MeasurePeriod), text(p.Location), p.ProcessingDate,
	}
}

// row renders the record in claimsStagingColumns order.
func (r ClaimsRecord) row() []any {
	p := r.Provider
	return []any{
		p.ExtractID, p.AsOfDate, p.SourceFile, p.CCN, text(p.ProviderName),
		text(p.ProviderAddress), text(p.City), text(p.State), text(p.ZipCode), p.MeasureCode,
		text(p.MeasureDesc), text(p.ResidentType), r.Adjusted,
		r.Observed, r.Expected, text(r.Footnote), text(p.StarRating),
		text(p.MeasurePeriod), text(p.Location), p.ProcessingDate,
	}
}

// text maps blank CSV cells to NULL.
func text(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// score parses a numeric cell. Non-numeric markers such as
// "Not Available" yield nil.
func score(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006", time.RFC3339}

func date(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
