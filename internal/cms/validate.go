package cms

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// ExtractCoverage is one loaded month and its gold row counts.
type ExtractCoverage struct {
	ExtractID  string    `json:"extract_id"`
	AsOfDate   time.Time `json:"as_of_date"`
	MDSRows    int64     `json:"mds_rows"`
	ClaimsRows int64     `json:"claims_rows"`
}

// Validation summarizes what the gold quality tables hold after ingest.
type Validation struct {
	Extracts      int               `json:"extracts"`
	MDSRows       int64             `json:"mds_rows"`
	ClaimsRows    int64             `json:"claims_rows"`
	FirstAsOf     *time.Time        `json:"first_as_of,omitempty"`
	LastAsOf      *time.Time        `json:"last_as_of,omitempty"`
	MissingMonths []string          `json:"missing_months,omitempty"`
	ByExtract     []ExtractCoverage `json:"by_extract"`
	Problems      []string          `json:"problems,omitempty"`
	OK            bool              `json:"ok"`
}

// Validate reports extract count, rows per extract, and as-of coverage.
// Gaps between the first and last loaded month, empty months, and an empty
// table are reported as problems.
func (in *Ingester) Validate(ctx context.Context) (*Validation, error) {
	rows, err := in.pool.Query(ctx, `SELECT e.extract_id, e.as_of_date,
		COALESCE(e.mds_row_count, 0)::bigint, COALESCE(e.claims_row_count, 0)::bigint
		FROM gold.nh_quality_extracts e
		ORDER BY e.extract_id`)
	if err != nil {
		return nil, eris.Wrap(err, "cms: validate: list extracts")
	}
	defer rows.Close()

	v := &Validation{ByExtract: []ExtractCoverage{}}
	for rows.Next() {
		var c ExtractCoverage
		if err := rows.Scan(&c.ExtractID, &c.AsOfDate, &c.MDSRows, &c.ClaimsRows); err != nil {
			return nil, eris.Wrap(err, "cms: validate: scan extract")
		}
		v.ByExtract = append(v.ByExtract, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "cms: validate: iterate extracts")
	}

	err = in.pool.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM gold.nh_quality_mds),
		(SELECT COUNT(*) FROM gold.nh_quality_claims)`).Scan(&v.MDSRows, &v.ClaimsRows)
	if err != nil {
		return nil, eris.Wrap(err, "cms: validate: count gold rows")
	}

	v.assess()
	return v, nil
}

func (v *Validation) assess() {
	v.Extracts = len(v.ByExtract)
	if v.Extracts == 0 {
		v.Problems = append(v.Problems, "no extracts loaded")
		return
	}

	have := make(map[string]bool, v.Extracts)
	first, last := v.ByExtract[0].AsOfDate, v.ByExtract[0].AsOfDate
	for _, c := range v.ByExtract {
		month := c.AsOfDate.Format("200601")
		have[month] = true
		if c.AsOfDate.Before(first) {
			first = c.AsOfDate
		}
		if c.AsOfDate.After(last) {
			last = c.AsOfDate
		}
		if c.MDSRows == 0 && c.ClaimsRows == 0 {
			v.Problems = append(v.Problems, fmt.Sprintf("extract %s has no rows", c.ExtractID))
		}
	}
	v.FirstAsOf, v.LastAsOf = &first, &last

	start := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, time.UTC)
	for m := start; !m.After(end); m = m.AddDate(0, 1, 0) {
		if id := m.Format("200601"); !have[id] {
			v.MissingMonths = append(v.MissingMonths, id)
		}
	}
	if len(v.MissingMonths) > 0 {
		v.Problems = append(v.Problems, fmt.Sprintf("%d month(s) missing between %s and %s",
			len(v.MissingMonths), start.Format("2006-01"), end.Format("2006-01")))
	}
	v.OK = len(v.Problems) == 0
}
