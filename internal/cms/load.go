package cms

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/snf-deals/internal/tabular"
)

// LoadMDS parses an MDS extract. Rows without a CCN or measure code are dropped.
func LoadMDS(ctx context.Context, f File) ([]MDSRecord, error) {
	var out []MDSRecord
	err := readExtract(ctx, f, func(h tabular.Header, row []string, p Provider) {
		r := MDSRecord{Provider: p}
		for q := 0; q < 4; q++ {
			r.Scores[q] = score(h.Get(row, fmt.Sprintf("Q%d Measure Score", q+1)))
			r.Footnotes[q] = h.Get(row, fmt.Sprintf("Footnote for Q%d Measure Score", q+1))
		}
		r.AvgScore = score(h.Get(row, colFourQuarterAvg))
		r.AvgNote = h.Get(row, colFourQuarterNote)
		out = append(out, r)
	})
	return out, err
}

// LoadClaims parses a claims extract. Rows without a CCN or measure code are dropped.
func LoadClaims(ctx context.Context, f File) ([]ClaimsRecord, error) {
	var out []ClaimsRecord
	err := readExtract(ctx, f, func(h tabular.Header, row []string, p Provider) {
		out = append(out, ClaimsRecord{
			Provider: p,
			Adjusted: score(h.Get(row, colAdjustedScore)),
			Observed: score(h.Get(row, colObservedScore)),
			Expected: score(h.Get(row, colExpectedScore)),
			Footnote: h.Get(row, colScoreFootnote),
		})
	})
	return out, err
}

func readExtract(ctx context.Context, f File, emit func(tabular.Header, []string, Provider)) error {
	rc, _, err := tabular.OpenText(f.Path)
	if err != nil {
		return err
	}
	defer rc.Close() //nolint:errcheck

	rowCh, errCh := tabular.StreamCSV(ctx, rc, tabular.CSVOptions{LazyQuotes: true})

	var h tabular.Header
	for row := range rowCh {
		if h == nil {
			h = tabular.NewHeader(row, columnAliases)
			if err := h.Require(colCCN, colMeasureCode); err != nil {
				drain(rowCh)
				return eris.Wrapf(err, "cms: %s", f.Name)
			}
			continue
		}

		p := Provider{
			ExtractID:       f.ExtractID,
			AsOfDate:        f.AsOfDate,
			SourceFile:      f.Name,
			CCN:             StandardizeCCN(h.Get(row, colCCN)),
			ProviderName:    h.Get(row, colProviderName),
			ProviderAddress: h.Get(row, colProviderAddress),
			City:            h.Get(row, colCity),
			State:           h.Get(row, colState),
			ZipCode:         h.Get(row, colZIP),
			MeasureCode:     h.Get(row, colMeasureCode),
			MeasureDesc:     h.Get(row, colMeasureDesc),
			ResidentType:    h.Get(row, colResidentType),
			StarRating:      h.Get(row, colStarRating),
			MeasurePeriod:   h.Get(row, colMeasurePeriod),
			Location:        h.Get(row, colLocation),
			ProcessingDate:  date(h.Get(row, colProcessingDate)),
		}
		if p.CCN == "" || p.MeasureCode == "" {
			continue
		}
		emit(h, row, p)
	}
	for err := range errCh {
		if err != nil {
			return eris.Wrapf(err, "cms: read %s", f.Name)
		}
	}
	if h == nil {
		return eris.Errorf("cms: %s has no header row", f.Name)
	}
	return nil
}

func drain(ch <-chan []string) {
	for range ch {
	}
}
