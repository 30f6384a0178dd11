package cms

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var mdsHeader = []string{
	"CMS Certification Number (CCN)", "Provider Name", "Provider Address", "City/Town", "State", "ZIP Code",
	"Measure Code", "Measure Description", "Resident type",
	"Q1 Measure Score", "Footnote for Q1 Measure Score",
	"Q2 Measure Score", "Footnote for Q2 Measure Score",
	"Q3 Measure Score", "Footnote for Q3 Measure Score",
	"Q4 Measure Score", "Footnote for Q4 Measure Score",
	"Four Quarter Average Score", "Footnote for Four Quarter Average Score",
	"Used in Quality Measure Five Star Rating", "Measure Period", "Location", "Processing Date",
}

var claimsHeader = []string{
	"Federal Provider Number", "Provider Name", "Provider Address", "Provider City", "Provider State", "Provider Zip Code",
	"Measure Code", "Measure Description", "Resident type",
	"Adjusted Score", "Observed Score", "Expected Score", "Footnote for Score",
	"Used in Quality Measure Five Star Rating", "Measure Period", "Location", "Processing Date",
}

func mdsRow(ccn, code string) []string {
	return []string{
		ccn, "Burns Nursing Home", "701 Monroe St NW", "Russellville", "AL", "35653",
		code, "Percentage of long-stay residents with a UTI", "Long Stay",
		"1.5", "", "2.0", "", "", "9", "3.25", "", "2.25", "",
		"Y", "2023Q1-2023Q4", "701 MONROE ST NW RUSSELLVILLE AL 35653", "2024-01-01",
	}
}

func claimsRow(ccn, code string) []string {
	return []string{
		ccn, "Burns Nursing Home", "701 Monroe St NW", "Russellville", "AL", "35653",
		code, "Rehospitalization", "Short Stay",
		"21.4", "20.1", "19.8", "", "N", "2022Q4-2023Q3", "", "01/01/2024",
	}
}

func writeCSV(t *testing.T, dir, name string, rows ...[]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	require.NoError(t, w.WriteAll(rows))
	return path
}
