package cms

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipBytes(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDiscover_FoldersAndNestedZips(t *testing.T) {
	data := t.TempDir()
	writeCSV(t, filepath.Join(data, "2024", "feb"), "NH_QualityMsr_MDS_Feb2024.csv", mdsHeader)
	writeCSV(t, filepath.Join(data, "2024", "jan"), "NH_QualityMsr_MDS_Jan2024.csv", mdsHeader)
	writeCSV(t, filepath.Join(data, "2024", "jan"), "NH_ProviderInfo_Jan2024.csv", []string{"x"})

	month := zipBytes(t, map[string][]byte{
		"NH_QualityMsr_Claims_Dec2023.csv": []byte("a\n"),
		"NH_QualityMsr_MDS_Dec2023.csv":    []byte("a\n"),
		"NH_Penalties_Dec2023.csv":         []byte("a\n"),
	})
	year := zipBytes(t, map[string][]byte{"nursing_homes_including_rehab_services_12_2023.zip": month})
	require.NoError(t, os.WriteFile(filepath.Join(data, "nursing_homes_2023.zip"), year, 0o644))

	tmp := t.TempDir()
	files, err := Discover(data, tmp)
	require.NoError(t, err)

	require.Len(t, files.MDS, 3)
	assert.Equal(t, "202312", files.MDS[0].ExtractID)
	assert.Equal(t, "202401", files.MDS[1].ExtractID)
	assert.Equal(t, "202402", files.MDS[2].ExtractID)
	assert.Equal(t, filepath.Join(tmp, "NH_QualityMsr_MDS_Dec2023.csv"), files.MDS[0].Path)

	require.Len(t, files.Claims, 1)
	assert.Equal(t, KindClaims, files.Claims[0].Kind)

	_, err = os.Stat(filepath.Join(tmp, "nursing_homes_including_rehab_services_12_2023.zip"))
	assert.True(t, os.IsNotExist(err), "month archive is removed after unpacking")
}

func TestDiscover_DuplicateNames(t *testing.T) {
	data := t.TempDir()
	writeCSV(t, filepath.Join(data, "a"), "NH_QualityMsr_MDS_Jan2024.csv", mdsHeader)
	writeCSV(t, filepath.Join(data, "b"), "NH_QualityMsr_MDS_Jan2024.csv", mdsHeader)

	files, err := Discover(data, t.TempDir())
	require.NoError(t, err)
	assert.Len(t, files.MDS, 1)
}

func TestDiscover_MissingDir(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "missing"), t.TempDir())
	require.Error(t, err)
}
