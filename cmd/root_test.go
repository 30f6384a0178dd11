package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/snf-deals/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"serve", "migrate", "sync", "timeseries", "history", "cms", "taxonomy"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "snf-deals", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "log-level", "log-format"} {
		flag := rootCmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, "root should have --%s flag", name)
		assert.Empty(t, flag.DefValue)
	}
}

func TestApplyLogOverrides(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().StringVar(&globalFlags.logLevel, "log-level", "", "")
	cmd.Flags().StringVar(&globalFlags.logFormat, "log-format", "", "")
	t.Cleanup(func() { globalFlags.logLevel, globalFlags.logFormat = "", "" })

	lc := config.LogConfig{Level: "info", Format: "json"}
	applyLogOverrides(cmd, &lc)
	assert.Equal(t, config.LogConfig{Level: "info", Format: "json"}, lc)

	require.NoError(t, cmd.Flags().Set("log-level", "debug"))
	applyLogOverrides(cmd, &lc)
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "json", lc.Format)
}

func TestRootCommand_MissingConfigFile(t *testing.T) {
	rootCmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "history", "--deal", "1"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		globalFlags.configFile = ""
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snf-deals: settings")
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestSyncCommand_Flags(t *testing.T) {
	for _, name := range []string{"deal", "file", "source", "actor", "history-source", "skip-conflicts"} {
		assert.NotNil(t, syncCmd.Flags().Lookup(name), "sync should have --%s flag", name)
	}
	assert.Equal(t, "-", syncCmd.Flags().Lookup("file").DefValue)
}

func TestHistoryCommand_Flags(t *testing.T) {
	flag := historyCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "20", flag.DefValue)
}

func TestCMSIngestCommand_Flags(t *testing.T) {
	for _, name := range []string{"data-dir", "temp-dir", "workers", "limit", "dry-run", "skip-transform", "force"} {
		assert.NotNil(t, cmsIngestCmd.Flags().Lookup(name), "cms ingest should have --%s flag", name)
	}
}

func TestTaxonomyImportCommand_Flags(t *testing.T) {
	for _, name := range []string{"db", "taxonomy", "naming"} {
		assert.NotNil(t, taxonomyImportCmd.Flags().Lookup(name), "taxonomy import should have --%s flag", name)
	}
}

func TestReadInput(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader(`{"a":1}`))
	b, err := readInput(cmd, "-")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(b))

	path := filepath.Join(t.TempDir(), "req.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"b":2}`), 0o644))
	b, err = readInput(cmd, path)
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(b))

	_, err = readInput(cmd, filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestPrintJSON(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, printJSON(cmd, map[string]int{"rows": 3}))
	assert.Equal(t, "{\n  \"rows\": 3\n}\n", out.String())
}

func saveWorkbook(t *testing.T, path string, sheets map[string][][]string) {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sh, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, r := range rows {
			row := sh.AddRow()
			for _, v := range r {
				row.AddCell().SetString(v)
			}
		}
	}
	require.NoError(t, f.Save(path))
}

func TestTaxonomyImport_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	saveWorkbook(t, filepath.Join(dir, "tax.xlsx"), map[string][][]string{
		"Functional Categories": {{"Functional Category", "#"}, {"Clinical", "1"}},
		"Service Subcategories": {{"Functional Category", "Service Subcategory"}, {"Clinical", "Pharmacy"}},
		"Document Types":        {{"Document Type", "Category"}, {"Service Agreement", "Agreements"}},
	})
	saveWorkbook(t, filepath.Join(dir, "naming.xlsx"), map[string][][]string{
		"Facilities": {{"Facilty ID", "New Name (or Folder)"}, {"F001", "Oakwood"}},
		"Vendors":    {{"Vendor Name"}, {"Acme"}},
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"taxonomy", "import",
		"--db", filepath.Join(dir, "contracts.db"),
		"--taxonomy", "tax.xlsx",
		"--naming", "naming.xlsx",
	})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), `"vendors": 1`)
	assert.Contains(t, out.String(), `"document_type_tag_assignments": 2`)
	assert.FileExists(t, filepath.Join(dir, "contracts.db"))
}

func TestCMSCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range cmsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["ingest"])
	assert.True(t, names["validate"])
}
