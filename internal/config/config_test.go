package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 20.0, cfg.Server.RateLimitRPS, 0.001)
	assert.Equal(t, 40, cfg.Server.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, int32(1), cfg.Store.MinConns)
	assert.Equal(t, 5, cfg.History.BreakerThreshold)
	assert.Equal(t, 30, cfg.History.BreakerResetSecs)
	assert.Equal(t, 4, cfg.CMS.Workers)
	assert.Equal(t, "contracts.db", cfg.Taxonomy.SQLitePath)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  database_url: postgres://localhost/deals
log:
  level: debug
  format: console
server:
  port: 9090
  cors_origins: [https://app.example.com]
cms:
  data_dir: /data/cms
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/deals", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "/data/cms", cfg.CMS.DataDir)
	// Defaults still apply for unset values
	assert.Equal(t, 4, cfg.CMS.Workers)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
cms:
  workers: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SNFDEALS_LOG_LEVEL", "warn")
	t.Setenv("SNFDEALS_CMS_WORKERS", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 8, cfg.CMS.Workers)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SNFDEALS_SERVER_PORT", "3000")
	t.Setenv("SNFDEALS_STORE_DATABASE_URL", "postgres://env/deals")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "postgres://env/deals", cfg.Store.DatabaseURL)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [\n"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadFileExplicitPath(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "deals.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\ncms:\n  workers: 3\n"), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3, cfg.CMS.Workers)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileMissingPath(t *testing.T) {
	chdirTemp(t)
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.DatabaseURL = "postgres://localhost/test"
	cfg.Store.MaxConns = 10
	cfg.Store.MinConns = 1
	cfg.Server.Port = 8080
	cfg.Server.RateLimitRPS = 20
	cfg.Server.RateLimitBurst = 40
	cfg.History.BreakerThreshold = 5
	cfg.CMS.Workers = 4
	cfg.Taxonomy.SQLitePath = "contracts.db"
	return cfg
}

func TestValidate_AllModes(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"serve", "sync", "ingest", "taxonomy"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidateServe_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	cfg.Server.Port = 0
	cfg.History.BreakerThreshold = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "server.port must be > 0")
	assert.Contains(t, err.Error(), "history.breaker_threshold must be >= 1")
}

func TestValidate_PoolBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.MinConns = 20

	err := cfg.Validate("sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_conns must not exceed")
}

func TestValidateIngest_WorkerBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.CMS.Workers = 0
	err := cfg.Validate("ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cms.workers must be between 1 and 32")

	cfg.CMS.Workers = 33
	assert.Error(t, cfg.Validate("ingest"))

	cfg.CMS.Workers = 32
	assert.NoError(t, cfg.Validate("ingest"))
}

func TestValidateTaxonomy_NoDatabaseNeeded(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	assert.NoError(t, cfg.Validate("taxonomy"))

	cfg.Taxonomy.SQLitePath = ""
	assert.Error(t, cfg.Validate("taxonomy"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
