package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/snf-deals/internal/reconcile"
	"github.com/sells-group/snf-deals/internal/resilience"
	"github.com/sells-group/snf-deals/internal/store"
)

// openStore validates the config for mode and connects to Postgres.
func openStore(ctx context.Context, mode string) (*store.Postgres, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
}

// newRecorder builds the history recorder with the configured breaker.
func newRecorder(st reconcile.HistoryStore) *reconcile.Recorder {
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "extraction_history",
		FailureThreshold: cfg.History.BreakerThreshold,
		ResetTimeout:     time.Duration(cfg.History.BreakerResetSecs) * time.Second,
	})
	return reconcile.NewRecorder(st, breaker)
}

// readInput reads a file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return b, eris.Wrap(err, "read stdin")
	}
	b, err := os.ReadFile(path)
	return b, eris.Wrapf(err, "read %s", path)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}
