package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/snf-deals/internal/model"
	"github.com/sells-group/snf-deals/internal/reconcile"
)

var syncFlags struct {
	dealID        int64
	file          string
	source        string
	actor         string
	historySource string
	skipConflicts bool
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync a canonical facility record onto a deal",
	Long:  "Reads a facility sync request (JSON) and writes it onto the deal columns, the subject facility row, and the extraction document, reporting any conflicts.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		raw, err := readInput(cmd, syncFlags.file)
		if err != nil {
			return err
		}
		var req reconcile.SyncRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return eris.Wrap(err, "parse sync request")
		}
		req.DealID = syncFlags.dealID
		if syncFlags.source != "" {
			req.Source = syncFlags.source
		}
		if syncFlags.actor != "" {
			req.Actor = syncFlags.actor
		}
		if syncFlags.historySource != "" {
			req.HistorySource = model.HistorySource(syncFlags.historySource)
		}
		if syncFlags.skipConflicts {
			req.SkipConflictDetection = true
		}

		st, err := openStore(ctx, "sync")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := reconcile.NewCoordinator(st, nil, newRecorder(st)).Sync(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

func init() {
	f := syncCmd.Flags()
	f.Int64Var(&syncFlags.dealID, "deal", 0, "deal ID (required)")
	f.StringVar(&syncFlags.file, "file", "-", "sync request JSON file, or - for stdin")
	f.StringVar(&syncFlags.source, "source", "", "source label for written fields (overrides the request)")
	f.StringVar(&syncFlags.actor, "actor", "", "user recorded on resolutions and history")
	f.StringVar(&syncFlags.historySource, "history-source", "", "extraction history source (default facility_sync)")
	f.BoolVar(&syncFlags.skipConflicts, "skip-conflicts", false, "write every supplied field without conflict detection")
	_ = syncCmd.MarkFlagRequired("deal")
	rootCmd.AddCommand(syncCmd)
}
