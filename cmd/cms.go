package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/snf-deals/internal/cms"
	"github.com/sells-group/snf-deals/internal/db"
)

var cmsCmd = &cobra.Command{
	Use:   "cms",
	Short: "CMS nursing-home quality measure data",
}

var ingestFlags struct {
	dataDir       string
	tempDir       string
	workers       int
	limit         int
	dryRun        bool
	skipTransform bool
	force         bool
}

var cmsIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load MDS and claims quality measure extracts",
	Long:  "Discovers NH_QualityMsr_MDS_*.csv and NH_QualityMsr_Claims_*.csv extracts (in folders or nested ZIPs), upserts them into staging, and rebuilds the gold tables.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		opts := cms.Options{
			DataDir:       cfg.CMS.DataDir,
			TempDir:       cfg.CMS.TempDir,
			Workers:       cfg.CMS.Workers,
			Limit:         ingestFlags.limit,
			DryRun:        ingestFlags.dryRun,
			SkipTransform: ingestFlags.skipTransform,
			Force:         ingestFlags.force,
		}
		if ingestFlags.dataDir != "" {
			opts.DataDir = ingestFlags.dataDir
		}
		if ingestFlags.tempDir != "" {
			opts.TempDir = ingestFlags.tempDir
		}
		if ingestFlags.workers > 0 {
			opts.Workers = ingestFlags.workers
		}

		// A dry run parses only, so it needs no database.
		var pool db.Pool
		if !opts.DryRun {
			st, err := openStore(ctx, "ingest")
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			pool = st.Pool()
		}

		rep, err := cms.NewIngester(pool).Run(ctx, opts)
		if rep != nil {
			zap.L().Info("cms ingest finished",
				zap.String("run_id", rep.RunID),
				zap.String("status", rep.Status),
				zap.Int("files", rep.FilesProcessed),
				zap.Int64("mds_rows", rep.MDSRows),
				zap.Int64("claims_rows", rep.ClaimsRows),
				zap.Int("errors", len(rep.Errors)),
			)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, rep)
	},
}

var cmsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Report loaded extracts, rows per extract, and month coverage",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, "ingest")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		v, err := cms.NewIngester(st.Pool()).Validate(ctx)
		if err != nil {
			return err
		}
		if err := printJSON(cmd, v); err != nil {
			return err
		}
		if !v.OK {
			return eris.Errorf("cms: validation found %d problem(s)", len(v.Problems))
		}
		return nil
	},
}

func init() {
	f := cmsIngestCmd.Flags()
	f.StringVar(&ingestFlags.dataDir, "data-dir", "", "directory holding extracts (default from config)")
	f.StringVar(&ingestFlags.tempDir, "temp-dir", "", "scratch directory for ZIP extraction (default from config)")
	f.IntVar(&ingestFlags.workers, "workers", 0, "files parsed concurrently (default from config)")
	f.IntVar(&ingestFlags.limit, "limit", 0, "only load the first N months of each kind")
	f.BoolVar(&ingestFlags.dryRun, "dry-run", false, "parse and count without writing")
	f.BoolVar(&ingestFlags.skipTransform, "skip-transform", false, "stop after loading staging tables")
	f.BoolVar(&ingestFlags.force, "force", false, "reload months that are already loaded")
	cmsCmd.AddCommand(cmsIngestCmd, cmsValidateCmd)
	rootCmd.AddCommand(cmsCmd)
}
