package cms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/snf-deals/internal/db"
)

var (
	mdsUpsert = db.UpsertConfig{
		Table:        "staging.nh_quality_mds_raw",
		Columns:      mdsStagingColumns,
		ConflictKeys: []string{"extract_id", "ccn", "measure_code"},
		Touch:        "loaded_at",
	}
	claimsUpsert = db.UpsertConfig{
		Table:        "staging.nh_quality_claims_raw",
		Columns:      claimsStagingColumns,
		ConflictKeys: []string{"extract_id", "ccn", "measure_code"},
		Touch:        "loaded_at",
	}
)

// Options controls one ingest run.
type Options struct {
	DataDir       string
	TempDir       string
	Workers       int  // files parsed concurrently; default 4
	Limit         int  // keep the first N months of each kind; 0 = all
	DryRun        bool // parse and count only
	SkipTransform bool // stop after staging
	Force         bool // reload months already in gold.nh_quality_extracts
}

// Report summarizes an ingest run.
type Report struct {
	RunID          string   `json:"run_id,omitempty"`
	Status         string   `json:"status"`
	MDSFiles       int      `json:"mds_files"`
	ClaimsFiles    int      `json:"claims_files"`
	FilesProcessed int      `json:"files_processed"`
	MDSRows        int64    `json:"mds_rows"`
	ClaimsRows     int64    `json:"claims_rows"`
	GoldMDSRows    int64    `json:"gold_mds_rows"`
	GoldClaimsRows int64    `json:"gold_claims_rows"`
	Skipped        []string `json:"skipped_extracts,omitempty"`
	Reloaded       []string `json:"reloaded_extracts,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// Ingester loads CMS quality extracts into Postgres.
type Ingester struct {
	pool  db.Pool
	runs  *RunLog
	now   func() time.Time
	newID func() string
	log   *zap.Logger
}

// NewIngester creates an Ingester. pool may be nil for dry runs.
func NewIngester(pool db.Pool) *Ingester {
	return &Ingester{
		pool:  pool,
		runs:  NewRunLog(pool),
		now:   time.Now,
		newID: uuid.NewString,
		log:   zap.L().With(zap.String("component", "cms.ingest")),
	}
}

// RunID formats a run identifier: ingest_YYYYMMDD_HHMMSS_<8 hex>.
func (in *Ingester) RunID() string {
	suffix := strings.ReplaceAll(in.newID(), "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("ingest_%s_%s", in.now().Format("20060102_150405"), suffix)
}

// parsed is one file's outcome.
type parsed struct {
	file   File
	mds    []MDSRecord
	claims []ClaimsRecord
	err    error
}

// Run discovers, parses, stages, and transforms extracts. Per-file failures
// are collected in the report; only discovery, run-log, and transform
// failures are returned.
func (in *Ingester) Run(ctx context.Context, opts Options) (*Report, error) {
	files, err := Discover(opts.DataDir, opts.TempDir)
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 {
		files.MDS = head(files.MDS, opts.Limit)
		files.Claims = head(files.Claims, opts.Limit)
	}

	rep := &Report{MDSFiles: len(files.MDS), ClaimsFiles: len(files.Claims)}
	in.log.Info("discovered extracts",
		zap.Int("mds_files", rep.MDSFiles),
		zap.Int("claims_files", rep.ClaimsFiles),
		zap.Bool("dry_run", opts.DryRun),
	)

	all := append(append([]File{}, files.MDS...), files.Claims...)

	// Months already in gold are skipped unless forced, in which case they
	// are deleted and loaded again.
	var loaded map[string]bool
	if !opts.DryRun {
		if loaded, err = in.LoadedExtracts(ctx); err != nil {
			return nil, err
		}
		if opts.Force {
			rep.Reloaded = reloadIDs(all, loaded)
		} else {
			all, rep.Skipped = pending(all, loaded)
			if len(rep.Skipped) > 0 {
				in.log.Info("skipping loaded extracts", zap.Strings("extract_ids", rep.Skipped))
			}
			if len(all) == 0 {
				in.log.Info("all extracts already loaded, use --force to reload")
				rep.Status = StatusCompleted
				return rep, nil
			}
		}
	}

	var logID int64
	if !opts.DryRun {
		rep.RunID = in.RunID()
		if logID, err = in.runs.Start(ctx, rep.RunID); err != nil {
			return nil, err
		}
		in.log.Info("ingest run started", zap.String("run_id", rep.RunID))

		for _, id := range rep.Reloaded {
			if err := in.DeleteExtract(ctx, id); err != nil {
				return rep, in.fail(ctx, logID, false, err)
			}
			in.log.Info("cleared extract for reload", zap.String("extract_id", id))
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	// Parse a window of files concurrently, then stage them in file order.
	for start := 0; start < len(all); start += workers {
		end := min(start+workers, len(all))
		results := in.parseWindow(ctx, all[start:end], workers)
		if err := ctx.Err(); err != nil {
			return rep, in.fail(ctx, logID, opts.DryRun, eris.Wrap(err, "cms: ingest cancelled"))
		}

		for _, res := range results {
			if res.err != nil {
				in.recordError(rep, res.file, res.err)
				continue
			}
			if opts.DryRun {
				rep.MDSRows += int64(len(res.mds))
				rep.ClaimsRows += int64(len(res.claims))
				rep.FilesProcessed++
				continue
			}
			n, err := in.stage(ctx, res)
			if err != nil {
				in.recordError(rep, res.file, err)
				continue
			}
			if res.file.Kind == KindMDS {
				rep.MDSRows += n
			} else {
				rep.ClaimsRows += n
			}
			rep.FilesProcessed++
		}
	}

	if opts.DryRun {
		rep.Status = StatusCompleted
		if len(rep.Errors) > 0 {
			rep.Status = StatusCompletedWithErrors
		}
		in.log.Info("dry run complete",
			zap.Int64("mds_rows", rep.MDSRows),
			zap.Int64("claims_rows", rep.ClaimsRows),
		)
		return rep, nil
	}

	if !opts.SkipTransform {
		if rep.GoldMDSRows, rep.GoldClaimsRows, err = in.TransformToGold(ctx); err != nil {
			return rep, in.fail(ctx, logID, false, err)
		}
		if err := in.RefreshExtracts(ctx); err != nil {
			return rep, in.fail(ctx, logID, false, err)
		}
	}

	if err := in.runs.Complete(ctx, logID, rep); err != nil {
		return rep, err
	}
	in.log.Info("ingest run complete",
		zap.String("run_id", rep.RunID),
		zap.String("status", rep.Status),
		zap.Int("files_processed", rep.FilesProcessed),
		zap.Int64("mds_rows", rep.MDSRows),
		zap.Int64("claims_rows", rep.ClaimsRows),
		zap.Int("errors", len(rep.Errors)),
	)
	return rep, nil
}

func (in *Ingester) parseWindow(ctx context.Context, files []File, workers int) []parsed {
	results := make([]parsed, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			res := parsed{file: f}
			if f.Kind == KindMDS {
				res.mds, res.err = LoadMDS(gctx, f)
			} else {
				res.claims, res.err = LoadClaims(gctx, f)
			}
			results[i] = res
			in.log.Debug("parsed extract",
				zap.String("file", f.Name),
				zap.Int("rows", len(res.mds)+len(res.claims)),
			)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (in *Ingester) stage(ctx context.Context, res parsed) (int64, error) {
	if res.file.Kind == KindMDS {
		rows := make([][]any, len(res.mds))
		for i, r := range res.mds {
			rows[i] = r.row()
		}
		return db.BulkUpsert(ctx, in.pool, mdsUpsert, rows)
	}
	rows := make([][]any, len(res.claims))
	for i, r := range res.claims {
		rows[i] = r.row()
	}
	return db.BulkUpsert(ctx, in.pool, claimsUpsert, rows)
}

func (in *Ingester) recordError(rep *Report, f File, err error) {
	msg := fmt.Sprintf("Error processing %s: %v", f.Name, err)
	in.log.Error("extract failed", zap.String("file", f.Name), zap.Error(err))
	rep.Errors = append(rep.Errors, msg)
}

func (in *Ingester) fail(ctx context.Context, logID int64, dryRun bool, cause error) error {
	if dryRun || logID == 0 {
		return cause
	}
	if err := in.runs.Fail(context.WithoutCancel(ctx), logID, cause.Error()); err != nil {
		in.log.Warn("could not mark ingest run failed", zap.Error(err))
	}
	return cause
}

func head(files []File, n int) []File {
	if len(files) > n {
		return files[:n]
	}
	return files
}
