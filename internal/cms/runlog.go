package cms

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/snf-deals/internal/db"
)

// Ingest run statuses recorded in gold.nh_ingest_log.
const (
	StatusRunning             = "running"
	StatusCompleted           = "completed"
	StatusCompletedWithErrors = "completed_with_errors"
	StatusFailed              = "failed"
)

// RunLog reads and writes gold.nh_ingest_log.
type RunLog struct {
	pool db.Pool
}

// NewRunLog creates a RunLog backed by pool.
func NewRunLog(pool db.Pool) *RunLog {
	return &RunLog{pool: pool}
}

// Start records the beginning of a run and returns its log ID.
func (l *RunLog) Start(ctx context.Context, runID string) (int64, error) {
	var id int64
	err := l.pool.QueryRow(ctx,
		`INSERT INTO gold.nh_ingest_log (run_id, started_at, status)
		 VALUES ($1, now(), $2) RETURNING id`,
		runID, StatusRunning,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "cms: start ingest log for %s", runID)
	}
	return id, nil
}

// Complete closes a run with its totals. The status follows from errs.
func (l *RunLog) Complete(ctx context.Context, logID int64, r *Report) error {
	status := StatusCompleted
	var errs []string
	if len(r.Errors) > 0 {
		status = StatusCompletedWithErrors
		errs = r.Errors
	}
	_, err := l.pool.Exec(ctx,
		`UPDATE gold.nh_ingest_log
		 SET completed_at = now(), status = $1, files_processed = $2,
		     mds_rows_inserted = $3, claims_rows_inserted = $4, errors = $5
		 WHERE id = $6`,
		status, r.FilesProcessed, r.MDSRows, r.ClaimsRows, errs, logID,
	)
	if err != nil {
		return eris.Wrapf(err, "cms: complete ingest log %d", logID)
	}
	r.Status = status
	return nil
}

// Fail marks a run as failed with an error message.
func (l *RunLog) Fail(ctx context.Context, logID int64, msg string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE gold.nh_ingest_log
		 SET completed_at = now(), status = $1, errors = $2
		 WHERE id = $3`,
		StatusFailed, []string{msg}, logID,
	)
	if err != nil {
		return eris.Wrapf(err, "cms: fail ingest log %d", logID)
	}
	return nil
}
