package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig defines the parameters for a bulk upsert operation.
type UpsertConfig struct {
	Table        string   // target table, e.g. "deal_monthly_census" or "staging.nh_quality_mds_raw"
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	UpdateCols   []string // columns to update on conflict; nil = all non-conflict columns
	Touch        string   // optional timestamp column set to now() on update
}

// BulkUpsert loads rows into an ON COMMIT DROP temp table with COPY, then
// merges them with INSERT ... ON CONFLICT DO UPDATE in one transaction.
// Rows repeating a conflict key are collapsed to the last occurrence, since
// Postgres rejects an upsert that touches the same row twice.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return 0, eris.New("db: upsert: no conflict keys specified")
	}

	keyIdx, err := columnIndexes(cfg.Columns, cfg.ConflictKeys)
	if err != nil {
		return 0, err
	}
	rows = dedupeByKey(rows, keyIdx)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tmp := tempTableName(cfg.Table)
	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{tmp}.Sanitize(),
		identifier(cfg.Table).Sanitize(),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create temp table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tmp}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY into temp table for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, upsertSQL(cfg, tmp))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: INSERT ON CONFLICT for %s", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

func upsertSQL(cfg UpsertConfig, tmp string) string {
	updateCols := cfg.UpdateCols
	if updateCols == nil {
		keys := make(map[string]bool, len(cfg.ConflictKeys))
		for _, k := range cfg.ConflictKeys {
			keys[k] = true
		}
		for _, c := range cfg.Columns {
			if !keys[c] {
				updateCols = append(updateCols, c)
			}
		}
	}

	sets := make([]string, 0, len(updateCols)+1)
	for _, col := range updateCols {
		q := pgx.Identifier{col}.Sanitize()
		sets = append(sets, q+" = EXCLUDED."+q)
	}
	if cfg.Touch != "" {
		sets = append(sets, pgx.Identifier{cfg.Touch}.Sanitize()+" = now()")
	}

	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	cols := quoteAndJoin(cfg.Columns)
	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		identifier(cfg.Table).Sanitize(),
		cols, cols,
		pgx.Identifier{tmp}.Sanitize(),
		quoteAndJoin(cfg.ConflictKeys),
		action,
	)
}

func columnIndexes(columns, keys []string) ([]int, error) {
	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		pos[c] = i
	}
	out := make([]int, len(keys))
	for i, k := range keys {
		p, ok := pos[k]
		if !ok {
			return nil, eris.Errorf("db: upsert: conflict key %q not in columns", k)
		}
		out[i] = p
	}
	return out, nil
}

// dedupeByKey keeps the last row for each conflict key, preserving first-seen order.
func dedupeByKey(rows [][]any, keyIdx []int) [][]any {
	seen := make(map[string]int, len(rows))
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		parts := make([]string, len(keyIdx))
		for i, k := range keyIdx {
			if k < len(r) {
				parts[i] = fmt.Sprint(r[k])
			}
		}
		key := strings.Join(parts, "\x1f")
		if at, ok := seen[key]; ok {
			out[at] = r
			continue
		}
		seen[key] = len(out)
		out = append(out, r)
	}
	return out
}

func tempTableName(table string) string {
	return "_tmp_upsert_" + strings.ReplaceAll(table, ".", "_")
}

// identifier splits a schema-qualified name like "gold.nh_quality_mds".
func identifier(table string) pgx.Identifier {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}
	}
	return pgx.Identifier{table}
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
