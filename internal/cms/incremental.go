package cms

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
)

// LoadedExtracts returns the extract IDs already present in
// gold.nh_quality_extracts.
func (in *Ingester) LoadedExtracts(ctx context.Context) (map[string]bool, error) {
	rows, err := in.pool.Query(ctx, `SELECT extract_id FROM gold.nh_quality_extracts`)
	if err != nil {
		return nil, eris.Wrap(err, "cms: list loaded extracts")
	}
	defer rows.Close()

	loaded := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "cms: scan loaded extract")
		}
		loaded[id] = true
	}
	return loaded, eris.Wrap(rows.Err(), "cms: iterate loaded extracts")
}

// DeleteExtract removes one month from staging and gold, including its
// extract metadata row, in a single transaction.
func (in *Ingester) DeleteExtract(ctx context.Context, extractID string) error {
	tx, err := in.pool.Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "cms: delete extract %s: begin tx", extractID)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, table := range []string{
		"staging.nh_quality_mds_raw",
		"staging.nh_quality_claims_raw",
		"gold.nh_quality_mds",
		"gold.nh_quality_claims",
		"gold.nh_quality_extracts",
	} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE extract_id = $1`, extractID); err != nil {
			return eris.Wrapf(err, "cms: delete extract %s from %s", extractID, table)
		}
	}
	return eris.Wrapf(tx.Commit(ctx), "cms: delete extract %s: commit", extractID)
}

// pending splits files into those still to load and the sorted extract IDs
// skipped because they are already loaded.
func pending(files []File, loaded map[string]bool) ([]File, []string) {
	var (
		keep    []File
		skipped []string
		seen    = make(map[string]bool)
	)
	for _, f := range files {
		if !loaded[f.ExtractID] {
			keep = append(keep, f)
			continue
		}
		if !seen[f.ExtractID] {
			seen[f.ExtractID] = true
			skipped = append(skipped, f.ExtractID)
		}
	}
	sort.Strings(skipped)
	return keep, skipped
}

// reloadIDs returns the sorted extract IDs in files that are already loaded.
func reloadIDs(files []File, loaded map[string]bool) []string {
	_, ids := pending(files, loaded)
	return ids
}
