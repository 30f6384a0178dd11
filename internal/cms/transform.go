package cms

import (
	"context"

	"github.com/rotisserie/eris"
)

const suppressionCodes = `('9','10','11','12','13','14','15')`

const residentTypeExpr = `CASE
		WHEN LOWER(resident_type) LIKE '%long%' THEN 'long_stay'
		WHEN LOWER(resident_type) LIKE '%short%' THEN 'short_stay'
		ELSE LOWER(REPLACE(COALESCE(resident_type, ''), ' ', '_'))
	END`

const goldMDSSQL = `INSERT INTO gold.nh_quality_mds (
	ccn, extract_id, as_of_date, measure_code, measure_description,
	resident_type, q1_score, q2_score, q3_score, q4_score,
	four_quarter_avg, footnotes, has_suppression, used_in_star_rating,
	measure_period, processing_date, state
)
SELECT
	ccn, extract_id, as_of_date, measure_code, measure_description,
	` + residentTypeExpr + `,
	q1_score, q2_score, q3_score, q4_score, four_quarter_avg,
	jsonb_build_object('q1', q1_footnote, 'q2', q2_footnote, 'q3', q3_footnote,
		'q4', q4_footnote, 'avg', four_quarter_footnote),
	(COALESCE(q1_footnote, '') IN ` + suppressionCodes + ` OR
	 COALESCE(q2_footnote, '') IN ` + suppressionCodes + ` OR
	 COALESCE(q3_footnote, '') IN ` + suppressionCodes + ` OR
	 COALESCE(q4_footnote, '') IN ` + suppressionCodes + ` OR
	 COALESCE(four_quarter_footnote, '') IN ` + suppressionCodes + `),
	used_in_star_rating = 'Y',
	measure_period, processing_date, LEFT(ccn, 2)
FROM staging.nh_quality_mds_raw
ON CONFLICT (extract_id, ccn, measure_code) DO UPDATE SET
	as_of_date = EXCLUDED.as_of_date,
	measure_description = EXCLUDED.measure_description,
	resident_type = EXCLUDED.resident_type,
	q1_score = EXCLUDED.q1_score,
	q2_score = EXCLUDED.q2_score,
	q3_score = EXCLUDED.q3_score,
	q4_score = EXCLUDED.q4_score,
	four_quarter_avg = EXCLUDED.four_quarter_avg,
	footnotes = EXCLUDED.footnotes,
	has_suppression = EXCLUDED.has_suppression,
	used_in_star_rating = EXCLUDED.used_in_star_rating,
	measure_period = EXCLUDED.measure_period,
	processing_date = EXCLUDED.processing_date,
	state = EXCLUDED.state`

const goldClaimsSQL = `INSERT INTO gold.nh_quality_claims (
	ccn, extract_id, as_of_date, measure_code, measure_description,
	resident_type, adjusted_score, observed_score, expected_score,
	footnote, has_suppression, used_in_star_rating, measure_period,
	processing_date, state
)
SELECT
	ccn, extract_id, as_of_date, measure_code, measure_description,
	` + residentTypeExpr + `,
	adjusted_score, observed_score, expected_score, footnote,
	COALESCE(footnote, '') IN ` + suppressionCodes + `,
	used_in_star_rating = 'Y',
	measure_period, processing_date, LEFT(ccn, 2)
FROM staging.nh_quality_claims_raw
ON CONFLICT (extract_id, ccn, measure_code) DO UPDATE SET
	as_of_date = EXCLUDED.as_of_date,
	measure_description = EXCLUDED.measure_description,
	resident_type = EXCLUDED.resident_type,
	adjusted_score = EXCLUDED.adjusted_score,
	observed_score = EXCLUDED.observed_score,
	expected_score = EXCLUDED.expected_score,
	footnote = EXCLUDED.footnote,
	has_suppression = EXCLUDED.has_suppression,
	used_in_star_rating = EXCLUDED.used_in_star_rating,
	measure_period = EXCLUDED.measure_period,
	processing_date = EXCLUDED.processing_date,
	state = EXCLUDED.state`

const extractsSQL = `INSERT INTO gold.nh_quality_extracts (
	extract_id, as_of_date, mds_row_count, claims_row_count,
	mds_facility_count, claims_facility_count, mds_source_file, claims_source_file
)
SELECT
	COALESCE(m.extract_id, c.extract_id),
	COALESCE(m.as_of_date, c.as_of_date),
	m.mds_count, c.claims_count,
	m.mds_facilities, c.claims_facilities,
	m.source_file, c.source_file
FROM (
	SELECT extract_id, MIN(as_of_date) AS as_of_date,
	       COUNT(*) AS mds_count, COUNT(DISTINCT ccn) AS mds_facilities,
	       MIN(source_file) AS source_file
	FROM staging.nh_quality_mds_raw
	GROUP BY extract_id
) m
FULL OUTER JOIN (
	SELECT extract_id, MIN(as_of_date) AS as_of_date,
	       COUNT(*) AS claims_count, COUNT(DISTINCT ccn) AS claims_facilities,
	       MIN(source_file) AS source_file
	FROM staging.nh_quality_claims_raw
	GROUP BY extract_id
) c ON m.extract_id = c.extract_id
ON CONFLICT (extract_id) DO UPDATE SET
	as_of_date = EXCLUDED.as_of_date,
	mds_row_count = EXCLUDED.mds_row_count,
	claims_row_count = EXCLUDED.claims_row_count,
	mds_facility_count = EXCLUDED.mds_facility_count,
	claims_facility_count = EXCLUDED.claims_facility_count,
	mds_source_file = EXCLUDED.mds_source_file,
	claims_source_file = EXCLUDED.claims_source_file,
	updated_at = now()`

// TransformToGold rebuilds the gold measure tables from staging in one
// transaction and returns the affected row counts.
func (in *Ingester) TransformToGold(ctx context.Context) (mds, claims int64, err error) {
	tx, err := in.pool.Begin(ctx)
	if err != nil {
		return 0, 0, eris.Wrap(err, "cms: transform: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, goldMDSSQL)
	if err != nil {
		return 0, 0, eris.Wrap(err, "cms: transform mds")
	}
	mds = tag.RowsAffected()

	tag, err = tx.Exec(ctx, goldClaimsSQL)
	if err != nil {
		return 0, 0, eris.Wrap(err, "cms: transform claims")
	}
	claims = tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, eris.Wrap(err, "cms: transform: commit")
	}
	return mds, claims, nil
}

// RefreshExtracts recomputes per-extract row and facility counts.
func (in *Ingester) RefreshExtracts(ctx context.Context) error {
	_, err := in.pool.Exec(ctx, extractsSQL)
	return eris.Wrap(err, "cms: refresh extract metadata")
}
