package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/snf-deals/internal/model"
)

// InsertHistory appends an extraction-history row and fills its ID.
func (s *Postgres) InsertHistory(ctx context.Context, h *model.ExtractionHistory) error {
	var createdBy *string
	if h.CreatedBy != "" {
		createdBy = &h.CreatedBy
	}
	err := s.pool.QueryRow(ctx, `INSERT INTO deal_extraction_history
		(deal_id, extraction_data, source, changed_fields, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		h.DealID, []byte(h.ExtractionData), string(h.Source), h.ChangedFields, createdBy, h.CreatedAt,
	).Scan(&h.ID)
	if err != nil {
		return eris.Wrapf(err, "store: insert history for deal %d", h.DealID)
	}
	return nil
}

// ListHistory returns one page of a deal's history, newest first, and the
// deal's total row count.
func (s *Postgres) ListHistory(ctx context.Context, dealID int64, limit, offset int) ([]model.ExtractionHistory, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM deal_extraction_history WHERE deal_id = $1`, dealID,
	).Scan(&total); err != nil {
		return nil, 0, eris.Wrapf(err, "store: count history for deal %d", dealID)
	}
	if total == 0 {
		return nil, 0, nil
	}

	rows, err := s.pool.Query(ctx, `SELECT id, deal_id, extraction_data, source, changed_fields,
		COALESCE(created_by, ''), created_at
		FROM deal_extraction_history
		WHERE deal_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, dealID, limit, offset)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "store: list history for deal %d", dealID)
	}
	defer rows.Close()

	var out []model.ExtractionHistory
	for rows.Next() {
		var h model.ExtractionHistory
		var data []byte
		var source string
		if err := rows.Scan(&h.ID, &h.DealID, &data, &source, &h.ChangedFields, &h.CreatedBy, &h.CreatedAt); err != nil {
			return nil, 0, eris.Wrap(err, "store: scan history")
		}
		h.ExtractionData = data
		h.Source = model.HistorySource(source)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, eris.Wrap(err, "store: iterate history")
	}
	return out, total, nil
}
