package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/snf-deals/internal/db"
	"github.com/sells-group/snf-deals/internal/model"
	"github.com/sells-group/snf-deals/internal/resilience"
)

const dealColumns = `id, deal_name, COALESCE(facility_name, ''), COALESCE(street_address, ''),
	COALESCE(city, ''), COALESCE(state, ''), COALESCE(zip_code, ''),
	bed_count, latitude, longitude, current_occupancy,
	extraction_data, enhanced_extraction_data, created_at, updated_at`

const facilityColumns = `id, deal_id, COALESCE(facility_name, ''), COALESCE(street_address, ''),
	COALESCE(city, ''), COALESCE(state, ''), COALESCE(zip_code, ''), COALESCE(facility_type, ''),
	facility_role, display_order, bed_count, latitude, longitude, extraction_data,
	created_at, updated_at`

// Writable flat columns. Dynamic UPDATEs only ever name these.
var (
	dealWritable = map[string]bool{
		model.FieldFacilityName:  true,
		model.FieldStreetAddress: true,
		model.FieldCity:          true,
		model.FieldState:         true,
		model.FieldZipCode:       true,
		model.FieldBedCount:      true,
		model.FieldLatitude:      true,
		model.FieldLongitude:     true,
	}
	facilityWritable = map[string]bool{
		model.FieldFacilityName:  true,
		model.FieldStreetAddress: true,
		model.FieldCity:          true,
		model.FieldState:         true,
		model.FieldZipCode:       true,
		model.FieldBedCount:      true,
		model.FieldLatitude:      true,
		model.FieldLongitude:     true,
		model.FieldFacilityType:  true,
	}
)

// GetDeal returns the deal, or (nil, nil) when it does not exist.
func (s *Postgres) GetDeal(ctx context.Context, id int64) (*model.Deal, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id)
	d, err := scanDeal(row)
	if db.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get deal %d", id)
	}
	return d, nil
}

func scanDeal(row pgx.Row) (*model.Deal, error) {
	var d model.Deal
	var extraction, enhanced []byte
	err := row.Scan(
		&d.ID, &d.DealName, &d.FacilityName, &d.StreetAddress,
		&d.City, &d.State, &d.ZipCode,
		&d.BedCount, &d.Latitude, &d.Longitude, &d.CurrentOccupancy,
		&extraction, &enhanced, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.ExtractionData = extraction
	d.EnhancedExtractionData = enhanced
	return &d, nil
}

// UpdateDealSync writes the sync's flat columns and the authoritative
// extraction document in a single statement.
func (s *Postgres) UpdateDealSync(ctx context.Context, id int64, u model.DealUpdate) error {
	if u.Slot != model.SlotExtraction && u.Slot != model.SlotEnhanced {
		return eris.Errorf("store: unknown extraction slot %q", u.Slot)
	}

	sets, args, err := setClauses(u.Columns, dealWritable)
	if err != nil {
		return err
	}
	args = append(args, u.Document)
	sets = append(sets, fmt.Sprintf("%s = $%d", u.Slot, len(args)))
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	sql := fmt.Sprintf("UPDATE deals SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, sql, args...)
		if err != nil {
			return eris.Wrapf(err, "store: update deal %d", id)
		}
		if tag.RowsAffected() == 0 {
			return eris.Errorf("store: update deal %d: no such deal", id)
		}
		return nil
	})
}

// FindOrCreateFacility returns the deal's subject facility, inserting an
// empty subject row in slot 0 when the deal has none. Competitor rows are
// never returned. Concurrent callers
// converge on the same row through the (deal_id, facility_role,
// display_order) unique index.
func (s *Postgres) FindOrCreateFacility(ctx context.Context, dealID int64) (*model.Facility, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+facilityColumns+` FROM deal_facilities
		WHERE deal_id = $1 AND facility_role = $2
		ORDER BY display_order, id
		LIMIT 1`, dealID, model.RoleSubject)
	f, err := scanFacility(row)
	if err == nil {
		return f, nil
	}
	if !db.IsNoRows(err) {
		return nil, eris.Wrapf(err, "store: find facility for deal %d", dealID)
	}

	row = s.pool.QueryRow(ctx, `INSERT INTO deal_facilities (deal_id, facility_role, display_order)
		VALUES ($1, $2, 0)
		ON CONFLICT (deal_id, facility_role, display_order) DO UPDATE SET updated_at = now()
		RETURNING `+facilityColumns, dealID, model.RoleSubject)
	f, err = scanFacility(row)
	if err != nil {
		return nil, eris.Wrapf(err, "store: create facility for deal %d", dealID)
	}
	return f, nil
}

// UpdateFacility writes flat facility columns. When both coordinates are
// present the PostGIS location is refreshed too.
func (s *Postgres) UpdateFacility(ctx context.Context, id int64, cols map[string]any) error {
	sets, args, err := setClauses(cols, facilityWritable)
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		return nil
	}

	lat, okLat := model.ToFloat(cols[model.FieldLatitude])
	lng, okLng := model.ToFloat(cols[model.FieldLongitude])
	if okLat && okLng {
		pt, err := pointEWKB(lat, lng)
		if err != nil {
			return err
		}
		args = append(args, pt)
		sets = append(sets, fmt.Sprintf("location = ST_GeomFromEWKB($%d)", len(args)))
	}

	sets = append(sets, "updated_at = now()")
	args = append(args, id)
	sql := fmt.Sprintf("UPDATE deal_facilities SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	return resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
			return eris.Wrapf(err, "store: update facility %d", id)
		}
		return nil
	})
}

// ListFacilities returns every facility of a deal, subject first.
func (s *Postgres) ListFacilities(ctx context.Context, dealID int64) ([]model.Facility, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+facilityColumns+` FROM deal_facilities
		WHERE deal_id = $1
		ORDER BY (facility_role = 'subject') DESC, display_order, id`, dealID)
	if err != nil {
		return nil, eris.Wrapf(err, "store: list facilities for deal %d", dealID)
	}
	defer rows.Close()

	var out []model.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan facility")
		}
		out = append(out, *f)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate facilities")
}

func scanFacility(row pgx.Row) (*model.Facility, error) {
	var f model.Facility
	var extraction []byte
	err := row.Scan(
		&f.ID, &f.DealID, &f.FacilityName, &f.StreetAddress,
		&f.City, &f.State, &f.ZipCode, &f.FacilityType,
		&f.FacilityRole, &f.DisplayOrder, &f.BedCount, &f.Latitude, &f.Longitude, &extraction,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.ExtractionData = extraction
	return &f, nil
}

// setClauses renders "col = $n" pairs in column-name order, rejecting any
// column outside allowed.
func setClauses(cols map[string]any, allowed map[string]bool) ([]string, []any, error) {
	names := make([]string, 0, len(cols))
	for c := range cols {
		if !allowed[c] {
			return nil, nil, eris.Errorf("store: column %q is not writable", c)
		}
		names = append(names, c)
	}
	sort.Strings(names)

	sets := make([]string, len(names))
	args := make([]any, len(names))
	for i, c := range names {
		args[i] = cols[c]
		sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	return sets, args, nil
}
