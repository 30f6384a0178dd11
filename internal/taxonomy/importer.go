package taxonomy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/snf-deals/internal/tabular"
)

// Workbook sheet names.
const (
	SheetFacilities    = "Facilities"
	SheetCategories    = "Functional Categories"
	SheetSubcategories = "Service Subcategories"
	SheetDocumentTypes = "Document Types"
	SheetVendors       = "Vendors"
)

// Tables reports row counts in import order.
var Tables = []string{
	"facilities", "functional_categories", "service_subcategories",
	"document_types", "document_tags", "document_type_tag_assignments", "vendors",
}

// Summary holds per-table row counts after an import.
type Summary struct {
	Counts      map[string]int `json:"counts"`
	SkippedRows int            `json:"skipped_rows"`
}

// Importer replaces the taxonomy tables from the two workbooks.
type Importer struct {
	db    *sql.DB
	vocab *Vocabulary
	log   *zap.Logger
}

// NewImporter creates an Importer. A nil vocab uses DefaultVocabulary.
func NewImporter(db *sql.DB, vocab *Vocabulary) *Importer {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Importer{
		db:    db,
		vocab: vocab,
		log:   zap.L().With(zap.String("component", "taxonomy")),
	}
}

// Import loads facilities and vendors from namingPath and categories,
// subcategories, and document types from taxonomyPath, then rebuilds the
// document tags. Prior contents are replaced in a single transaction.
func (im *Importer) Import(ctx context.Context, taxonomyPath, namingPath string) (*Summary, error) {
	taxWB, err := tabular.OpenXLSX(taxonomyPath)
	if err != nil {
		return nil, err
	}
	namingWB, err := tabular.OpenXLSX(namingPath)
	if err != nil {
		return nil, err
	}

	if err := requireSheets(taxWB, taxonomyPath, SheetCategories, SheetSubcategories, SheetDocumentTypes); err != nil {
		return nil, err
	}
	if err := requireSheets(namingWB, namingPath, SheetFacilities, SheetVendors); err != nil {
		return nil, err
	}

	if err := Migrate(ctx, im.db); err != nil {
		return nil, err
	}

	tx, err := im.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "taxonomy: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	sum := &Summary{Counts: map[string]int{}}
	steps := []struct {
		name string
		fn   func(context.Context, *sql.Tx) (int, error)
	}{
		{"clear", clearTables},
		{"facilities", sheetStep(namingWB, SheetFacilities, sum, insertFacility)},
		{"functional_categories", sheetStep(taxWB, SheetCategories, sum, insertCategory)},
		{"service_subcategories", sheetStep(taxWB, SheetSubcategories, sum, insertSubcategory)},
		{"document_types", sheetStep(taxWB, SheetDocumentTypes, sum, insertDocumentType)},
		{"vendors", sheetStep(namingWB, SheetVendors, sum, insertVendor)},
		{"document_tags", im.createTags},
	}
	for _, s := range steps {
		n, err := s.fn(ctx, tx)
		if err != nil {
			return nil, eris.Wrapf(err, "taxonomy: %s", s.name)
		}
		if s.name != "clear" {
			im.log.Info("imported", zap.String("table", s.name), zap.Int("rows", n))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "taxonomy: commit")
	}

	for _, t := range Tables {
		var n int
		if err := im.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "taxonomy: count %s", t)
		}
		sum.Counts[t] = n
	}
	return sum, nil
}

func requireSheets(wb *tabular.Workbook, path string, sheets ...string) error {
	var missing []string
	for _, name := range sheets {
		if !wb.HasSheet(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("taxonomy: %s is missing sheets %q (has %q)", path, missing, wb.SheetNames())
	}
	return nil
}

func clearTables(ctx context.Context, tx *sql.Tx) (int, error) {
	// Children first so foreign keys hold.
	for _, t := range []string{
		"document_type_tag_assignments", "document_tags", "service_subcategories",
		"functional_categories", "document_types", "facilities", "vendors",
	} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return 0, eris.Wrapf(err, "clear %s", t)
		}
	}
	return 0, nil
}

// rowFunc inserts one sheet record. pos is the 1-based position among
// non-blank records. Returning false skips the record.
type rowFunc func(ctx context.Context, tx *sql.Tx, rec map[string]string, pos int) (bool, error)

func sheetStep(wb *tabular.Workbook, sheet string, sum *Summary, fn rowFunc) func(context.Context, *sql.Tx) (int, error) {
	return func(ctx context.Context, tx *sql.Tx) (int, error) {
		recs, err := wb.Records(sheet)
		if err != nil {
			return 0, err
		}
		n := 0
		for i, rec := range recs {
			ok, err := fn(ctx, tx, rec, i+1)
			if err != nil {
				return n, eris.Wrapf(err, "%s row %d", sheet, i+2)
			}
			if !ok {
				sum.SkippedRows++
				continue
			}
			n++
		}
		return n, nil
	}
}

func insertFacility(ctx context.Context, tx *sql.Tx, r map[string]string, _ int) (bool, error) {
	// "Facilty ID" is the workbook's own spelling.
	_, err := tx.ExecContext(ctx, `INSERT INTO facilities
		(facility_id, facility_group, raw_name, name, short_name, line, legal_entity, address, city, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		null(first(r, "Facilty ID", "Facility ID")), null(r["Group"]), null(r["Name on Raw Data"]),
		null(r["New Name (or Folder)"]), null(r["Short_Name"]), null(r["Line"]), null(r["Legal"]),
		null(r["Address"]), null(r["City"]), null(r["State"]),
	)
	return err == nil, err
}

func insertCategory(ctx context.Context, tx *sql.Tx, r map[string]string, pos int) (bool, error) {
	name := r["Functional Category"]
	if name == "" {
		return false, nil
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO functional_categories
		(name, description, example_subcategories, sort_order) VALUES (?, ?, ?, ?)`,
		name, null(r["Description"]), null(r["Example Subcategories"]), sortOrder(r, pos),
	)
	return err == nil, err
}

func insertSubcategory(ctx context.Context, tx *sql.Tx, r map[string]string, pos int) (bool, error) {
	name := r["Service Subcategory"]
	if name == "" {
		return false, nil
	}
	var categoryID sql.NullInt64
	if c := r["Functional Category"]; c != "" {
		err := tx.QueryRowContext(ctx, `SELECT id FROM functional_categories WHERE name = ?`, c).Scan(&categoryID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return false, eris.Wrapf(err, "look up category %q", c)
		}
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO service_subcategories
		(functional_category_id, name, department, sort_order) VALUES (?, ?, ?, ?)`,
		categoryID, name, null(r["Department"]), sortOrder(r, pos),
	)
	return err == nil, err
}

func insertDocumentType(ctx context.Context, tx *sql.Tx, r map[string]string, pos int) (bool, error) {
	name := r["Document Type"]
	if name == "" {
		return false, nil
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO document_types
		(name, primary_category, description, sort_order) VALUES (?, ?, ?, ?)`,
		name, null(r["Category"]), null(r["Description"]), sortOrder(r, pos),
	)
	return err == nil, err
}

func insertVendor(ctx context.Context, tx *sql.Tx, r map[string]string, pos int) (bool, error) {
	raw := r["Vendor Name"]
	canonical := first(r, "Cleaned Vendor", "Vendor Name")
	if canonical == "" {
		return false, nil
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO vendors
		(vendor_id, raw_name, canonical_name, vendor_type, cleaned_type, notes) VALUES (?, ?, ?, ?, ?, ?)`,
		VendorID(pos), null(raw), canonical, null(r["Type/Specialty"]), null(r["Cleaned Type"]), null(r["Notes"]),
	)
	return err == nil, err
}

// createTags writes the vocabulary's tags and assigns them to every
// imported document type.
func (im *Importer) createTags(ctx context.Context, tx *sql.Tx) (int, error) {
	tagIDs := make(map[string]int64, len(im.vocab.Tags))
	for _, t := range im.vocab.Tags {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO document_tags (name, tag_group, description) VALUES (?, ?, ?)`,
			t.Name, null(t.Group), null(t.Description))
		if err != nil {
			return 0, eris.Wrapf(err, "insert tag %q", t.Name)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, eris.Wrap(err, "tag id")
		}
		tagIDs[t.Name] = id
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, name, COALESCE(primary_category, '') FROM document_types`)
	if err != nil {
		return 0, eris.Wrap(err, "list document types")
	}
	type docType struct {
		id             int64
		name, category string
	}
	var docs []docType
	for rows.Next() {
		var d docType
		if err := rows.Scan(&d.id, &d.name, &d.category); err != nil {
			rows.Close() //nolint:errcheck
			return 0, eris.Wrap(err, "scan document type")
		}
		docs = append(docs, d)
	}
	rows.Close() //nolint:errcheck
	if err := rows.Err(); err != nil {
		return 0, eris.Wrap(err, "iterate document types")
	}

	assigned := 0
	for _, d := range docs {
		for _, tag := range im.vocab.TagsFor(d.name, d.category) {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO document_type_tag_assignments (document_type_id, tag_id) VALUES (?, ?)`,
				d.id, tagIDs[tag]); err != nil {
				return 0, eris.Wrapf(err, "assign %q to %q", tag, d.name)
			}
			assigned++
		}
	}
	im.log.Info("tags assigned", zap.Int("assignments", assigned))
	return len(im.vocab.Tags), nil
}

// VendorID formats the synthetic vendor identifier for the n-th vendor.
func VendorID(n int) string {
	return fmt.Sprintf("VND-%04d", n)
}

func sortOrder(r map[string]string, pos int) int {
	if s := strings.TrimSpace(r["#"]); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f)
		}
	}
	return pos
}

func first(r map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := r[k]; v != "" {
			return v
		}
	}
	return ""
}

func null(s string) any {
	if s == "" {
		return nil
	}
	return s
}
