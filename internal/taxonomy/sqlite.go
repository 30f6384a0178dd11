// Package taxonomy imports the contract taxonomy and naming-convention
// workbooks into the SQLite reference database.
package taxonomy

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// OpenSQLite opens a SQLite database at the given path and configures WAL mode.
func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS facilities (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	facility_id    VARCHAR(20) UNIQUE,
	facility_group VARCHAR(50),
	raw_name       VARCHAR(255),
	name           VARCHAR(255),
	short_name     VARCHAR(100),
	line           VARCHAR(50),
	legal_entity   VARCHAR(255),
	address        VARCHAR(255),
	city           VARCHAR(100),
	state          VARCHAR(10),
	status         INTEGER DEFAULT 1,
	created_at     DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at     DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS functional_categories (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	name                  VARCHAR(100) UNIQUE NOT NULL,
	description           TEXT,
	example_subcategories TEXT,
	sort_order            INTEGER,
	status                INTEGER DEFAULT 1,
	created_at            DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at            DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS service_subcategories (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	functional_category_id INTEGER REFERENCES functional_categories(id),
	name                   VARCHAR(150) UNIQUE NOT NULL,
	department             VARCHAR(100),
	sort_order             INTEGER,
	status                 INTEGER DEFAULT 1,
	created_at             DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at             DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS document_types (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	name             VARCHAR(150) UNIQUE NOT NULL,
	primary_category VARCHAR(100),
	description      TEXT,
	sort_order       INTEGER,
	status           INTEGER DEFAULT 1,
	created_at       DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at       DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS document_tags (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        VARCHAR(100) UNIQUE NOT NULL,
	tag_group   VARCHAR(100),
	description TEXT,
	status      INTEGER DEFAULT 1,
	created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS document_type_tag_assignments (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	document_type_id INTEGER NOT NULL REFERENCES document_types(id),
	tag_id           INTEGER NOT NULL REFERENCES document_tags(id),
	created_at       DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(document_type_id, tag_id)
);

CREATE TABLE IF NOT EXISTS vendors (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	vendor_id      VARCHAR(20),
	raw_name       VARCHAR(255),
	canonical_name VARCHAR(255) NOT NULL,
	vendor_type    VARCHAR(150),
	cleaned_type   VARCHAR(150),
	notes          TEXT,
	status         INTEGER DEFAULT 1,
	created_at     DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at     DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_facilities_name ON facilities(name);
CREATE INDEX IF NOT EXISTS idx_facilities_state ON facilities(state);
CREATE INDEX IF NOT EXISTS idx_service_subcategories_category ON service_subcategories(functional_category_id);
CREATE INDEX IF NOT EXISTS idx_vendors_canonical ON vendors(canonical_name);
CREATE INDEX IF NOT EXISTS idx_vendors_type ON vendors(cleaned_type);
CREATE INDEX IF NOT EXISTS idx_document_tags_group ON document_tags(tag_group);
`

// Migrate creates the taxonomy tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return eris.Wrap(err, "sqlite: migrate")
}
