// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

// Package catalogdb implements the catalog and upload databases on
// sqlite and postgres.
package catalogdb

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"geostac.io/geostac/catalog"
	"geostac.io/geostac/catalog/uploads"
)

var (
	mon = monkit.Package()

	// Error is the default error class for the catalogdb package.
	Error = errs.Class("catalogdb")
)

// DB implements catalog.DB and uploads.DB on a sql database.
type DB struct {
	log    *zap.Logger
	db     *sql.DB
	driver string
}

// Open connects to the database named by databaseURL. Supported schemes
// are sqlite3:// with a file path and postgres://.
func Open(ctx context.Context, log *zap.Logger, databaseURL string) (db *DB, err error) {
	defer mon.Task()(&ctx)(&err)

	driver, source, err := parseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, source)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, Error.Wrap(err)
	}

	if driver == "sqlite3" {
		// try to enable write-ahead-logging
		_, _ = conn.ExecContext(ctx, `PRAGMA journal_mode = WAL`)
		// concurrent writers otherwise fail immediately with SQLITE_BUSY
		conn.SetMaxOpenConns(1)
	}

	return &DB{log: log, db: conn, driver: driver}, nil
}

func parseURL(databaseURL string) (driver, source string, err error) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite3://"):
		path := strings.TrimPrefix(databaseURL, "sqlite3://")
		return "sqlite3", "file:" + path + "?cache=shared&_busy_timeout=5000&_fk=on", nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "postgres", databaseURL, nil
	}
	return "", "", Error.New("unsupported database url %q", databaseURL)
}

// Close releases the underlying connections.
func (db *DB) Close() error {
	return Error.Wrap(db.db.Close())
}

// Collections implements catalog.DB.
func (db *DB) Collections() catalog.Collections { return &collectionsDB{db: db} }

// Items implements catalog.DB.
func (db *DB) Items() catalog.Items { return &itemsDB{db: db} }

// Assets implements catalog.DB.
func (db *DB) Assets() catalog.Assets { return &assetsDB{db: db} }

// Uploads returns the upload database.
func (db *DB) Uploads() uploads.DB { return &uploadsDB{db: db} }

// MigrateToLatest brings the schema up to date.
func (db *DB) MigrateToLatest(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { _ = tx.Rollback() }()

	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.driver == "postgres" {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			name TEXT NOT NULL PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			license TEXT NOT NULL DEFAULT '',
			cache_control_header TEXT NOT NULL DEFAULT '',
			created TIMESTAMP NOT NULL,
			updated TIMESTAMP NOT NULL,
			etag TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			collection TEXT NOT NULL REFERENCES collections (name),
			name TEXT NOT NULL,
			geometry TEXT NOT NULL DEFAULT '',
			datetime TIMESTAMP NOT NULL,
			created TIMESTAMP NOT NULL,
			updated TIMESTAMP NOT NULL,
			etag TEXT NOT NULL,
			PRIMARY KEY (collection, name)
		)`,
		`CREATE TABLE IF NOT EXISTS assets (
			collection TEXT NOT NULL REFERENCES collections (name),
			item TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			media_type TEXT NOT NULL DEFAULT '',
			href TEXT NOT NULL DEFAULT '',
			is_external BOOLEAN NOT NULL DEFAULT FALSE,
			checksum TEXT NOT NULL DEFAULT '',
			content_encoding TEXT NOT NULL DEFAULT '',
			update_interval BIGINT NOT NULL DEFAULT -1,
			file_size BIGINT NOT NULL DEFAULT 0,
			created TIMESTAMP NOT NULL,
			updated TIMESTAMP NOT NULL,
			etag TEXT NOT NULL,
			PRIMARY KEY (collection, item, name)
		)`,
		`CREATE TABLE IF NOT EXISTS asset_uploads (
			id ` + serial + `,
			collection TEXT NOT NULL,
			item TEXT NOT NULL DEFAULT '',
			asset TEXT NOT NULL,
			upload_id TEXT NOT NULL,
			status TEXT NOT NULL,
			number_parts INTEGER NOT NULL,
			md5_parts TEXT NOT NULL,
			urls TEXT NOT NULL DEFAULT '[]',
			checksum TEXT NOT NULL,
			content_encoding TEXT NOT NULL DEFAULT '',
			update_interval BIGINT NOT NULL DEFAULT -1,
			file_size BIGINT NOT NULL DEFAULT 0,
			created TIMESTAMP NOT NULL,
			ended TIMESTAMP,
			etag TEXT NOT NULL
		)`,
		// At most one in-progress upload per asset, enforced by the
		// database so concurrent creations cannot both succeed.
		`CREATE UNIQUE INDEX IF NOT EXISTS unique_in_progress
			ON asset_uploads (collection, item, asset)
			WHERE status = 'in-progress'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS asset_uploads_by_upload_id
			ON asset_uploads (collection, item, asset, upload_id)`,
		`CREATE INDEX IF NOT EXISTS asset_uploads_by_asset
			ON asset_uploads (collection, item, asset, id)`,
	}
	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return Error.Wrap(err)
		}
	}
	return Error.Wrap(tx.Commit())
}

// rebind converts ? placeholders to the driver's syntax.
func (db *DB) rebind(query string) string {
	if db.driver != "postgres" {
		return query
	}
	var out strings.Builder
	n := 0
	for _, r := range query {
		if r != '?' {
			out.WriteRune(r)
			continue
		}
		n++
		out.WriteString("$" + strconv.Itoa(n))
	}
	return out.String()
}

// withTx runs fn inside a transaction, committing when it returns nil.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return Error.Wrap(tx.Commit())
}

// isConstraintError reports whether err is a unique or foreign key
// constraint violation on either driver.
func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "23"
	}
	return false
}
