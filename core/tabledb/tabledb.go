// Package tabledb exports a compiled transliteration mapping to SQLite and
// reads it back.
//
// Schema:
//
//	meta(key TEXT PRIMARY KEY, value TEXT)
//	ranges(lo INTEGER PRIMARY KEY, hi INTEGER, replacement TEXT)
//
// A range sharing one template is stored as a single row; per-codepoint
// ranges are stored as one row per codepoint with lo = hi.
package tabledb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	apperrors "github.com/FocuswithJustin/strutils/core/errors"
	"github.com/FocuswithJustin/strutils/core/sqlite"
	"github.com/FocuswithJustin/strutils/core/translit"
)

// SchemaVersion is stored in meta under "schema_version".
const SchemaVersion = "1"

// Meta keys written by Export.
const (
	MetaSchemaVersion = "schema_version"
	MetaDigest        = "digest"
	MetaRanges        = "ranges"
	MetaCodepoints    = "codepoints"
	MetaCreatedAt     = "created_at"
	MetaDriver        = "driver"
)

const schema = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE ranges (
	lo          INTEGER PRIMARY KEY,
	hi          INTEGER NOT NULL,
	replacement TEXT NOT NULL
);
`

// Export creates the schema in db and writes m into it in one transaction.
// extra is stored in meta alongside the standard keys.
func Export(ctx context.Context, db *sql.DB, m *translit.Mapping, extra map[string]string) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin export: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	ins, err := tx.PrepareContext(ctx, `INSERT INTO ranges (lo, hi, replacement) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()

	for r := range m.Ranges() {
		if r.Shared() {
			if _, err = ins.ExecContext(ctx, r.Lo, r.Hi, r.Repl[0]); err != nil {
				return fmt.Errorf("insert %U: %w", r.Lo, err)
			}
			continue
		}
		for c := r.Lo; c <= r.Hi; c++ {
			if _, err = ins.ExecContext(ctx, c, c, r.At(c)); err != nil {
				return fmt.Errorf("insert %U: %w", c, err)
			}
		}
	}

	meta := map[string]string{
		MetaSchemaVersion: SchemaVersion,
		MetaDigest:        m.Digest(),
		MetaRanges:        strconv.Itoa(m.Len()),
		MetaCodepoints:    strconv.Itoa(m.Codepoints()),
		MetaCreatedAt:     time.Now().UTC().Format(time.RFC3339),
		MetaDriver:        sqlite.DriverType(),
	}
	for k, v := range extra {
		meta[k] = v
	}
	for k, v := range meta {
		if _, err = tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert meta %s: %w", k, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}
	return nil
}

// ExportFile writes m to a new database at path. An existing file is
// replaced only when overwrite is set.
func ExportFile(ctx context.Context, path string, m *translit.Mapping, extra map[string]string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			return apperrors.NewValidation("out", fmt.Sprintf("%s already exists", path))
		}
		if err := os.Remove(path); err != nil {
			return apperrors.NewIO("remove", path, err)
		}
	}

	db, err := sqlite.Open(path)
	if err != nil {
		return apperrors.NewIO("open", path, err)
	}
	if err := Export(ctx, db, m, extra); err != nil {
		db.Close()
		return err
	}
	return db.Close()
}

// ReadMeta returns every meta row.
func ReadMeta(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("query meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// Lookup returns the replacement stored for c.
func Lookup(ctx context.Context, db *sql.DB, c rune) (string, bool, error) {
	var hi int64
	var repl string
	err := db.QueryRowContext(ctx,
		`SELECT hi, replacement FROM ranges WHERE lo <= ? ORDER BY lo DESC LIMIT 1`, c).Scan(&hi, &repl)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup %U: %w", c, err)
	}
	if int64(c) > hi {
		return "", false, nil
	}
	return repl, true, nil
}

// Import rebuilds a mapping from db. For mappings produced by
// translit.Builder the result has the same digest as the exported one.
func Import(ctx context.Context, db *sql.DB) (*translit.Mapping, error) {
	rows, err := db.QueryContext(ctx, `SELECT lo, hi, replacement FROM ranges ORDER BY lo`)
	if err != nil {
		return nil, fmt.Errorf("query ranges: %w", err)
	}
	defer rows.Close()

	b := translit.NewBuilder()
	for rows.Next() {
		var lo, hi int64
		var repl string
		if err := rows.Scan(&lo, &hi, &repl); err != nil {
			return nil, fmt.Errorf("scan range: %w", err)
		}
		if err := b.SetRange(rune(lo), rune(hi), repl); err != nil {
			return nil, apperrors.Wrapf(err, "range %U..%U", lo, hi)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return b.Build(), nil
}
