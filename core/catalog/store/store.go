// Package store persists catalogs in SQLite and opens catalog datasets of
// any supported kind by path.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/VoiceRef/core/catalog"
	"github.com/FocuswithJustin/VoiceRef/core/errors"
	"github.com/FocuswithJustin/VoiceRef/core/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS books (
	name     TEXT PRIMARY KEY,
	position INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS chapters (
	book    TEXT NOT NULL REFERENCES books(name),
	chapter INTEGER NOT NULL,
	verses  INTEGER NOT NULL,
	PRIMARY KEY (book, chapter)
);`

// Save replaces the catalog stored in db with c.
func Save(ctx context.Context, db *sql.DB, c *catalog.Catalog) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin catalog transaction")
	}
	defer tx.Rollback()

	for _, stmt := range []string{schema, `DELETE FROM chapters`, `DELETE FROM books`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "prepare catalog tables")
		}
	}

	insertBook, err := tx.PrepareContext(ctx, `INSERT INTO books (name, position) VALUES (?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare book insert")
	}
	defer insertBook.Close()

	insertChapter, err := tx.PrepareContext(ctx, `INSERT INTO chapters (book, chapter, verses) VALUES (?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare chapter insert")
	}
	defer insertChapter.Close()

	for pos, b := range c.Books() {
		if _, err := insertBook.ExecContext(ctx, b.Name, pos); err != nil {
			return errors.Wrapf(err, "insert book %s", b.Name)
		}
		for i, verses := range b.Chapters {
			if _, err := insertChapter.ExecContext(ctx, b.Name, i+1, verses); err != nil {
				return errors.Wrapf(err, "insert %s %d", b.Name, i+1)
			}
		}
	}

	return errors.Wrap(tx.Commit(), "commit catalog")
}

// Load reads the catalog stored in db. Books come back in saved order.
func Load(ctx context.Context, db *sql.DB) (*catalog.Catalog, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT b.name, c.chapter, c.verses
		FROM books b JOIN chapters c ON c.book = b.name
		ORDER BY b.position, c.chapter`)
	if err != nil {
		return nil, errors.Wrap(err, "query catalog")
	}
	defer rows.Close()

	var books []catalog.Book
	for rows.Next() {
		var name string
		var chapter, verses int
		if err := rows.Scan(&name, &chapter, &verses); err != nil {
			return nil, errors.Wrap(err, "scan catalog row")
		}
		if len(books) == 0 || books[len(books)-1].Name != name {
			books = append(books, catalog.Book{Name: name})
		}
		b := &books[len(books)-1]
		if chapter != len(b.Chapters)+1 {
			return nil, errors.NewValidation(name, "chapters are not contiguous")
		}
		b.Chapters = append(b.Chapters, verses)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "read catalog rows")
	}

	return catalog.New(books)
}

// IsSQLitePath reports whether path names a SQLite catalog.
func IsSQLitePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// LoadFile opens a catalog dataset by extension: SQLite (".db", ".sqlite",
// ".sqlite3") here, JSON and xz-compressed JSON via catalog.LoadFile.
func LoadFile(ctx context.Context, path string) (*catalog.Catalog, error) {
	if !IsSQLitePath(path) {
		return catalog.LoadFile(path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewNotFound("catalog", path)
	}

	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer db.Close()

	c, err := Load(ctx, db)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return c, nil
}

// SaveFile writes c to path, choosing the format by extension.
func SaveFile(ctx context.Context, path string, c *catalog.Catalog) error {
	if !IsSQLitePath(path) {
		return c.SaveFile(path)
	}

	db, err := sqlite.Open(path)
	if err != nil {
		return errors.NewIO("open", path, err)
	}
	defer db.Close()

	return errors.Wrapf(Save(ctx, db, c), "save %s", path)
}
