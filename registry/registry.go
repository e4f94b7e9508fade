// Package registry persists report template metadata in SQLite and keeps
// the template files on disk next to it.
//
// Each template is addressed by its endpoint name; the stored file is
// <dir>/<endpt>.<extname>. The store also records every merge in a
// logging table and counts per-template calls.
//
// The caller must blank-import an SQLite driver before Open:
//
//	import _ "modernc.org/sqlite"
package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS logging (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	status    INTEGER NOT NULL DEFAULT 0,
	to_pdf    INTEGER NOT NULL DEFAULT 0,
	source_ip TEXT NOT NULL DEFAULT '',
	file_name TEXT NOT NULL DEFAULT '',
	file_ext  TEXT NOT NULL DEFAULT '',
	timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS repository (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	cname   TEXT NOT NULL DEFAULT '',
	endpt   TEXT NOT NULL DEFAULT '' UNIQUE,
	docname TEXT NOT NULL DEFAULT '',
	extname TEXT NOT NULL DEFAULT '',
	uptime  TEXT NOT NULL DEFAULT '',
	accessTimes INTEGER NOT NULL DEFAULT 0
);`

// ErrNotFound is returned when no repository row matches an endpoint.
var ErrNotFound = errors.New("registry: no such template")

// Repository is one stored template's metadata.
type Repository struct {
	ID          int64
	CName       string // category the template is listed under
	Endpt       string // endpoint name; also the stored file's base name
	DocName     string // original upload file name
	ExtName     string // ott or ots
	Uptime      string // upload or last-update time
	AccessTimes int64
}

// LogEntry is one merge request record.
type LogEntry struct {
	Status   bool
	ToPDF    bool
	SourceIP string
	FileName string
	FileExt  string
}

// Store is an open registry.
type Store struct {
	db  *sql.DB
	dir string
}

// Open opens (and if needed creates) the registry database at dbPath with
// WAL journaling and a busy timeout, applies the schema, and sweeps
// logging rows older than one year. Template files live under dir.
func Open(dbPath, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("registry: mkdir %s: %w", dir, err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("registry: open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("registry: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: schema: %w", err)
	}
	// Merge records older than a year are dropped on every open.
	if _, err := db.Exec(
		"DELETE FROM logging WHERE (strftime('%s','now') - strftime('%s', timestamp)) > 86400 * 365"); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: retention sweep: %w", err)
	}
	return &Store{db: db, dir: dir}, nil
}

// OpenMemory opens an in-memory registry for testing, with template files
// under a test-scoped directory. The store closes itself via t.Cleanup.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	s, err := Open(":memory:", t.TempDir())
	if err != nil {
		t.Fatalf("registry.OpenMemory: %v", err)
	}
	s.db.SetMaxOpenConns(1)
	t.Cleanup(func() { s.Close() })
	return s
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the template file directory.
func (s *Store) Dir() string {
	return s.dir
}

// TemplatePath returns the on-disk path of a repository's template file.
func (s *Store) TemplatePath(repo Repository) string {
	return filepath.Join(s.dir, repo.Endpt+"."+repo.ExtName)
}

// Add inserts a new repository row.
func (s *Store) Add(repo Repository) error {
	_, err := s.db.Exec(
		"INSERT INTO repository (endpt, extname, cname, docname, uptime) VALUES (?,?,?,?,?)",
		repo.Endpt, repo.ExtName, repo.CName, repo.DocName, repo.Uptime)
	if err != nil {
		return fmt.Errorf("registry: add %s: %w", repo.Endpt, err)
	}
	return nil
}

// Update rewrites the extension and uptime of an existing row.
func (s *Store) Update(repo Repository) error {
	_, err := s.db.Exec(
		"UPDATE repository SET extname=?, uptime=? WHERE endpt=?",
		repo.ExtName, repo.Uptime, repo.Endpt)
	if err != nil {
		return fmt.Errorf("registry: update %s: %w", repo.Endpt, err)
	}
	return nil
}

// Delete removes the row for endpt.
func (s *Store) Delete(endpt string) error {
	_, err := s.db.Exec("DELETE FROM repository WHERE endpt=?", endpt)
	if err != nil {
		return fmt.Errorf("registry: delete %s: %w", endpt, err)
	}
	return nil
}

// Get fetches the row for endpt.
func (s *Store) Get(endpt string) (Repository, error) {
	var repo Repository
	err := s.db.QueryRow(
		"SELECT id, cname, docname, endpt, extname, uptime, accessTimes FROM repository WHERE endpt=?",
		endpt).Scan(&repo.ID, &repo.CName, &repo.DocName, &repo.Endpt,
		&repo.ExtName, &repo.Uptime, &repo.AccessTimes)
	if errors.Is(err, sql.ErrNoRows) {
		return Repository{}, ErrNotFound
	}
	if err != nil {
		return Repository{}, fmt.Errorf("registry: get %s: %w", endpt, err)
	}
	return repo, nil
}

// List returns every repository row grouped by category name.
func (s *Store) List() (map[string][]Repository, error) {
	rows, err := s.db.Query(
		"SELECT cname, docname, endpt, extname, uptime FROM repository ORDER BY cname, endpt")
	if err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]Repository)
	for rows.Next() {
		var repo Repository
		if err := rows.Scan(&repo.CName, &repo.DocName, &repo.Endpt, &repo.ExtName, &repo.Uptime); err != nil {
			return nil, fmt.Errorf("registry: list: %w", err)
		}
		out[repo.CName] = append(out[repo.CName], repo)
	}
	return out, rows.Err()
}

// Touch increments the access counter of endpt.
func (s *Store) Touch(endpt string) error {
	_, err := s.db.Exec(
		"UPDATE repository SET accessTimes = accessTimes + 1 WHERE endpt=?", endpt)
	if err != nil {
		return fmt.Errorf("registry: touch %s: %w", endpt, err)
	}
	return nil
}

// LogMerge appends one merge record.
func (s *Store) LogMerge(entry LogEntry) error {
	_, err := s.db.Exec(
		"INSERT INTO logging (status, to_pdf, source_ip, file_name, file_ext) VALUES (?,?,?,?,?)",
		entry.Status, entry.ToPDF, entry.SourceIP, entry.FileName, entry.FileExt)
	if err != nil {
		return fmt.Errorf("registry: log merge: %w", err)
	}
	return nil
}

// RecentLog returns merge records newer than since, newest first.
func (s *Store) RecentLog(since time.Time) ([]LogEntry, error) {
	rows, err := s.db.Query(
		"SELECT status, to_pdf, source_ip, file_name, file_ext FROM logging "+
			"WHERE timestamp >= ? ORDER BY id DESC",
		since.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, fmt.Errorf("registry: recent log: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.Status, &e.ToPDF, &e.SourceIP, &e.FileName, &e.FileExt); err != nil {
			return nil, fmt.Errorf("registry: recent log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Templates returns the paths of every stored template file (*.ott and
// *.ots), sorted.
func (s *Store) Templates() ([]string, error) {
	var out []string
	for _, pattern := range []string{"*.ott", "*.ots"} {
		matches, err := filepath.Glob(filepath.Join(s.dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("registry: glob: %w", err)
		}
		out = append(out, matches...)
	}
	sort.Strings(out)
	return out, nil
}
