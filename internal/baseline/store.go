// Package baseline persists accepted findings in SQLite so the gate can be
// introduced on a tree with pre-existing violations: findings recorded in the
// latest baseline run are reported but do not fail the check.
package baseline

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jward/larch/internal/policy"
)

// Store is the SQLite data access layer for baseline runs.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the baseline tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT
);

CREATE TABLE IF NOT EXISTS runs (
  id              INTEGER PRIMARY KEY,
  created_at      TIMESTAMP NOT NULL,
  file_count      INTEGER NOT NULL,
  finding_count   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS findings (
  id              INTEGER PRIMARY KEY,
  run_id          INTEGER NOT NULL REFERENCES runs(id),
  path            TEXT NOT NULL,
  rule            TEXT NOT NULL,
  scope           TEXT NOT NULL,
  method          TEXT NOT NULL,
  line            INTEGER NOT NULL,
  fingerprint     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id);
CREATE INDEX IF NOT EXISTS idx_findings_fingerprint ON findings(fingerprint);
`

// Run is one recorded baseline.
type Run struct {
	ID           int64
	CreatedAt    time.Time
	FileCount    int
	FindingCount int
}

// Fingerprint identifies a finding independently of its line number, so
// unrelated edits above a suppressed call site do not resurrect it.
func Fingerprint(f policy.Finding) string {
	h := sha256.New()
	for _, part := range []string{f.Path, f.Rule, f.Scope, f.Method, f.Snippet} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Record writes a new baseline run containing the given findings.
// The insert is transactional: either the whole run lands or none of it.
func (s *Store) Record(findings []policy.Finding, fileCount int) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO runs (created_at, file_count, finding_count) VALUES (?, ?, ?)`,
		time.Now().UTC(), fileCount, len(findings),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO findings (run_id, path, rule, scope, method, line, fingerprint)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare findings insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range findings {
		if _, err := stmt.Exec(runID, f.Path, f.Rule, f.Scope, f.Method, f.Line, Fingerprint(f)); err != nil {
			return 0, fmt.Errorf("insert finding %s:%d: %w", f.Path, f.Line, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

// LatestRun returns the most recent baseline run, or nil when none exists.
func (s *Store) LatestRun() (*Run, error) {
	row := s.db.QueryRow(
		`SELECT id, created_at, file_count, finding_count FROM runs ORDER BY id DESC LIMIT 1`,
	)
	var r Run
	if err := row.Scan(&r.ID, &r.CreatedAt, &r.FileCount, &r.FindingCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return &r, nil
}

// LatestFingerprints returns the fingerprint set of the most recent run.
// An empty map (no baseline recorded) suppresses nothing.
func (s *Store) LatestFingerprints() (map[string]bool, error) {
	run, err := s.LatestRun()
	if err != nil {
		return nil, err
	}
	fps := map[string]bool{}
	if run == nil {
		return fps, nil
	}
	rows, err := s.db.Query(`SELECT fingerprint FROM findings WHERE run_id = ?`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("query fingerprints: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		fps[fp] = true
	}
	return fps, rows.Err()
}

// SetMetadata stores a key/value pair, replacing any existing value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// GetMetadata returns the value for key, or "" when absent.
func (s *Store) GetMetadata(key string) (string, error) {
	row := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return value, nil
}
