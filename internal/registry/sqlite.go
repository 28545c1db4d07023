package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a Store backed by a single sqlite database. WAL mode
// keeps concurrent readers cheap; inserts from parallel specs serialize
// on the single writer, which is the append-only contract the registry
// needs.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if needed) the registry database at
// dbPath and applies schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create registry directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, dbPath: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const migrationV1Patterns = `
CREATE TABLE IF NOT EXISTS patterns (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT NOT NULL UNIQUE,
	spec_id        TEXT NOT NULL,
	description    TEXT NOT NULL,
	tags           TEXT NOT NULL DEFAULT '',
	completeness   INTEGER NOT NULL DEFAULT 0,
	actionability  INTEGER NOT NULL DEFAULT 0,
	generality     INTEGER NOT NULL DEFAULT 0,
	evidence       INTEGER NOT NULL DEFAULT 0,
	clarity        INTEGER NOT NULL DEFAULT 0,
	reusability    INTEGER NOT NULL DEFAULT 0,
	verification   INTEGER NOT NULL DEFAULT 0,
	novelty        INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'candidate',
	created_at     DATETIME NOT NULL,
	promoted_at    DATETIME
);
CREATE INDEX IF NOT EXISTS idx_patterns_status ON patterns(status);
CREATE INDEX IF NOT EXISTS idx_patterns_spec ON patterns(spec_id);
`

// migrate creates tables and applies versioned migrations.
func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS registry_schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema version table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM registry_schema_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Patterns},
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO registry_schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// Insert appends a new pattern row.
func (s *SQLiteStore) Insert(ctx context.Context, p Pattern) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patterns (
			id, spec_id, description, tags,
			completeness, actionability, generality, evidence,
			clarity, reusability, verification, novelty,
			status, created_at, promoted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SpecID, p.Description, strings.Join(p.Tags, ","),
		p.Scores.Completeness, p.Scores.Actionability, p.Scores.Generality, p.Scores.Evidence,
		p.Scores.Clarity, p.Scores.Reusability, p.Scores.Verification, p.Scores.Novelty,
		string(p.Status), p.CreatedAt.UTC(), nullableTime(p.PromotedAt),
	)
	if err != nil {
		return fmt.Errorf("insert pattern: %w", err)
	}
	return nil
}

// Get retrieves a pattern by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Pattern, error) {
	row := s.db.QueryRowContext(ctx, selectPatterns+" WHERE id = ?", id)
	p, err := scanPattern(row)
	if err == sql.ErrNoRows {
		return Pattern{}, ErrPatternNotFound
	}
	if err != nil {
		return Pattern{}, fmt.Errorf("get pattern: %w", err)
	}
	return p, nil
}

// List returns patterns in insertion order, optionally filtered by status.
func (s *SQLiteStore) List(ctx context.Context, status PatternStatus) ([]Pattern, error) {
	query := selectPatterns
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY seq"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	var out []Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetStatus advances a pattern's status. The guard clause refuses writes
// against promoted rows inside the same statement, so the immutability
// check and the update are atomic.
func (s *SQLiteStore) SetStatus(ctx context.Context, id string, status PatternStatus, promotedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE patterns SET status = ?, promoted_at = COALESCE(?, promoted_at) WHERE id = ? AND status != ?",
		string(status), nullableTime(promotedAt), id, string(StatusPromoted),
	)
	if err != nil {
		return fmt.Errorf("set pattern status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish missing from immutable.
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		return ErrPatternImmutable
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

const selectPatterns = `
	SELECT id, spec_id, description, tags,
	       completeness, actionability, generality, evidence,
	       clarity, reusability, verification, novelty,
	       status, created_at, promoted_at
	FROM patterns`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPattern(row rowScanner) (Pattern, error) {
	var p Pattern
	var tags string
	var status string
	var promotedAt sql.NullTime
	err := row.Scan(
		&p.ID, &p.SpecID, &p.Description, &tags,
		&p.Scores.Completeness, &p.Scores.Actionability, &p.Scores.Generality, &p.Scores.Evidence,
		&p.Scores.Clarity, &p.Scores.Reusability, &p.Scores.Verification, &p.Scores.Novelty,
		&status, &p.CreatedAt, &promotedAt,
	)
	if err != nil {
		return Pattern{}, err
	}
	if tags != "" {
		p.Tags = strings.Split(tags, ",")
	}
	p.Status = PatternStatus(status)
	if promotedAt.Valid {
		t := promotedAt.Time
		p.PromotedAt = &t
	}
	return p, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
