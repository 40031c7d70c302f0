package store

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	// Postgres driver registered as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store is a SQL-backed Repository. It runs on SQLite for single-user
// installs and on Postgres for shared deployments; both speak the same
// schema through ent's dialect-aware query builder.
type Store struct {
	db      *sql.DB
	drv     *entsql.Driver
	dialect string
}

var _ Repository = (*Store)(nil)
var _ Repository = (*MemoryStore)(nil)

// Open connects to the database and creates the schema if needed.
// driver is "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		sqlDriver string
		d         string
	)
	switch driver {
	case "sqlite":
		sqlDriver, d = "sqlite", dialect.SQLite
	case "postgres":
		sqlDriver, d = "pgx", dialect.Postgres
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if d == dialect.SQLite {
		// One connection serializes writers, which makes read-modify-write
		// transactions safe without BEGIN IMMEDIATE.
		db.SetMaxOpenConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
	}

	s := &Store{db: db, drv: entsql.OpenDB(d, db), dialect: d}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return s, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the ent dialect name in use.
func (s *Store) Dialect() string {
	return s.dialect
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.drv.Close()
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

// applyPragmas configures SQLite for single-user performance.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// schema is portable between SQLite and Postgres. Timestamps are stored
// as fixed-width UTC text so they sort lexically; lists are JSON text.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		age INTEGER NOT NULL DEFAULT 0,
		estimated_grade TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		recommended_tier TEXT NOT NULL DEFAULT '',
		selected_tier TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS mastery_records (
		student_id TEXT NOT NULL,
		competency_id TEXT NOT NULL,
		level TEXT NOT NULL,
		latest_level TEXT NOT NULL,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_assessed_at TEXT NOT NULL,
		last_assessment_id TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (student_id, competency_id)
	)`,
	`CREATE TABLE IF NOT EXISTS learning_paths (
		student_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		tier TEXT NOT NULL,
		competencies TEXT NOT NULL,
		cursor_pos INTEGER NOT NULL DEFAULT 0,
		generated_at TEXT NOT NULL,
		PRIMARY KEY (student_id, subject)
	)`,
	`CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		challenge_id TEXT NOT NULL,
		competency_id TEXT NOT NULL,
		skill_level TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		attempt_number INTEGER NOT NULL,
		previous_attempt_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		submitted_at TEXT NOT NULL,
		UNIQUE (student_id, challenge_id, attempt_number)
	)`,
	`CREATE INDEX IF NOT EXISTS submissions_status ON submissions (status)`,
	`CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		submission_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		competency_id TEXT NOT NULL,
		overall_mastery TEXT NOT NULL,
		allow_resubmission INTEGER NOT NULL DEFAULT 0,
		assessed_by TEXT NOT NULL,
		assessed_at TEXT NOT NULL,
		payload TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS assessments_submission ON assessments (submission_id)`,
	`CREATE INDEX IF NOT EXISTS assessments_student_competency ON assessments (student_id, competency_id)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		quest_id TEXT NOT NULL,
		quest_title TEXT NOT NULL,
		status TEXT NOT NULL,
		competencies TEXT NOT NULL,
		lessons TEXT NOT NULL,
		lessons_completed TEXT NOT NULL,
		xp_earned INTEGER NOT NULL DEFAULT 0,
		difficulty TEXT NOT NULL DEFAULT '',
		completion_policy TEXT NOT NULL,
		assigned_by TEXT NOT NULL,
		assigned_at TEXT NOT NULL,
		started_at TEXT NOT NULL DEFAULT '',
		completed_at TEXT NOT NULL DEFAULT '',
		superseded_by TEXT NOT NULL DEFAULT '',
		idempotency_key TEXT UNIQUE
	)`,
	`CREATE INDEX IF NOT EXISTS assignments_student_subject ON assignments (student_id, subject)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return err
		}
	}
	return nil
}
