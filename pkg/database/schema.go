package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS score_records (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		student_id TEXT NOT NULL DEFAULT '',
		test_num INTEGER NOT NULL DEFAULT 0,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_score_records_batch ON score_records (batch_id, test_num)`,
	`CREATE TABLE IF NOT EXISTS question_responses (
		batch_id TEXT NOT NULL,
		test_num INTEGER NOT NULL,
		question_number INTEGER NOT NULL,
		subject TEXT NOT NULL,
		student_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		PRIMARY KEY (batch_id, test_num, question_number, subject, student_id)
	)`,
	`CREATE TABLE IF NOT EXISTS report_jobs (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		params JSONB NOT NULL,
		status TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		result_url TEXT,
		created_by TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		finished_at TIMESTAMPTZ,
		error_message TEXT
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS score_records (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		student_id TEXT NOT NULL DEFAULT '',
		test_num INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_score_records_batch ON score_records (batch_id, test_num)`,
	`CREATE TABLE IF NOT EXISTS question_responses (
		batch_id TEXT NOT NULL,
		test_num INTEGER NOT NULL,
		question_number INTEGER NOT NULL,
		subject TEXT NOT NULL,
		student_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		PRIMARY KEY (batch_id, test_num, question_number, subject, student_id)
	)`,
	`CREATE TABLE IF NOT EXISTS report_jobs (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		params TEXT NOT NULL,
		status TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		result_url TEXT,
		created_by TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME,
		error_message TEXT
	)`,
}

// EnsureSchema creates the tables used by the API when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	statements := postgresSchema
	if db.DriverName() == DriverSQLite {
		statements = sqliteSchema
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
