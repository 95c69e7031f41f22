package persistence

import (
	"database/sql"
	"fmt"
)

func createSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS pipelines (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			definition TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			pipeline_name TEXT NOT NULL,
			display_name TEXT,
			hyperparameters TEXT,
			experiment_id TEXT REFERENCES experiments(id),
			status TEXT NOT NULL CHECK (status IN ('running', 'completed', 'failed', 'cancelled')),
			error TEXT,
			started_at TEXT NOT NULL,
			duration_ms INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS run_metrics (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			model_type TEXT NOT NULL,
			metrics TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS experiments (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS run_tags (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			tag TEXT NOT NULL,
			PRIMARY KEY (run_id, tag)
		)`,
		`CREATE TABLE IF NOT EXISTS run_notes (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			note TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS models (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS model_versions (
			id TEXT PRIMARY KEY,
			model_id TEXT NOT NULL REFERENCES models(id) ON DELETE CASCADE,
			version INTEGER NOT NULL,
			run_id TEXT REFERENCES runs(id),
			artifact_path TEXT NOT NULL,
			model_type TEXT NOT NULL,
			stage TEXT NOT NULL DEFAULT 'none'
				CHECK (stage IN ('none', 'staging', 'production', 'archived')),
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE (model_id, version)
		)`,
		`CREATE TABLE IF NOT EXISTS model_tags (
			version_id TEXT NOT NULL REFERENCES model_versions(id) ON DELETE CASCADE,
			tag TEXT NOT NULL,
			PRIMARY KEY (version_id, tag)
		)`,
		`CREATE TABLE IF NOT EXISTS tuning_sessions (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			model_type TEXT NOT NULL,
			sampler TEXT NOT NULL,
			scoring_metric TEXT NOT NULL,
			best_params TEXT,
			best_score REAL,
			total_trials INTEGER,
			duration_ms INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS tuning_trials (
			session_id TEXT NOT NULL REFERENCES tuning_sessions(id) ON DELETE CASCADE,
			trial_number INTEGER NOT NULL,
			params TEXT NOT NULL,
			score REAL,
			duration_ms INTEGER,
			PRIMARY KEY (session_id, trial_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_run_metrics_run ON run_metrics(run_id)`,
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", CurrentSchemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return tx.Commit()
}
