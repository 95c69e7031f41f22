package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const timeLayout = time.RFC3339

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// CreateRun inserts a new running run and returns its identifier. The
// hyperparameters JSON and experiment id may be empty.
func (s *Store) CreateRun(pipelineName, hyperparamsJSON, experimentID string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, pipeline_name, hyperparameters, experiment_id, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, pipelineName, nullIfEmpty(hyperparamsJSON), nullIfEmpty(experimentID),
		RunStatusRunning, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// FinalizeRun sets the terminal status, duration, and optional error message
// of a run. It refuses to finalize twice.
func (s *Store) FinalizeRun(runID, status, errMsg string, duration time.Duration) error {
	if status != RunStatusCompleted && status != RunStatusFailed && status != RunStatusCancelled {
		return fmt.Errorf("invalid terminal status %q", status)
	}
	durationMs := duration.Milliseconds()
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, error = ?, duration_ms = ? WHERE id = ? AND status = ?`,
		status, nullIfEmpty(errMsg), durationMs, runID, RunStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize run %s: %w", runID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finalize run %s: %w", runID, err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s is not running", runID)
	}
	return nil
}

// GetRun fetches one run by id.
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(
		`SELECT id, pipeline_name, COALESCE(display_name, ''), COALESCE(hyperparameters, ''),
		        COALESCE(experiment_id, ''), status, COALESCE(error, ''), started_at, duration_ms
		 FROM runs WHERE id = ?`,
		runID,
	)
	var run Run
	var startedAt string
	err := row.Scan(&run.ID, &run.PipelineName, &run.DisplayName, &run.Hyperparameters,
		&run.ExperimentID, &run.Status, &run.Error, &startedAt, &run.DurationMs)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	parsed, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, fmt.Errorf("run %s has malformed start time: %w", runID, err)
	}
	run.StartedAt = parsed
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, pipeline_name, COALESCE(display_name, ''), status, COALESCE(error, ''), started_at, duration_ms
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt string
		if err := rows.Scan(&run.ID, &run.PipelineName, &run.DisplayName, &run.Status, &run.Error, &startedAt, &run.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if parsed, perr := time.Parse(timeLayout, startedAt); perr == nil {
			run.StartedAt = parsed
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveRunMetrics appends one metrics payload to a run.
func (s *Store) SaveRunMetrics(runID, modelType, metricsJSON string) error {
	_, err := s.db.Exec(
		`INSERT INTO run_metrics (run_id, model_type, metrics) VALUES (?, ?, ?)`,
		runID, modelType, metricsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save metrics for run %s: %w", runID, err)
	}
	return nil
}

// GetRunMetrics returns all metrics payloads recorded for a run.
func (s *Store) GetRunMetrics(runID string) ([]RunMetrics, error) {
	rows, err := s.db.Query(
		`SELECT run_id, model_type, metrics FROM run_metrics WHERE run_id = ?`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load metrics for run %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	var result []RunMetrics
	for rows.Next() {
		var m RunMetrics
		if err := rows.Scan(&m.RunID, &m.ModelType, &m.Metrics); err != nil {
			return nil, fmt.Errorf("failed to scan metrics: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// SavePipeline upserts a pipeline definition by name.
func (s *Store) SavePipeline(name, definitionJSON string) (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT id FROM pipelines WHERE name = ?`, name).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		id = uuid.NewString()
		_, err = s.db.Exec(
			`INSERT INTO pipelines (id, name, definition) VALUES (?, ?, ?)`,
			id, name, definitionJSON,
		)
	case err == nil:
		_, err = s.db.Exec(
			`UPDATE pipelines SET definition = ?, updated_at = datetime('now') WHERE id = ?`,
			definitionJSON, id,
		)
	}
	if err != nil {
		return "", fmt.Errorf("failed to save pipeline %q: %w", name, err)
	}
	return id, nil
}

// GetPipeline loads a saved pipeline definition by name.
func (s *Store) GetPipeline(name string) (*Pipeline, error) {
	row := s.db.QueryRow(
		`SELECT id, name, definition FROM pipelines WHERE name = ?`, name,
	)
	var p Pipeline
	err := row.Scan(&p.ID, &p.Name, &p.Definition)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pipeline %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline %q: %w", name, err)
	}
	return &p, nil
}

// SetRunDisplayName gives a run a human-friendly name.
func (s *Store) SetRunDisplayName(runID, displayName string) error {
	res, err := s.db.Exec(
		`UPDATE runs SET display_name = ? WHERE id = ?`, nullIfEmpty(displayName), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to rename run %s: %w", runID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// TagRun attaches a tag to a run; duplicate tags are ignored.
func (s *Store) TagRun(runID, tag string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO run_tags (run_id, tag) VALUES (?, ?)`, runID, tag,
	)
	if err != nil {
		return fmt.Errorf("failed to tag run %s: %w", runID, err)
	}
	return nil
}

// RunTags returns the tags on a run.
func (s *Store) RunTags(runID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT tag FROM run_tags WHERE run_id = ? ORDER BY tag`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags for run %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// AddRunNote appends a free-form note to a run.
func (s *Store) AddRunNote(runID, note string) error {
	_, err := s.db.Exec(`INSERT INTO run_notes (run_id, note) VALUES (?, ?)`, runID, note)
	if err != nil {
		return fmt.Errorf("failed to add note to run %s: %w", runID, err)
	}
	return nil
}

// CreateExperiment creates a named experiment.
func (s *Store) CreateExperiment(name, description string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO experiments (id, name, description) VALUES (?, ?, ?)`,
		id, name, nullIfEmpty(description),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create experiment %q: %w", name, err)
	}
	return id, nil
}

// EnsureExperiment returns the id of the experiment with the given name,
// creating it when absent.
func (s *Store) EnsureExperiment(name string) (string, error) {
	var id string
	err := s.db.QueryRow(
		`SELECT id FROM experiments WHERE name = ? ORDER BY created_at LIMIT 1`, name,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return s.CreateExperiment(name, "")
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up experiment %q: %w", name, err)
	}
	return id, nil
}

// UpdateExperiment renames an experiment and replaces its description.
func (s *Store) UpdateExperiment(id, name, description string) error {
	res, err := s.db.Exec(
		`UPDATE experiments SET name = ?, description = ? WHERE id = ?`,
		name, nullIfEmpty(description), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update experiment %s: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("experiment %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListExperiments returns all experiments, newest first.
func (s *Store) ListExperiments() ([]Experiment, error) {
	rows, err := s.db.Query(
		`SELECT id, name, COALESCE(description, '') FROM experiments ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var experiments []Experiment
	for rows.Next() {
		var e Experiment
		if err := rows.Scan(&e.ID, &e.Name, &e.Description); err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		experiments = append(experiments, e)
	}
	return experiments, rows.Err()
}

// RegisterModelVersion records an exported artifact under a model name,
// assigning the next version number.
func (s *Store) RegisterModelVersion(modelName, runID, artifactPath, modelType string) (*ModelVersion, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin registry transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var modelID string
	err = tx.QueryRow(`SELECT id FROM models WHERE name = ?`, modelName).Scan(&modelID)
	if err == sql.ErrNoRows {
		modelID = uuid.NewString()
		if _, err = tx.Exec(`INSERT INTO models (id, name) VALUES (?, ?)`, modelID, modelName); err != nil {
			return nil, fmt.Errorf("failed to create model %q: %w", modelName, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up model %q: %w", modelName, err)
	}

	var version int
	if err = tx.QueryRow(
		`SELECT COALESCE(MAX(version), 0) + 1 FROM model_versions WHERE model_id = ?`, modelID,
	).Scan(&version); err != nil {
		return nil, fmt.Errorf("failed to compute next version: %w", err)
	}

	mv := &ModelVersion{
		ID:           uuid.NewString(),
		ModelID:      modelID,
		Version:      version,
		RunID:        runID,
		ArtifactPath: artifactPath,
		ModelType:    modelType,
	}
	if _, err = tx.Exec(
		`INSERT INTO model_versions (id, model_id, version, run_id, artifact_path, model_type)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		mv.ID, mv.ModelID, mv.Version, nullIfEmpty(mv.RunID), mv.ArtifactPath, mv.ModelType,
	); err != nil {
		return nil, fmt.Errorf("failed to register model version: %w", err)
	}
	mv.Stage = StageNone
	return mv, tx.Commit()
}

// PromoteModelVersion moves a registered version to a promotion stage.
func (s *Store) PromoteModelVersion(versionID, stage string) error {
	switch stage {
	case StageNone, StageStaging, StageProduction, StageArchived:
	default:
		return fmt.Errorf("invalid promotion stage %q", stage)
	}
	res, err := s.db.Exec(`UPDATE model_versions SET stage = ? WHERE id = ?`, stage, versionID)
	if err != nil {
		return fmt.Errorf("failed to promote version %s: %w", versionID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("model version %s: %w", versionID, ErrNotFound)
	}
	return nil
}

// ListModelVersions returns all versions registered under a model name, in
// version order.
func (s *Store) ListModelVersions(modelName string) ([]ModelVersion, error) {
	rows, err := s.db.Query(
		`SELECT v.id, v.model_id, v.version, COALESCE(v.run_id, ''), v.artifact_path, v.model_type, v.stage
		 FROM model_versions v JOIN models m ON m.id = v.model_id
		 WHERE m.name = ? ORDER BY v.version`, modelName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of %q: %w", modelName, err)
	}
	defer func() { _ = rows.Close() }()

	var versions []ModelVersion
	for rows.Next() {
		var v ModelVersion
		if err := rows.Scan(&v.ID, &v.ModelID, &v.Version, &v.RunID, &v.ArtifactPath, &v.ModelType, &v.Stage); err != nil {
			return nil, fmt.Errorf("failed to scan model version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// TagModelVersion attaches a tag to a version; duplicates are ignored.
func (s *Store) TagModelVersion(versionID, tag string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO model_tags (version_id, tag) VALUES (?, ?)`, versionID, tag,
	)
	if err != nil {
		return fmt.Errorf("failed to tag version %s: %w", versionID, err)
	}
	return nil
}

// ModelVersionTags returns the tags on a version.
func (s *Store) ModelVersionTags(versionID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT tag FROM model_tags WHERE version_id = ? ORDER BY tag`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags for version %s: %w", versionID, err)
	}
	defer func() { _ = rows.Close() }()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// CreateTuningSession records the start of a hyperparameter search.
func (s *Store) CreateTuningSession(runID, modelType, sampler, scoringMetric string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO tuning_sessions (id, run_id, model_type, sampler, scoring_metric) VALUES (?, ?, ?, ?, ?)`,
		id, runID, modelType, sampler, scoringMetric,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create tuning session: %w", err)
	}
	return id, nil
}

// SaveTuningTrial records one completed trial.
func (s *Store) SaveTuningTrial(trial TuningTrial) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO tuning_trials (session_id, trial_number, params, score, duration_ms)
		 VALUES (?, ?, ?, ?, ?)`,
		trial.SessionID, trial.TrialNumber, trial.Params, trial.Score, trial.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to save trial %d: %w", trial.TrialNumber, err)
	}
	return nil
}

// CompleteTuningSession stores the search outcome.
func (s *Store) CompleteTuningSession(sessionID, bestParamsJSON string, bestScore float64, totalTrials int, durationMs int64) error {
	_, err := s.db.Exec(
		`UPDATE tuning_sessions SET best_params = ?, best_score = ?, total_trials = ?, duration_ms = ? WHERE id = ?`,
		bestParamsJSON, bestScore, totalTrials, durationMs, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete tuning session %s: %w", sessionID, err)
	}
	return nil
}

// TuningTrials returns the recorded trials of a session in trial order.
func (s *Store) TuningTrials(sessionID string) ([]TuningTrial, error) {
	rows, err := s.db.Query(
		`SELECT session_id, trial_number, params, score, duration_ms
		 FROM tuning_trials WHERE session_id = ? ORDER BY trial_number`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load trials for session %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	var trials []TuningTrial
	for rows.Next() {
		var trial TuningTrial
		if err := rows.Scan(&trial.SessionID, &trial.TrialNumber, &trial.Params, &trial.Score, &trial.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan trial: %w", err)
		}
		trials = append(trials, trial)
	}
	return trials, rows.Err()
}

// SetSetting upserts one settings key.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set setting %q: %w", key, err)
	}
	return nil
}

// GetSetting returns a settings value, or "" when unset.
func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	return value, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
