package persistence

import "time"

// Run statuses. A run row is created as running and finalized exactly once.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// Model version promotion stages.
const (
	StageNone       = "none"
	StageStaging    = "staging"
	StageProduction = "production"
	StageArchived   = "archived"
)

// Run is one pipeline execution.
type Run struct {
	ID              string
	PipelineName    string
	DisplayName     string
	Hyperparameters string
	ExperimentID    string
	Status          string
	Error           string
	StartedAt       time.Time
	DurationMs      *int64
}

// RunMetrics is one metrics payload collected during a run, stored as the
// JSON the script emitted.
type RunMetrics struct {
	RunID     string
	ModelType string
	Metrics   string
}

// Pipeline is a saved pipeline definition (JSON graph).
type Pipeline struct {
	ID         string
	Name       string
	Definition string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Experiment groups related runs.
type Experiment struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// ModelVersion is one registered artifact of a named model.
type ModelVersion struct {
	ID           string
	ModelID      string
	Version      int
	RunID        string
	ArtifactPath string
	ModelType    string
	Stage        string
	CreatedAt    time.Time
}

// TuningSession summarizes one hyperparameter search.
type TuningSession struct {
	ID            string
	RunID         string
	ModelType     string
	Sampler       string
	ScoringMetric string
	BestParams    string
	BestScore     *float64
	TotalTrials   *int
	DurationMs    *int64
}

// TuningTrial is one completed trial within a session.
type TuningTrial struct {
	SessionID   string
	TrialNumber int
	Params      string
	Score       *float64
	DurationMs  *int64
}
