// Package proto defines the line protocol spoken by generated pipeline
// scripts. Each stdout line is either a JSON object with a "type"
// discriminator or plain log text. The host decodes lines into a closed set
// of typed events; anything it does not recognize degrades to a log event so
// newer script generators never break older hosts.
package proto

import "encoding/json"

// EventType discriminates protocol events.
type EventType string

const (
	EventLog               EventType = "log"
	EventProgress          EventType = "progress"
	EventError             EventType = "error"
	EventMetrics           EventType = "metrics"
	EventDataProfile       EventType = "dataProfile"
	EventTrial             EventType = "trial"
	EventTuningComplete    EventType = "tuningComplete"
	EventExplainProgress   EventType = "explainProgress"
	EventFeatureImportance EventType = "featureImportance"
	EventShapData          EventType = "shapData"
	EventPartialDependence EventType = "partialDependence"
	EventExplainMetadata   EventType = "explainMetadata"
	EventExplainComplete   EventType = "explainComplete"
	EventComplete          EventType = "complete"

	// EventExit is synthesized by the process supervisor from the real exit
	// status. Scripts never emit it; it is always the last event of a run.
	EventExit EventType = "exit"
)

// Event is one decoded protocol message.
type Event interface {
	Type() EventType
}

// LogEvent carries one line of informational output.
type LogEvent struct {
	Message string `json:"message"`
}

func (LogEvent) Type() EventType { return EventLog }

// ProgressEvent reports stage progress as current/total units.
type ProgressEvent struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

func (ProgressEvent) Type() EventType { return EventProgress }

// ErrorEvent carries an unrecoverable script error. The script exits
// non-zero after emitting it.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) Type() EventType { return EventError }

// MetricsEvent carries training or evaluation metrics. ModelType is the
// model type recorded in the model-info artifact, which for loaded models may
// differ from anything configured on the pipeline.
type MetricsEvent struct {
	ModelType string          `json:"modelType"`
	Data      json.RawMessage `json:"data"`
}

func (MetricsEvent) Type() EventType { return EventMetrics }

// DataProfileEvent carries a dataset summary produced for one pipeline node.
type DataProfileEvent struct {
	NodeID string          `json:"nodeId"`
	Data   json.RawMessage `json:"data"`
}

func (DataProfileEvent) Type() EventType { return EventDataProfile }

// TrialEvent reports one finished hyperparameter tuning trial. Score is nil
// for failed or pruned trials, which report a null score on the wire.
type TrialEvent struct {
	TrialNumber int             `json:"trialNumber"`
	Params      json.RawMessage `json:"params"`
	Score       *float64        `json:"score"`
	DurationMs  *int64          `json:"durationMs,omitempty"`
}

func (TrialEvent) Type() EventType { return EventTrial }

// TuningCompleteEvent reports the outcome of a whole tuning session.
type TuningCompleteEvent struct {
	BestParams  json.RawMessage `json:"bestParams"`
	BestScore   float64         `json:"bestScore"`
	TotalTrials int             `json:"totalTrials"`
	DurationMs  *int64          `json:"durationMs,omitempty"`
}

func (TuningCompleteEvent) Type() EventType { return EventTuningComplete }

// ExplainProgressEvent reports progress of one explanation stage
// (importance, shap, or pdp) as a percentage.
type ExplainProgressEvent struct {
	Data json.RawMessage `json:"data"`
}

func (ExplainProgressEvent) Type() EventType { return EventExplainProgress }

// FeatureImportanceEvent carries permutation importance results.
type FeatureImportanceEvent struct {
	Data json.RawMessage `json:"data"`
}

func (FeatureImportanceEvent) Type() EventType { return EventFeatureImportance }

// ShapDataEvent carries SHAP attribution matrices, normalized to
// (class, sample, feature) ordering for classification.
type ShapDataEvent struct {
	Data json.RawMessage `json:"data"`
}

func (ShapDataEvent) Type() EventType { return EventShapData }

// PartialDependenceEvent carries partial dependence curves.
type PartialDependenceEvent struct {
	Data json.RawMessage `json:"data"`
}

func (PartialDependenceEvent) Type() EventType { return EventPartialDependence }

// ExplainMetadataEvent describes the explainer run (model class, explainer
// type, sample counts).
type ExplainMetadataEvent struct {
	Data json.RawMessage `json:"data"`
}

func (ExplainMetadataEvent) Type() EventType { return EventExplainMetadata }

// ExplainCompleteEvent marks the end of an explanation run.
type ExplainCompleteEvent struct {
	DurationMs int64 `json:"durationMs"`
}

func (ExplainCompleteEvent) Type() EventType { return EventExplainComplete }

// CompleteEvent marks successful completion of the script's work. The
// supervisor still waits for process exit before synthesizing ExitEvent.
type CompleteEvent struct{}

func (CompleteEvent) Type() EventType { return EventComplete }

// ExitEvent is the terminal event of every run, synthesized host-side.
type ExitEvent struct {
	Code int `json:"code"`
}

func (ExitEvent) Type() EventType { return EventExit }
