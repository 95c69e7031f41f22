package proto

import (
	"encoding/json"
	"strings"
)

// wireMessage is the superset of fields any script line may carry. Decoding
// into one flat struct and narrowing afterwards mirrors how the scripts
// build their output and keeps unknown fields harmless.
type wireMessage struct {
	Type        string          `json:"type"`
	Message     *string         `json:"message"`
	Current     *int            `json:"current"`
	Total       *int            `json:"total"`
	ModelType   *string         `json:"modelType"`
	NodeID      *string         `json:"nodeId"`
	Data        json.RawMessage `json:"data"`
	TrialNumber *int            `json:"trialNumber"`
	Params      json.RawMessage `json:"params"`
	Score       *float64        `json:"score"`
	DurationMs  *int64          `json:"durationMs"`
	BestParams  json.RawMessage `json:"bestParams"`
	BestScore   *float64        `json:"bestScore"`
	TotalTrials *int            `json:"totalTrials"`
}

// DecodeLine decodes one line of script output into an event. It never
// fails: lines that are not valid protocol JSON, and protocol objects with
// an unknown type or missing required fields, come back as a LogEvent
// carrying the raw line.
func DecodeLine(line string) Event {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return LogEvent{Message: line}
	}

	var msg wireMessage
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
		return LogEvent{Message: line}
	}

	switch EventType(msg.Type) {
	case EventLog:
		if msg.Message != nil {
			return LogEvent{Message: *msg.Message}
		}
	case EventProgress:
		if msg.Current != nil && msg.Total != nil {
			return ProgressEvent{Current: *msg.Current, Total: *msg.Total}
		}
	case EventError:
		if msg.Message != nil {
			return ErrorEvent{Message: *msg.Message}
		}
	case EventComplete:
		return CompleteEvent{}
	case EventMetrics:
		if msg.ModelType != nil && msg.Data != nil {
			return MetricsEvent{ModelType: *msg.ModelType, Data: msg.Data}
		}
	case EventDataProfile:
		if msg.NodeID != nil && msg.Data != nil {
			return DataProfileEvent{NodeID: *msg.NodeID, Data: msg.Data}
		}
	case EventTrial:
		// Score stays a pointer: failed and pruned trials report null.
		if msg.TrialNumber != nil && msg.Params != nil {
			return TrialEvent{
				TrialNumber: *msg.TrialNumber,
				Params:      msg.Params,
				Score:       msg.Score,
				DurationMs:  msg.DurationMs,
			}
		}
	case EventTuningComplete:
		if msg.BestParams != nil && msg.BestScore != nil && msg.TotalTrials != nil {
			return TuningCompleteEvent{
				BestParams:  msg.BestParams,
				BestScore:   *msg.BestScore,
				TotalTrials: *msg.TotalTrials,
				DurationMs:  msg.DurationMs,
			}
		}
	case EventExplainProgress:
		if msg.Data != nil {
			return ExplainProgressEvent{Data: msg.Data}
		}
	case EventFeatureImportance:
		if msg.Data != nil {
			return FeatureImportanceEvent{Data: msg.Data}
		}
	case EventShapData:
		if msg.Data != nil {
			return ShapDataEvent{Data: msg.Data}
		}
	case EventPartialDependence:
		if msg.Data != nil {
			return PartialDependenceEvent{Data: msg.Data}
		}
	case EventExplainMetadata:
		if msg.Data != nil {
			return ExplainMetadataEvent{Data: msg.Data}
		}
	case EventExplainComplete:
		if msg.DurationMs != nil {
			return ExplainCompleteEvent{DurationMs: *msg.DurationMs}
		}
	case EventExit:
		// Scripts must not emit exit; treat it as noise.
	}

	return LogEvent{Message: line}
}
