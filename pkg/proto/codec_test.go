package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLinePlainText(t *testing.T) {
	tests := []string{
		"training model...",
		"",
		"epoch 3/10 loss=0.42",
		"not json { at all",
	}

	for _, line := range tests {
		event := DecodeLine(line)
		logEvent, ok := event.(LogEvent)
		require.True(t, ok, "line %q should decode as log", line)
		assert.Equal(t, line, logEvent.Message)
	}
}

func TestDecodeLineTypedEvents(t *testing.T) {
	tests := []struct {
		name string
		line string
		want EventType
	}{
		{"log", `{"type":"log","message":"loading dataset"}`, EventLog},
		{"progress", `{"type":"progress","current":3,"total":10}`, EventProgress},
		{"error", `{"type":"error","message":"file not found"}`, EventError},
		{"complete", `{"type":"complete"}`, EventComplete},
		{"metrics", `{"type":"metrics","modelType":"classification","data":{"accuracy":0.97}}`, EventMetrics},
		{"dataProfile", `{"type":"dataProfile","nodeId":"n1","data":{"rows":150}}`, EventDataProfile},
		{"trial", `{"type":"trial","trialNumber":4,"params":{"max_depth":3},"score":0.91}`, EventTrial},
		{"tuningComplete", `{"type":"tuningComplete","bestParams":{"C":1.0},"bestScore":0.95,"totalTrials":20}`, EventTuningComplete},
		{"explainProgress", `{"type":"explainProgress","data":{"stage":"shap","percentComplete":50}}`, EventExplainProgress},
		{"featureImportance", `{"type":"featureImportance","data":{"features":[]}}`, EventFeatureImportance},
		{"shapData", `{"type":"shapData","data":{"values":[]}}`, EventShapData},
		{"partialDependence", `{"type":"partialDependence","data":{"curves":[]}}`, EventPartialDependence},
		{"explainMetadata", `{"type":"explainMetadata","data":{"explainerType":"tree"}}`, EventExplainMetadata},
		{"explainComplete", `{"type":"explainComplete","durationMs":1200}`, EventExplainComplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := DecodeLine(tt.line)
			assert.Equal(t, tt.want, event.Type())
		})
	}
}

func TestDecodeLineFieldValues(t *testing.T) {
	event := DecodeLine(`{"type":"progress","current":7,"total":10}`)
	progress, ok := event.(ProgressEvent)
	require.True(t, ok)
	assert.Equal(t, 7, progress.Current)
	assert.Equal(t, 10, progress.Total)

	event = DecodeLine(`{"type":"trial","trialNumber":2,"params":{"n_estimators":100},"score":0.88,"durationMs":340}`)
	trial, ok := event.(TrialEvent)
	require.True(t, ok)
	assert.Equal(t, 2, trial.TrialNumber)
	require.NotNil(t, trial.Score)
	assert.InDelta(t, 0.88, *trial.Score, 1e-9)
	require.NotNil(t, trial.DurationMs)
	assert.Equal(t, int64(340), *trial.DurationMs)

	// Failed and pruned trials report a null score but are still trials.
	event = DecodeLine(`{"type":"trial","trialNumber":3,"params":{"n_estimators":120},"score":null,"durationMs":12}`)
	trial, ok = event.(TrialEvent)
	require.True(t, ok)
	assert.Equal(t, 3, trial.TrialNumber)
	assert.Nil(t, trial.Score)

	event = DecodeLine(`{"type":"metrics","modelType":"regression","data":{"r2":0.8}}`)
	metrics, ok := event.(MetricsEvent)
	require.True(t, ok)
	assert.Equal(t, "regression", metrics.ModelType)
	assert.JSONEq(t, `{"r2":0.8}`, string(metrics.Data))
}

func TestDecodeLineDegradesToLog(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"unknown type", `{"type":"somethingNew","data":{}}`},
		{"missing required fields", `{"type":"progress","current":3}`},
		{"metrics without data", `{"type":"metrics","modelType":"classification"}`},
		{"trial without params", `{"type":"trial","trialNumber":1,"score":0.5}`},
		{"exit from child", `{"type":"exit","code":0}`},
		{"truncated json", `{"type":"metrics","modelType":"cla`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := DecodeLine(tt.line)
			logEvent, ok := event.(LogEvent)
			require.True(t, ok, "expected log fallback, got %T", event)
			assert.Equal(t, tt.line, logEvent.Message)
		})
	}
}
