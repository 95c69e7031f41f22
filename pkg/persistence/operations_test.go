package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := newTestStore(t)

	runID, err := store.CreateRun("iris-demo", "", "")
	require.NoError(t, err)

	run, err := store.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Equal(t, "iris-demo", run.PipelineName)
	assert.Nil(t, run.DurationMs)

	require.NoError(t, store.FinalizeRun(runID, RunStatusCompleted, "", 1500*time.Millisecond))

	run, err = store.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, run.Status)
	require.NotNil(t, run.DurationMs)
	assert.Equal(t, int64(1500), *run.DurationMs)
}

func TestFinalizeRunOnlyOnce(t *testing.T) {
	store := newTestStore(t)

	runID, err := store.CreateRun("p", "", "")
	require.NoError(t, err)
	require.NoError(t, store.FinalizeRun(runID, RunStatusFailed, "target column missing", time.Second))

	// A finalized run cannot change status again.
	err = store.FinalizeRun(runID, RunStatusCompleted, "", time.Second)
	assert.Error(t, err)

	run, err := store.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "target column missing", run.Error)
}

func TestFinalizeRunRejectsBadStatus(t *testing.T) {
	store := newTestStore(t)
	runID, err := store.CreateRun("p", "", "")
	require.NoError(t, err)

	assert.Error(t, store.FinalizeRun(runID, "exploded", "", 0))
	assert.Error(t, store.FinalizeRun(runID, RunStatusRunning, "", 0))
}

func TestRunMetrics(t *testing.T) {
	store := newTestStore(t)
	runID, err := store.CreateRun("p", "", "")
	require.NoError(t, err)

	require.NoError(t, store.SaveRunMetrics(runID, "random_forest", `{"accuracy": 0.95}`))
	require.NoError(t, store.SaveRunMetrics(runID, "random_forest", `{"trainScore": 0.99}`))

	metrics, err := store.GetRunMetrics(runID)
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	assert.Equal(t, "random_forest", metrics[0].ModelType)
	assert.JSONEq(t, `{"accuracy": 0.95}`, metrics[0].Metrics)
}

func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)

	first, err := store.CreateRun("a", "", "")
	require.NoError(t, err)
	require.NoError(t, store.FinalizeRun(first, RunStatusCompleted, "", time.Second))

	// Distinct timestamps matter for ordering.
	time.Sleep(1100 * time.Millisecond)
	second, err := store.CreateRun("b", "", "")
	require.NoError(t, err)

	runs, err := store.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, first, runs[1].ID)
}

func TestSavePipelineUpserts(t *testing.T) {
	store := newTestStore(t)

	id1, err := store.SavePipeline("demo", `{"nodes": []}`)
	require.NoError(t, err)
	id2, err := store.SavePipeline("demo", `{"nodes": [{"id": "load"}]}`)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	p, err := store.GetPipeline("demo")
	require.NoError(t, err)
	assert.Contains(t, p.Definition, "load")
}

func TestRunTagsAndNotes(t *testing.T) {
	store := newTestStore(t)
	runID, err := store.CreateRun("p", "", "")
	require.NoError(t, err)

	require.NoError(t, store.TagRun(runID, "baseline"))
	require.NoError(t, store.TagRun(runID, "baseline")) // idempotent
	require.NoError(t, store.TagRun(runID, "iris"))
	require.NoError(t, store.AddRunNote(runID, "first run with stratified split"))

	tags, err := store.RunTags(runID)
	require.NoError(t, err)
	assert.Equal(t, []string{"baseline", "iris"}, tags)
}

func TestRegisterModelVersionIncrements(t *testing.T) {
	store := newTestStore(t)
	runID, err := store.CreateRun("p", "", "")
	require.NoError(t, err)

	v1, err := store.RegisterModelVersion("churn-model", runID, "/runs/1/model.joblib", "random_forest")
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)

	v2, err := store.RegisterModelVersion("churn-model", runID, "/runs/2/model.joblib", "random_forest")
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, v1.ModelID, v2.ModelID)

	other, err := store.RegisterModelVersion("other-model", "", "/runs/3/model.joblib", "ridge")
	require.NoError(t, err)
	assert.Equal(t, 1, other.Version)
}

func TestTuningSessionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	runID, err := store.CreateRun("p", "", "")
	require.NoError(t, err)

	sessionID, err := store.CreateTuningSession(runID, "random_forest", "random", "accuracy")
	require.NoError(t, err)

	score := 0.91
	duration := int64(340)
	require.NoError(t, store.SaveTuningTrial(TuningTrial{
		SessionID: sessionID, TrialNumber: 0, Params: `{"n_estimators": 50}`,
		Score: &score, DurationMs: &duration,
	}))
	require.NoError(t, store.CompleteTuningSession(sessionID, `{"n_estimators": 50}`, 0.91, 1, 340))

	trials, err := store.TuningTrials(sessionID)
	require.NoError(t, err)
	require.Len(t, trials, 1)
	assert.Equal(t, 0, trials[0].TrialNumber)
	require.NotNil(t, trials[0].Score)
	assert.InDelta(t, 0.91, *trials[0].Score, 1e-9)
}

func TestSettings(t *testing.T) {
	store := newTestStore(t)

	value, err := store.GetSetting("pythonPath")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, store.SetSetting("pythonPath", "/usr/bin/python3"))
	require.NoError(t, store.SetSetting("pythonPath", "/opt/python/bin/python3"))

	value, err = store.GetSetting("pythonPath")
	require.NoError(t, err)
	assert.Equal(t, "/opt/python/bin/python3", value)
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun("no-such-run")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetPipeline("no-such-pipeline")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunDisplayName(t *testing.T) {
	store := newTestStore(t)
	runID, err := store.CreateRun("iris", "", "")
	require.NoError(t, err)

	require.NoError(t, store.SetRunDisplayName(runID, "baseline forest"))
	run, err := store.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, "baseline forest", run.DisplayName)

	assert.ErrorIs(t, store.SetRunDisplayName("missing", "x"), ErrNotFound)
}

func TestExperimentUpdateAndList(t *testing.T) {
	store := newTestStore(t)
	id, err := store.CreateExperiment("baselines", "first sweep")
	require.NoError(t, err)

	require.NoError(t, store.UpdateExperiment(id, "baselines v2", ""))
	experiments, err := store.ListExperiments()
	require.NoError(t, err)
	require.Len(t, experiments, 1)
	assert.Equal(t, "baselines v2", experiments[0].Name)
	assert.Empty(t, experiments[0].Description)

	assert.ErrorIs(t, store.UpdateExperiment("missing", "x", ""), ErrNotFound)
}

func TestModelVersionPromotionAndTags(t *testing.T) {
	store := newTestStore(t)
	runID, err := store.CreateRun("iris", "", "")
	require.NoError(t, err)

	v1, err := store.RegisterModelVersion("classifier", runID, "/tmp/model_v1.joblib", "random_forest")
	require.NoError(t, err)
	assert.Equal(t, StageNone, v1.Stage)
	_, err = store.RegisterModelVersion("classifier", runID, "/tmp/model_v2.joblib", "random_forest")
	require.NoError(t, err)

	require.NoError(t, store.PromoteModelVersion(v1.ID, StageProduction))
	assert.Error(t, store.PromoteModelVersion(v1.ID, "shipped"))

	require.NoError(t, store.TagModelVersion(v1.ID, "candidate"))
	require.NoError(t, store.TagModelVersion(v1.ID, "candidate"))
	tags, err := store.ModelVersionTags(v1.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"candidate"}, tags)

	versions, err := store.ListModelVersions("classifier")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, StageProduction, versions[0].Stage)
	assert.Equal(t, StageNone, versions[1].Stage)
}

func TestCreateRunWithExperiment(t *testing.T) {
	store := newTestStore(t)
	expID, err := store.EnsureExperiment("baselines")
	require.NoError(t, err)

	// Ensure is idempotent for the same name.
	again, err := store.EnsureExperiment("baselines")
	require.NoError(t, err)
	assert.Equal(t, expID, again)

	runID, err := store.CreateRun("iris", `{"modelType":"random_forest"}`, expID)
	require.NoError(t, err)

	run, err := store.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, expID, run.ExperimentID)
	assert.Contains(t, run.Hyperparameters, "random_forest")
}
