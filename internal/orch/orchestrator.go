// Package orch sequences the stages of a pipeline run. It resolves the
// graph into a plan, generates and executes one script per stage, gates each
// stage on the previous one succeeding, and guarantees at most one active
// run with unconditional finalization of the run record.
package orch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"mlcraft/pkg/codegen"
	"mlcraft/pkg/eventlog"
	"mlcraft/pkg/exec"
	"mlcraft/pkg/logx"
	"mlcraft/pkg/metrics"
	"mlcraft/pkg/persistence"
	"mlcraft/pkg/pipeline"
	"mlcraft/pkg/proto"
)

// ErrRunActive is returned when a run is requested while another is in
// flight. At most one pipeline runs at a time.
var ErrRunActive = errors.New("a pipeline run is already active")

// ErrInvalidTransition reports a run state change the transition table does
// not allow.
var ErrInvalidTransition = errors.New("invalid run state transition")

// Executor runs one generated script and streams its decoded events.
// *exec.Supervisor satisfies it; tests substitute fakes.
type Executor interface {
	Execute(ctx context.Context, script, datasetPath string, handle func(proto.Event)) (exec.Result, error)
}

// Store is the subset of persistence the orchestrator needs. Store failures
// are logged and never fail a run.
type Store interface {
	CreateRun(pipelineName, hyperparamsJSON, experimentID string) (string, error)
	FinalizeRun(runID, status, errMsg string, duration time.Duration) error
	SaveRunMetrics(runID, modelType, metricsJSON string) error
	CreateTuningSession(runID, modelType, sampler, scoringMetric string) (string, error)
	SaveTuningTrial(trial persistence.TuningTrial) error
	CompleteTuningSession(sessionID, bestParamsJSON string, bestScore float64, totalTrials int, durationMs int64) error
}

// StageResult records one executed stage.
type StageResult struct {
	Stage    pipeline.StageKind
	ExitCode int
	Duration time.Duration
}

// Summary is the outcome of a whole run.
type Summary struct {
	RunID    string
	State    RunState
	Error    string
	Duration time.Duration
	Stages   []StageResult

	Metrics        []proto.MetricsEvent
	Trials         []proto.TrialEvent
	TuningOutcome  *proto.TuningCompleteEvent
	ExplainOutcome *proto.ExplainCompleteEvent
}

// Options configures an Orchestrator.
type Options struct {
	Executor    Executor
	Store       Store  // optional
	EventLogDir string // optional; per-run JSONL capture when set

	// Explain appends a model explanation stage to runs that train or tune a
	// model with a known target column.
	Explain bool

	// ExperimentID groups the runs of this orchestrator under an experiment.
	ExperimentID string
}

// Orchestrator runs pipelines one at a time.
type Orchestrator struct {
	executor     Executor
	store        Store
	eventLogDir  string
	explain      bool
	experimentID string
	logger       *logx.Logger

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
	runID  string
	state  RunState
}

// New creates an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Executor == nil {
		return nil, fmt.Errorf("an executor is required")
	}
	return &Orchestrator{
		executor:     opts.Executor,
		store:        opts.Store,
		eventLogDir:  opts.EventLogDir,
		explain:      opts.Explain,
		experimentID: opts.ExperimentID,
		logger:       logx.NewLogger("orch"),
	}, nil
}

// ActiveRun returns the current run id and state, or "" when idle.
func (o *Orchestrator) ActiveRun() (string, RunState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return "", ""
	}
	return o.runID, o.state
}

// Cancel requests cancellation of the active run. It is not an error to call
// with no run active.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// Run executes a pipeline graph to completion. Decoded events are forwarded
// to listener (which may be nil) in arrival order. Run returns ErrRunActive
// if another run is in flight, and a validation error before any process
// starts if the graph does not resolve.
func (o *Orchestrator) Run(ctx context.Context, graph *pipeline.Graph, listener func(proto.Event)) (*Summary, error) {
	plan, validationErrs := pipeline.Resolve(graph)
	if len(validationErrs) > 0 {
		return nil, fmt.Errorf("pipeline validation failed: %s", strings.Join(validationErrs, "; "))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	if o.active {
		o.mu.Unlock()
		return nil, ErrRunActive
	}
	o.active = true
	o.cancel = cancel
	o.state = StateValidating
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.active = false
		o.cancel = nil
		o.runID = ""
		o.mu.Unlock()
	}()

	summary := &Summary{State: StateValidating}
	started := time.Now()

	if o.store != nil {
		runID, err := o.store.CreateRun(plan.PipelineName, hyperparamsJSON(plan), o.experimentID)
		if err != nil {
			o.logger.Error("failed to create run record: %v", err)
		} else {
			summary.RunID = runID
		}
	}
	o.mu.Lock()
	o.runID = summary.RunID
	o.mu.Unlock()
	metrics.RunsStarted.Inc()

	var logWriter *eventlog.Writer
	if o.eventLogDir != "" && summary.RunID != "" {
		var err error
		if logWriter, err = eventlog.NewWriter(o.eventLogDir, summary.RunID); err != nil {
			o.logger.Warn("event log disabled: %v", err)
		} else {
			defer func() { _ = logWriter.Close() }()
		}
	}

	var mu sync.Mutex
	var lastError string
	handle := func(ev proto.Event) {
		mu.Lock()
		switch typed := ev.(type) {
		case proto.ErrorEvent:
			lastError = typed.Message
		case proto.MetricsEvent:
			summary.Metrics = append(summary.Metrics, typed)
		case proto.TrialEvent:
			summary.Trials = append(summary.Trials, typed)
			metrics.TuningTrials.Inc()
		case proto.TuningCompleteEvent:
			summary.TuningOutcome = &typed
		case proto.ExplainCompleteEvent:
			summary.ExplainOutcome = &typed
		}
		mu.Unlock()

		metrics.EventsDecoded.WithLabelValues(string(ev.Type())).Inc()
		if logWriter != nil {
			if err := logWriter.Append(ev); err != nil {
				o.logger.Warn("failed to log event: %v", err)
			}
		}
		if listener != nil {
			listener(ev)
		}
	}

	stages := plan.Stages()
	if o.explain && o.canExplain(plan) {
		stages = append(stages, pipeline.StageExplain)
	}

	for _, stage := range stages {
		next, err := stateFor(stage)
		if err != nil {
			summary.State = StateFailed
			summary.Error = err.Error()
			break
		}
		if err := o.transition(next); err != nil {
			summary.State = StateFailed
			summary.Error = err.Error()
			break
		}

		script, err := o.scriptFor(stage, plan)
		if err != nil {
			// Generation errors mean validation let something through.
			summary.State = StateFailed
			summary.Error = fmt.Sprintf("failed to generate %s stage: %v", stage, err)
			break
		}

		o.logger.Info("run %s: %s stage starting", summary.RunID, stage)
		lastError = ""
		result, execErr := o.executor.Execute(runCtx, script, plan.DatasetPath, handle)
		summary.Stages = append(summary.Stages, StageResult{
			Stage:    stage,
			ExitCode: result.ExitCode,
			Duration: result.Duration,
		})
		metrics.StageDuration.WithLabelValues(string(stage)).Observe(result.Duration.Seconds())

		if runCtx.Err() != nil {
			summary.State = StateCancelled
			break
		}
		if execErr != nil {
			summary.State = StateFailed
			summary.Error = execErr.Error()
			break
		}
		if result.ExitCode != 0 || result.HadError {
			summary.State = StateFailed
			if lastError != "" {
				summary.Error = lastError
			} else {
				summary.Error = fmt.Sprintf("%s stage exited with code %d", stage, result.ExitCode)
			}
			break
		}
	}

	if !summary.State.IsTerminal() {
		summary.State = StateCompleted
	}
	summary.Duration = time.Since(started)

	o.finalize(plan, summary)
	return summary, nil
}

// canExplain reports whether the run produces a model the explain stage can
// work with. Loaded models lack the encoder state explanations need.
func (o *Orchestrator) canExplain(plan *pipeline.Plan) bool {
	return plan.Trainer != nil &&
		plan.Trainer.Trainer.Mode != pipeline.ModeLoad &&
		plan.Trainer.Trainer.TargetColumn != ""
}

// transition enforces the run state machine.
func (o *Orchestrator) transition(next RunState) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !canTransition(o.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.state, next)
	}
	o.state = next
	return nil
}

// finalize records the outcome. It always runs, whatever the terminal state,
// and store failures only log.
func (o *Orchestrator) finalize(plan *pipeline.Plan, summary *Summary) {
	o.mu.Lock()
	o.state = summary.State
	o.mu.Unlock()

	metrics.RunsFinished.WithLabelValues(string(summary.State)).Inc()
	metrics.RunDuration.Observe(summary.Duration.Seconds())

	if o.store == nil || summary.RunID == "" {
		return
	}

	if summary.State == StateCompleted {
		for _, m := range summary.Metrics {
			if err := o.store.SaveRunMetrics(summary.RunID, m.ModelType, string(m.Data)); err != nil {
				o.logger.Error("failed to save run metrics: %v", err)
			}
		}
		o.recordTuning(plan, summary)
	}

	if err := o.store.FinalizeRun(summary.RunID, string(summary.State), summary.Error, summary.Duration); err != nil {
		o.logger.Error("failed to finalize run record: %v", err)
	}
}

func (o *Orchestrator) recordTuning(plan *pipeline.Plan, summary *Summary) {
	if summary.TuningOutcome == nil || plan.Trainer == nil || plan.Trainer.Trainer.TuningConfig == nil {
		return
	}
	tc := plan.Trainer.Trainer.TuningConfig
	sessionID, err := o.store.CreateTuningSession(
		summary.RunID, plan.Trainer.Trainer.ModelType, string(tc.Sampler), tc.ScoringMetric,
	)
	if err != nil {
		o.logger.Error("failed to record tuning session: %v", err)
		return
	}
	for i := range summary.Trials {
		trial := &summary.Trials[i]
		if err := o.store.SaveTuningTrial(persistence.TuningTrial{
			SessionID:   sessionID,
			TrialNumber: trial.TrialNumber,
			Params:      string(trial.Params),
			Score:       trial.Score,
			DurationMs:  trial.DurationMs,
		}); err != nil {
			o.logger.Error("failed to record trial %d: %v", trial.TrialNumber, err)
		}
	}
	outcome := summary.TuningOutcome
	var durationMs int64
	if outcome.DurationMs != nil {
		durationMs = *outcome.DurationMs
	}
	if err := o.store.CompleteTuningSession(
		sessionID, string(outcome.BestParams), outcome.BestScore, outcome.TotalTrials, durationMs,
	); err != nil {
		o.logger.Error("failed to complete tuning session: %v", err)
	}
}

// hyperparamsJSON records the trainer configuration on the run row; "" when
// the pipeline has no trainer.
func hyperparamsJSON(plan *pipeline.Plan) string {
	if plan.Trainer == nil {
		return ""
	}
	data, err := json.Marshal(plan.Trainer.Trainer)
	if err != nil {
		return ""
	}
	return string(data)
}

// scriptFor dispatches to the generator for a stage.
func (o *Orchestrator) scriptFor(stage pipeline.StageKind, plan *pipeline.Plan) (string, error) {
	switch stage {
	case pipeline.StageSplit:
		return codegen.Split(plan.Split.DataSplit, plan.DatasetPath)
	case pipeline.StageTrain:
		return codegen.Train(plan.Trainer.Trainer, plan.DatasetPath, plan.UsePrecomputedSplit)
	case pipeline.StageTune:
		return codegen.Tune(plan.Trainer.Trainer, plan.DatasetPath, plan.UsePrecomputedSplit)
	case pipeline.StageLoad:
		return codegen.LoadModel(plan.Trainer.Trainer, plan.DatasetPath)
	case pipeline.StageScript:
		return codegen.Script(plan.Script.Script, plan.DatasetPath)
	case pipeline.StageEvaluate:
		if plan.Trainer != nil && plan.Trainer.Trainer.Mode != pipeline.ModeLoad {
			cfg := plan.Trainer.Trainer
			return codegen.Evaluate(cfg.TargetColumn, cfg.TestSplit, plan.DatasetPath, plan.UsePrecomputedSplit)
		}
		return codegen.AutoEvaluate(plan.DatasetPath)
	case pipeline.StageExport:
		return codegen.Export(plan.Exporter.Exporter, plan.DatasetPath)
	case pipeline.StageExplain:
		return codegen.Explain(plan.Trainer.Trainer.TargetColumn, plan.DatasetPath)
	default:
		return "", fmt.Errorf("no generator for stage %q", stage)
	}
}
