package orch

import (
	"fmt"

	"mlcraft/pkg/pipeline"
)

// RunState is the lifecycle state of a pipeline run.
type RunState string

const (
	StateValidating RunState = "validating"
	StateSplitting  RunState = "splitting"
	StateTraining   RunState = "training"
	StateTuning     RunState = "tuning"
	StateLoading    RunState = "loading"
	StateScripting  RunState = "scripting"
	StateEvaluating RunState = "evaluating"
	StateExporting  RunState = "exporting"
	StateExplaining RunState = "explaining"
	StateCompleted  RunState = "completed"
	StateFailed     RunState = "failed"
	StateCancelled  RunState = "cancelled"
)

// executionStates are the states driven by a stage of the plan, in the only
// order stages may run.
//
//nolint:gochecknoglobals // static transition catalog
var validTransitions = map[RunState][]RunState{
	StateValidating: {StateSplitting, StateTraining, StateTuning, StateLoading, StateScripting, StateFailed},
	StateSplitting:  {StateTraining, StateTuning, StateLoading, StateScripting, StateFailed, StateCancelled},
	StateTraining:   {StateEvaluating, StateExporting, StateExplaining, StateCompleted, StateFailed, StateCancelled},
	StateTuning:     {StateEvaluating, StateExporting, StateExplaining, StateCompleted, StateFailed, StateCancelled},
	StateLoading:    {StateEvaluating, StateExporting, StateExplaining, StateCompleted, StateFailed, StateCancelled},
	StateScripting:  {StateEvaluating, StateExporting, StateExplaining, StateCompleted, StateFailed, StateCancelled},
	StateEvaluating: {StateExporting, StateExplaining, StateCompleted, StateFailed, StateCancelled},
	StateExporting:  {StateExplaining, StateCompleted, StateFailed, StateCancelled},
	StateExplaining: {StateCompleted, StateFailed, StateCancelled},
}

// IsTerminal reports whether a state ends the run.
func (s RunState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// canTransition reports whether from → to is a legal state change.
func canTransition(from, to RunState) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// stateFor maps a plan stage onto its run state.
func stateFor(stage pipeline.StageKind) (RunState, error) {
	switch stage {
	case pipeline.StageSplit:
		return StateSplitting, nil
	case pipeline.StageTrain:
		return StateTraining, nil
	case pipeline.StageTune:
		return StateTuning, nil
	case pipeline.StageLoad:
		return StateLoading, nil
	case pipeline.StageScript:
		return StateScripting, nil
	case pipeline.StageEvaluate:
		return StateEvaluating, nil
	case pipeline.StageExport:
		return StateExporting, nil
	case pipeline.StageExplain:
		return StateExplaining, nil
	default:
		return "", fmt.Errorf("unknown stage %q", stage)
	}
}
