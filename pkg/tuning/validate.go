package tuning

import (
	"fmt"
	"sort"
)

// Bounds enforced by ValidateConfig.
const (
	minTrials = 1
	maxTrials = 1000
	minFolds  = 2
	maxFolds  = 10

	// Grid searches above this are refused outright rather than warned about.
	maxGridCombinations = 10000

	// Grid sizes above this produce a cost warning for the UI.
	gridWarnThreshold = 20
)

// Unbounded is returned by GridCombinations when the grid cannot be
// enumerated (a float parameter without a step).
const Unbounded = -1

// Per-parameter domain rules. These encode what the underlying estimators
// accept and must stay aligned with the script generators; loosening them
// produces scripts that fail at fit time instead of at validation time.
type domainRule struct {
	min       float64
	exclusive bool
	text      string
}

//nolint:gochecknoglobals // static validation catalog
var domainRules = map[string]domainRule{
	"n_estimators":      {min: 1, text: "n_estimators must be at least 1"},
	"max_depth":         {min: 1, text: "max_depth must be at least 1"},
	"min_samples_split": {min: 2, text: "min_samples_split must be at least 2"},
	"min_samples_leaf":  {min: 1, text: "min_samples_leaf must be at least 1"},
	"n_neighbors":       {min: 1, text: "n_neighbors must be at least 1"},
	"max_iter":          {min: 1, text: "max_iter must be at least 1"},
	"C":                 {min: 0, exclusive: true, text: "C must be greater than 0"},
	"gamma":             {min: 0, exclusive: true, text: "gamma must be greater than 0"},
	"learning_rate":     {min: 0, exclusive: true, text: "learning_rate must be greater than 0"},
	"alpha":             {min: 0, text: "alpha must be non-negative"},
	"l1_ratio":          {min: 0, text: "l1_ratio must be non-negative"},
	"subsample":         {min: 0, exclusive: true, text: "subsample must be greater than 0"},
}

// ValidateParamSpec checks a single parameter spec for internal consistency
// and parameter-specific domain rules. Returns all problems found.
func ValidateParamSpec(name string, spec ParamSpec) []string {
	var errs []string

	switch spec.Type {
	case ParamCategorical:
		if len(spec.Values) == 0 {
			errs = append(errs, fmt.Sprintf("%s: categorical parameter needs at least one value", name))
		}
	case ParamInt, ParamFloat:
		if spec.Min >= spec.Max {
			errs = append(errs, fmt.Sprintf("%s: min (%v) must be less than max (%v)", name, spec.Min, spec.Max))
		}
		if spec.Type == ParamInt && spec.Step != nil {
			if *spec.Step <= 0 {
				errs = append(errs, fmt.Sprintf("%s: step must be positive", name))
			} else if *spec.Step > spec.Max-spec.Min {
				errs = append(errs, fmt.Sprintf("%s: step (%v) exceeds the range", name, *spec.Step))
			}
		}
		if spec.Type == ParamFloat && spec.Step != nil && *spec.Step <= 0 {
			errs = append(errs, fmt.Sprintf("%s: step must be positive", name))
		}
		if rule, ok := domainRules[name]; ok {
			if spec.Min < rule.min || (rule.exclusive && spec.Min <= rule.min) {
				errs = append(errs, fmt.Sprintf("%s: %s", name, rule.text))
			}
		}
	default:
		errs = append(errs, fmt.Sprintf("%s: unknown parameter type %q", name, spec.Type))
	}

	return errs
}

// ValidateSearchSpace validates every parameter in the space.
func ValidateSearchSpace(space SearchSpace) []string {
	var errs []string
	for _, name := range sortedNames(space) {
		errs = append(errs, ValidateParamSpec(name, space[name])...)
	}
	return errs
}

// GridCombinations returns the number of grid points in the space: the
// product of per-parameter grid sizes. Returns Unbounded if any float
// parameter lacks a step (the grid is undefined), and 0 for an empty space.
func GridCombinations(space SearchSpace) int {
	if len(space) == 0 {
		return 0
	}

	total := 1
	for _, spec := range space {
		if !spec.enumerable() {
			return Unbounded
		}
		total *= spec.gridSize()
	}
	return total
}

// GridWarning returns a human-readable cost warning for large grid searches,
// or "" when the grid is small enough (or empty) to run without comment.
func GridWarning(space SearchSpace, cvFolds int) string {
	combos := GridCombinations(space)
	if combos <= gridWarnThreshold || combos == Unbounded {
		return ""
	}
	return fmt.Sprintf("Grid search will run %d trials (%d model fits with %d-fold cross-validation)",
		combos, combos*cvFolds, cvFolds)
}

// ValidateConfig validates a whole tuning configuration against a model
// type. All errors are accumulated so a UI can display every problem at
// once.
func ValidateConfig(cfg Config, modelType string) []string {
	var errs []string

	if cfg.Sampler == SamplerGrid {
		for _, name := range sortedNames(cfg.SearchSpace) {
			if !cfg.SearchSpace[name].enumerable() {
				errs = append(errs, fmt.Sprintf("%s: float parameter needs an explicit step for grid search", name))
			}
		}
		if combos := GridCombinations(cfg.SearchSpace); combos != Unbounded && combos > maxGridCombinations {
			errs = append(errs, fmt.Sprintf("grid search has %d combinations (limit %d); use random or bayesian sampling",
				combos, maxGridCombinations))
		}
	} else {
		if cfg.NTrials < minTrials || cfg.NTrials > maxTrials {
			errs = append(errs, fmt.Sprintf("nTrials must be between %d and %d, got %d", minTrials, maxTrials, cfg.NTrials))
		}
	}

	if cfg.CVFolds < minFolds || cfg.CVFolds > maxFolds {
		errs = append(errs, fmt.Sprintf("cvFolds must be between %d and %d, got %d", minFolds, maxFolds, cfg.CVFolds))
	}

	problem := ProblemTypeFor(modelType)
	if problem == "" {
		errs = append(errs, fmt.Sprintf("unknown model type %q", modelType))
	} else if !MetricValidFor(cfg.ScoringMetric, problem) {
		errs = append(errs, fmt.Sprintf("scoring metric %q is not valid for %s models", cfg.ScoringMetric, problem))
	}

	errs = append(errs, ValidateSearchSpace(cfg.SearchSpace)...)

	return errs
}

// TuneCheck is the result of CanTune.
type TuneCheck struct {
	Valid  bool
	Reason string
}

// CanTune reports whether a trainer node configuration can be tuned at all.
// The checks are ordered by how early the problem would bite.
func CanTune(mode, modelType, targetColumn string) TuneCheck {
	if mode == "load" {
		return TuneCheck{Reason: "loaded models cannot be tuned: no training occurs"}
	}
	if modelType == "" {
		return TuneCheck{Reason: "select a model type before tuning"}
	}
	if targetColumn == "" {
		return TuneCheck{Reason: "select a target column before tuning"}
	}
	if !KnownModelType(modelType) {
		return TuneCheck{Reason: fmt.Sprintf("unknown model type %q", modelType)}
	}
	if !HasTunableParams(modelType) {
		return TuneCheck{Reason: fmt.Sprintf("%s has no tunable hyperparameters", modelType)}
	}
	return TuneCheck{Valid: true}
}

func sortedNames(space SearchSpace) []string {
	names := make([]string, 0, len(space))
	for name := range space {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
