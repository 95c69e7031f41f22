// Package tuning models hyperparameter search spaces and validates tuning
// configurations before any script is generated. All validation accumulates
// errors instead of short-circuiting so a caller can surface every problem
// at once.
package tuning

import "math"

// ParamType discriminates the kinds of tunable parameters.
type ParamType string

const (
	ParamInt         ParamType = "int"
	ParamFloat       ParamType = "float"
	ParamCategorical ParamType = "categorical"
)

// Distribution selects how float parameters are sampled.
type Distribution string

const (
	DistUniform Distribution = "uniform"
	DistLog     Distribution = "log"
)

// ParamSpec describes one tunable hyperparameter. Exactly the fields for its
// Type are meaningful: Min/Max/Step for int, Min/Max/Distribution for float,
// Values for categorical.
type ParamSpec struct {
	Type         ParamType    `json:"type" yaml:"type"`
	Min          float64      `json:"min,omitempty" yaml:"min,omitempty"`
	Max          float64      `json:"max,omitempty" yaml:"max,omitempty"`
	Step         *float64     `json:"step,omitempty" yaml:"step,omitempty"`
	Distribution Distribution `json:"distribution,omitempty" yaml:"distribution,omitempty"`
	Values       []any        `json:"values,omitempty" yaml:"values,omitempty"`
}

// SearchSpace maps parameter names to their specs.
type SearchSpace map[string]ParamSpec

// Sampler selects the hyperparameter search strategy.
type Sampler string

const (
	SamplerGrid     Sampler = "grid"
	SamplerRandom   Sampler = "random"
	SamplerBayesian Sampler = "bayesian"
)

// Config describes one tuning session. NTrials is ignored for grid sampling,
// which always runs the full enumeration.
type Config struct {
	Sampler       Sampler     `json:"sampler" yaml:"sampler"`
	NTrials       int         `json:"nTrials" yaml:"nTrials"`
	CVFolds       int         `json:"cvFolds" yaml:"cvFolds"`
	ScoringMetric string      `json:"scoringMetric" yaml:"scoringMetric"`
	SearchSpace   SearchSpace `json:"searchSpace" yaml:"searchSpace"`
}

// enumerable reports whether a single parameter has a finite grid: any
// categorical set, or a numeric range with an explicit step. Int parameters
// without a step still enumerate with step 1.
func (p ParamSpec) enumerable() bool {
	switch p.Type {
	case ParamCategorical:
		return true
	case ParamInt:
		return true
	case ParamFloat:
		return p.Step != nil
	default:
		return false
	}
}

// gridSize returns the number of grid points for one parameter. Only valid
// when enumerable() is true. The count is floor((max-min)/step)+1 with a
// small tolerance so exact-fit float ranges like 0..0.6 step 0.2 do not lose
// their last point to binary rounding; GridValues enumerates exactly this
// many points.
func (p ParamSpec) gridSize() int {
	switch p.Type {
	case ParamCategorical:
		return len(p.Values)
	case ParamInt:
		step := 1.0
		if p.Step != nil && *p.Step > 0 {
			step = *p.Step
		}
		return int(math.Floor((p.Max-p.Min)/step+1e-9)) + 1
	case ParamFloat:
		if p.Step == nil || *p.Step <= 0 {
			return 0
		}
		return int(math.Floor((p.Max-p.Min)/(*p.Step)+1e-9)) + 1
	default:
		return 0
	}
}

// GridValues enumerates the concrete grid points for one parameter, in the
// same order the generated grid sampler will visit them. Float values are
// computed as min + i*step, matching the script side.
func (p ParamSpec) GridValues() []any {
	switch p.Type {
	case ParamCategorical:
		return append([]any{}, p.Values...)
	case ParamInt:
		step := 1.0
		if p.Step != nil && *p.Step > 0 {
			step = *p.Step
		}
		n := p.gridSize()
		values := make([]any, 0, n)
		for i := 0; i < n; i++ {
			values = append(values, int(p.Min+float64(i)*step))
		}
		return values
	case ParamFloat:
		if p.Step == nil || *p.Step <= 0 {
			return nil
		}
		n := p.gridSize()
		values := make([]any, 0, n)
		for i := 0; i < n; i++ {
			values = append(values, p.Min+float64(i)**p.Step)
		}
		return values
	default:
		return nil
	}
}
