package tuning

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(v float64) *float64 { return &v }

func TestValidateParamSpecCategorical(t *testing.T) {
	spec := ParamSpec{Type: ParamCategorical, Values: []any{"gini", "entropy"}}
	assert.Empty(t, ValidateParamSpec("criterion", spec))

	empty := ParamSpec{Type: ParamCategorical}
	errs := ValidateParamSpec("criterion", empty)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "at least one value")
}

func TestValidateParamSpecNumericRange(t *testing.T) {
	tests := []struct {
		name    string
		spec    ParamSpec
		wantErr bool
	}{
		{"valid int range", ParamSpec{Type: ParamInt, Min: 1, Max: 10}, false},
		{"min equals max", ParamSpec{Type: ParamInt, Min: 5, Max: 5}, true},
		{"min above max", ParamSpec{Type: ParamFloat, Min: 2, Max: 1}, true},
		{"valid stepped int", ParamSpec{Type: ParamInt, Min: 10, Max: 100, Step: step(10)}, false},
		{"zero step", ParamSpec{Type: ParamInt, Min: 1, Max: 10, Step: step(0)}, true},
		{"negative step", ParamSpec{Type: ParamInt, Min: 1, Max: 10, Step: step(-1)}, true},
		{"step beyond range", ParamSpec{Type: ParamInt, Min: 1, Max: 5, Step: step(10)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateParamSpec("max_features", tt.spec)
			if tt.wantErr {
				assert.NotEmpty(t, errs)
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestValidateParamSpecDomainRules(t *testing.T) {
	tests := []struct {
		param   string
		spec    ParamSpec
		wantErr string
	}{
		{"n_estimators", ParamSpec{Type: ParamInt, Min: 0, Max: 100}, "at least 1"},
		{"n_estimators", ParamSpec{Type: ParamInt, Min: 10, Max: 100}, ""},
		{"C", ParamSpec{Type: ParamFloat, Min: 0, Max: 10, Distribution: DistLog}, "greater than 0"},
		{"C", ParamSpec{Type: ParamFloat, Min: 0.001, Max: 10, Distribution: DistLog}, ""},
		{"alpha", ParamSpec{Type: ParamFloat, Min: -1, Max: 1}, "non-negative"},
		{"alpha", ParamSpec{Type: ParamFloat, Min: 0, Max: 1}, ""},
		{"min_samples_split", ParamSpec{Type: ParamInt, Min: 1, Max: 10}, "at least 2"},
	}

	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			errs := ValidateParamSpec(tt.param, tt.spec)
			if tt.wantErr == "" {
				assert.Empty(t, errs)
			} else {
				require.NotEmpty(t, errs)
				assert.Contains(t, strings.Join(errs, "; "), tt.wantErr)
			}
		})
	}
}

func TestGridCombinationsMultiplicative(t *testing.T) {
	space := SearchSpace{
		"criterion":    {Type: ParamCategorical, Values: []any{"gini", "entropy"}},
		"n_estimators": {Type: ParamInt, Min: 10, Max: 50, Step: step(10)}, // 10,20,30,40,50 -> 5 points
	}
	assert.Equal(t, 10, GridCombinations(space))
}

func TestGridCombinationsIntDefaultStep(t *testing.T) {
	space := SearchSpace{
		"max_depth": {Type: ParamInt, Min: 1, Max: 4}, // step defaults to 1 -> 4 points
	}
	assert.Equal(t, 4, GridCombinations(space))
}

func TestGridCombinationsUnbounded(t *testing.T) {
	space := SearchSpace{
		"criterion":     {Type: ParamCategorical, Values: []any{"gini"}},
		"learning_rate": {Type: ParamFloat, Min: 0.01, Max: 0.3, Distribution: DistLog},
	}
	assert.Equal(t, Unbounded, GridCombinations(space))

	// Adding a step makes the same space enumerable.
	space["learning_rate"] = ParamSpec{Type: ParamFloat, Min: 0.1, Max: 0.3, Step: step(0.1)}
	assert.Equal(t, 3, GridCombinations(space))
}

func TestGridCombinationsEmptySpace(t *testing.T) {
	assert.Equal(t, 0, GridCombinations(SearchSpace{}))
}

func TestGridCombinationsMatchEnumeration(t *testing.T) {
	// The count must always agree with the grid the sampler actually runs,
	// including float ranges where (max-min)/step rounds just under a whole
	// number.
	specs := []ParamSpec{
		{Type: ParamFloat, Min: 0, Max: 0.6, Step: step(0.2)},    // 0, 0.2, 0.4, 0.6
		{Type: ParamFloat, Min: 0.01, Max: 0.1, Step: step(0.03)},
		{Type: ParamFloat, Min: 0.5, Max: 1.0, Step: step(0.1)},
		{Type: ParamFloat, Min: 0.1, Max: 0.3, Step: step(0.07)}, // step does not divide the range
		{Type: ParamInt, Min: 10, Max: 50, Step: step(10)},
		{Type: ParamInt, Min: 1, Max: 4},
	}
	for _, spec := range specs {
		values := spec.GridValues()
		assert.Equal(t, len(values), GridCombinations(SearchSpace{"p": spec}), "%+v", spec)
	}

	exact := ParamSpec{Type: ParamFloat, Min: 0, Max: 0.6, Step: step(0.2)}
	assert.Equal(t, 4, GridCombinations(SearchSpace{"p": exact}))
}

func TestGridWarning(t *testing.T) {
	small := SearchSpace{
		"n_estimators": {Type: ParamInt, Min: 10, Max: 50, Step: step(10)},
	}
	assert.Empty(t, GridWarning(small, 5))

	large := SearchSpace{
		"n_estimators": {Type: ParamInt, Min: 1, Max: 25}, // 25 points > 20
	}
	warning := GridWarning(large, 5)
	require.NotEmpty(t, warning)
	assert.Contains(t, warning, "25 trials")
	assert.Contains(t, warning, "125 model fits")
}

func TestValidateConfigMetricMismatch(t *testing.T) {
	cfg := Config{
		Sampler:       SamplerRandom,
		NTrials:       20,
		CVFolds:       5,
		ScoringMetric: "r2",
		SearchSpace: SearchSpace{
			"n_estimators": {Type: ParamInt, Min: 10, Max: 100},
		},
	}

	errs := ValidateConfig(cfg, ModelRandomForest)
	require.NotEmpty(t, errs)
	assert.Contains(t, strings.Join(errs, "; "), `"r2" is not valid for classification`)
}

func TestValidateConfigGridEnumerability(t *testing.T) {
	cfg := Config{
		Sampler:       SamplerGrid,
		CVFolds:       5,
		ScoringMetric: "accuracy",
		SearchSpace: SearchSpace{
			"C": {Type: ParamFloat, Min: 0.01, Max: 10, Distribution: DistLog},
		},
	}

	errs := ValidateConfig(cfg, ModelSVM)
	require.NotEmpty(t, errs)
	assert.Contains(t, strings.Join(errs, "; "), "explicit step for grid search")

	// The same space is fine under random sampling.
	cfg.Sampler = SamplerRandom
	cfg.NTrials = 50
	assert.Empty(t, ValidateConfig(cfg, ModelSVM))
}

func TestValidateConfigBounds(t *testing.T) {
	base := Config{
		Sampler:       SamplerRandom,
		NTrials:       20,
		CVFolds:       5,
		ScoringMetric: "accuracy",
		SearchSpace: SearchSpace{
			"n_estimators": {Type: ParamInt, Min: 10, Max: 100},
		},
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero trials", func(c *Config) { c.NTrials = 0 }, "nTrials"},
		{"too many trials", func(c *Config) { c.NTrials = 1001 }, "nTrials"},
		{"one fold", func(c *Config) { c.CVFolds = 1 }, "cvFolds"},
		{"too many folds", func(c *Config) { c.CVFolds = 11 }, "cvFolds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			errs := ValidateConfig(cfg, ModelRandomForest)
			require.NotEmpty(t, errs)
			assert.Contains(t, strings.Join(errs, "; "), tt.want)
		})
	}
}

func TestValidateConfigAccumulatesErrors(t *testing.T) {
	cfg := Config{
		Sampler:       SamplerRandom,
		NTrials:       0,
		CVFolds:       1,
		ScoringMetric: "r2",
		SearchSpace: SearchSpace{
			"n_estimators": {Type: ParamInt, Min: 100, Max: 10},
		},
	}

	errs := ValidateConfig(cfg, ModelRandomForest)
	// Trial bounds, fold bounds, metric mismatch, and range error all at once.
	assert.GreaterOrEqual(t, len(errs), 4)
}

func TestCanTune(t *testing.T) {
	tests := []struct {
		name         string
		mode         string
		modelType    string
		targetColumn string
		valid        bool
	}{
		{"tunable config", "tune", ModelRandomForest, "species", true},
		{"load mode never tunable", "load", ModelRandomForest, "species", false},
		{"load mode with empty fields", "load", "", "", false},
		{"missing model type", "train", "", "species", false},
		{"missing target column", "train", ModelRandomForest, "", false},
		{"linear regression has nothing to tune", "train", ModelLinearRegression, "price", false},
		{"naive bayes has nothing to tune", "train", ModelNaiveBayes, "species", false},
		{"unknown model", "train", "quantum_forest", "species", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := CanTune(tt.mode, tt.modelType, tt.targetColumn)
			assert.Equal(t, tt.valid, check.Valid)
			if !tt.valid {
				assert.NotEmpty(t, check.Reason)
			}
		})
	}
}

func TestMaximizeMetric(t *testing.T) {
	maximize := []string{"accuracy", "f1", "precision", "recall", "roc_auc", "r2",
		"neg_mean_squared_error", "neg_mean_absolute_error"}
	for _, m := range maximize {
		assert.True(t, MaximizeMetric(m), m)
	}

	assert.False(t, MaximizeMetric("mean_squared_error"))
	assert.False(t, MaximizeMetric("log_loss"))
}
