// Package codegen renders pipeline node configurations into runnable Python
// scripts. Each generator is a pure function from node configuration and
// upstream artifact paths to program text; scripts communicate with the host
// only through the line protocol and with each other only through well-known
// artifact files in the run working directory.
package codegen

import (
	"fmt"
	"strings"

	"mlcraft/pkg/pipeline"
	"mlcraft/pkg/tuning"
)

// Artifact file names, relative to the run working directory. Every stage
// that produces or consumes one of these must agree on the name.
const (
	SplitIndicesFile = "split_indices.json"
	ModelFile        = "model.joblib"
	ModelInfoFile    = "model_info.json"
)

// baseData carries the fields every stage template interpolates.
type baseData struct {
	DatasetPath      string
	SplitIndicesFile string
	ModelFile        string
	ModelInfoFile    string
}

func newBase(datasetPath string) baseData {
	return baseData{
		DatasetPath:      datasetPath,
		SplitIndicesFile: SplitIndicesFile,
		ModelFile:        ModelFile,
		ModelInfoFile:    ModelInfoFile,
	}
}

// Split generates the data split stage: computes train/test row indices and
// writes them to the split-indices artifact.
func Split(cfg *pipeline.DataSplitConfig, datasetPath string) (string, error) {
	ratio := cfg.SplitRatio
	if ratio <= 0 || ratio >= 1 {
		return "", fmt.Errorf("split ratio must be in (0, 1), got %v", ratio)
	}
	return render("split.py.tpl", struct {
		baseData
		SplitRatio   float64
		RandomState  int
		Stratify     bool
		TargetColumn string
	}{newBase(datasetPath), ratio, cfg.RandomState, cfg.Stratify, cfg.TargetColumn})
}

// Train generates the training stage. With precomputed true the script loads
// train/test indices from the split artifact; otherwise it performs its own
// split using the trainer's test fraction.
func Train(cfg *pipeline.TrainerConfig, datasetPath string, precomputed bool) (string, error) {
	est, err := estimatorFor(cfg.ModelType)
	if err != nil {
		return "", err
	}
	return render("train.py.tpl", struct {
		baseData
		ModelType      string
		TargetColumn   string
		TestSplit      float64
		Precomputed    bool
		ModelImport    string
		ModelConstruct string
	}{newBase(datasetPath), cfg.ModelType, cfg.TargetColumn, cfg.TestSplit,
		precomputed, est.importLine(), est.construct()})
}

// LoadModel generates the load stage: verifies a pre-trained model artifact
// and copies it into the run working directory without fitting anything.
func LoadModel(cfg *pipeline.TrainerConfig, datasetPath string) (string, error) {
	if cfg.ModelFilePath == "" {
		return "", fmt.Errorf("load mode requires a model file path")
	}
	return render("load_model.py.tpl", struct {
		baseData
		ModelFilePath string
	}{newBase(datasetPath), cfg.ModelFilePath})
}

// Evaluate generates the evaluation stage for a trainer-produced model.
func Evaluate(targetColumn string, testSplit float64, datasetPath string, precomputed bool) (string, error) {
	return render("evaluate.py.tpl", struct {
		baseData
		AutoDetect   bool
		TargetColumn string
		TestSplit    float64
		Precomputed  bool
	}{newBase(datasetPath), false, targetColumn, testSplit, precomputed})
}

// AutoEvaluate generates the evaluation stage for loaded or script-sourced
// models: the target column comes from the model-info artifact when present,
// falling back to the last dataset column.
func AutoEvaluate(datasetPath string) (string, error) {
	return render("evaluate.py.tpl", struct {
		baseData
		AutoDetect   bool
		TargetColumn string
		TestSplit    float64
		Precomputed  bool
	}{newBase(datasetPath), true, "", 0.2, false})
}

// Export generates the model export stage.
func Export(cfg *pipeline.ExporterConfig, datasetPath string) (string, error) {
	name := cfg.OutputFileName
	if name == "" {
		name = "model"
	}
	var outputFile string
	switch cfg.Format {
	case pipeline.FormatJoblib:
		outputFile = name + ".joblib"
	case pipeline.FormatPickle:
		outputFile = name + ".pkl"
	case pipeline.FormatONNX:
		outputFile = name + ".onnx"
	default:
		return "", fmt.Errorf("unknown export format %q", cfg.Format)
	}
	return render("export.py.tpl", struct {
		baseData
		Format     pipeline.ExportFormat
		OutputFile string
	}{newBase(datasetPath), cfg.Format, outputFile})
}

// suggestEntry is one rendered parameter-suggestion expression.
type suggestEntry struct {
	Name string
	Expr string
}

// Tune generates the hyperparameter search stage.
func Tune(cfg *pipeline.TrainerConfig, datasetPath string, precomputed bool) (string, error) {
	if cfg.TuningConfig == nil {
		return "", fmt.Errorf("tune mode requires a tuning configuration")
	}
	tc := cfg.TuningConfig
	est, err := estimatorFor(cfg.ModelType)
	if err != nil {
		return "", err
	}

	var suggests []suggestEntry
	for _, name := range sortedParamNames(tc.SearchSpace) {
		expr, exprErr := suggestExpr(name, tc.SearchSpace[name])
		if exprErr != nil {
			return "", exprErr
		}
		suggests = append(suggests, suggestEntry{Name: name, Expr: expr})
	}

	samplerExpr, optimizeArgs, err := samplerFor(tc)
	if err != nil {
		return "", err
	}

	direction := "minimize"
	if tuning.MaximizeMetric(tc.ScoringMetric) {
		direction = "maximize"
	}

	return render("tune.py.tpl", struct {
		baseData
		ModelType      string
		TargetColumn   string
		Precomputed    bool
		ModelImport    string
		ConstructTrial string
		ConstructBest  string
		Suggests       []suggestEntry
		TupleParams    []string
		SamplerExpr    string
		OptimizeArgs   string
		Direction      string
		Metric         string
		CVFolds        int
	}{newBase(datasetPath), cfg.ModelType, cfg.TargetColumn, precomputed,
		est.importLine(), est.constructWith("params"), est.constructWith("best_params"),
		suggests, tupleParams(tc.SearchSpace), samplerExpr, optimizeArgs,
		direction, tc.ScoringMetric, tc.CVFolds})
}

// Explain generates the model explanation stage: permutation importance,
// SHAP attributions, and partial dependence for the top features.
func Explain(targetColumn, datasetPath string) (string, error) {
	return render("explain.py.tpl", struct {
		baseData
		TargetColumn string
		TopFeatures  int
	}{newBase(datasetPath), targetColumn, 5})
}

// Script generates a custom script stage: the protocol preamble followed by
// the user's code verbatim.
func Script(cfg *pipeline.ScriptConfig, datasetPath string) (string, error) {
	return render("script.py.tpl", struct {
		baseData
		Code string
	}{newBase(datasetPath), cfg.Code})
}

// suggestExpr renders the optuna suggestion expression for one parameter.
func suggestExpr(name string, spec tuning.ParamSpec) (string, error) {
	quoted := `"` + PyString(name) + `"`
	switch spec.Type {
	case tuning.ParamInt:
		if spec.Step != nil {
			return fmt.Sprintf("trial.suggest_int(%s, %d, %d, step=%d)",
				quoted, int(spec.Min), int(spec.Max), int(*spec.Step)), nil
		}
		return fmt.Sprintf("trial.suggest_int(%s, %d, %d)", quoted, int(spec.Min), int(spec.Max)), nil
	case tuning.ParamFloat:
		if spec.Distribution == tuning.DistLog {
			return fmt.Sprintf("trial.suggest_float(%s, %s, %s, log=True)",
				quoted, pyFloat(spec.Min), pyFloat(spec.Max)), nil
		}
		if spec.Step != nil {
			return fmt.Sprintf("trial.suggest_float(%s, %s, %s, step=%s)",
				quoted, pyFloat(spec.Min), pyFloat(spec.Max), pyFloat(*spec.Step)), nil
		}
		return fmt.Sprintf("trial.suggest_float(%s, %s, %s)", quoted, pyFloat(spec.Min), pyFloat(spec.Max)), nil
	case tuning.ParamCategorical:
		return fmt.Sprintf("trial.suggest_categorical(%s, %s)", quoted, pyList(spec.Values)), nil
	default:
		return "", fmt.Errorf("%s: unknown parameter type %q", name, spec.Type)
	}
}

// samplerFor renders the optuna sampler construction and the optimize-call
// arguments. The grid sampler receives the full enumerated space and no trial
// count; random and bayesian samplers run the configured trial count with a
// fixed seed for reproducibility.
func samplerFor(tc *tuning.Config) (samplerExpr, optimizeArgs string, err error) {
	switch tc.Sampler {
	case tuning.SamplerGrid:
		if combos := tuning.GridCombinations(tc.SearchSpace); combos == tuning.Unbounded {
			return "", "", fmt.Errorf("grid sampler requires an enumerable search space")
		}
		var entries []string
		for _, name := range sortedParamNames(tc.SearchSpace) {
			entries = append(entries, fmt.Sprintf(`"%s": %s`, PyString(name), pyList(tc.SearchSpace[name].GridValues())))
		}
		return "optuna.samplers.GridSampler({" + strings.Join(entries, ", ") + "})", "", nil
	case tuning.SamplerRandom:
		return "optuna.samplers.RandomSampler(seed=42)", fmt.Sprintf("n_trials=%d, ", tc.NTrials), nil
	case tuning.SamplerBayesian:
		return "optuna.samplers.TPESampler(seed=42)", fmt.Sprintf("n_trials=%d, ", tc.NTrials), nil
	default:
		return "", "", fmt.Errorf("unknown sampler %q", tc.Sampler)
	}
}

// tupleParams lists parameters whose categorical values are stringified
// structured literals (e.g. MLP layer sizes like "(64, 32)"). The generated
// script parses them back into tuples before constructing the model.
func tupleParams(space tuning.SearchSpace) []string {
	var names []string
	for _, name := range sortedParamNames(space) {
		spec := space[name]
		if spec.Type != tuning.ParamCategorical {
			continue
		}
		for _, v := range spec.Values {
			if s, ok := v.(string); ok && strings.HasPrefix(s, "(") {
				names = append(names, name)
				break
			}
		}
	}
	return names
}
