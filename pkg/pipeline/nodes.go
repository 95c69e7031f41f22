// Package pipeline models the node graph produced by the visual editor and
// resolves it into an executable stage plan. Node positions and other
// editor-only attributes are not part of this model.
package pipeline

import (
	"mlcraft/pkg/tuning"
)

// NodeKind discriminates pipeline node types.
type NodeKind string

const (
	KindDataLoader    NodeKind = "dataLoader"
	KindDataSplit     NodeKind = "dataSplit"
	KindTrainer       NodeKind = "trainer"
	KindEvaluator     NodeKind = "evaluator"
	KindModelExporter NodeKind = "modelExporter"
	KindScript        NodeKind = "script"
)

// TrainerMode selects what the trainer stage does.
type TrainerMode string

const (
	ModeTrain TrainerMode = "train"
	ModeLoad  TrainerMode = "load"
	ModeTune  TrainerMode = "tune"
)

// ExportFormat selects the serialization format for exported models.
type ExportFormat string

const (
	FormatJoblib ExportFormat = "joblib"
	FormatPickle ExportFormat = "pickle"
	FormatONNX   ExportFormat = "onnx"
)

// DataLoaderConfig points at the dataset feeding the pipeline.
type DataLoaderConfig struct {
	FilePath string `json:"filePath" yaml:"filePath"`
}

// DataSplitConfig describes a train/test split stage.
type DataSplitConfig struct {
	SplitRatio   float64 `json:"splitRatio" yaml:"splitRatio"`
	RandomState  int     `json:"randomState" yaml:"randomState"`
	Stratify     bool    `json:"stratify" yaml:"stratify"`
	TargetColumn string  `json:"targetColumn" yaml:"targetColumn"`
}

// TrainerConfig describes a train, load, or tune stage.
type TrainerConfig struct {
	ModelType     string         `json:"modelType" yaml:"modelType"`
	TargetColumn  string         `json:"targetColumn" yaml:"targetColumn"`
	TestSplit     float64        `json:"testSplit" yaml:"testSplit"`
	Mode          TrainerMode    `json:"mode" yaml:"mode"`
	ModelFilePath string         `json:"modelFilePath,omitempty" yaml:"modelFilePath,omitempty"`
	TuningConfig  *tuning.Config `json:"tuningConfig,omitempty" yaml:"tuningConfig,omitempty"`
}

// EvaluatorConfig has no parameters: the evaluator detects the problem type
// at runtime from the trained model.
type EvaluatorConfig struct{}

// ExporterConfig describes a model export stage.
type ExporterConfig struct {
	Format         ExportFormat `json:"format" yaml:"format"`
	OutputFileName string       `json:"outputFileName" yaml:"outputFileName"`
}

// ScriptConfig holds user-authored Python for a custom stage.
type ScriptConfig struct {
	Code string `json:"code" yaml:"code"`
}

// Node is one pipeline graph node. Exactly the config field matching Kind is
// set.
type Node struct {
	ID         string            `json:"id" yaml:"id"`
	Kind       NodeKind          `json:"kind" yaml:"kind"`
	DataLoader *DataLoaderConfig `json:"dataLoader,omitempty" yaml:"dataLoader,omitempty"`
	DataSplit  *DataSplitConfig  `json:"dataSplit,omitempty" yaml:"dataSplit,omitempty"`
	Trainer    *TrainerConfig    `json:"trainer,omitempty" yaml:"trainer,omitempty"`
	Evaluator  *EvaluatorConfig  `json:"evaluator,omitempty" yaml:"evaluator,omitempty"`
	Exporter   *ExporterConfig   `json:"exporter,omitempty" yaml:"exporter,omitempty"`
	Script     *ScriptConfig     `json:"script,omitempty" yaml:"script,omitempty"`
}

// Edge is a directed data dependency: Target consumes what Source produces.
type Edge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Graph is a full pipeline definition.
type Graph struct {
	Name  string `json:"name" yaml:"name"`
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// CanTune reports whether this trainer node can run in tune mode.
func (c *TrainerConfig) CanTune() tuning.TuneCheck {
	return tuning.CanTune(string(c.Mode), c.ModelType, c.TargetColumn)
}
