package pipeline

import (
	"fmt"

	"mlcraft/pkg/tuning"
)

// StageKind identifies one executable stage of a resolved plan.
type StageKind string

const (
	StageSplit    StageKind = "split"
	StageTrain    StageKind = "train"
	StageTune     StageKind = "tune"
	StageLoad     StageKind = "load"
	StageScript   StageKind = "script"
	StageEvaluate StageKind = "evaluate"
	StageExport   StageKind = "export"

	// StageExplain is never produced by Stages; the orchestrator appends it
	// when a run asks for model explanations.
	StageExplain StageKind = "explain"
)

// Plan is a validated, executable resolution of a pipeline graph. The
// precomputed-split decision is made once here and applies to every stage of
// the run.
type Plan struct {
	PipelineName string
	DatasetPath  string

	Loader    *Node
	Split     *Node // nil when the trainer self-splits
	Trainer   *Node // nil for script-terminal pipelines
	Script    *Node // nil unless the terminal stage is a script node
	Evaluator *Node
	Exporter  *Node

	// UsePrecomputedSplit selects the precomputed-split generator variants
	// for the train/tune and evaluate stages.
	UsePrecomputedSplit bool
}

// Stages returns the stage sequence in execution order.
func (p *Plan) Stages() []StageKind {
	var stages []StageKind
	if p.Split != nil {
		stages = append(stages, StageSplit)
	}
	switch {
	case p.Script != nil:
		stages = append(stages, StageScript)
	case p.Trainer.Trainer.Mode == ModeTune:
		stages = append(stages, StageTune)
	case p.Trainer.Trainer.Mode == ModeLoad:
		stages = append(stages, StageLoad)
	default:
		stages = append(stages, StageTrain)
	}
	if p.Evaluator != nil {
		stages = append(stages, StageEvaluate)
	}
	if p.Exporter != nil {
		stages = append(stages, StageExport)
	}
	return stages
}

// Resolve validates a graph and produces its execution plan. Every problem
// found is reported; the plan is only usable when the error list is empty.
func Resolve(g *Graph) (*Plan, []string) {
	var errs []string

	nodes := make(map[string]*Node, len(g.Nodes))
	for i := range g.Nodes {
		node := &g.Nodes[i]
		if node.ID == "" {
			errs = append(errs, "node without an id")
			continue
		}
		if _, dup := nodes[node.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate node id %q", node.ID))
			continue
		}
		if configErr := checkNodeConfig(node); configErr != "" {
			errs = append(errs, configErr)
		}
		nodes[node.ID] = node
	}

	outgoing := make(map[string][]string)
	incoming := make(map[string][]string)
	for _, edge := range g.Edges {
		if _, ok := nodes[edge.Source]; !ok {
			errs = append(errs, fmt.Sprintf("edge references unknown node %q", edge.Source))
			continue
		}
		if _, ok := nodes[edge.Target]; !ok {
			errs = append(errs, fmt.Sprintf("edge references unknown node %q", edge.Target))
			continue
		}
		outgoing[edge.Source] = append(outgoing[edge.Source], edge.Target)
		incoming[edge.Target] = append(incoming[edge.Target], edge.Source)
	}

	if cycleErr := detectCycle(nodes, outgoing); cycleErr != "" {
		errs = append(errs, cycleErr)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	plan := &Plan{PipelineName: g.Name}

	// Exactly one executable terminal (trainer or script) must be reachable
	// from a data loader with a configured file path.
	var loaders []*Node
	for _, node := range nodes {
		if node.Kind == KindDataLoader {
			loaders = append(loaders, node)
		}
	}
	if len(loaders) == 0 {
		return nil, append(errs, "pipeline has no data loader node")
	}

	var terminals []*Node
	for _, loader := range loaders {
		if loader.DataLoader.FilePath == "" {
			errs = append(errs, fmt.Sprintf("data loader %q has no file selected", loader.ID))
			continue
		}
		for _, node := range reachableFrom(loader.ID, outgoing, nodes) {
			if node.Kind == KindTrainer || node.Kind == KindScript {
				terminals = append(terminals, node)
				plan.Loader = loader
			}
		}
	}
	switch len(terminals) {
	case 0:
		errs = append(errs, "no trainer or script node is connected to a data loader")
	case 1:
		if terminals[0].Kind == KindTrainer {
			plan.Trainer = terminals[0]
		} else {
			plan.Script = terminals[0]
		}
	default:
		errs = append(errs, fmt.Sprintf("pipeline has %d executable chains, expected exactly one", len(terminals)))
	}
	if len(errs) > 0 {
		return nil, errs
	}

	plan.DatasetPath = plan.Loader.DataLoader.FilePath

	terminal := plan.Trainer
	if terminal == nil {
		terminal = plan.Script
	}

	// A dataSplit node feeding the trainer selects the precomputed-split
	// variants for the whole run.
	if plan.Trainer != nil {
		for _, sourceID := range incoming[plan.Trainer.ID] {
			if nodes[sourceID].Kind == KindDataSplit {
				plan.Split = nodes[sourceID]
				plan.UsePrecomputedSplit = true
				break
			}
		}
		if trainerErrs := checkTrainer(plan.Trainer); len(trainerErrs) > 0 {
			return nil, append(errs, trainerErrs...)
		}
	}

	// Evaluator runs when fed by the terminal stage.
	for _, targetID := range outgoing[terminal.ID] {
		if nodes[targetID].Kind == KindEvaluator {
			plan.Evaluator = nodes[targetID]
			break
		}
	}

	// Exporter runs when fed by the evaluator or the terminal stage.
	exporterSources := []string{terminal.ID}
	if plan.Evaluator != nil {
		exporterSources = append(exporterSources, plan.Evaluator.ID)
	}
	for _, sourceID := range exporterSources {
		for _, targetID := range outgoing[sourceID] {
			if nodes[targetID].Kind == KindModelExporter {
				plan.Exporter = nodes[targetID]
				break
			}
		}
	}

	return plan, nil
}

func checkNodeConfig(node *Node) string {
	var ok bool
	switch node.Kind {
	case KindDataLoader:
		ok = node.DataLoader != nil
	case KindDataSplit:
		ok = node.DataSplit != nil
	case KindTrainer:
		ok = node.Trainer != nil
	case KindEvaluator:
		ok = node.Evaluator != nil
	case KindModelExporter:
		ok = node.Exporter != nil
	case KindScript:
		ok = node.Script != nil
	default:
		return fmt.Sprintf("node %q has unknown kind %q", node.ID, node.Kind)
	}
	if !ok {
		return fmt.Sprintf("node %q is missing its %s configuration", node.ID, node.Kind)
	}
	return ""
}

func checkTrainer(node *Node) []string {
	var errs []string
	cfg := node.Trainer

	switch cfg.Mode {
	case ModeTrain, ModeTune:
		if cfg.ModelType == "" {
			errs = append(errs, fmt.Sprintf("trainer %q has no model type selected", node.ID))
		}
		if cfg.TargetColumn == "" {
			errs = append(errs, fmt.Sprintf("trainer %q has no target column selected", node.ID))
		}
	case ModeLoad:
		if cfg.ModelFilePath == "" {
			errs = append(errs, fmt.Sprintf("trainer %q is in load mode but has no model file", node.ID))
		}
	default:
		errs = append(errs, fmt.Sprintf("trainer %q has unknown mode %q", node.ID, cfg.Mode))
	}

	if cfg.Mode == ModeTune {
		if check := cfg.CanTune(); !check.Valid {
			errs = append(errs, fmt.Sprintf("trainer %q: %s", node.ID, check.Reason))
		} else if cfg.TuningConfig == nil {
			errs = append(errs, fmt.Sprintf("trainer %q is in tune mode but has no tuning configuration", node.ID))
		} else {
			for _, msg := range validateTuning(cfg) {
				errs = append(errs, fmt.Sprintf("trainer %q: %s", node.ID, msg))
			}
		}
	}

	return errs
}

func validateTuning(cfg *TrainerConfig) []string {
	return tuning.ValidateConfig(*cfg.TuningConfig, cfg.ModelType)
}

// detectCycle runs a Kahn traversal over the whole graph and reports
// whether any nodes were unreachable by topological order.
func detectCycle(nodes map[string]*Node, outgoing map[string][]string) string {
	inDegree := make(map[string]int, len(nodes))
	for id := range nodes {
		inDegree[id] = 0
	}
	for _, targets := range outgoing {
		for _, target := range targets {
			inDegree[target]++
		}
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, target := range outgoing[id] {
			inDegree[target]--
			if inDegree[target] == 0 {
				queue = append(queue, target)
			}
		}
	}

	if visited != len(nodes) {
		return "pipeline graph contains a cycle"
	}
	return ""
}

func reachableFrom(start string, outgoing map[string][]string, nodes map[string]*Node) []*Node {
	seen := map[string]bool{start: true}
	queue := []string{start}
	var result []*Node

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, target := range outgoing[id] {
			if seen[target] {
				continue
			}
			seen[target] = true
			result = append(result, nodes[target])
			queue = append(queue, target)
		}
	}
	return result
}
