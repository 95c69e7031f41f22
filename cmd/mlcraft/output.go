package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"mlcraft/internal/orch"
	"mlcraft/pkg/proto"
)

// printer renders run events for the console. On a terminal it prints a
// human-readable stream; when output is piped it re-emits the events as
// line-oriented JSON so another tool can consume them.
type printer struct {
	mu          sync.Mutex
	out         io.Writer
	interactive bool
}

func newPrinter(out io.Writer) *printer {
	interactive := false
	if f, ok := out.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return &printer{out: out, interactive: interactive}
}

// Print renders one event. Safe for concurrent use.
func (p *printer) Print(ev proto.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.interactive {
		p.printHuman(ev)
		return
	}
	p.printJSON(ev)
}

func (p *printer) printHuman(ev proto.Event) {
	switch typed := ev.(type) {
	case proto.LogEvent:
		fmt.Fprintf(p.out, "  %s\n", typed.Message)
	case proto.ProgressEvent:
		fmt.Fprintf(p.out, "  progress %d/%d\n", typed.Current, typed.Total)
	case proto.ErrorEvent:
		fmt.Fprintf(p.out, "  error: %s\n", typed.Message)
	case proto.MetricsEvent:
		fmt.Fprintf(p.out, "  metrics (%s): %s\n", typed.ModelType, compact(typed.Data))
	case proto.DataProfileEvent:
		fmt.Fprintf(p.out, "  data profile for %s\n", typed.NodeID)
	case proto.TrialEvent:
		score := "failed"
		if typed.Score != nil {
			score = fmt.Sprintf("%.4f", *typed.Score)
		}
		fmt.Fprintf(p.out, "  trial %d: score=%s params=%s\n", typed.TrialNumber, score, compact(typed.Params))
	case proto.TuningCompleteEvent:
		fmt.Fprintf(p.out, "  tuning complete: best score %.4f over %d trials, best params %s\n",
			typed.BestScore, typed.TotalTrials, compact(typed.BestParams))
	case proto.FeatureImportanceEvent:
		fmt.Fprintln(p.out, "  feature importance computed")
	case proto.ShapDataEvent:
		fmt.Fprintln(p.out, "  SHAP values computed")
	case proto.PartialDependenceEvent:
		fmt.Fprintln(p.out, "  partial dependence computed")
	case proto.ExplainCompleteEvent:
		fmt.Fprintf(p.out, "  explanation complete (%dms)\n", typed.DurationMs)
	case proto.CompleteEvent:
		fmt.Fprintln(p.out, "  stage complete")
	case proto.ExitEvent:
		if typed.Code != 0 {
			fmt.Fprintf(p.out, "  process exited with code %d\n", typed.Code)
		}
	}
}

func (p *printer) printJSON(ev proto.Event) {
	line := map[string]any{"type": string(ev.Type())}
	switch typed := ev.(type) {
	case proto.LogEvent:
		line["message"] = typed.Message
	case proto.ProgressEvent:
		line["current"] = typed.Current
		line["total"] = typed.Total
	case proto.ErrorEvent:
		line["message"] = typed.Message
	case proto.MetricsEvent:
		line["modelType"] = typed.ModelType
		line["data"] = typed.Data
	case proto.DataProfileEvent:
		line["nodeId"] = typed.NodeID
		line["data"] = typed.Data
	case proto.TrialEvent:
		line["trialNumber"] = typed.TrialNumber
		line["params"] = typed.Params
		line["score"] = typed.Score
		if typed.DurationMs != nil {
			line["durationMs"] = *typed.DurationMs
		}
	case proto.TuningCompleteEvent:
		line["bestParams"] = typed.BestParams
		line["bestScore"] = typed.BestScore
		line["totalTrials"] = typed.TotalTrials
		if typed.DurationMs != nil {
			line["durationMs"] = *typed.DurationMs
		}
	case proto.ExplainProgressEvent:
		line["data"] = typed.Data
	case proto.FeatureImportanceEvent:
		line["data"] = typed.Data
	case proto.ShapDataEvent:
		line["data"] = typed.Data
	case proto.PartialDependenceEvent:
		line["data"] = typed.Data
	case proto.ExplainMetadataEvent:
		line["data"] = typed.Data
	case proto.ExplainCompleteEvent:
		line["durationMs"] = typed.DurationMs
	case proto.ExitEvent:
		line["code"] = typed.Code
	}
	data, err := json.Marshal(line)
	if err != nil {
		return
	}
	fmt.Fprintf(p.out, "%s\n", data)
}

// Summary prints the run outcome and returns the process exit code.
func (p *printer) Summary(summary *orch.Summary) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch summary.State {
	case orch.StateCompleted:
		fmt.Fprintf(p.out, "Run %s completed in %s (%d stages)\n",
			summary.RunID, summary.Duration.Round(time.Millisecond), len(summary.Stages))
		return 0
	case orch.StateCancelled:
		fmt.Fprintf(p.out, "Run %s cancelled\n", summary.RunID)
		return 130
	default:
		fmt.Fprintf(p.out, "Run %s failed: %s\n", summary.RunID, summary.Error)
		return 1
	}
}

func compact(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}
