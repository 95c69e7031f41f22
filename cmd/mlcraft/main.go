package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mlcraft/internal/orch"
	"mlcraft/pkg/config"
	"mlcraft/pkg/datasets"
	"mlcraft/pkg/exec"
	"mlcraft/pkg/metrics"
	"mlcraft/pkg/persistence"
	"mlcraft/pkg/pipeline"
	"mlcraft/pkg/pyenv"
)

// Version information - set by goreleaser via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var (
		dataDir      = flag.String("datadir", defaultDataDir(), "Data directory for config, database and run artifacts")
		pythonPath   = flag.String("python", "", "Python interpreter to use (overrides config)")
		keepScripts  = flag.Bool("keep-scripts", false, "Keep generated scripts on disk after the run")
		explain      = flag.Bool("explain", false, "Run a model explanation stage after the pipeline")
		experiment   = flag.String("experiment", "", "Group this run under a named experiment")
		listRuns     = flag.Int("list-runs", 0, "List the N most recent runs and exit")
		listDatasets = flag.Bool("list-datasets", false, "List bundled example datasets and exit")
		showVersion  = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *listDatasets {
		for _, d := range datasets.Catalog() {
			fmt.Printf("%-24s %-14s target=%-14s model=%s\n", d.ID, d.TaskType, d.TargetColumn, d.RecommendedModel)
			fmt.Printf("    %s\n", d.Description)
		}
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("mlcraft %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		os.Exit(0)
	}

	os.Exit(run(*dataDir, *pythonPath, *experiment, *keepScripts, *explain, *listRuns))
}

// defaultDataDir resolves to ~/.mlcraft, falling back to the current
// directory when the home directory is unknown.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mlcraft"
	}
	return filepath.Join(home, ".mlcraft")
}

// run contains the main application logic and returns an exit code. This
// allows defers to execute before os.Exit is called.
func run(dataDir, pythonOverride, experiment string, keepScripts, explain bool, listRuns int) int {
	if err := config.Load(dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if pythonOverride != "" {
		if err := config.UpdatePythonPath(pythonOverride); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to update config: %v\n", err)
			return 1
		}
	}
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
		return 1
	}

	store, err := persistence.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer store.Close()

	if listRuns > 0 {
		return printRecentRuns(store, listRuns)
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: mlcraft [flags] <pipeline file>")
		flag.PrintDefaults()
		return 2
	}
	graph, err := pipeline.Load(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load pipeline: %v\n", err)
		return 1
	}

	registry := pyenv.NewRegistry(cfg.PythonPath)
	python, err := registry.Require()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v. Install python3 or set one with -python.\n", err)
		return 1
	}
	fmt.Printf("Using Python %s (%s, %s)\n", python.Version, python.Path, python.Source)
	if err := pyenv.VerifyImports(python.Path); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if !pyenv.HasPackage(python.Path, "optuna") {
		fmt.Fprintln(os.Stderr, "Warning: optuna is not installed, tuning stages will fail")
	}
	if !pyenv.HasPackage(python.Path, "shap") {
		fmt.Fprintln(os.Stderr, "Warning: shap is not installed, explanation stages will skip SHAP")
	}

	// A previous process may have died without reaping its child.
	exec.CleanupOrphans(cfg.WorkDir)

	supervisor, err := exec.NewSupervisor(exec.Options{
		Python:      python.Path,
		WorkDir:     cfg.WorkDir,
		KeepScripts: keepScripts || cfg.KeepScripts,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create supervisor: %v\n", err)
		return 1
	}

	experimentID := ""
	if experiment != "" {
		if experimentID, err = store.EnsureExperiment(experiment); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to resolve experiment: %v\n", err)
			return 1
		}
	}

	orchestrator, err := orch.New(orch.Options{
		Executor:     supervisor,
		Store:        store,
		EventLogDir:  cfg.EventLogDir,
		Explain:      explain,
		ExperimentID: experimentID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create orchestrator: %v\n", err)
		return 1
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	// First Ctrl-C cancels the run gracefully, a second one aborts.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		<-signals
		fmt.Fprintln(os.Stderr, "\nCancelling run...")
		orchestrator.Cancel()
		<-signals
		os.Exit(130)
	}()

	printer := newPrinter(os.Stdout)
	fmt.Printf("Running pipeline %q\n", graph.Name)

	summary, err := orchestrator.Run(context.Background(), graph, printer.Print)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
		return 1
	}
	return printer.Summary(summary)
}

func printRecentRuns(store *persistence.Store, limit int) int {
	runs, err := store.ListRuns(limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
		return 1
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return 0
	}
	for _, r := range runs {
		duration := "-"
		if r.DurationMs != nil {
			duration = (time.Duration(*r.DurationMs) * time.Millisecond).String()
		}
		fmt.Printf("%s  %-10s  %-9s  %s\n", r.StartedAt.Format(time.RFC3339), r.Status, duration, r.PipelineName)
		if r.Error != "" {
			fmt.Printf("    error: %s\n", r.Error)
		}
	}
	return 0
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "Metrics server failed: %v\n", err)
	}
}
