// Package config provides configuration loading and management.
//
// A single global Config instance is kept in memory, protected by a mutex.
// GetConfig returns the config by value so callers cannot mutate shared
// state; all changes go through the Update* functions, which validate and
// persist atomically.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"mlcraft/pkg/logx"
)

// SchemaVersion guards against loading configs written by an incompatible
// build. Bump it whenever the config shape changes.
const SchemaVersion = 1

const configFileName = "config.json"

// Config holds all user-adjustable settings.
type Config struct {
	SchemaVersion int `json:"schemaVersion"`

	// PythonPath overrides interpreter discovery when set.
	PythonPath string `json:"pythonPath,omitempty"`

	// DatabasePath is the SQLite database location.
	DatabasePath string `json:"databasePath"`

	// WorkDir is where runs stage scripts and artifacts.
	WorkDir string `json:"workDir"`

	// EventLogDir is where per-run JSONL event logs are written.
	EventLogDir string `json:"eventLogDir"`

	// KeepScripts leaves generated scripts on disk after each run.
	KeepScripts bool `json:"keepScripts,omitempty"`

	// MetricsAddr serves the Prometheus endpoint when non-empty
	// (e.g. "127.0.0.1:9090").
	MetricsAddr string `json:"metricsAddr,omitempty"`
}

//nolint:gochecknoglobals // intentional singleton
var (
	config  *Config
	baseDir string
	logger  *logx.Logger
	mu      sync.RWMutex
)

func getLogger() *logx.Logger {
	if logger == nil {
		logger = logx.NewLogger("config")
	}
	return logger
}

// defaults returns a config rooted under dir.
func defaults(dir string) *Config {
	return &Config{
		SchemaVersion: SchemaVersion,
		DatabasePath:  filepath.Join(dir, "mlcraft.db"),
		WorkDir:       filepath.Join(dir, "runs"),
		EventLogDir:   filepath.Join(dir, "events"),
	}
}

// Load reads the config file under dir, creating it with defaults when
// absent. Must be called once at startup before GetConfig.
func Load(dir string) error {
	mu.Lock()
	defer mu.Unlock()

	baseDir = dir
	path := filepath.Join(dir, configFileName)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		config = defaults(dir)
		getLogger().Info("no config found, writing defaults to %s", path)
		return persistLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if loaded.SchemaVersion != SchemaVersion {
		return fmt.Errorf("config schema version %d is not supported (want %d)",
			loaded.SchemaVersion, SchemaVersion)
	}

	// Absent paths fall back to defaults rather than empty strings.
	def := defaults(dir)
	if loaded.DatabasePath == "" {
		loaded.DatabasePath = def.DatabasePath
	}
	if loaded.WorkDir == "" {
		loaded.WorkDir = def.WorkDir
	}
	if loaded.EventLogDir == "" {
		loaded.EventLogDir = def.EventLogDir
	}

	config = &loaded
	return nil
}

// GetConfig returns the current config by value.
func GetConfig() (Config, error) {
	mu.RLock()
	defer mu.RUnlock()
	if config == nil {
		return Config{}, fmt.Errorf("config.Load must be called before GetConfig")
	}
	return *config, nil
}

// UpdatePythonPath sets the interpreter override and persists.
func UpdatePythonPath(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if config == nil {
		return fmt.Errorf("config.Load must be called before updates")
	}
	config.PythonPath = path
	return persistLocked()
}

// UpdateKeepScripts toggles script retention and persists.
func UpdateKeepScripts(keep bool) error {
	mu.Lock()
	defer mu.Unlock()
	if config == nil {
		return fmt.Errorf("config.Load must be called before updates")
	}
	config.KeepScripts = keep
	return persistLocked()
}

// Reset clears the singleton. Intended for tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	config = nil
	baseDir = ""
}

func persistLocked() error {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	path := filepath.Join(baseDir, configFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}
