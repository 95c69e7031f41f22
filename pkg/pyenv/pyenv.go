// Package pyenv discovers and verifies the Python interpreter used to run
// generated scripts.
package pyenv

import (
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
	"path/filepath"
	"strings"
	"sync"

	"mlcraft/pkg/logx"
)

// Info describes a usable interpreter.
type Info struct {
	Path    string
	Version string
	Source  string
}

// ErrNoInterpreter is returned when discovery finds no usable interpreter.
var ErrNoInterpreter = errors.New("no usable python interpreter found")

// requiredImports are the packages generated scripts depend on. optuna and
// shap are checked separately because only tuning and explain stages need
// them.
const requiredImports = "pandas, numpy, sklearn, joblib"

// Find locates a Python interpreter, trying in priority order: an explicitly
// configured path, an active virtualenv, python3 on PATH, then well-known
// install locations. Returns nil when nothing usable is found.
func Find(configuredPath string) *Info {
	logger := logx.NewLogger("pyenv")

	if configuredPath != "" {
		if version, ok := probeVersion(configuredPath); ok {
			return &Info{Path: configuredPath, Version: version, Source: "configured"}
		}
		logger.Warn("configured python %s is not usable, falling back to discovery", configuredPath)
	}

	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		candidate := filepath.Join(venv, "bin", "python3")
		if version, ok := probeVersion(candidate); ok {
			return &Info{Path: candidate, Version: version, Source: "virtualenv"}
		}
	}

	if path, err := osexec.LookPath("python3"); err == nil {
		if version, ok := probeVersion(path); ok {
			return &Info{Path: path, Version: version, Source: "path"}
		}
	}

	for _, candidate := range []string{
		"/opt/homebrew/bin/python3",
		"/usr/local/bin/python3",
		"/usr/bin/python3",
	} {
		if version, ok := probeVersion(candidate); ok {
			return &Info{Path: candidate, Version: version, Source: "well-known"}
		}
	}

	return nil
}

// VerifyImports checks that the interpreter can import the packages the
// generated scripts need. A missing package is reported by name so the user
// knows what to install.
func VerifyImports(pythonPath string) error {
	code := fmt.Sprintf("import %s; print('OK')", requiredImports)
	out, err := osexec.Command(pythonPath, "-c", code).CombinedOutput()
	if err != nil {
		return fmt.Errorf("python environment is missing required packages (%s): %s",
			requiredImports, strings.TrimSpace(string(out)))
	}
	return nil
}

// HasPackage reports whether one optional package (e.g. "optuna", "shap")
// imports cleanly.
func HasPackage(pythonPath, pkg string) bool {
	return osexec.Command(pythonPath, "-c", "import "+pkg).Run() == nil
}

func probeVersion(path string) (string, bool) {
	out, err := osexec.Command(path, "--version").CombinedOutput()
	if err != nil {
		return "", false
	}
	version := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(out)), "Python "))
	if version == "" {
		return "", false
	}
	return version, true
}

// Registry caches the discovered environment and lets callers invalidate it
// when settings change. Each invalidation bumps a generation counter so
// long-running callers can detect that their cached Info is stale.
type Registry struct {
	mu         sync.Mutex
	configured string
	cached     *Info
	generation uint64
}

// NewRegistry creates a registry using the given configured interpreter path
// (may be empty).
func NewRegistry(configuredPath string) *Registry {
	return &Registry{configured: configuredPath}
}

// Current returns the cached interpreter info and the generation it belongs
// to, discovering on first use.
func (r *Registry) Current() (*Info, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached == nil {
		r.cached = Find(r.configured)
	}
	return r.cached, r.generation
}

// Require is Current with discovery failure promoted to ErrNoInterpreter.
func (r *Registry) Require() (*Info, error) {
	info, _ := r.Current()
	if info == nil {
		return nil, ErrNoInterpreter
	}
	return info, nil
}

// Invalidate clears the cache, optionally updating the configured path, and
// bumps the generation.
func (r *Registry) Invalidate(configuredPath string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configured = configuredPath
	r.cached = nil
	r.generation++
	return r.generation
}
