// Package exec runs generated scripts as supervised child processes. A
// supervisor owns at most one process at a time, decodes the child's stdout
// into protocol events, and always finishes an execution with a synthesized
// exit event once the process has terminated and its output is drained.
package exec

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"mlcraft/pkg/logx"
	"mlcraft/pkg/proto"
)

// ErrBusy is returned when an execution is requested while another one is
// still running under the same supervisor.
var ErrBusy = errors.New("a script is already running")

// gracePeriod is how long a cancelled process gets to react to SIGTERM
// before the group is killed.
const gracePeriod = 5 * time.Second

// scanBufferSize bounds a single protocol line. SHAP payloads for wide
// datasets can run to several megabytes.
const scanBufferSize = 16 * 1024 * 1024

// State is the lifecycle of one supervised execution.
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Options configures a Supervisor.
type Options struct {
	// Python is the interpreter to launch scripts with.
	Python string
	// WorkDir is the run working directory: scripts are staged under it and
	// artifact files are created in it.
	WorkDir string
	// KeepScripts leaves staged script files on disk after the run, which
	// helps when debugging generated code.
	KeepScripts bool
}

// Supervisor executes generated scripts one at a time.
type Supervisor struct {
	opts   Options
	logger *logx.Logger

	mu      sync.Mutex
	state   State
	process *os.Process
}

// Result summarizes one finished execution.
type Result struct {
	ExitCode  int
	State     State
	HadError  bool
	Duration  time.Duration
	ScriptLen int
}

// NewSupervisor creates a supervisor. The working directory is created if
// needed.
func NewSupervisor(opts Options) (*Supervisor, error) {
	if opts.Python == "" {
		return nil, fmt.Errorf("python interpreter path is required")
	}
	if opts.WorkDir == "" {
		return nil, fmt.Errorf("working directory is required")
	}
	if err := os.MkdirAll(filepath.Join(opts.WorkDir, "scripts"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create script directory: %w", err)
	}
	return &Supervisor{
		opts:   opts,
		logger: logx.NewLogger("supervisor"),
		state:  StateIdle,
	}, nil
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Execute stages the script, runs it, and streams decoded events to handle
// in arrival order. The final event delivered is always an ExitEvent carrying
// the real process exit status; it is synthesized here, never parsed from the
// child. Execute returns ErrBusy if a script is already running.
func (s *Supervisor) Execute(ctx context.Context, script, datasetPath string, handle func(proto.Event)) (Result, error) {
	s.mu.Lock()
	if s.state == StateStarting || s.state == StateRunning {
		s.mu.Unlock()
		return Result{}, ErrBusy
	}
	s.state = StateStarting
	s.mu.Unlock()

	result := Result{ScriptLen: len(script)}
	started := time.Now()

	scriptPath := filepath.Join(s.opts.WorkDir, "scripts", "script_"+uuid.NewString()+".py")
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		s.setState(StateFailed)
		return result, fmt.Errorf("failed to stage script: %w", err)
	}
	if !s.opts.KeepScripts {
		defer os.Remove(scriptPath)
	}

	cmd := osexec.CommandContext(ctx, s.opts.Python, "-u", scriptPath, datasetPath)
	cmd.Dir = s.opts.WorkDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// Ask politely before the group is killed; a cancelled sklearn fit can
	// still flush partial output this way.
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = gracePeriod

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.setState(StateFailed)
		return result, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.setState(StateFailed)
		return result, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		s.setState(StateFailed)
		return result, fmt.Errorf("failed to start %s: %w", s.opts.Python, err)
	}

	s.mu.Lock()
	s.state = StateRunning
	s.process = cmd.Process
	s.mu.Unlock()

	pidPath := filepath.Join(s.opts.WorkDir, pidFileName)
	writePidFile(pidPath, cmd.Process.Pid)
	defer os.Remove(pidPath)

	s.logger.Debug("started %s pid=%d script=%s", s.opts.Python, cmd.Process.Pid, filepath.Base(scriptPath))

	var mu sync.Mutex
	deliver := func(ev proto.Event) {
		mu.Lock()
		defer mu.Unlock()
		if _, isErr := ev.(proto.ErrorEvent); isErr {
			result.HadError = true
		}
		handle(ev)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	scan := func(pipe io.Reader, name string, decode func(string) proto.Event) {
		defer wg.Done()
		scanner := bufio.NewScanner(pipe)
		scanner.Buffer(make([]byte, 64*1024), scanBufferSize)
		for scanner.Scan() {
			deliver(decode(scanner.Text()))
		}
		if err := scanner.Err(); err != nil {
			// The scanner stops mid-stream on errors like ErrTooLong. The
			// pipe must still be drained to exhaustion or the child blocks
			// on a full buffer and never exits.
			deliver(proto.LogEvent{Message: fmt.Sprintf("%s stream aborted: %v; discarding remaining output", name, err)})
			io.Copy(io.Discard, pipe)
		}
	}
	go scan(stdout, "stdout", proto.DecodeLine)
	go scan(stderr, "stderr", func(line string) proto.Event {
		return proto.LogEvent{Message: line}
	})

	// Output must be fully drained before Wait closes the pipes and before
	// the exit event goes out.
	wg.Wait()
	waitErr := cmd.Wait()
	result.Duration = time.Since(started)
	result.ExitCode = exitCode(cmd, waitErr)

	s.mu.Lock()
	s.process = nil
	switch {
	case ctx.Err() != nil:
		s.state = StateCancelled
	case result.ExitCode == 0 && !result.HadError:
		s.state = StateCompleted
	default:
		s.state = StateFailed
	}
	result.State = s.state
	s.mu.Unlock()

	handle(proto.ExitEvent{Code: result.ExitCode})

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// exitCode extracts the real exit status from Wait's error. A process killed
// by a signal reports the shell convention 128+signal.
func exitCode(cmd *osexec.Cmd, waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var exitErr *osexec.ExitError
	if errors.As(waitErr, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}
