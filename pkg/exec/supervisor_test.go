package exec

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlcraft/pkg/proto"
)

// Tests drive the supervisor with /bin/sh standing in for the Python
// interpreter: sh -u <script> <arg> runs the staged file the same way
// python -u would.
func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	s, err := NewSupervisor(Options{Python: "/bin/sh", WorkDir: t.TempDir()})
	require.NoError(t, err)
	return s
}

func collectEvents(t *testing.T, s *Supervisor, script string) ([]proto.Event, Result, error) {
	t.Helper()
	var mu sync.Mutex
	var events []proto.Event
	result, err := s.Execute(context.Background(), script, "input.csv", func(ev proto.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	return events, result, err
}

func TestExecuteDecodesProtocolLines(t *testing.T) {
	s := newTestSupervisor(t)
	script := `
echo '{"type": "log", "message": "starting"}'
echo 'plain progress text'
echo '{"type": "progress", "current": 1, "total": 2}'
echo '{"type": "complete"}'
`
	events, result, err := collectEvents(t, s, script)
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, StateCompleted, result.State)
	require.Len(t, events, 5)
	assert.Equal(t, proto.LogEvent{Message: "starting"}, events[0])
	assert.Equal(t, proto.LogEvent{Message: "plain progress text"}, events[1])
	assert.Equal(t, proto.ProgressEvent{Current: 1, Total: 2}, events[2])
	assert.Equal(t, proto.CompleteEvent{}, events[3])
	assert.Equal(t, proto.ExitEvent{Code: 0}, events[4])
}

func TestExecuteExitEventIsAlwaysLast(t *testing.T) {
	s := newTestSupervisor(t)
	script := `
echo '{"type": "error", "message": "boom"}'
exit 3
`
	events, result, err := collectEvents(t, s, script)
	require.NoError(t, err)

	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, StateFailed, result.State)
	assert.True(t, result.HadError)
	require.NotEmpty(t, events)
	assert.Equal(t, proto.ExitEvent{Code: 3}, events[len(events)-1])
}

func TestExecuteChildCannotForgeExit(t *testing.T) {
	s := newTestSupervisor(t)
	script := `echo '{"type": "exit", "code": 99}'`

	events, result, err := collectEvents(t, s, script)
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	require.Len(t, events, 2)
	// The forged line degrades to a log event; the real exit follows.
	assert.IsType(t, proto.LogEvent{}, events[0])
	assert.Equal(t, proto.ExitEvent{Code: 0}, events[1])
}

func TestExecuteStderrBecomesLogEvents(t *testing.T) {
	s := newTestSupervisor(t)
	script := `echo 'warning: deprecated' 1>&2`

	events, result, err := collectEvents(t, s, script)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, result.State)
	require.Len(t, events, 2)
	assert.Equal(t, proto.LogEvent{Message: "warning: deprecated"}, events[0])
}

func TestExecuteOversizedLineDoesNotHang(t *testing.T) {
	s := newTestSupervisor(t)
	// One line past the scanner limit, then more output than a pipe buffer
	// holds. Unless the supervisor keeps draining after the scanner gives
	// up, the child blocks on write and never exits.
	script := `
head -c 17000000 /dev/zero | tr '\0' x
echo
head -c 200000 /dev/zero | tr '\0' y
echo
`
	events, result, err := collectEvents(t, s, script)
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	require.NotEmpty(t, events)
	assert.Equal(t, proto.ExitEvent{Code: 0}, events[len(events)-1])

	aborted := false
	for _, ev := range events {
		if log, ok := ev.(proto.LogEvent); ok && strings.Contains(log.Message, "stream aborted") {
			aborted = true
		}
	}
	assert.True(t, aborted, "expected a log event reporting the aborted stream")
}

func TestExecuteRejectsConcurrentRuns(t *testing.T) {
	s := newTestSupervisor(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = collectEvents(t, s, "echo started\nsleep 2")
	}()

	require.Eventually(t, func() bool {
		return s.State() == StateRunning
	}, 2*time.Second, 10*time.Millisecond)

	_, err := s.Execute(context.Background(), "echo second", "", func(proto.Event) {})
	assert.ErrorIs(t, err, ErrBusy)

	<-done
}

func TestExecuteCancellation(t *testing.T) {
	s := newTestSupervisor(t)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	var events []proto.Event
	var mu sync.Mutex
	result, err := s.Execute(ctx, "sleep 30", "", func(ev proto.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateCancelled, result.State)
	assert.NotZero(t, result.ExitCode)
	require.NotEmpty(t, events)
	assert.IsType(t, proto.ExitEvent{}, events[len(events)-1])
}

func TestExecuteCleansUpStagedScript(t *testing.T) {
	s := newTestSupervisor(t)
	_, _, err := collectEvents(t, s, "true")
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(s.opts.WorkDir, "scripts"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecuteKeepScripts(t *testing.T) {
	s, err := NewSupervisor(Options{Python: "/bin/sh", WorkDir: t.TempDir(), KeepScripts: true})
	require.NoError(t, err)

	_, _, err2 := collectEvents(t, s, "true")
	require.NoError(t, err2)

	entries, err := os.ReadDir(filepath.Join(s.opts.WorkDir, "scripts"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNewSupervisorValidation(t *testing.T) {
	_, err := NewSupervisor(Options{WorkDir: t.TempDir()})
	assert.Error(t, err)

	_, err = NewSupervisor(Options{Python: "/bin/sh"})
	assert.Error(t, err)
}

func TestCleanupOrphansWithoutPidFile(t *testing.T) {
	// Must be a no-op when nothing is stale.
	CleanupOrphans(t.TempDir())
}

func TestCleanupOrphansStaleFile(t *testing.T) {
	dir := t.TempDir()
	// A pid that certainly does not exist anymore.
	require.NoError(t, os.WriteFile(filepath.Join(dir, pidFileName), []byte("999999"), 0o644))
	CleanupOrphans(dir)

	_, err := os.Stat(filepath.Join(dir, pidFileName))
	assert.True(t, os.IsNotExist(err))
}
