package exec

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"mlcraft/pkg/logx"
)

const pidFileName = "supervisor.pid"

// writePidFile records the child pid so a crashed host can clean up the
// orphaned process on the next start. Failures are logged and ignored: the
// pid file is a recovery aid, not a correctness requirement.
func writePidFile(path string, pid int) {
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		logx.Warnf("failed to write pid file %s: %v", path, err)
	}
}

// CleanupOrphans terminates a child process left behind by a previous host
// that crashed mid-run, then removes the stale pid file. Safe to call when no
// pid file exists.
func CleanupOrphans(workDir string) {
	path := filepath.Join(workDir, pidFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	defer os.Remove(path)

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return
	}

	// Signal 0 probes for existence without touching the process.
	if err := syscall.Kill(pid, 0); err != nil {
		return
	}

	logx.Warnf("terminating orphaned script process pid=%d from a previous run", pid)
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		_ = syscall.Kill(pid, syscall.SIGTERM)
	}
}
