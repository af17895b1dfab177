// Package lockfile reads and clears the advisory lock files the external
// agent writes while a run is in flight. The agent owns the lock lifecycle;
// this package only observes it, plus one explicit, re-verified delete path.
package lockfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"prdash/internal/model"
)

const Extension = ".lock"

// Status is what a lock file says right now. A stale lock (pid recorded but
// no live process) reports Running=false while keeping Pid so operators can
// see which process died.
type Status struct {
	Running bool `json:"running"`
	Pid     int  `json:"pid,omitempty"`
}

// PathFor derives the one lock path for a (project, kind) pair.
func PathFor(projectDir string, lockDir string, kind model.ProcessKind) string {
	return filepath.Join(projectDir, lockDir, string(kind)+Extension)
}

// Check reports whether the lock at path belongs to a live process. Missing
// files, unparsable content, and dead pids all mean "not running"; the file
// itself is never touched here.
func Check(path string) (Status, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Status{}, nil
		}
		return Status{}, model.WrapIO("read lock "+path, err)
	}
	pid, ok := parsePid(b)
	if !ok {
		return Status{}, nil
	}
	if !PidAlive(pid) {
		return Status{Pid: pid}, nil
	}
	return Status{Running: true, Pid: pid}, nil
}

// Clear removes the lock at path. It re-checks liveness immediately before
// deleting so a stale read can never race a fresh start; a live lock is
// refused with a conflict. Removing an already-absent file succeeds.
func Clear(path string, kind model.ProcessKind) error {
	status, err := Check(path)
	if err != nil {
		return err
	}
	if status.Running {
		return &model.ConflictError{Kind: kind, Pid: status.Pid}
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return model.WrapIO("remove lock "+path, err)
	}
	return nil
}

// parsePid extracts the pid from the first line of the lock content. The
// agent writes "<pid>\n<start time>"; only the pid is required.
func parsePid(b []byte) (int, bool) {
	content := strings.TrimSpace(string(b))
	if content == "" {
		return 0, false
	}
	first := content
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		first = content[:idx]
	}
	pid, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
