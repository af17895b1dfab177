//go:build windows

package lockfile

import "os"

// PidAlive reports whether a process with pid exists. Windows has no
// signal-0 equivalent; FindProcess opens a handle, which fails for pids
// that no longer exist.
func PidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	defer func() { _ = proc.Release() }()
	return true
}
