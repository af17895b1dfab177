//go:build !windows

package lockfile

import "syscall"

// PidAlive probes pid with signal 0, which tests existence without
// delivering anything. EPERM means the process exists but belongs to
// another user, which still counts as alive.
func PidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}
