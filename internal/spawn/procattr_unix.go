//go:build !windows

package spawn

import "syscall"

// sysProcAttr detaches the child into its own session so it keeps running
// if the dashboard server restarts. No Pdeathsig: the agent must outlive
// the server.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setsid: true,
	}
}
