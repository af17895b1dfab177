//go:build windows

package spawn

import "syscall"

const detachedProcess = 0x00000008

// sysProcAttr detaches the child from the server's console and process
// group so it keeps running if the dashboard server restarts.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: detachedProcess | syscall.CREATE_NEW_PROCESS_GROUP,
	}
}
