// Package spawn launches the external automation agent as a fully detached
// process. The child must survive a dashboard restart, so it gets its own
// session and never shares the server's stdio.
package spawn

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"prdash/internal/config"
	"prdash/internal/model"
)

// ItemEnvVar carries the optional work-item hint to the agent, which uses
// it to prioritize a specific PRD.
const ItemEnvVar = "PRD_AGENT_ITEM"

type Result struct {
	Pid int `json:"pid"`
}

type Launcher struct {
	logger *log.Logger
}

func NewLauncher(logger *log.Logger) *Launcher {
	return &Launcher{logger: logger}
}

// Start launches the agent for kind in the project directory and returns
// immediately with the child's pid. Child stdout/stderr go to a per-kind
// log file under the lock dir; a start that yields no pid is a SpawnError
// rather than a silent success.
func (l *Launcher) Start(projectDir string, cfg config.Project, kind model.ProcessKind, item string) (Result, error) {
	args := append(append([]string{}, cfg.Agent.Args...), kind.AgentSubcommand())
	cmd := exec.Command(cfg.Agent.Command, args...)
	cmd.Dir = projectDir
	cmd.Stdin = nil
	cmd.SysProcAttr = sysProcAttr()

	cmd.Env = os.Environ()
	if item = strings.TrimSpace(item); item != "" {
		cmd.Env = append(cmd.Env, ItemEnvVar+"="+item)
	}

	logFile, err := openLogFile(projectDir, cfg, kind)
	if err == nil {
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	} else if l.logger != nil {
		l.logger.Printf("spawn: no log file for %s: %v", kind, err)
	}

	if err := cmd.Start(); err != nil {
		closeQuietly(logFile)
		return Result{}, &model.SpawnError{Kind: kind, Err: err}
	}
	// The parent keeps the writable end; the child holds its own.
	closeQuietly(logFile)

	if cmd.Process == nil || cmd.Process.Pid <= 0 {
		return Result{}, &model.SpawnError{Kind: kind, Err: fmt.Errorf("no pid assigned")}
	}
	pid := cmd.Process.Pid
	// Release drops the handle without waiting; the child is reparented and
	// outlives this server.
	_ = cmd.Process.Release()

	if l.logger != nil {
		l.logger.Printf("spawn: started %s pid=%d dir=%s", kind, pid, projectDir)
	}
	return Result{Pid: pid}, nil
}

func openLogFile(projectDir string, cfg config.Project, kind model.ProcessKind) (*os.File, error) {
	dir := filepath.Join(projectDir, cfg.Paths.LockDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, string(kind)+".log")
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func closeQuietly(f *os.File) {
	if f != nil {
		_ = f.Close()
	}
}
