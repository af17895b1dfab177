package spawn

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"time"

	"prdash/internal/config"
	"prdash/internal/model"
)

const notifyTimeout = 10 * time.Second

// Notify runs the configured notification hook after a successful start.
// It is strictly best-effort: failures are logged and never surface to the
// caller, and a missing hook is a no-op.
func Notify(cfg config.Project, logger *log.Logger, projectName string, kind model.ProcessKind, pid int) {
	if cfg.Notify.Command == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	message := fmt.Sprintf("%s: %s started (pid %d)", projectName, kind, pid)
	args := append(append([]string{}, cfg.Notify.Args...), message)
	if err := exec.CommandContext(ctx, cfg.Notify.Command, args...).Run(); err != nil && logger != nil {
		logger.Printf("notify: %s hook failed: %v", projectName, err)
	}
}
