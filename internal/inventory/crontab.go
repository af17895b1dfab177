package inventory

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"prdash/internal/config"
	"prdash/internal/model"
)

// Installed crontab lines carry a trailing marker comment so list and
// uninstall can find them without guessing at the command text.
func cronMarker(projectName string) string {
	return "# prdash:" + projectName
}

// ListCrontab reads the user crontab and returns the entries owned by this
// project. No crontab at all is a valid empty state.
func ListCrontab(ctx context.Context, projectName string) (model.CrontabStatus, error) {
	lines, err := readCrontab(ctx)
	if err != nil {
		return model.CrontabStatus{}, err
	}
	entries := filterMarkedLines(lines, cronMarker(projectName), true)
	return model.CrontabStatus{Installed: len(entries) > 0, Entries: entries}, nil
}

// InstallCron adds (or replaces) the scheduled agent run for the project.
func InstallCron(ctx context.Context, projectName string, projectDir string, cfg config.Project) error {
	lines, err := readCrontab(ctx)
	if err != nil {
		return err
	}
	kept := filterMarkedLines(lines, cronMarker(projectName), false)
	kept = append(kept, buildCronEntry(projectName, projectDir, cfg))
	return writeCrontab(ctx, kept)
}

// UninstallCron removes every line owned by the project.
func UninstallCron(ctx context.Context, projectName string) error {
	lines, err := readCrontab(ctx)
	if err != nil {
		return err
	}
	kept := filterMarkedLines(lines, cronMarker(projectName), false)
	return writeCrontab(ctx, kept)
}

func buildCronEntry(projectName string, projectDir string, cfg config.Project) string {
	command := cfg.Agent.Command
	if len(cfg.Agent.Args) > 0 {
		command += " " + strings.Join(cfg.Agent.Args, " ")
	}
	return fmt.Sprintf("%s cd %s && %s run %s", cfg.Cron.Schedule, projectDir, command, cronMarker(projectName))
}

// filterMarkedLines either keeps only the lines carrying marker (keep=true)
// or drops them (keep=false), preserving order.
func filterMarkedLines(lines []string, marker string, keep bool) []string {
	out := []string{}
	for _, line := range lines {
		marked := strings.Contains(line, marker)
		if marked == keep && strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func readCrontab(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "crontab", "-l")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		// "no crontab for <user>" comes back as exit 1: an empty table.
		if strings.Contains(stderr.String(), "no crontab") {
			return []string{}, nil
		}
		return nil, model.WrapIO("crontab -l", fmt.Errorf("%v: %s", err, strings.TrimSpace(stderr.String())))
	}
	return strings.Split(strings.TrimRight(string(out), "\n"), "\n"), nil
}

func writeCrontab(ctx context.Context, lines []string) error {
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	cmd := exec.CommandContext(ctx, "crontab", "-")
	cmd.Stdin = strings.NewReader(content)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return model.WrapIO("crontab -", fmt.Errorf("%v: %s", err, strings.TrimSpace(stderr.String())))
	}
	return nil
}
