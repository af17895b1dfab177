package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the per-project config file, relative to the project dir.
const DefaultPath = ".prdash/config.yaml"

// Project is the per-project agent configuration. It is re-read from disk on
// every resolve, so edits take effect on the next snapshot without a restart.
type Project struct {
	Version int `yaml:"version" json:"version"`
	Agent   struct {
		Command string   `yaml:"command" json:"command"`
		Args    []string `yaml:"args,omitempty" json:"args,omitempty"`
	} `yaml:"agent" json:"agent"`
	Paths struct {
		LockDir string `yaml:"lock_dir" json:"lock_dir"`
		PRDDir  string `yaml:"prd_dir" json:"prd_dir"`
	} `yaml:"paths" json:"paths"`
	Watch struct {
		IntervalMS    int  `yaml:"interval_ms" json:"interval_ms"`
		FetchWhenIdle bool `yaml:"fetch_when_idle" json:"fetch_when_idle"`
	} `yaml:"watch" json:"watch"`
	GitHub struct {
		Disabled bool `yaml:"disabled" json:"disabled"`
	} `yaml:"github" json:"github"`
	Cron struct {
		Schedule string `yaml:"schedule" json:"schedule"`
	} `yaml:"cron" json:"cron"`
	Notify struct {
		Command string   `yaml:"command,omitempty" json:"command,omitempty"`
		Args    []string `yaml:"args,omitempty" json:"args,omitempty"`
	} `yaml:"notify" json:"notify"`
}

func Default() Project {
	cfg := Project{Version: 1}
	cfg.Agent.Command = "prd-agent"
	cfg.Paths.LockDir = ".agent"
	cfg.Paths.PRDDir = "prd"
	cfg.Watch.IntervalMS = 2000
	cfg.Cron.Schedule = "0 9 * * *"
	return cfg
}

// Load reads the project config at path (or the default location when path
// is empty). A missing file yields the defaults, not an error.
func Load(path string) (Project, string, error) {
	cfg := Default()
	finalPath := path
	if strings.TrimSpace(finalPath) == "" {
		finalPath = DefaultPath
	}
	if _, err := os.Stat(finalPath); os.IsNotExist(err) {
		return cfg, finalPath, nil
	}

	b, err := os.ReadFile(finalPath)
	if err != nil {
		return cfg, finalPath, fmt.Errorf("read config %s: %w", finalPath, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, finalPath, fmt.Errorf("parse config %s: %w", finalPath, err)
	}
	cfg = normalize(cfg)
	if err := Validate(cfg); err != nil {
		return cfg, finalPath, fmt.Errorf("validate config %s: %w", finalPath, err)
	}
	return cfg, finalPath, nil
}

func SaveDefault(path string) error {
	cfg := Default()
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func Validate(cfg Project) error {
	if cfg.Version <= 0 {
		return fmt.Errorf("version must be positive")
	}
	if strings.TrimSpace(cfg.Agent.Command) == "" {
		return fmt.Errorf("agent.command cannot be empty")
	}
	if strings.TrimSpace(cfg.Paths.LockDir) == "" {
		return fmt.Errorf("paths.lock_dir cannot be empty")
	}
	if strings.TrimSpace(cfg.Paths.PRDDir) == "" {
		return fmt.Errorf("paths.prd_dir cannot be empty")
	}
	if cfg.Watch.IntervalMS <= 0 {
		return fmt.Errorf("watch.interval_ms must be > 0")
	}
	return nil
}

func normalize(cfg Project) Project {
	defaults := Default()
	if strings.TrimSpace(cfg.Agent.Command) == "" {
		cfg.Agent.Command = defaults.Agent.Command
	}
	if strings.TrimSpace(cfg.Paths.LockDir) == "" {
		cfg.Paths.LockDir = defaults.Paths.LockDir
	}
	if strings.TrimSpace(cfg.Paths.PRDDir) == "" {
		cfg.Paths.PRDDir = defaults.Paths.PRDDir
	}
	if cfg.Watch.IntervalMS <= 0 {
		cfg.Watch.IntervalMS = defaults.Watch.IntervalMS
	}
	if strings.TrimSpace(cfg.Cron.Schedule) == "" {
		cfg.Cron.Schedule = defaults.Cron.Schedule
	}
	if cfg.Version <= 0 {
		cfg.Version = defaults.Version
	}
	return cfg
}
