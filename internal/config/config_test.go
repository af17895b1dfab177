package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Agent.Command != "prd-agent" {
		t.Fatalf("expected default agent command, got %q", cfg.Agent.Command)
	}
	if cfg.Watch.IntervalMS != 2000 {
		t.Fatalf("expected default interval 2000, got %d", cfg.Watch.IntervalMS)
	}
}

func TestLoadNormalizesPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "version: 1\nagent:\n  command: my-agent\nwatch:\n  interval_ms: 500\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Agent.Command != "my-agent" {
		t.Fatalf("expected my-agent, got %q", cfg.Agent.Command)
	}
	if cfg.Watch.IntervalMS != 500 {
		t.Fatalf("expected interval 500, got %d", cfg.Watch.IntervalMS)
	}
	if cfg.Paths.LockDir != ".agent" || cfg.Paths.PRDDir != "prd" {
		t.Fatalf("expected defaulted paths, got %+v", cfg.Paths)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("agent: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSaveDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := SaveDefault(path); err != nil {
		t.Fatalf("save default: %v", err)
	}
	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("load saved default: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("saved default must validate: %v", err)
	}
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.yaml")
	content := "projects:\n  - name: alpha\n    dir: /tmp/alpha\n  - name: beta\n    dir: /tmp/beta\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	file, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	if len(file.Projects) != 2 || file.Projects[0].Name != "alpha" {
		t.Fatalf("unexpected registry contents: %+v", file.Projects)
	}
}

func TestLoadRegistryRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.yaml")
	content := "projects:\n  - name: alpha\n    dir: /tmp/a\n  - name: alpha\n    dir: /tmp/b\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	if _, err := LoadRegistry(path); err == nil {
		t.Fatalf("expected duplicate project error")
	}
}
