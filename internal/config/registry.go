package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RegistryEntry names one project the dashboard may serve.
type RegistryEntry struct {
	Name       string `yaml:"name" json:"name"`
	Dir        string `yaml:"dir" json:"dir"`
	ConfigPath string `yaml:"config,omitempty" json:"config,omitempty"`
}

type RegistryFile struct {
	Projects []RegistryEntry `yaml:"projects" json:"projects"`
}

// LoadRegistry reads a multi-project registry file.
func LoadRegistry(path string) (RegistryFile, error) {
	var file RegistryFile
	b, err := os.ReadFile(path)
	if err != nil {
		return file, fmt.Errorf("read registry %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &file); err != nil {
		return file, fmt.Errorf("parse registry %s: %w", path, err)
	}
	seen := map[string]bool{}
	for i, entry := range file.Projects {
		name := strings.TrimSpace(entry.Name)
		dir := strings.TrimSpace(entry.Dir)
		if name == "" {
			return file, fmt.Errorf("registry %s: project %d has no name", path, i)
		}
		if dir == "" {
			return file, fmt.Errorf("registry %s: project %q has no dir", path, name)
		}
		if seen[name] {
			return file, fmt.Errorf("registry %s: duplicate project %q", path, name)
		}
		seen[name] = true
		file.Projects[i].Name = name
		file.Projects[i].Dir = dir
	}
	return file, nil
}
