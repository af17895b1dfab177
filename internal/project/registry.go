// Package project resolves external project identifiers to validated
// directories plus their freshly-loaded configuration.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"prdash/internal/config"
	"prdash/internal/model"
)

// Context is one resolved project. Config is loaded from disk at resolve
// time so callers always see the latest on-disk value.
type Context struct {
	Name   string
	Dir    string
	Config config.Project
}

type entry struct {
	dir        string
	configPath string
}

// Registry maps project names to directories. Directories are validated
// once; configs are re-read on every Resolve.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

// NewSingle builds a single-project registry rooted at dir. The empty
// project name resolves to it.
func NewSingle(name string, dir string) (*Registry, error) {
	abs, err := validateDir(dir)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = filepath.Base(abs)
	}
	registry := &Registry{entries: map[string]entry{}}
	registry.entries[name] = entry{dir: abs}
	registry.order = []string{name}
	return registry, nil
}

// NewFromFile builds a multi-project registry from a YAML registry file.
func NewFromFile(path string) (*Registry, error) {
	file, err := config.LoadRegistry(path)
	if err != nil {
		return nil, err
	}
	if len(file.Projects) == 0 {
		return nil, fmt.Errorf("registry %s lists no projects", path)
	}
	registry := &Registry{entries: map[string]entry{}}
	for _, item := range file.Projects {
		abs, err := validateDir(item.Dir)
		if err != nil {
			return nil, fmt.Errorf("project %q: %w", item.Name, err)
		}
		registry.entries[item.Name] = entry{dir: abs, configPath: strings.TrimSpace(item.ConfigPath)}
		registry.order = append(registry.order, item.Name)
	}
	return registry, nil
}

// Resolve returns the project context for name, loading its config fresh
// from disk. An empty name is accepted only when exactly one project is
// registered.
func (r *Registry) Resolve(name string) (Context, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name = strings.TrimSpace(name)
	if name == "" {
		if len(r.order) == 1 {
			name = r.order[0]
		} else {
			return Context{}, model.NotFoundf("project name is required (%d projects registered)", len(r.order))
		}
	}
	item, ok := r.entries[name]
	if !ok {
		return Context{}, model.NotFoundf("project %q", name)
	}
	if _, err := os.Stat(item.dir); err != nil {
		return Context{}, model.WrapIO("stat project dir "+item.dir, err)
	}

	configPath := item.configPath
	if configPath == "" {
		configPath = filepath.Join(item.dir, config.DefaultPath)
	}
	cfg, _, err := config.Load(configPath)
	if err != nil {
		return Context{}, model.WrapIO("load project config", err)
	}
	return Context{Name: name, Dir: item.dir, Config: cfg}, nil
}

// List returns registered projects in registration order.
func (r *Registry) List() []model.ProjectInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ProjectInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, model.ProjectInfo{Name: name, Dir: r.entries[name].dir})
	}
	return out
}

// Names returns registered project names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]string(nil), r.order...)
	sort.Strings(out)
	return out
}

func validateDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", fmt.Errorf("project dir cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project dir %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project dir %s is not a directory", abs)
	}
	return abs, nil
}
