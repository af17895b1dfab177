// Package inventory holds the status collaborators: PRD items, pull
// requests, and crontab entries. Each is a function of (project dir,
// config) returning a list; the aggregator treats the results as opaque.
package inventory

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"prdash/internal/config"
	"prdash/internal/model"
)

const (
	// ClaimExtension marks a work item as held by a running executor.
	ClaimExtension = ".claim"
	// DoneDirName is the subtree of completed items, exempt from cleanup.
	DoneDirName = "done"
)

// ListPRDs scans the PRD directory. Top-level *.md files are pending, or
// claimed when a sibling <name>.claim marker exists; files under done/ are
// done. A missing PRD directory is an empty project, not an error.
func ListPRDs(projectDir string, cfg config.Project) ([]model.PRDItem, error) {
	prdDir := filepath.Join(projectDir, cfg.Paths.PRDDir)
	entries, err := os.ReadDir(prdDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.PRDItem{}, nil
		}
		return nil, model.WrapIO("read prd dir "+prdDir, err)
	}

	items := []model.PRDItem{}
	claims := map[string]bool{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ClaimExtension) {
			claims[strings.TrimSuffix(name, ClaimExtension)] = true
		}
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".md")
		status := model.PRDStatusPending
		if claims[name] || claims[entry.Name()] {
			status = model.PRDStatusClaimed
		}
		items = append(items, model.PRDItem{
			Name:   name,
			Status: status,
			Path:   filepath.Join(prdDir, entry.Name()),
		})
	}

	doneDir := filepath.Join(prdDir, DoneDirName)
	doneEntries, err := os.ReadDir(doneDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, model.WrapIO("read prd done dir "+doneDir, err)
	}
	for _, entry := range doneEntries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		items = append(items, model.PRDItem{
			Name:   strings.TrimSuffix(entry.Name(), ".md"),
			Status: model.PRDStatusDone,
			Path:   filepath.Join(doneDir, entry.Name()),
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// RemoveOrphanClaims deletes every claim marker outside the done/ subtree
// and returns how many were removed. Called after a successful clear-lock,
// when any remaining claim is known to be orphaned.
func RemoveOrphanClaims(projectDir string, cfg config.Project) (int, error) {
	prdDir := filepath.Join(projectDir, cfg.Paths.PRDDir)
	removed := 0
	err := filepath.WalkDir(prdDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == DoneDirName && path != prdDir {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ClaimExtension) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, model.WrapIO("remove orphan claims", err)
	}
	return removed, nil
}

// RetryItem moves done/<item>.md back to the PRD top level so the agent
// picks it up again. Refuses when a top-level file with the same name
// already exists.
func RetryItem(projectDir string, cfg config.Project, item string) error {
	item = strings.TrimSpace(strings.TrimSuffix(item, ".md"))
	if item == "" || strings.ContainsAny(item, "/\\") {
		return model.NotFoundf("prd item %q", item)
	}
	prdDir := filepath.Join(projectDir, cfg.Paths.PRDDir)
	donePath := filepath.Join(prdDir, DoneDirName, item+".md")
	targetPath := filepath.Join(prdDir, item+".md")

	if _, err := os.Stat(donePath); err != nil {
		if os.IsNotExist(err) {
			return model.NotFoundf("done prd item %q", item)
		}
		return model.WrapIO("stat "+donePath, err)
	}
	if _, err := os.Stat(targetPath); err == nil {
		return model.WrapIO("retry "+item, os.ErrExist)
	} else if !os.IsNotExist(err) {
		return model.WrapIO("stat "+targetPath, err)
	}
	if err := os.Rename(donePath, targetPath); err != nil {
		return model.WrapIO("move "+donePath, err)
	}
	return nil
}
