// Package status derives one consistent point-in-time view of a project's
// automation state. Snapshots are never cached: every fetch re-reads lock
// files and re-runs the inventory collaborators, because stale data here
// would directly cause duplicate process starts.
package status

import (
	"context"
	"time"

	"prdash/internal/config"
	"prdash/internal/inventory"
	"prdash/internal/lockfile"
	"prdash/internal/model"
	"prdash/internal/project"
)

type Snapshot struct {
	ProjectName  string              `json:"project_name"`
	ProjectDir   string              `json:"project_dir"`
	Config       config.Project      `json:"config"`
	PRDs         []model.PRDItem     `json:"prds"`
	Processes    []model.ProcessInfo `json:"processes"`
	PullRequests []model.PullRequest `json:"prs"`
	Crontab      model.CrontabStatus `json:"crontab"`
	Timestamp    time.Time           `json:"timestamp"`
}

// Collaborators are the inventory providers merged into a snapshot. Zero
// fields fall back to the real implementations; tests inject fakes.
type Collaborators struct {
	PRDs         func(projectDir string, cfg config.Project) ([]model.PRDItem, error)
	PullRequests func(ctx context.Context, projectDir string, cfg config.Project) ([]model.PullRequest, error)
	Crontab      func(ctx context.Context, projectName string) (model.CrontabStatus, error)
}

type Aggregator struct {
	collab Collaborators
}

func NewAggregator(collab Collaborators) *Aggregator {
	if collab.PRDs == nil {
		collab.PRDs = inventory.ListPRDs
	}
	if collab.PullRequests == nil {
		collab.PullRequests = inventory.ListPullRequests
	}
	if collab.Crontab == nil {
		collab.Crontab = inventory.ListCrontab
	}
	return &Aggregator{collab: collab}
}

// Fetch assembles a whole snapshot or fails. The contract is all-or-nothing:
// if any collaborator errors, no partial snapshot is returned, since a
// dashboard mixing stale and fresh fields is worse than an explicit error.
func (a *Aggregator) Fetch(ctx context.Context, pctx project.Context) (Snapshot, error) {
	processes := make([]model.ProcessInfo, 0, len(model.LockKinds))
	for _, kind := range model.LockKinds {
		lockStatus, err := lockfile.Check(lockfile.PathFor(pctx.Dir, pctx.Config.Paths.LockDir, kind))
		if err != nil {
			return Snapshot{}, err
		}
		processes = append(processes, model.ProcessInfo{
			Name:    kind,
			Running: lockStatus.Running,
			Pid:     lockStatus.Pid,
		})
	}

	prds, err := a.collab.PRDs(pctx.Dir, pctx.Config)
	if err != nil {
		return Snapshot{}, err
	}
	prs, err := a.collab.PullRequests(ctx, pctx.Dir, pctx.Config)
	if err != nil {
		return Snapshot{}, err
	}
	crontab, err := a.collab.Crontab(ctx, pctx.Name)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		ProjectName:  pctx.Name,
		ProjectDir:   pctx.Dir,
		Config:       pctx.Config,
		PRDs:         prds,
		Processes:    processes,
		PullRequests: prs,
		Crontab:      crontab,
		Timestamp:    time.Now().UTC(),
	}, nil
}
