// Package orchestrator coordinates the dashboard's live view of background
// agent runs: per-project subscriber hubs, change watchers, and the gated
// spawn/clear-lock action paths.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"prdash/internal/config"
	"prdash/internal/inventory"
	"prdash/internal/lockfile"
	"prdash/internal/model"
	"prdash/internal/project"
	"prdash/internal/spawn"
	"prdash/internal/status"
)

type Options struct {
	// PollInterval overrides every project's watch interval when positive;
	// zero defers to each project's config.
	PollInterval time.Duration
	FetchTimeout time.Duration
	LogPeriod    time.Duration
	BufferSize   int
}

type StartResult struct {
	Started bool              `json:"started"`
	Kind    model.ProcessKind `json:"kind"`
	Pid     int               `json:"pid"`
}

type ClearResult struct {
	Cleared       bool `json:"cleared"`
	RemovedClaims int  `json:"removed_claims"`
}

// processStarter is what the service needs from the spawn layer; tests
// substitute a stub.
type processStarter interface {
	Start(projectDir string, cfg config.Project, kind model.ProcessKind, item string) (spawn.Result, error)
}

type Service struct {
	registry   *project.Registry
	aggregator *status.Aggregator
	launcher   processStarter
	logger     *log.Logger
	opts       Options

	mu     sync.Mutex
	hubs   map[string]*projectHub
	closed bool

	watchCtx    context.Context
	watchCancel context.CancelFunc
}

func NewService(registry *project.Registry, opts Options, logger *log.Logger) *Service {
	watchCtx, watchCancel := context.WithCancel(context.Background())
	return &Service{
		registry:    registry,
		aggregator:  status.NewAggregator(status.Collaborators{}),
		launcher:    spawn.NewLauncher(logger),
		logger:      logger,
		opts:        opts,
		hubs:        make(map[string]*projectHub),
		watchCtx:    watchCtx,
		watchCancel: watchCancel,
	}
}

// Shutdown stops every watcher and closes every subscriber channel.
func (s *Service) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	hubs := make([]*projectHub, 0, len(s.hubs))
	for _, hub := range s.hubs {
		hubs = append(hubs, hub)
	}
	s.mu.Unlock()

	s.watchCancel()
	for _, hub := range hubs {
		_ = hub.watcher.Wait(2 * time.Second)
		hub.broker.Close()
	}
}

func (s *Service) Projects() []model.ProjectInfo {
	return s.registry.List()
}

// Status returns a freshly-derived snapshot for the project. Nothing is
// cached between calls.
func (s *Service) Status(ctx context.Context, projectName string) (status.Snapshot, error) {
	pctx, err := s.registry.Resolve(projectName)
	if err != nil {
		return status.Snapshot{}, err
	}
	return s.fetchSnapshot(ctx, pctx)
}

// fetchSnapshot derives a fresh snapshot and overlays any local spawn
// records, so a process started moments ago shows running even before the
// child writes its lock file.
func (s *Service) fetchSnapshot(ctx context.Context, pctx project.Context) (status.Snapshot, error) {
	snap, err := s.aggregator.Fetch(ctx, pctx)
	if err != nil {
		return status.Snapshot{}, err
	}
	if hub := s.peekHub(pctx.Name); hub != nil {
		hub.overlayLocalPids(&snap)
	}
	return snap, nil
}

// Subscribe opens a live push channel for the project. The returned channel
// carries one immediate status_changed event reflecting current state
// before any watcher-driven event, then diff broadcasts in change order.
// The cancel func detaches the subscriber; the broker also detaches it on
// delivery failure.
func (s *Service) Subscribe(ctx context.Context, projectName string) (<-chan Event, func(), error) {
	pctx, err := s.registry.Resolve(projectName)
	if err != nil {
		return nil, nil, err
	}
	snap, err := s.fetchSnapshot(ctx, pctx)
	if err != nil {
		return nil, nil, err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, nil, err
	}
	hub, err := s.hubFor(pctx)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := hub.broker.Subscribe(Event{Name: EventStatusChanged, Data: data})
	return ch, cancel, nil
}

// Start launches a new automation process of kind, refusing duplicates.
// The duplicate check consults the agent's lock file and the hub's local
// spawn records under the project's spawn mutex, so concurrent callers are
// serialized: exactly one wins, the rest get a Conflict with the winning
// pid.
func (s *Service) Start(ctx context.Context, projectName string, kind model.ProcessKind, item string) (StartResult, error) {
	pctx, err := s.registry.Resolve(projectName)
	if err != nil {
		return StartResult{}, err
	}
	hub, err := s.hubFor(pctx)
	if err != nil {
		return StartResult{}, err
	}

	hub.spawnMu.Lock()
	defer hub.spawnMu.Unlock()

	if kind.HasLock() {
		lockPath := lockfile.PathFor(pctx.Dir, pctx.Config.Paths.LockDir, kind)
		lockStatus, err := lockfile.Check(lockPath)
		if err != nil {
			return StartResult{}, err
		}
		if lockStatus.Running {
			return StartResult{}, &model.ConflictError{Kind: kind, Pid: lockStatus.Pid}
		}
		if pid := hub.localPid(kind); pid > 0 {
			return StartResult{}, &model.ConflictError{Kind: kind, Pid: pid}
		}
	}

	result, err := s.launcher.Start(pctx.Dir, pctx.Config, kind, item)
	if err != nil {
		return StartResult{}, err
	}
	hub.recordSpawn(kind, result.Pid)

	// Best-effort side effects: neither may fail the caller's response.
	go spawn.Notify(pctx.Config, s.logger, pctx.Name, kind, result.Pid)
	s.publishStarted(hub, kind, result.Pid)
	s.rebroadcast(ctx, pctx, hub)

	return StartResult{Started: true, Kind: kind, Pid: result.Pid}, nil
}

// ClearLock removes the advisory lock for kind after re-verifying that no
// process holds it, then deletes every orphaned claim file outside done/
// and pushes a fresh snapshot.
func (s *Service) ClearLock(ctx context.Context, projectName string, kind model.ProcessKind) (ClearResult, error) {
	if !kind.HasLock() {
		return ClearResult{}, fmt.Errorf("%s has no lock to clear", kind)
	}
	pctx, err := s.registry.Resolve(projectName)
	if err != nil {
		return ClearResult{}, err
	}
	hub, err := s.hubFor(pctx)
	if err != nil {
		return ClearResult{}, err
	}

	hub.spawnMu.Lock()
	defer hub.spawnMu.Unlock()

	if pid := hub.localPid(kind); pid > 0 {
		return ClearResult{}, &model.ConflictError{Kind: kind, Pid: pid}
	}
	lockPath := lockfile.PathFor(pctx.Dir, pctx.Config.Paths.LockDir, kind)
	if err := lockfile.Clear(lockPath, kind); err != nil {
		return ClearResult{}, err
	}
	hub.forgetSpawn(kind)

	removed, err := inventory.RemoveOrphanClaims(pctx.Dir, pctx.Config)
	if err != nil {
		return ClearResult{}, err
	}
	s.rebroadcast(ctx, pctx, hub)
	return ClearResult{Cleared: true, RemovedClaims: removed}, nil
}

// RetryItem moves a completed PRD back to the top level so the agent picks
// it up again on its next run.
func (s *Service) RetryItem(ctx context.Context, projectName string, item string) error {
	pctx, err := s.registry.Resolve(projectName)
	if err != nil {
		return err
	}
	if err := inventory.RetryItem(pctx.Dir, pctx.Config, item); err != nil {
		return err
	}
	hub, err := s.hubFor(pctx)
	if err != nil {
		return err
	}
	s.rebroadcast(ctx, pctx, hub)
	return nil
}

func (s *Service) CronInstall(ctx context.Context, projectName string) error {
	pctx, err := s.registry.Resolve(projectName)
	if err != nil {
		return err
	}
	if err := inventory.InstallCron(ctx, pctx.Name, pctx.Dir, pctx.Config); err != nil {
		return err
	}
	hub, err := s.hubFor(pctx)
	if err != nil {
		return err
	}
	s.rebroadcast(ctx, pctx, hub)
	return nil
}

func (s *Service) CronUninstall(ctx context.Context, projectName string) error {
	pctx, err := s.registry.Resolve(projectName)
	if err != nil {
		return err
	}
	if err := inventory.UninstallCron(ctx, pctx.Name); err != nil {
		return err
	}
	hub, err := s.hubFor(pctx)
	if err != nil {
		return err
	}
	s.rebroadcast(ctx, pctx, hub)
	return nil
}

// WatcherStats reports the counters of every watcher started so far,
// sorted by project name.
func (s *Service) WatcherStats() []WatcherSnapshot {
	s.mu.Lock()
	hubs := make([]*projectHub, 0, len(s.hubs))
	for _, hub := range s.hubs {
		hubs = append(hubs, hub)
	}
	s.mu.Unlock()

	out := make([]WatcherSnapshot, 0, len(hubs))
	for _, hub := range hubs {
		out = append(out, hub.watcher.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Project < out[j].Project })
	return out
}

// peekHub returns the project's hub if one exists, without creating it.
// Plain status reads must not spin up a watcher.
func (s *Service) peekHub(projectName string) *projectHub {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hubs[projectName]
}

// hubFor returns the project's hub, building it and starting its watcher
// on first access.
func (s *Service) hubFor(pctx project.Context) (*projectHub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("service is shut down")
	}
	if hub, ok := s.hubs[pctx.Name]; ok {
		return hub, nil
	}

	broker := NewStatusBroker(s.opts.BufferSize)
	interval := s.opts.PollInterval
	if interval <= 0 {
		interval = time.Duration(pctx.Config.Watch.IntervalMS) * time.Millisecond
	}
	projectName := pctx.Name
	fetch := func(ctx context.Context) (status.Snapshot, error) {
		// Re-resolve on every tick so config edits apply between polls.
		fresh, err := s.registry.Resolve(projectName)
		if err != nil {
			return status.Snapshot{}, err
		}
		return s.fetchSnapshot(ctx, fresh)
	}
	w := newWatcher(projectName, fetch, broker, interval, s.opts.FetchTimeout, pctx.Config.Watch.FetchWhenIdle, s.opts.LogPeriod, s.logger)

	hub := newProjectHub(projectName, broker, w)
	s.hubs[projectName] = hub
	w.Start(s.watchCtx)
	return hub, nil
}

func (s *Service) publishStarted(hub *projectHub, kind model.ProcessKind, pid int) {
	payload := model.ExecutorStartedPayload{Kind: kind, Pid: pid, StartedAt: time.Now().UTC()}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	hub.broker.Publish(Event{Name: EventExecutorStarted, Data: data})
}

// rebroadcast pushes a fresh snapshot through the hub, best-effort. A
// failed fetch here is logged and dropped; the watcher retries on its next
// tick anyway.
func (s *Service) rebroadcast(ctx context.Context, pctx project.Context, hub *projectHub) {
	snap, err := s.fetchSnapshot(ctx, pctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("rebroadcast %s: %v", pctx.Name, err)
		}
		return
	}
	hub.watcher.publishSnapshot(snap)
}
