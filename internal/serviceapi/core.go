package serviceapi

import (
	"context"

	"prdash/internal/model"
	"prdash/internal/orchestrator"
	"prdash/internal/project"
	"prdash/internal/status"
)

type Event = orchestrator.Event
type StartResult = orchestrator.StartResult
type ClearResult = orchestrator.ClearResult
type WatcherSnapshot = orchestrator.WatcherSnapshot
type Snapshot = status.Snapshot

// Core is the surface the HTTP handlers and the CLI call into. Handler
// tests substitute a mock.
type Core interface {
	Shutdown()

	Projects() []model.ProjectInfo
	Status(ctx context.Context, projectName string) (Snapshot, error)
	Subscribe(ctx context.Context, projectName string) (<-chan Event, func(), error)

	Start(ctx context.Context, projectName string, kind model.ProcessKind, item string) (StartResult, error)
	ClearLock(ctx context.Context, projectName string, kind model.ProcessKind) (ClearResult, error)
	RetryItem(ctx context.Context, projectName string, item string) error
	CronInstall(ctx context.Context, projectName string) error
	CronUninstall(ctx context.Context, projectName string) error

	WatcherStats() []WatcherSnapshot
}

type LocalCore struct {
	service *orchestrator.Service
}

func NewLocalCore(registry *project.Registry, opts orchestrator.Options) *LocalCore {
	return &LocalCore{service: orchestrator.NewService(registry, opts, nil)}
}

// NewLocalCoreWithService wraps an existing service; the server runtime
// uses this to share its logger.
func NewLocalCoreWithService(service *orchestrator.Service) *LocalCore {
	return &LocalCore{service: service}
}

func (l *LocalCore) Shutdown() {
	if l == nil || l.service == nil {
		return
	}
	l.service.Shutdown()
}

func (l *LocalCore) Projects() []model.ProjectInfo {
	return l.service.Projects()
}

func (l *LocalCore) Status(ctx context.Context, projectName string) (Snapshot, error) {
	return l.service.Status(ctx, projectName)
}

func (l *LocalCore) Subscribe(ctx context.Context, projectName string) (<-chan Event, func(), error) {
	return l.service.Subscribe(ctx, projectName)
}

func (l *LocalCore) Start(ctx context.Context, projectName string, kind model.ProcessKind, item string) (StartResult, error) {
	return l.service.Start(ctx, projectName, kind, item)
}

func (l *LocalCore) ClearLock(ctx context.Context, projectName string, kind model.ProcessKind) (ClearResult, error) {
	return l.service.ClearLock(ctx, projectName, kind)
}

func (l *LocalCore) RetryItem(ctx context.Context, projectName string, item string) error {
	return l.service.RetryItem(ctx, projectName, item)
}

func (l *LocalCore) CronInstall(ctx context.Context, projectName string) error {
	return l.service.CronInstall(ctx, projectName)
}

func (l *LocalCore) CronUninstall(ctx context.Context, projectName string) error {
	return l.service.CronUninstall(ctx, projectName)
}

func (l *LocalCore) WatcherStats() []WatcherSnapshot {
	return l.service.WatcherStats()
}

var _ Core = (*LocalCore)(nil)
