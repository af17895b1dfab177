package orchestrator

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"prdash/internal/status"
)

type fetchFunc func(ctx context.Context) (status.Snapshot, error)

// WatcherSnapshot is a point-in-time copy of one project watcher's
// counters, surfaced through the health endpoint.
type WatcherSnapshot struct {
	Project           string     `json:"project"`
	Running           bool       `json:"running"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	LastTickAt        *time.Time `json:"last_tick_at,omitempty"`
	LastBroadcastAt   *time.Time `json:"last_broadcast_at,omitempty"`
	LastErrorAt       *time.Time `json:"last_error_at,omitempty"`
	LastError         string     `json:"last_error,omitempty"`
	ConsecutiveErrors int        `json:"consecutive_errors"`
	TotalTicks        int64      `json:"total_ticks"`
	IdleTicks         int64      `json:"idle_ticks"`
	Broadcasts        int64      `json:"broadcasts"`
	Subscribers       int        `json:"subscribers"`
}

// watcher is one project's polling loop: fetch, fingerprint, broadcast on
// change. Once started it runs until service shutdown; it is deliberately
// not torn down when the last subscriber disconnects (one idle timer per
// ever-watched project is the accepted cost), but an empty subscriber set
// skips the fetch entirely unless fetchWhenIdle is set.
type watcher struct {
	project       string
	fetch         fetchFunc
	broker        *StatusBroker
	interval      time.Duration
	fetchTimeout  time.Duration
	fetchWhenIdle bool
	logInterval   time.Duration
	logger        *log.Logger

	mu         sync.Mutex
	running    bool
	doneChan   chan struct{}
	lastDigest uint64
	haveDigest bool
	snapshot   WatcherSnapshot
}

func newWatcher(project string, fetch fetchFunc, broker *StatusBroker, interval time.Duration, fetchTimeout time.Duration, fetchWhenIdle bool, logInterval time.Duration, logger *log.Logger) *watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	if logInterval <= 0 {
		logInterval = time.Minute
	}
	return &watcher{
		project:       project,
		fetch:         fetch,
		broker:        broker,
		interval:      interval,
		fetchTimeout:  fetchTimeout,
		fetchWhenIdle: fetchWhenIdle,
		logInterval:   logInterval,
		logger:        logger,
		snapshot:      WatcherSnapshot{Project: project},
	}
}

func (w *watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	now := time.Now().UTC()
	w.snapshot.Running = true
	w.snapshot.StartedAt = &now
	w.doneChan = make(chan struct{})
	done := w.doneChan
	w.mu.Unlock()

	go func() {
		defer close(done)
		w.loop(ctx)
		w.mu.Lock()
		w.running = false
		w.snapshot.Running = false
		w.mu.Unlock()
	}()
}

func (w *watcher) Wait(timeout time.Duration) bool {
	w.mu.Lock()
	done := w.doneChan
	w.mu.Unlock()
	if done == nil {
		return true
	}
	if timeout <= 0 {
		<-done
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func (w *watcher) Snapshot() WatcherSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.snapshot
	out.StartedAt = cloneTimePtr(w.snapshot.StartedAt)
	out.LastTickAt = cloneTimePtr(w.snapshot.LastTickAt)
	out.LastBroadcastAt = cloneTimePtr(w.snapshot.LastBroadcastAt)
	out.LastErrorAt = cloneTimePtr(w.snapshot.LastErrorAt)
	out.Subscribers = w.broker.Len()
	return out
}

func (w *watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	logTicker := time.NewTicker(w.logInterval)
	defer logTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runTick(ctx)
		case <-logTicker.C:
			w.logSnapshot()
		}
	}
}

// runTick performs one poll. Errors are recorded and swallowed: a bad tick
// must never stop the loop.
func (w *watcher) runTick(ctx context.Context) {
	now := time.Now().UTC()

	w.mu.Lock()
	w.snapshot.LastTickAt = &now
	w.snapshot.TotalTicks++
	w.mu.Unlock()

	if w.broker.Len() == 0 && !w.fetchWhenIdle {
		w.mu.Lock()
		w.snapshot.IdleTicks++
		w.mu.Unlock()
		return
	}

	tickCtx, cancel := context.WithTimeout(ctx, w.fetchTimeout)
	snap, err := w.fetch(tickCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		errAt := time.Now().UTC()
		w.mu.Lock()
		w.snapshot.ConsecutiveErrors++
		w.snapshot.LastErrorAt = &errAt
		w.snapshot.LastError = strings.TrimSpace(err.Error())
		w.mu.Unlock()
		return
	}

	digest := status.Fingerprint(snap)
	w.mu.Lock()
	w.snapshot.ConsecutiveErrors = 0
	w.snapshot.LastError = ""
	unchanged := w.haveDigest && digest == w.lastDigest
	w.mu.Unlock()
	if unchanged {
		return
	}
	w.publishSnapshot(snap)
}

// publishSnapshot stores the snapshot's fingerprint and broadcasts it as a
// status_changed event. Also used by the action paths so the UI reflects a
// spawn or clear without waiting for the next tick, without triggering a
// redundant diff broadcast afterwards.
func (w *watcher) publishSnapshot(snap status.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		if w.logger != nil {
			w.logger.Printf("watcher %s: marshal snapshot: %v", w.project, err)
		}
		return
	}
	now := time.Now().UTC()
	w.mu.Lock()
	w.lastDigest = status.Fingerprint(snap)
	w.haveDigest = true
	w.snapshot.Broadcasts++
	w.snapshot.LastBroadcastAt = &now
	w.mu.Unlock()
	w.broker.Publish(Event{Name: EventStatusChanged, Data: data})
}

func (w *watcher) logSnapshot() {
	if w.logger == nil {
		return
	}
	snap := w.Snapshot()
	w.logger.Printf(
		"watcher %s: subscribers=%d ticks=%d idle=%d broadcasts=%d errors=%d last_error=%q",
		snap.Project,
		snap.Subscribers,
		snap.TotalTicks,
		snap.IdleTicks,
		snap.Broadcasts,
		snap.ConsecutiveErrors,
		snap.LastError,
	)
}

func cloneTimePtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
