package orchestrator

import (
	"sync"

	"prdash/internal/lockfile"
	"prdash/internal/model"
	"prdash/internal/status"
)

// projectHub owns all per-project mutable state: the subscriber broker,
// the change watcher, and the spawn bookkeeping. Hubs are built lazily on
// first access and live until service shutdown, so different projects never
// contend on a shared lock.
type projectHub struct {
	name    string
	broker  *StatusBroker
	watcher *watcher

	// spawnMu serializes the whole check-then-spawn window for this
	// project, making concurrent start attempts race-free.
	spawnMu sync.Mutex

	// pidMu guards localPids separately so snapshot overlays never block
	// on an in-flight spawn.
	pidMu sync.Mutex
	// localPids records processes this server started that may not have
	// written their lock file yet. The external agent owns the lock file
	// lifecycle, so these records are the only defense against the gap
	// between a successful spawn and the child creating its lock.
	localPids map[model.ProcessKind]int
}

func newProjectHub(name string, broker *StatusBroker, w *watcher) *projectHub {
	return &projectHub{
		name:      name,
		broker:    broker,
		watcher:   w,
		localPids: make(map[model.ProcessKind]int),
	}
}

func (h *projectHub) recordSpawn(kind model.ProcessKind, pid int) {
	h.pidMu.Lock()
	defer h.pidMu.Unlock()
	h.localPids[kind] = pid
}

// localPid returns the pid of a locally-started process of kind that is
// still alive, pruning dead records.
func (h *projectHub) localPid(kind model.ProcessKind) int {
	h.pidMu.Lock()
	defer h.pidMu.Unlock()
	pid, ok := h.localPids[kind]
	if !ok {
		return 0
	}
	if !lockfile.PidAlive(pid) {
		delete(h.localPids, kind)
		return 0
	}
	return pid
}

func (h *projectHub) forgetSpawn(kind model.ProcessKind) {
	h.pidMu.Lock()
	defer h.pidMu.Unlock()
	delete(h.localPids, kind)
}

// overlayLocalPids marks processes running when this server spawned them
// and the child has not yet written its lock file. Without this, the window
// between spawn and lock creation would report a running process as idle.
func (h *projectHub) overlayLocalPids(snap *status.Snapshot) {
	for i := range snap.Processes {
		if snap.Processes[i].Running {
			continue
		}
		if pid := h.localPid(snap.Processes[i].Name); pid > 0 {
			snap.Processes[i].Running = true
			snap.Processes[i].Pid = pid
		}
	}
}
