package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"prdash/internal/model"
	"prdash/internal/serviceapi"
)

func newTestRuntime(core serviceapi.Core) *Runtime {
	return &Runtime{
		service:   core,
		startedAt: time.Now().UTC(),
	}
}

type mockCore struct {
	projectsFn      func() []model.ProjectInfo
	statusFn        func(context.Context, string) (serviceapi.Snapshot, error)
	subscribeFn     func(context.Context, string) (<-chan serviceapi.Event, func(), error)
	startFn         func(context.Context, string, model.ProcessKind, string) (serviceapi.StartResult, error)
	clearLockFn     func(context.Context, string, model.ProcessKind) (serviceapi.ClearResult, error)
	retryItemFn     func(context.Context, string, string) error
	cronInstallFn   func(context.Context, string) error
	cronUninstallFn func(context.Context, string) error
	watcherStatsFn  func() []serviceapi.WatcherSnapshot
}

func (m *mockCore) Shutdown() {}

func (m *mockCore) Projects() []model.ProjectInfo {
	if m.projectsFn == nil {
		return nil
	}
	return m.projectsFn()
}

func (m *mockCore) Status(ctx context.Context, projectName string) (serviceapi.Snapshot, error) {
	if m.statusFn == nil {
		return serviceapi.Snapshot{}, fmt.Errorf("status not implemented")
	}
	return m.statusFn(ctx, projectName)
}

func (m *mockCore) Subscribe(ctx context.Context, projectName string) (<-chan serviceapi.Event, func(), error) {
	if m.subscribeFn == nil {
		return nil, nil, fmt.Errorf("subscribe not implemented")
	}
	return m.subscribeFn(ctx, projectName)
}

func (m *mockCore) Start(ctx context.Context, projectName string, kind model.ProcessKind, item string) (serviceapi.StartResult, error) {
	if m.startFn == nil {
		return serviceapi.StartResult{}, fmt.Errorf("start not implemented")
	}
	return m.startFn(ctx, projectName, kind, item)
}

func (m *mockCore) ClearLock(ctx context.Context, projectName string, kind model.ProcessKind) (serviceapi.ClearResult, error) {
	if m.clearLockFn == nil {
		return serviceapi.ClearResult{}, fmt.Errorf("clear lock not implemented")
	}
	return m.clearLockFn(ctx, projectName, kind)
}

func (m *mockCore) RetryItem(ctx context.Context, projectName string, item string) error {
	if m.retryItemFn == nil {
		return fmt.Errorf("retry not implemented")
	}
	return m.retryItemFn(ctx, projectName, item)
}

func (m *mockCore) CronInstall(ctx context.Context, projectName string) error {
	if m.cronInstallFn == nil {
		return fmt.Errorf("cron install not implemented")
	}
	return m.cronInstallFn(ctx, projectName)
}

func (m *mockCore) CronUninstall(ctx context.Context, projectName string) error {
	if m.cronUninstallFn == nil {
		return fmt.Errorf("cron uninstall not implemented")
	}
	return m.cronUninstallFn(ctx, projectName)
}

func (m *mockCore) WatcherStats() []serviceapi.WatcherSnapshot {
	if m.watcherStatsFn == nil {
		return nil
	}
	return m.watcherStatsFn()
}

func TestHandleStatus(t *testing.T) {
	core := &mockCore{
		statusFn: func(_ context.Context, projectName string) (serviceapi.Snapshot, error) {
			if projectName != "demo" {
				t.Fatalf("expected project demo, got %q", projectName)
			}
			return serviceapi.Snapshot{
				ProjectName: "demo",
				Processes: []model.ProcessInfo{
					{Name: model.ProcessKindExecutor, Running: true, Pid: 4321},
					{Name: model.ProcessKindReviewer},
				},
				Timestamp: time.Now().UTC(),
			}, nil
		},
	}
	runtime := newTestRuntime(core)
	mux := http.NewServeMux()
	runtime.registerRoutes(mux)

	request := httptest.NewRequest(http.MethodGet, "/api/v1/status?project=demo", nil)
	response := httptest.NewRecorder()
	mux.ServeHTTP(response, request)
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}
	var payload serviceapi.Snapshot
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if payload.ProjectName != "demo" || len(payload.Processes) != 2 {
		t.Fatalf("unexpected snapshot %+v", payload)
	}
	if !payload.Processes[0].Running || payload.Processes[0].Pid != 4321 {
		t.Fatalf("unexpected executor state %+v", payload.Processes[0])
	}
}

func TestHandleStatusUnknownProject(t *testing.T) {
	core := &mockCore{
		statusFn: func(_ context.Context, projectName string) (serviceapi.Snapshot, error) {
			return serviceapi.Snapshot{}, model.NotFoundf("project %q", projectName)
		},
	}
	runtime := newTestRuntime(core)
	mux := http.NewServeMux()
	runtime.registerRoutes(mux)

	request := httptest.NewRequest(http.MethodGet, "/api/v1/status?project=nope", nil)
	response := httptest.NewRecorder()
	mux.ServeHTTP(response, request)
	if response.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", response.Code, response.Body.String())
	}
}

func TestHandleProjects(t *testing.T) {
	core := &mockCore{
		projectsFn: func() []model.ProjectInfo {
			return []model.ProjectInfo{{Name: "demo", Dir: "/work/demo"}}
		},
	}
	runtime := newTestRuntime(core)
	mux := http.NewServeMux()
	runtime.registerRoutes(mux)

	request := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	response := httptest.NewRecorder()
	mux.ServeHTTP(response, request)
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}
	var payload struct {
		Projects []model.ProjectInfo `json:"projects"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal projects: %v", err)
	}
	if len(payload.Projects) != 1 || payload.Projects[0].Name != "demo" {
		t.Fatalf("unexpected projects %+v", payload.Projects)
	}
}

func TestHandleStartRun(t *testing.T) {
	core := &mockCore{
		startFn: func(_ context.Context, projectName string, kind model.ProcessKind, item string) (serviceapi.StartResult, error) {
			if projectName != "demo" || kind != model.ProcessKindExecutor || item != "ITEM-7" {
				t.Fatalf("unexpected start args project=%q kind=%q item=%q", projectName, kind, item)
			}
			return serviceapi.StartResult{Started: true, Kind: kind, Pid: 4321}, nil
		},
	}
	runtime := newTestRuntime(core)
	mux := http.NewServeMux()
	runtime.registerRoutes(mux)

	body := `{"project":"demo","item":"ITEM-7"}`
	request := httptest.NewRequest(http.MethodPost, "/api/v1/actions/run", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	response := httptest.NewRecorder()
	mux.ServeHTTP(response, request)
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}
	var payload serviceapi.StartResult
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal start result: %v", err)
	}
	if !payload.Started || payload.Pid != 4321 {
		t.Fatalf("unexpected result %+v", payload)
	}
}

func TestHandleStartEmptyBody(t *testing.T) {
	core := &mockCore{
		startFn: func(_ context.Context, projectName string, kind model.ProcessKind, item string) (serviceapi.StartResult, error) {
			if projectName != "" || item != "" {
				t.Fatalf("expected empty project and item, got %q %q", projectName, item)
			}
			return serviceapi.StartResult{Started: true, Kind: kind, Pid: 1}, nil
		},
	}
	runtime := newTestRuntime(core)
	mux := http.NewServeMux()
	runtime.registerRoutes(mux)

	request := httptest.NewRequest(http.MethodPost, "/api/v1/actions/run", nil)
	response := httptest.NewRecorder()
	mux.ServeHTTP(response, request)
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200 with empty body, got %d: %s", response.Code, response.Body.String())
	}
}

func TestHandleStartConflictCarriesPid(t *testing.T) {
	core := &mockCore{
		startFn: func(_ context.Context, _ string, kind model.ProcessKind, _ string) (serviceapi.StartResult, error) {
			return serviceapi.StartResult{}, &model.ConflictError{Kind: kind, Pid: 4321}
		},
	}
	runtime := newTestRuntime(core)
	mux := http.NewServeMux()
	runtime.registerRoutes(mux)

	request := httptest.NewRequest(http.MethodPost, "/api/v1/actions/run", strings.NewReader(`{"project":"demo"}`))
	response := httptest.NewRecorder()
	mux.ServeHTTP(response, request)
	if response.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", response.Code, response.Body.String())
	}
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Pid     int    `json:"pid"`
		} `json:"error"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if payload.Error.Code != "conflict" || payload.Error.Pid != 4321 {
		t.Fatalf("unexpected error payload %+v", payload.Error)
	}
	if !strings.Contains(payload.Error.Message, "4321") {
		t.Fatalf("conflict message must name the pid, got %q", payload.Error.Message)
	}
}

func TestHandleStartSpawnFailure(t *testing.T) {
	core := &mockCore{
		startFn: func(_ context.Context, _ string, kind model.ProcessKind, _ string) (serviceapi.StartResult, error) {
			return serviceapi.StartResult{}, &model.SpawnError{Kind: kind, Err: fmt.Errorf("executable not found")}
		},
	}
	runtime := newTestRuntime(core)
	mux := http.NewServeMux()
	runtime.registerRoutes(mux)

	request := httptest.NewRequest(http.MethodPost, "/api/v1/actions/run", strings.NewReader(`{"project":"demo"}`))
	response := httptest.NewRecorder()
	mux.ServeHTTP(response, request)
	if response.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", response.Code, response.Body.String())
	}
}

func TestHandleClearLock(t *testing.T) {
	core := &mockCore{
		clearLockFn: func(_ context.Context, projectName string, kind model.ProcessKind) (serviceapi.ClearResult, error) {
			if projectName != "demo" || kind != model.ProcessKindReviewer {
				t.Fatalf("unexpected clear args project=%q kind=%q", projectName, kind)
			}
			return serviceapi.ClearResult{Cleared: true, RemovedClaims: 2}, nil
		},
	}
	runtime := newTestRuntime(core)
	mux := http.NewServeMux()
	runtime.registerRoutes(mux)

	body := `{"project":"demo","kind":"reviewer"}`
	request := httptest.NewRequest(http.MethodPost, "/api/v1/actions/clear-lock", strings.NewReader(body))
	response := httptest.NewRecorder()
	mux.ServeHTTP(response, request)
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}
	var payload serviceapi.ClearResult
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal clear result: %v", err)
	}
	if !payload.Cleared || payload.RemovedClaims != 2 {
		t.Fatalf("unexpected result %+v", payload)
	}
}

func TestHandleClearLockRejectsQA(t *testing.T) {
	runtime := newTestRuntime(&mockCore{})
	mux := http.NewServeMux()
	runtime.registerRoutes(mux)

	request := httptest.NewRequest(http.MethodPost, "/api/v1/actions/clear-lock", strings.NewReader(`{"kind":"qa"}`))
	response := httptest.NewRecorder()
	mux.ServeHTTP(response, request)
	if response.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", response.Code, response.Body.String())
	}
}

func TestHandleRetryRequiresItem(t *testing.T) {
	runtime := newTestRuntime(&mockCore{})
	mux := http.NewServeMux()
	runtime.registerRoutes(mux)

	request := httptest.NewRequest(http.MethodPost, "/api/v1/actions/retry", strings.NewReader(`{"project":"demo"}`))
	response := httptest.NewRecorder()
	mux.ServeHTTP(response, request)
	if response.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", response.Code, response.Body.String())
	}
}

func TestHandleRetry(t *testing.T) {
	core := &mockCore{
		retryItemFn: func(_ context.Context, projectName string, item string) error {
			if projectName != "demo" || item != "ITEM-1.md" {
				t.Fatalf("unexpected retry args project=%q item=%q", projectName, item)
			}
			return nil
		},
	}
	runtime := newTestRuntime(core)
	mux := http.NewServeMux()
	runtime.registerRoutes(mux)

	body := `{"project":"demo","item":"ITEM-1.md"}`
	request := httptest.NewRequest(http.MethodPost, "/api/v1/actions/retry", strings.NewReader(body))
	response := httptest.NewRecorder()
	mux.ServeHTTP(response, request)
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}
}

func TestHandleCronInstall(t *testing.T) {
	installed := false
	core := &mockCore{
		cronInstallFn: func(_ context.Context, projectName string) error {
			installed = true
			return nil
		},
	}
	runtime := newTestRuntime(core)
	mux := http.NewServeMux()
	runtime.registerRoutes(mux)

	request := httptest.NewRequest(http.MethodPost, "/api/v1/actions/cron-install", strings.NewReader(`{"project":"demo"}`))
	response := httptest.NewRecorder()
	mux.ServeHTTP(response, request)
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}
	if !installed {
		t.Fatalf("cron install was not invoked")
	}
}

func TestHandleHealthDegradedOnWatcherErrors(t *testing.T) {
	core := &mockCore{
		watcherStatsFn: func() []serviceapi.WatcherSnapshot {
			return []serviceapi.WatcherSnapshot{{Project: "demo", Running: true, ConsecutiveErrors: 3}}
		},
	}
	runtime := newTestRuntime(core)
	mux := http.NewServeMux()
	runtime.registerRoutes(mux)

	request := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	response := httptest.NewRecorder()
	mux.ServeHTTP(response, request)
	if response.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", response.Code, response.Body.String())
	}
	var payload HealthResponse
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if payload.Status != "degraded" || len(payload.Watchers) != 1 {
		t.Fatalf("unexpected health %+v", payload)
	}
}

func TestHandleStatusEvents(t *testing.T) {
	events := make(chan serviceapi.Event, 2)
	events <- serviceapi.Event{Name: "status_changed", Data: []byte(`{"project_name":"demo"}`)}
	events <- serviceapi.Event{Name: "executor_started", Data: []byte(`{"kind":"executor","pid":4321}`)}
	close(events)

	canceled := make(chan struct{})
	core := &mockCore{
		subscribeFn: func(_ context.Context, projectName string) (<-chan serviceapi.Event, func(), error) {
			if projectName != "demo" {
				t.Fatalf("expected project demo, got %q", projectName)
			}
			return events, func() { close(canceled) }, nil
		},
	}
	runtime := newTestRuntime(core)
	mux := http.NewServeMux()
	runtime.registerRoutes(mux)

	server := httptest.NewServer(mux)
	defer server.Close()

	response, err := http.Get(server.URL + "/api/v1/status/events?project=demo")
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.StatusCode)
	}
	if got := response.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}

	reader := bufio.NewReader(response.Body)
	var frames []string
	var current strings.Builder
	deadline := time.After(2 * time.Second)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if line == "\n" {
				frames = append(frames, current.String())
				current.Reset()
				if len(frames) == 2 {
					return
				}
				continue
			}
			current.WriteString(line)
		}
	}()
	select {
	case <-done:
	case <-deadline:
		t.Fatalf("timed out reading stream")
	}

	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if !strings.Contains(frames[0], "event: status_changed") || !strings.Contains(frames[0], `"project_name":"demo"`) {
		t.Fatalf("unexpected first frame %q", frames[0])
	}
	if !strings.Contains(frames[1], "event: executor_started") {
		t.Fatalf("unexpected second frame %q", frames[1])
	}

	// Channel close ends the stream and releases the subscription.
	if _, err := reader.ReadString('\n'); err == nil {
		t.Fatalf("expected stream to end after channel close")
	}
	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatalf("subscription cancel must run when the stream ends")
	}
}

func TestHandleStatusEventsUnknownProject(t *testing.T) {
	core := &mockCore{
		subscribeFn: func(_ context.Context, projectName string) (<-chan serviceapi.Event, func(), error) {
			return nil, nil, model.NotFoundf("project %q", projectName)
		},
	}
	runtime := newTestRuntime(core)
	mux := http.NewServeMux()
	runtime.registerRoutes(mux)

	request := httptest.NewRequest(http.MethodGet, "/api/v1/status/events?project=nope", nil)
	response := httptest.NewRecorder()
	mux.ServeHTTP(response, request)
	if response.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", response.Code, response.Body.String())
	}
}
