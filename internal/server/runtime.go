package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"prdash/internal/orchestrator"
	"prdash/internal/project"
	"prdash/internal/serviceapi"
	"prdash/internal/web"
)

type Options struct {
	Addr            string
	ProjectDir      string
	ProjectName     string
	RegistryPath    string
	PollInterval    time.Duration
	FetchTimeout    time.Duration
	LogPeriod       time.Duration
	BufferSize      int
	ShutdownTimeout time.Duration
}

type Runtime struct {
	opts      Options
	service   serviceapi.Core
	startedAt time.Time
	server    *http.Server
	logger    *log.Logger
}

type HealthResponse struct {
	Status    string                       `json:"status"`
	StartedAt time.Time                    `json:"started_at"`
	Now       time.Time                    `json:"now"`
	Projects  int                          `json:"projects"`
	Watchers  []serviceapi.WatcherSnapshot `json:"watchers"`
}

func NewRuntime(options Options) (*Runtime, error) {
	options = normalizeOptions(options)

	var registry *project.Registry
	var err error
	if options.RegistryPath != "" {
		registry, err = project.NewFromFile(options.RegistryPath)
	} else {
		registry, err = project.NewSingle(options.ProjectName, options.ProjectDir)
	}
	if err != nil {
		return nil, err
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	service := orchestrator.NewService(registry, orchestrator.Options{
		PollInterval: options.PollInterval,
		FetchTimeout: options.FetchTimeout,
		LogPeriod:    options.LogPeriod,
		BufferSize:   options.BufferSize,
	}, logger)

	runtime := &Runtime{
		opts:      options,
		service:   serviceapi.NewLocalCoreWithService(service),
		startedAt: time.Now().UTC(),
		logger:    logger,
	}
	mux := http.NewServeMux()
	runtime.registerRoutes(mux)
	spaMounted := web.RegisterSPA(mux, web.PublicFS, web.SPAOptions{
		APIPrefix: "/api",
	})
	if !spaMounted {
		mux.HandleFunc("/", runtime.handleSPAFallback)
	}
	runtime.server = &http.Server{
		Addr:    options.Addr,
		Handler: mux,
	}
	return runtime, nil
}

func (r *Runtime) Run(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("runtime is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	r.logger.Printf("listening on %s", r.opts.Addr)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			r.service.Shutdown()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.opts.ShutdownTimeout)
	defer cancel()
	if err := r.server.Shutdown(shutdownCtx); err != nil {
		r.service.Shutdown()
		return err
	}
	r.service.Shutdown()
	return nil
}

func normalizeOptions(options Options) Options {
	if options.Addr == "" {
		options.Addr = ":3000"
	}
	if options.ProjectDir == "" {
		options.ProjectDir = "."
	}
	if options.ShutdownTimeout <= 0 {
		options.ShutdownTimeout = 5 * time.Second
	}
	return options
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	watchers := r.service.WatcherStats()
	response := HealthResponse{
		Status:    "ok",
		StartedAt: r.startedAt,
		Now:       time.Now().UTC(),
		Projects:  len(r.service.Projects()),
		Watchers:  watchers,
	}
	statusCode := http.StatusOK
	for _, watcher := range watchers {
		if watcher.ConsecutiveErrors > 0 {
			response.Status = "degraded"
			statusCode = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, statusCode, response)
}

func (r *Runtime) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeAPIError(w, http.StatusNotFound, "not_found", "route not found")
}

func (r *Runtime) handleSPAFallback(w http.ResponseWriter, req *http.Request) {
	if strings.HasPrefix(req.URL.Path, "/api") {
		r.handleNotFound(w, req)
		return
	}
	http.Error(w, "web ui assets are unavailable; place a build under internal/web/embed/public or compile with `-tags embed`", http.StatusServiceUnavailable)
}
