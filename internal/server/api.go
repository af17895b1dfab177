package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"prdash/internal/model"
)

func (r *Runtime) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/health", r.handleHealth)
	mux.HandleFunc("/api/v1/projects", r.handleProjects)
	mux.HandleFunc("/api/v1/status", r.handleStatus)
	mux.HandleFunc("/api/v1/status/events", r.handleStatusEvents)
	mux.HandleFunc("/api/v1/actions/run", r.handleStart(model.ProcessKindExecutor))
	mux.HandleFunc("/api/v1/actions/review", r.handleStart(model.ProcessKindReviewer))
	mux.HandleFunc("/api/v1/actions/qa", r.handleStart(model.ProcessKindQA))
	mux.HandleFunc("/api/v1/actions/clear-lock", r.handleClearLock)
	mux.HandleFunc("/api/v1/actions/retry", r.handleRetry)
	mux.HandleFunc("/api/v1/actions/cron-install", r.handleCron(true))
	mux.HandleFunc("/api/v1/actions/cron-uninstall", r.handleCron(false))
}

func (r *Runtime) handleProjects(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": r.service.Projects()})
}

func (r *Runtime) handleStatus(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}
	projectName := strings.TrimSpace(req.URL.Query().Get("project"))
	snapshot, err := r.service.Status(req.Context(), projectName)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

type startRequest struct {
	Project string `json:"project"`
	Item    string `json:"item"`
}

func (r *Runtime) handleStart(kind model.ProcessKind) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only POST is supported")
			return
		}
		var payload startRequest
		if err := decodeJSON(req, &payload); err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		result, err := r.service.Start(req.Context(), strings.TrimSpace(payload.Project), kind, strings.TrimSpace(payload.Item))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

type clearLockRequest struct {
	Project string `json:"project"`
	Kind    string `json:"kind"`
}

func (r *Runtime) handleClearLock(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only POST is supported")
		return
	}
	var payload clearLockRequest
	if err := decodeJSON(req, &payload); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	raw := strings.TrimSpace(payload.Kind)
	if raw == "" {
		raw = string(model.ProcessKindExecutor)
	}
	kind, err := model.ParseProcessKind(raw)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_kind", err.Error())
		return
	}
	if !kind.HasLock() {
		writeAPIError(w, http.StatusBadRequest, "invalid_kind", fmt.Sprintf("%s has no lock to clear", kind))
		return
	}
	result, err := r.service.ClearLock(req.Context(), strings.TrimSpace(payload.Project), kind)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type retryRequest struct {
	Project string `json:"project"`
	Item    string `json:"item"`
}

func (r *Runtime) handleRetry(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only POST is supported")
		return
	}
	var payload retryRequest
	if err := decodeJSON(req, &payload); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	item := strings.TrimSpace(payload.Item)
	if item == "" {
		writeAPIError(w, http.StatusBadRequest, "invalid_item", "item is required")
		return
	}
	if err := r.service.RetryItem(req.Context(), strings.TrimSpace(payload.Project), item); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"retried": true, "item": item})
}

type cronRequest struct {
	Project string `json:"project"`
}

func (r *Runtime) handleCron(install bool) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only POST is supported")
			return
		}
		var payload cronRequest
		if err := decodeJSON(req, &payload); err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		projectName := strings.TrimSpace(payload.Project)
		var err error
		if install {
			err = r.service.CronInstall(req.Context(), projectName)
		} else {
			err = r.service.CronUninstall(req.Context(), projectName)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"installed": install})
	}
}

// decodeJSON tolerates an empty body so single-project deployments can post
// actions without a payload.
func decodeJSON(req *http.Request, out any) error {
	if req.Body == nil {
		return nil
	}
	defer req.Body.Close()
	decoder := json.NewDecoder(req.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return nil
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Pid     int    `json:"pid,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAPIError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": apiError{
			Code:    strings.TrimSpace(code),
			Message: strings.TrimSpace(message),
		},
	})
}

// writeServiceError maps domain errors onto HTTP statuses. Conflicts carry
// the blocking pid so the UI can render it.
func writeServiceError(w http.ResponseWriter, err error) {
	if conflict, ok := model.AsConflict(err); ok {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": apiError{
				Code:    "conflict",
				Message: conflict.Error(),
				Pid:     conflict.Pid,
			},
		})
		return
	}
	if model.IsNotFound(err) {
		writeAPIError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	if model.IsSpawnError(err) {
		writeAPIError(w, http.StatusBadGateway, "spawn_failed", err.Error())
		return
	}
	writeAPIError(w, http.StatusInternalServerError, "internal_error", err.Error())
}
