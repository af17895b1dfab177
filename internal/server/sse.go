package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const ssePingInterval = 30 * time.Second

// handleStatusEvents streams a project's status over server-sent events.
// The first frame is always a status_changed event with the current
// snapshot; after that the subscriber only sees change broadcasts. The
// stream ends when the client disconnects, the subscriber is evicted for
// not keeping up, or the server shuts down.
func (r *Runtime) handleStatusEvents(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAPIError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming")
		return
	}

	projectName := strings.TrimSpace(req.URL.Query().Get("project"))
	events, cancel, err := r.service.Subscribe(req.Context(), projectName)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ping := time.NewTicker(ssePingInterval)
	defer ping.Stop()

	for {
		select {
		case <-req.Context().Done():
			return
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, event.Data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
