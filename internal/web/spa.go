package web

import (
	"io"
	"io/fs"
	"net/http"
	"strings"
)

type SPAOptions struct {
	APIPrefix string // default "/api"
}

// RegisterSPA mounts the dashboard assets at "/", serving index.html for
// any client-side route. API paths fall through to 404 so a missing route
// never resolves to the SPA shell.
func RegisterSPA(mux *http.ServeMux, publicFS fs.FS, opts SPAOptions) bool {
	if publicFS == nil {
		return false
	}
	if _, err := publicFS.Open("index.html"); err != nil {
		return false
	}

	apiPrefix := opts.APIPrefix
	if apiPrefix == "" {
		apiPrefix = "/api"
	}

	fileServer := http.FileServer(http.FS(publicFS))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, apiPrefix) {
			http.NotFound(w, r)
			return
		}

		path := strings.TrimPrefix(r.URL.Path, "/")
		if path == "" {
			path = "index.html"
		}

		f, err := publicFS.Open(path)
		if err != nil {
			index, err := publicFS.Open("index.html")
			if err != nil {
				http.NotFound(w, r)
				return
			}
			defer func() { _ = index.Close() }()

			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.Copy(w, index)
			return
		}
		_ = f.Close()
		fileServer.ServeHTTP(w, r)
	}))
	return true
}
