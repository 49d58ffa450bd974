// Package health provides HTTP liveness and readiness probes for the local
// status server.
//
//   - /healthz — liveness; always 200 while the process serves HTTP.
//   - /readyz  — readiness; 200 only while every registered check passes.
//
// Checks are registered by name and may come and go at runtime: the room
// coordinator registers one check per participant session when it starts and
// removes it on shutdown.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// probeTimeout bounds a single readiness check.
const probeTimeout = 3 * time.Second

// CheckFunc probes one dependency. It returns nil while healthy and must
// respect context cancellation.
type CheckFunc func(ctx context.Context) error

// report is the JSON body served by both probes.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. Safe for concurrent use.
type Handler struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// New creates an empty [Handler].
func New() *Handler {
	return &Handler{checks: make(map[string]CheckFunc)}
}

// Set registers or replaces the named check.
func (h *Handler) Set(name string, fn CheckFunc) {
	h.mu.Lock()
	h.checks[name] = fn
	h.mu.Unlock()
}

// Remove unregisters the named check. Removing an unknown name is a no-op.
func (h *Handler) Remove(name string) {
	h.mu.Lock()
	delete(h.checks, name)
	h.mu.Unlock()
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz evaluates every registered check in name order and fails with 503
// if any check fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	fns := make(map[string]CheckFunc, len(h.checks))
	for name, fn := range h.checks {
		fns[name] = fn
	}
	h.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]string, len(names))
	ok := true
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := fns[name](ctx)
		cancel()
		if err != nil {
			results[name] = "fail: " + err.Error()
			ok = false
		} else {
			results[name] = "ok"
		}
	}

	rep := report{Status: "ok", Checks: results}
	status := http.StatusOK
	if !ok {
		rep.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
