package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks a dependency, e.g. storage.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the store answers.
type HealthHandler struct {
	store   Pinger
	timeout time.Duration
	now     func() time.Time
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Store     string `json:"store"`
	Timestamp string `json:"timestamp"`
}

// NewHealthHandler creates a health handler that pings store with a 2s timeout.
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store, timeout: 2 * time.Second, now: time.Now}
}

// ServeHTTP handles GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Store:     "ok",
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}

	if err := h.store.Ping(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Store = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
