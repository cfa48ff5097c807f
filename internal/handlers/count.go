package handlers

import (
	"net/http"
	"strconv"

	"connectoralert/internal/logger"
	"connectoralert/internal/storage"
)

// CountHandler serves the current pending package count as a plain integer.
// Every request reads the store; nothing is cached.
type CountHandler struct {
	reader storage.CountReader
}

// NewCountHandler creates a new count handler
func NewCountHandler(reader storage.CountReader) *CountHandler {
	return &CountHandler{reader: reader}
}

// ServeHTTP handles GET /api/v1/count
func (h *CountHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, ErrMethodNotAllowed)
		return
	}

	count, err := h.reader.ReadPendingCount(r.Context())
	if err != nil {
		log := logger.WithRequestID(r.Header.Get("X-Request-ID"))
		log.Error().
			Err(err).
			Msg("count request failed")
		writeError(w, ErrStoreUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(strconv.FormatInt(count, 10)))
}
