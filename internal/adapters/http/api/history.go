package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/groupsplit/internal/adapters/repository"
)

// HistoryDependencies defines the interface for history reads.
type HistoryDependencies interface {
	History(ctx context.Context, limit int) ([]repository.Record, error)
}

// HistoryHandler handles history requests.
type HistoryHandler struct {
	deps     HistoryDependencies
	maxLimit int
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies, maxLimit int) *HistoryHandler {
	return &HistoryHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetHistory handles GET /history?limit=N. Without limit the newest
// maxLimit records are returned.
func (h *HistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, op, http.MethodGet)
		return
	}
	n := h.maxLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
			return
		}
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", wrapKind(op, ErrLimitExceeded, nil))
		return
	}
	records, err := h.deps.History(r.Context(), n)
	if err != nil {
		status, code := serviceStatus(err)
		writeError(w, status, code, err)
		return
	}
	if records == nil {
		records = []repository.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}
