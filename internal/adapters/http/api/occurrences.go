package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/okian/groupsplit/internal/adapters/repository"
	"github.com/okian/groupsplit/internal/domain/picker"
)

// maxBodyBytes bounds pick request bodies.
const maxBodyBytes = 4 << 10

// OccurrenceDependencies defines the operations behind /pick and /occurrences.
type OccurrenceDependencies interface {
	Pick(ctx context.Context, date time.Time) (picker.Result, error)
	Commit(ctx context.Context, date time.Time) (repository.Record, picker.Result, error)
}

// OccurrencesHandler previews and records occurrences.
type OccurrencesHandler struct {
	deps OccurrenceDependencies
}

// NewOccurrencesHandler creates a new occurrences handler.
func NewOccurrencesHandler(deps OccurrenceDependencies) *OccurrencesHandler {
	return &OccurrencesHandler{deps: deps}
}

// HandlePick handles POST /pick. The winner is returned but not recorded.
func (h *OccurrencesHandler) HandlePick(w http.ResponseWriter, r *http.Request) {
	const op = "api.pick"
	if r.Method != http.MethodPost {
		methodNotAllowed(w, op, http.MethodPost)
		return
	}
	date, err := decodeDate(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.Pick(r.Context(), date)
	if err != nil {
		status, code := serviceStatus(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, newPickResponse(res))
}

// HandleCommit handles POST /occurrences. The winner is appended to history.
func (h *OccurrencesHandler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	const op = "api.commit"
	if r.Method != http.MethodPost {
		methodNotAllowed(w, op, http.MethodPost)
		return
	}
	date, err := decodeDate(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	rec, res, err := h.deps.Commit(r.Context(), date)
	if err != nil {
		status, code := serviceStatus(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusCreated, commitResponse{ID: rec.ID, pickResponse: newPickResponse(res)})
}

// decodeDate reads the optional request body. A missing body yields the
// zero date.
func decodeDate(w http.ResponseWriter, r *http.Request) (time.Time, error) {
	var req pickRequest
	if r.Body != nil {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return time.Time{}, err
		}
	}
	return req.date()
}
