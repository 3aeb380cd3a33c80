// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/groupsplit/internal/adapters/repository"
	service "github.com/okian/groupsplit/internal/app"
	"github.com/okian/groupsplit/internal/domain/occurrence"
	"github.com/okian/groupsplit/internal/domain/picker"
)

// defaultMaxHistoryLimit caps GET /history when the server is built with a
// non-positive limit.
const defaultMaxHistoryLimit = 100

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	StatsProvider

	// Pick previews the best occurrence for date without recording it.
	Pick(ctx context.Context, date time.Time) (picker.Result, error)
	// Commit picks the best occurrence for date and appends it to history.
	Commit(ctx context.Context, date time.Time) (repository.Record, picker.Result, error)
	// History lists up to limit stored records, most recent first.
	History(ctx context.Context, limit int) ([]repository.Record, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	occurrencesHandler *OccurrencesHandler
	historyHandler     *HistoryHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, maxHistoryLimit int) *Server {
	if maxHistoryLimit < 1 {
		maxHistoryLimit = defaultMaxHistoryLimit
	}
	return &Server{
		healthHandler:      NewHealthHandler(nil),
		statsHandler:       NewStatsHandler(deps),
		occurrencesHandler: NewOccurrencesHandler(deps),
		historyHandler:     NewHistoryHandler(deps, maxHistoryLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/pick", MetricsMiddleware(s.occurrencesHandler.HandlePick, "pick"))
	mux.HandleFunc("/occurrences", MetricsMiddleware(s.occurrencesHandler.HandleCommit, "occurrences"))
	mux.HandleFunc("/history", MetricsMiddleware(s.historyHandler.HandleGetHistory, "history"))
}

// pickRequest is the body of POST /pick and POST /occurrences. Both fields
// are optional; an empty body picks for now.
type pickRequest struct {
	Date string `json:"date"`
}

func (p pickRequest) date() (time.Time, error) {
	if strings.TrimSpace(p.Date) == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(time.RFC3339, strings.TrimSpace(p.Date))
	if err != nil {
		return time.Time{}, errors.New("invalid date; must be RFC3339")
	}
	return d, nil
}

type pickResponse struct {
	Date       time.Time             `json:"date"`
	Groupings  []occurrence.Grouping `json:"groupings"`
	Score      float64               `json:"score"`
	Candidates int                   `json:"candidates"`
	Duplicates int                   `json:"duplicates"`
}

func newPickResponse(res picker.Result) pickResponse {
	return pickResponse{
		Date:       res.Occurrence.Date(),
		Groupings:  res.Occurrence.Groupings(),
		Score:      res.Score,
		Candidates: res.Candidates,
		Duplicates: res.Duplicates,
	}
}

type commitResponse struct {
	ID string `json:"id"`
	pickResponse
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func methodNotAllowed(w http.ResponseWriter, op string, allow ...string) {
	w.Header().Set("Allow", strings.Join(allow, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", wrapKind(op, ErrMethodNotAllowed, nil))
}

// serviceStatus translates service errors into an HTTP status and code.
func serviceStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNoCandidates):
		return http.StatusConflict, "no_candidates"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "not_started"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
