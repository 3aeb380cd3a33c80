package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/groupsplit/internal/adapters/http/api"
	"github.com/okian/groupsplit/internal/adapters/repository"
	service "github.com/okian/groupsplit/internal/app"
	"github.com/okian/groupsplit/internal/domain/occurrence"
	"github.com/okian/groupsplit/internal/domain/picker"
	"github.com/okian/groupsplit/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDependencies is an in-memory stand-in for the service.
type mockDependencies struct {
	result   picker.Result
	err      error
	records  []repository.Record
	histErr  error
	lastDate time.Time
	lastN    int
	commits  int
}

func (m *mockDependencies) Pick(_ context.Context, date time.Time) (picker.Result, error) {
	m.lastDate = date
	if m.err != nil {
		return picker.Result{}, m.err
	}
	return m.result, nil
}

func (m *mockDependencies) Commit(_ context.Context, date time.Time) (repository.Record, picker.Result, error) {
	m.lastDate = date
	if m.err != nil {
		return repository.Record{}, picker.Result{}, m.err
	}
	m.commits++
	return repository.Record{ID: fmt.Sprintf("rec-%d", m.commits), Occurrence: m.result.Occurrence}, m.result, nil
}

func (m *mockDependencies) History(_ context.Context, limit int) ([]repository.Record, error) {
	m.lastN = limit
	if m.histErr != nil {
		return nil, m.histErr
	}
	if limit < len(m.records) {
		return m.records[:limit], nil
	}
	return m.records, nil
}

func (m *mockDependencies) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "commits": m.commits}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type pickBody struct {
	ID         string     `json:"id"`
	Date       time.Time  `json:"date"`
	Groupings  [][]string `json:"groupings"`
	Score      float64    `json:"score"`
	Candidates int        `json:"candidates"`
	Duplicates int        `json:"duplicates"`
}

func winner() picker.Result {
	date := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	return picker.Result{
		Occurrence: occurrence.New(date, [][]string{{"D", "A"}, {"B", "C"}}),
		Score:      24,
		Candidates: 40,
		Duplicates: 2,
	}
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func newMux(deps api.Dependencies, maxLimit int) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, maxLimit).Register(context.Background(), mux)
	return mux
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{result: winner()}
		mux := newMux(deps, 10)

		Convey("Then the health endpoint serves metrics", func() {
			w := serve(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "groupsplit_picker_")
		})

		Convey("And the stats endpoint serves JSON", func() {
			w := serve(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
			var stats map[string]any
			So(json.NewDecoder(w.Body).Decode(&stats), ShouldBeNil)
			So(stats["started"], ShouldEqual, true)
		})

		Convey("And unknown paths are not found", func() {
			w := serve(mux, http.MethodGet, "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("And wrong methods are rejected with an Allow header", func() {
			w := serve(mux, http.MethodGet, "/pick", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(w.Header().Get("Allow"), ShouldEqual, http.MethodPost)

			w = serve(mux, http.MethodPost, "/history", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(w.Header().Get("Allow"), ShouldEqual, http.MethodGet)

			w = serve(mux, http.MethodDelete, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("And requests are counted", func() {
			serve(mux, http.MethodGet, "/stats", "")
			n, err := testutil.GatherAndCount(metrics.GetRegistry(), "groupsplit_picker_http_requests_total")
			So(err, ShouldBeNil)
			So(n, ShouldBeGreaterThan, 0)
		})
	})
}

func TestOccurrencesHandler(t *testing.T) {
	Convey("Given an occurrences handler", t, func() {
		deps := &mockDependencies{result: winner()}
		mux := newMux(deps, 10)

		Convey("When previewing without a body", func() {
			w := serve(mux, http.MethodPost, "/pick", "")

			Convey("Then the winner is returned for now", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body pickBody
				So(json.NewDecoder(w.Body).Decode(&body), ShouldBeNil)
				So(body.Groupings, ShouldResemble, [][]string{{"D", "A"}, {"B", "C"}})
				So(body.Score, ShouldEqual, 24.0)
				So(body.Candidates, ShouldEqual, 40)
				So(body.Duplicates, ShouldEqual, 2)
				So(body.ID, ShouldBeEmpty)
				So(deps.lastDate.IsZero(), ShouldBeTrue)
				So(deps.commits, ShouldEqual, 0)
			})
		})

		Convey("When previewing for a date", func() {
			w := serve(mux, http.MethodPost, "/pick", `{"date":"2024-03-04T09:00:00Z"}`)

			Convey("Then the date reaches the service", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastDate.Equal(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)), ShouldBeTrue)
			})
		})

		Convey("When the date is not RFC3339", func() {
			w := serve(mux, http.MethodPost, "/pick", `{"date":"04/03/2024"}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				var body errorBody
				So(json.NewDecoder(w.Body).Decode(&body), ShouldBeNil)
				So(body.Code, ShouldEqual, "bad_request")
				So(body.Message, ShouldContainSubstring, "RFC3339")
			})
		})

		Convey("When the body is malformed", func() {
			So(serve(mux, http.MethodPost, "/pick", `{invalid json`).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodPost, "/occurrences", `{"when":"today"}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When committing", func() {
			w := serve(mux, http.MethodPost, "/occurrences", `{"date":"2024-03-04T09:00:00Z"}`)

			Convey("Then the record is created", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				var body pickBody
				So(json.NewDecoder(w.Body).Decode(&body), ShouldBeNil)
				So(body.ID, ShouldEqual, "rec-1")
				So(body.Score, ShouldEqual, 24.0)
				So(deps.commits, ShouldEqual, 1)
			})
		})

		Convey("When every candidate is exempt", func() {
			deps.err = fmt.Errorf("%w: every candidate grouping is exempt", service.ErrNoCandidates)
			w := serve(mux, http.MethodPost, "/occurrences", "")

			Convey("Then it is a conflict", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
				var body errorBody
				So(json.NewDecoder(w.Body).Decode(&body), ShouldBeNil)
				So(body.Code, ShouldEqual, "no_candidates")
			})
		})

		Convey("When the service is not started", func() {
			deps.err = service.ErrNotStarted
			So(serve(mux, http.MethodPost, "/pick", "").Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When the service fails", func() {
			deps.err = errors.New("disk on fire")
			w := serve(mux, http.MethodPost, "/pick", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			var body errorBody
			So(json.NewDecoder(w.Body).Decode(&body), ShouldBeNil)
			So(body.Code, ShouldEqual, "internal_error")
		})
	})
}

func TestHistoryHandler_HandleGetHistory(t *testing.T) {
	Convey("Given a history handler capped at 2", t, func() {
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		deps := &mockDependencies{records: []repository.Record{
			{ID: "c", Occurrence: occurrence.New(base.AddDate(0, 0, 2), [][]string{{"A", "D"}, {"B", "C"}})},
			{ID: "b", Occurrence: occurrence.New(base.AddDate(0, 0, 1), [][]string{{"A", "C"}, {"B", "D"}})},
			{ID: "a", Occurrence: occurrence.New(base, [][]string{{"A", "B"}, {"C", "D"}})},
		}}
		mux := newMux(deps, 2)

		Convey("When no limit is given", func() {
			w := serve(mux, http.MethodGet, "/history", "")

			Convey("Then the cap applies", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var records []repository.Record
				So(json.NewDecoder(w.Body).Decode(&records), ShouldBeNil)
				So(records, ShouldHaveLength, 2)
				So(records[0].ID, ShouldEqual, "c")
				So(records[1].Occurrence.String(), ShouldEqual, "[A C] [B D]")
				So(deps.lastN, ShouldEqual, 2)
			})
		})

		Convey("When a limit is given", func() {
			w := serve(mux, http.MethodGet, "/history?limit=1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastN, ShouldEqual, 1)
		})

		Convey("When the limit is invalid", func() {
			for _, q := range []string{"0", "-3", "ten"} {
				w := serve(mux, http.MethodGet, "/history?limit="+q, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When the limit exceeds the cap", func() {
			w := serve(mux, http.MethodGet, "/history?limit=3", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			var body errorBody
			So(json.NewDecoder(w.Body).Decode(&body), ShouldBeNil)
			So(body.Code, ShouldEqual, "limit_exceeded")
		})

		Convey("When history is empty", func() {
			deps.records = nil
			w := serve(mux, http.MethodGet, "/history", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
		})

		Convey("When the store fails", func() {
			deps.histErr = errors.New("read failed")
			So(serve(mux, http.MethodGet, "/history", "").Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestServer_WithService(t *testing.T) {
	Convey("Given a started service behind the API", t, func() {
		svc := service.New(
			service.WithHistory("json", filepath.Join(t.TempDir(), "History.json")),
			service.WithRoster([]string{"A", "B", "C", "D"}),
			service.WithExemptMeetings(),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		mux := newMux(svc, 0)

		Convey("When two occurrences are committed", func() {
			first := serve(mux, http.MethodPost, "/occurrences", `{"date":"2024-01-01T00:00:00Z"}`)
			second := serve(mux, http.MethodPost, "/occurrences", `{"date":"2024-01-08T00:00:00Z"}`)

			Convey("Then history lists them newest first", func() {
				So(first.Code, ShouldEqual, http.StatusCreated)
				So(second.Code, ShouldEqual, http.StatusCreated)

				w := serve(mux, http.MethodGet, "/history", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var records []repository.Record
				So(json.NewDecoder(w.Body).Decode(&records), ShouldBeNil)
				So(records, ShouldHaveLength, 2)
				So(records[0].Occurrence.String(), ShouldEqual, "[C A] [B D]")
				So(records[1].Occurrence.String(), ShouldEqual, "[A B] [C D]")
			})
		})
	})
}
