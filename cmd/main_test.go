package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"github.com/spf13/pflag"

	service "github.com/okian/groupsplit/internal/app"
	"github.com/okian/groupsplit/internal/config"
)

// writeWorkspace lays out a roster, an exempt file and a config pointing at
// them, and returns the config path.
func writeWorkspace(t *testing.T, roster, exempt string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}
	rosterPath := write("Individuals.json", roster)
	exemptPath := write("Roommates.json", exempt)
	historyPath := filepath.Join(dir, "History.json")
	cfgPath := write("groupsplit.yaml", "log_level: error\n"+
		"roster_file: "+rosterPath+"\n"+
		"exempt_file: "+exemptPath+"\n"+
		"history_file: "+historyPath+"\n")
	return cfgPath, historyPath
}

type printed struct {
	ID         string     `json:"id"`
	Date       time.Time  `json:"date"`
	Groupings  [][]string `json:"groupings"`
	Score      float64    `json:"score"`
	Candidates int        `json:"candidates"`
}

func decodePrinted(buf *bytes.Buffer) printed {
	var p printed
	convey.So(json.Unmarshal(buf.Bytes(), &p), convey.ShouldBeNil)
	return p
}

func TestParseFlags(t *testing.T) {
	convey.Convey("Given command lines", t, func() {
		convey.Convey("When all flags are given", func() {
			f, err := parseFlags([]string{"--config", "c.yaml", "--date", "2024-01-01", "--dry-run"}, io.Discard)

			convey.Convey("Then they are parsed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(f.configPath, convey.ShouldEqual, "c.yaml")
				convey.So(f.date, convey.ShouldEqual, "2024-01-01")
				convey.So(f.dryRun, convey.ShouldBeTrue)
				convey.So(f.serve, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When shorthands are used", func() {
			f, err := parseFlags([]string{"-c", "c.yaml", "-n"}, io.Discard)
			convey.So(err, convey.ShouldBeNil)
			convey.So(f.configPath, convey.ShouldEqual, "c.yaml")
			convey.So(f.dryRun, convey.ShouldBeTrue)
		})

		convey.Convey("When help is requested", func() {
			var usage bytes.Buffer
			_, err := parseFlags([]string{"--help"}, &usage)
			convey.So(err, convey.ShouldEqual, pflag.ErrHelp)
			convey.So(usage.String(), convey.ShouldContainSubstring, "--dry-run")
		})

		convey.Convey("When arguments are invalid", func() {
			_, err := parseFlags([]string{"extra"}, io.Discard)
			convey.So(err, convey.ShouldNotBeNil)
			_, err = parseFlags([]string{"--serve", "--dry-run"}, io.Discard)
			convey.So(err, convey.ShouldNotBeNil)
			_, err = parseFlags([]string{"--bogus"}, io.Discard)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestParseDate(t *testing.T) {
	convey.Convey("Given date strings", t, func() {
		convey.Convey("Then RFC3339 is accepted", func() {
			d, err := parseDate("2024-03-04T09:30:00+01:00")
			convey.So(err, convey.ShouldBeNil)
			convey.So(d.Equal(time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC)), convey.ShouldBeTrue)
		})

		convey.Convey("And a bare date is accepted", func() {
			d, err := parseDate("2024-03-04")
			convey.So(err, convey.ShouldBeNil)
			convey.So(d.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)), convey.ShouldBeTrue)
		})

		convey.Convey("And empty means now", func() {
			d, err := parseDate("  ")
			convey.So(err, convey.ShouldBeNil)
			convey.So(d.IsZero(), convey.ShouldBeTrue)
		})

		convey.Convey("And anything else is rejected", func() {
			_, err := parseDate("03/04/2024")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a four-person roster", t, func() {
		cfgPath, historyPath := writeWorkspace(t, `["A", "B", "C", "D"]`, `[]`)
		ctx := context.Background()

		convey.Convey("When running a dry run", func() {
			var out bytes.Buffer
			err := run(ctx, []string{"--config", cfgPath, "--dry-run", "--date", "2024-01-01"}, &out)

			convey.Convey("Then the winner is printed but not recorded", func() {
				convey.So(err, convey.ShouldBeNil)
				p := decodePrinted(&out)
				convey.So(p.ID, convey.ShouldBeEmpty)
				convey.So(p.Groupings, convey.ShouldResemble, [][]string{{"A", "B"}, {"C", "D"}})
				_, statErr := os.Stat(historyPath)
				convey.So(os.IsNotExist(statErr), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When committing twice", func() {
			var first, second bytes.Buffer
			err1 := run(ctx, []string{"--config", cfgPath, "--date", "2024-01-01"}, &first)
			err2 := run(ctx, []string{"--config", cfgPath, "--date", "2024-01-08"}, &second)

			convey.Convey("Then the second pick avoids the first", func() {
				convey.So(err1, convey.ShouldBeNil)
				convey.So(err2, convey.ShouldBeNil)
				a, b := decodePrinted(&first), decodePrinted(&second)
				convey.So(a.ID, convey.ShouldNotBeEmpty)
				convey.So(b.ID, convey.ShouldNotEqual, a.ID)
				convey.So(a.Groupings, convey.ShouldResemble, [][]string{{"A", "B"}, {"C", "D"}})
				convey.So(b.Groupings, convey.ShouldResemble, [][]string{{"C", "A"}, {"B", "D"}})
				convey.So(b.Score, convey.ShouldEqual, 12.0)
				convey.So(b.Candidates, convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When the date is invalid", func() {
			err := run(ctx, []string{"--config", cfgPath, "--date", "soon"}, io.Discard)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the config file is missing", func() {
			err := run(ctx, []string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, io.Discard)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a roster where everyone is exempt from meeting", t, func() {
		cfgPath, _ := writeWorkspace(t, `["A", "B"]`, `[["A", "B"]]`)

		convey.Convey("Then a commit fails with no candidates", func() {
			err := run(context.Background(), []string{"--config", cfgPath}, io.Discard)
			convey.So(errors.Is(err, service.ErrNoCandidates), convey.ShouldBeTrue)
		})
	})
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given the assembled HTTP mux", t, func() {
		cfgPath, _ := writeWorkspace(t, `["A", "B", "C", "D"]`, `[]`)
		ctx := context.Background()
		cfg, err := config.Load(ctx, cfgPath)
		convey.So(err, convey.ShouldBeNil)

		svc := newService(cfg)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()
		mux := newMux(ctx, cfg, svc)

		convey.Convey("Then API and docs routes are served", func() {
			for _, tc := range []struct {
				method, path string
				status       int
			}{
				{http.MethodGet, "/healthz", http.StatusOK},
				{http.MethodGet, "/openapi.yaml", http.StatusOK},
				{http.MethodGet, "/api-docs", http.StatusOK},
				{http.MethodPost, "/pick", http.StatusOK},
				{http.MethodGet, "/history", http.StatusOK},
				{http.MethodGet, "/stats", http.StatusOK},
			} {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, tc.status)
			}
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metrics updaters", t, func() {
		svc := service.New()

		convey.Convey("Then they return once the context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("And a single update does not panic on an idle service", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}
