// groupsplit picks the next set of groupings for a roster, preferring
// partners who have not met recently, and records it in history.
//
// By default one occurrence is picked for --date (now when unset), printed
// as JSON and appended to history. --dry-run prints without recording.
// --serve runs the HTTP API instead.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/okian/groupsplit/internal/adapters/http/api"
	"github.com/okian/groupsplit/internal/adapters/http/swagger"
	service "github.com/okian/groupsplit/internal/app"
	"github.com/okian/groupsplit/internal/config"
	"github.com/okian/groupsplit/internal/domain/occurrence"
	"github.com/okian/groupsplit/internal/domain/picker"
	"github.com/okian/groupsplit/pkg/logger"
	"github.com/okian/groupsplit/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 30 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// flags holds the parsed command line.
type flags struct {
	configPath string
	date       string
	dryRun     bool
	serve      bool
}

func parseFlags(args []string, usage io.Writer) (flags, error) {
	var f flags
	flagSet := pflag.NewFlagSet("groupsplit", pflag.ContinueOnError)
	flagSet.SetOutput(usage)
	flagSet.StringVarP(&f.configPath, "config", "c", "", "YAML config file (default $"+config.EnvConfigFile+")")
	flagSet.StringVarP(&f.date, "date", "d", "", "occurrence date, RFC3339 or YYYY-MM-DD (default now)")
	flagSet.BoolVarP(&f.dryRun, "dry-run", "n", false, "print the winner without recording it")
	flagSet.BoolVar(&f.serve, "serve", false, "run the HTTP API")

	if err := flagSet.Parse(args); err != nil {
		return flags{}, err
	}
	if flagSet.NArg() > 0 {
		return flags{}, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	if f.serve && (f.dryRun || f.date != "") {
		return flags{}, errors.New("--serve cannot be combined with --dry-run or --date")
	}
	return f, nil
}

// parseDate accepts RFC3339 or a bare calendar date. Empty means now.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q; want RFC3339 or YYYY-MM-DD", s)
	}
	return d, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	f, err := parseFlags(args, os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	date, err := parseDate(f.date)
	if err != nil {
		return err
	}

	if err := logger.Init(); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	cfg, err := config.Load(ctx, f.configPath)
	if err != nil {
		return err
	}

	// Fall back to info on an invalid level so a typo does not stop a run.
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		log.Warn(ctx, "invalid log_format; falling back to text", logger.String("log_format", cfg.LogFormat), logger.Error(err))
	}

	svc := newService(cfg)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	switch {
	case f.serve:
		return serve(ctx, cfg, svc)
	case f.dryRun:
		res, err := svc.Pick(ctx, date)
		if err != nil {
			return err
		}
		return printResult(stdout, "", res)
	default:
		rec, res, err := svc.Commit(ctx, date)
		if err != nil {
			return err
		}
		return printResult(stdout, rec.ID, res)
	}
}

func newService(cfg *config.Config) *service.Service {
	return service.New(
		service.WithLogger(logger.Named("service")),
		service.WithGroupSize(cfg.GroupSize),
		service.WithRosterFile(cfg.RosterFile),
		service.WithExemptFile(cfg.ExemptFile),
		service.WithHistory(strings.ToLower(cfg.HistoryBackend), cfg.HistoryPath()),
		service.WithWeightCoefficient(cfg.WeightCoefficient),
		service.WithWorkers(cfg.Workers),
		service.WithDedupeSize(cfg.DedupeSize),
	)
}

// summary is what the CLI prints for a pick.
type summary struct {
	ID         string                `json:"id,omitempty"`
	Date       time.Time             `json:"date"`
	Groupings  []occurrence.Grouping `json:"groupings"`
	Score      float64               `json:"score"`
	Candidates int                   `json:"candidates"`
}

func printResult(w io.Writer, id string, res picker.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary{
		ID:         id,
		Date:       res.Occurrence.Date(),
		Groupings:  res.Occurrence.Groupings(),
		Score:      res.Score,
		Candidates: res.Candidates,
	})
}

func newMux(ctx context.Context, cfg *config.Config, svc *service.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, cfg.MaxHistoryLimit).Register(ctx, mux)
	return mux
}

func serve(ctx context.Context, cfg *config.Config, svc *service.Service) error {
	log := logger.Get()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}

	log.Info(ctx, "server stopped")
	return nil
}

// startSystemMetricsUpdater refreshes process metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

// updateServiceMetrics lets GetStats refresh the history gauge.
func updateServiceMetrics(svc *service.Service) {
	if n, ok := svc.GetStats()["historySize"].(int); ok {
		metrics.UpdateHistorySize(n)
	}
}
