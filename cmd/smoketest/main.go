// smoketest drives a running groupsplit server: it previews picks
// concurrently, commits a series of occurrences and verifies the history.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/okian/groupsplit/internal/smoketest"
	"github.com/okian/groupsplit/pkg/logger"
)

const (
	defaultRounds    = 4
	defaultPreviews  = 64
	defaultTimeout   = 30 * time.Second
	defaultRunBudget = 10 * time.Minute
	logFilePerm      = 0o600
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "smoke test failed: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var (
		cfg     smoketest.Config
		start   string
		logFile string
	)
	flagSet := pflag.NewFlagSet("smoketest", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "base URL of the service")
	flagSet.IntVar(&cfg.Rounds, "rounds", defaultRounds, "occurrences to commit")
	flagSet.IntVar(&cfg.Previews, "previews", defaultPreviews, "concurrent POST /pick requests")
	flagSet.IntVar(&cfg.Workers, "workers", runtime.NumCPU(), "concurrent preview workers")
	flagSet.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	flagSet.DurationVar(&cfg.Interval, "interval", 7*24*time.Hour, "gap between committed occurrences")
	flagSet.StringVar(&start, "start", "", "date of the first commit, RFC3339 (default now)")
	flagSet.StringVar(&logFile, "log", "", "also write JSON logs to this file")
	flagSet.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log every response")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if start != "" {
		d, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		cfg.Start = d
	}

	if err := logger.Init(); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerm)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer func() { _ = f.Close() }()
		logger.SetOutput(io.MultiWriter(os.Stderr, f))
		if err := logger.SetFormat("json"); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, defaultRunBudget)
	defer cancel()

	_, err := smoketest.Run(ctx, cfg)
	return err
}
