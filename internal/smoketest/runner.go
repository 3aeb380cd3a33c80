package smoketest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/groupsplit/pkg/logger"
)

// Run executes a complete smoke run against cfg.BaseURL and returns its
// statistics.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	stats := Stats{StartTime: time.Now()}
	if err := cfg.applyDefaults(); err != nil {
		return stats, err
	}
	log := logger.Get().Named("smoketest")

	log.Info(ctx, "starting groupsplit smoke test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("rounds", cfg.Rounds),
		logger.Int("previews", cfg.Previews),
		logger.Int("workers", cfg.Workers),
		logger.String("timeout", cfg.Timeout.String()))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	if err := previewConcurrently(ctx, &cfg, client, &stats); err != nil {
		return stats, fmt.Errorf("preview failed: %w", err)
	}

	committed, err := commitRounds(ctx, &cfg, client, &stats)
	if err != nil {
		return stats, fmt.Errorf("commit failed: %w", err)
	}

	history, err := fetchHistory(ctx, client, cfg.Rounds)
	if err != nil {
		return stats, fmt.Errorf("history retrieval failed: %w", err)
	}

	if err := verifyHistory(ctx, committed, history, &stats); err != nil {
		return stats, fmt.Errorf("history verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logFinalStats(ctx, stats)
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	resp, err := client.Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	// The body is the metrics exposition, so only the status matters.
	return decodeResponse(resp, http.StatusOK, nil)
}

func logFinalStats(ctx context.Context, stats Stats) {
	logger.Get().Named("smoketest").Info(ctx, "final statistics",
		logger.Int("previewsSent", stats.PreviewsSent),
		logger.Int("previewsOK", stats.PreviewsOK),
		logger.Int("previewsNoResult", stats.PreviewsNoResult),
		logger.Int("previewsFailed", stats.PreviewsFailed),
		logger.Int("committed", stats.Committed),
		logger.Int("historyRecords", stats.HistoryRecords),
		logger.Int("repeatedGroupings", stats.RepeatedGroupings),
		logger.String("duration", stats.Duration.String()))
}
