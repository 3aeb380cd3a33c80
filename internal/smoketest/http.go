package smoketest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/groupsplit/pkg/logger"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Get performs a GET request against path.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body against path.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// decodeResponse checks the status and decodes the JSON body into v.
func decodeResponse(resp *http.Response, want int, v any) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	if v == nil {
		return nil
	}
	return json.Unmarshal(body, v)
}

type dateRequest struct {
	Date string `json:"date,omitempty"`
}

// previewConcurrently fires cfg.Previews POST /pick requests from a worker
// pool. Previews never change history, so every one should agree.
func previewConcurrently(ctx context.Context, cfg *Config, client *HTTPClient, stats *Stats) error {
	log := logger.Get().Named("smoketest")
	log.Info(ctx, "previewing picks", logger.Int("previews", cfg.Previews), logger.Int("workers", cfg.Workers))

	var sent, ok, noResult, failed atomic.Int64
	var mu sync.Mutex
	signatures := map[string]int{}

	jobs := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				sent.Add(1)
				resp, err := client.Post(ctx, "/pick", dateRequest{Date: cfg.Start.Format(time.RFC3339)})
				if err != nil {
					failed.Add(1)
					continue
				}
				if resp.StatusCode == http.StatusConflict {
					_ = resp.Body.Close()
					noResult.Add(1)
					continue
				}
				var p Pick
				if err := decodeResponse(resp, http.StatusOK, &p); err != nil {
					failed.Add(1)
					if cfg.Verbose {
						log.Warn(ctx, "preview failed", logger.Error(err))
					}
					continue
				}
				ok.Add(1)
				mu.Lock()
				signatures[fmt.Sprint(p.Groupings)]++
				mu.Unlock()
			}
		}()
	}

	func() {
		defer close(jobs)
		for i := 0; i < cfg.Previews; i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()

	stats.PreviewsSent = int(sent.Load())
	stats.PreviewsOK = int(ok.Load())
	stats.PreviewsNoResult = int(noResult.Load())
	stats.PreviewsFailed = int(failed.Load())

	log.Info(ctx, "preview completed",
		logger.Int("ok", stats.PreviewsOK),
		logger.Int("noResult", stats.PreviewsNoResult),
		logger.Int("failed", stats.PreviewsFailed))

	if len(signatures) > 1 {
		return fmt.Errorf("concurrent previews disagreed: %d distinct winners", len(signatures))
	}
	return ctx.Err()
}

// commitRounds records cfg.Rounds occurrences, one interval apart.
func commitRounds(ctx context.Context, cfg *Config, client *HTTPClient, stats *Stats) ([]Pick, error) {
	log := logger.Get().Named("smoketest")
	committed := make([]Pick, 0, cfg.Rounds)
	for i := 0; i < cfg.Rounds; i++ {
		date := cfg.Start.Add(time.Duration(i) * cfg.Interval)
		resp, err := client.Post(ctx, "/occurrences", dateRequest{Date: date.Format(time.RFC3339)})
		if err != nil {
			return committed, fmt.Errorf("round %d: %w", i+1, err)
		}
		var p Pick
		if err := decodeResponse(resp, http.StatusCreated, &p); err != nil {
			return committed, fmt.Errorf("round %d: %w", i+1, err)
		}
		committed = append(committed, p)
		stats.Committed++
		if cfg.Verbose {
			log.Info(ctx, "occurrence committed",
				logger.String("id", p.ID),
				logger.Time("date", p.Date),
				logger.Any("groupings", p.Groupings),
				logger.Float64("score", p.Score))
		}
	}
	return committed, nil
}

// fetchHistory reads the newest limit records.
func fetchHistory(ctx context.Context, client *HTTPClient, limit int) ([]Record, error) {
	resp, err := client.Get(ctx, fmt.Sprintf("/history?limit=%d", limit))
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := decodeResponse(resp, http.StatusOK, &records); err != nil {
		return nil, err
	}
	return records, nil
}
