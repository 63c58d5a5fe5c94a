package loadgen

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

	"github.com/rebooked/apsmatch/pkg/logger"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient creates a new HTTP client with timeout
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// getJSON decodes a 200 response into v.
func (c *HTTPClient) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// submitResult is one classified submission.
type submitResult struct {
	outcome string
	id      string
}

// submitAll posts submissions concurrently and returns the evaluation ids
// the service handed out, without repeats.
func submitAll(ctx context.Context, config *Config, client *HTTPClient, subs []Submission, stats *Stats) []string {
	log := logger.Get().Named("loadgen")
	log.Info(ctx, "submitting evaluations",
		logger.Int("count", len(subs)),
		logger.Int("workers", config.Workers),
	)

	url := config.BaseURL + "/evaluations"

	var (
		submitted    int64
		accepted     int64
		duplicate    int64
		backpressure int64
		failed       int64
		lastReport   atomic.Int64
	)

	var (
		mu  sync.Mutex
		ids = make(map[string]struct{}, len(subs))
	)

	jobs := make(chan Submission, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				if ctx.Err() != nil {
					continue
				}
				res := submitOne(ctx, client, url, sub)

				atomic.AddInt64(&submitted, 1)
				switch res.outcome {
				case outcomeAccepted:
					atomic.AddInt64(&accepted, 1)
				case outcomeDuplicate:
					atomic.AddInt64(&duplicate, 1)
				case outcomeBackpressure:
					atomic.AddInt64(&backpressure, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
				if res.id != "" {
					mu.Lock()
					ids[res.id] = struct{}{}
					mu.Unlock()
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if config.Verbose && now-last >= int64(time.Second) && lastReport.CompareAndSwap(last, now) {
					log.Debug(ctx, "submission progress",
						logger.Int64("submitted", atomic.LoadInt64(&submitted)),
						logger.Int("total", len(subs)),
						logger.Int64("accepted", atomic.LoadInt64(&accepted)),
						logger.Int64("duplicate", atomic.LoadInt64(&duplicate)),
						logger.Int64("backpressure", atomic.LoadInt64(&backpressure)),
						logger.Int64("failed", atomic.LoadInt64(&failed)),
					)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, sub := range subs {
			select {
			case <-ctx.Done():
				return
			case jobs <- sub:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(submitted)
	stats.Accepted = int(accepted)
	stats.Duplicates = int(duplicate)
	stats.Backpressured = int(backpressure)
	stats.Failed = int(failed)

	log.Info(ctx, "submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicates),
		logger.Int("backpressure", stats.Backpressured),
		logger.Int("failed", stats.Failed),
	)

	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	return out
}

// submitOne posts a single submission and classifies the response.
func submitOne(ctx context.Context, client *HTTPClient, url string, sub Submission) submitResult {
	resp, err := client.Post(ctx, url, sub)
	if err != nil {
		return submitResult{outcome: outcomeFailed}
	}
	defer resp.Body.Close()

	var ack SubmitResponse
	switch resp.StatusCode {
	case http.StatusAccepted:
		if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
			return submitResult{outcome: outcomeFailed}
		}
		return submitResult{outcome: outcomeAccepted, id: ack.ID}
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil || !ack.Duplicate {
			return submitResult{outcome: outcomeFailed}
		}
		return submitResult{outcome: outcomeDuplicate, id: ack.ID}
	case http.StatusTooManyRequests:
		return submitResult{outcome: outcomeBackpressure}
	default:
		return submitResult{outcome: outcomeFailed}
	}
}
