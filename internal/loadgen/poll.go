package loadgen

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rebooked/apsmatch/pkg/logger"
)

// pollResults waits for every id to leave the pending state or for the poll
// timeout, whichever comes first.
func pollResults(ctx context.Context, config *Config, client *HTTPClient, ids []string, stats *Stats) []Evaluation {
	log := logger.Get().Named("loadgen")
	log.Info(ctx, "polling evaluation results",
		logger.Int("count", len(ids)),
		logger.Int("workers", config.Workers),
	)

	interval := config.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := config.PollTimeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make([]Evaluation, len(ids))
	var completed, failed, pending int64

	idx := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range idx {
				e, ok := awaitOne(pollCtx, client, config.BaseURL+"/evaluations/"+ids[n], interval)
				results[n] = e
				switch {
				case !ok:
					atomic.AddInt64(&pending, 1)
				case e.Status == "completed":
					atomic.AddInt64(&completed, 1)
				default:
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						log.Warn(ctx, "evaluation failed", logger.String("id", e.ID), logger.String("error", e.Error))
					}
				}
			}
		}()
	}

	for n := range ids {
		idx <- n
	}
	close(idx)
	wg.Wait()

	stats.Completed = int(completed)
	stats.EvaluationsFailed = int(failed)
	stats.StillPending = int(pending)

	done := make([]Evaluation, 0, len(results))
	for _, e := range results {
		if e.ID != "" && e.Status != "pending" {
			done = append(done, e)
		}
	}
	return done
}

// awaitOne polls url until the evaluation is done. ok is false when ctx
// expires first.
func awaitOne(ctx context.Context, client *HTTPClient, url string, interval time.Duration) (e Evaluation, ok bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		var cur Evaluation
		if err := client.getJSON(ctx, url, &cur); err == nil {
			e = cur
			if cur.Status != "pending" {
				return e, true
			}
		}
		select {
		case <-ctx.Done():
			return e, false
		case <-ticker.C:
		}
	}
}

// summarize counts eligible programs across completed evaluations.
func summarize(evals []Evaluation, stats *Stats) {
	for _, e := range evals {
		for _, p := range e.Programs {
			if p.Eligible {
				stats.EligiblePrograms++
			}
		}
	}
}
