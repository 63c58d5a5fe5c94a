package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rebooked/apsmatch/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	outputPermission    = 0600
)

// Run executes a complete load run: health check, generation, submission,
// result polling and a final report.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("loadgen")

	log.Info(ctx, "starting apsmatch load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("profiles", config.NumProfiles),
		logger.Float64("duplicateRatio", config.DuplicateRatio),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Bool("verbose", config.Verbose))

	client := NewHTTPClient(config.Timeout)

	if err := checkServiceHealth(ctx, config, client); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	subs, err := NewGenerator(config.Seed).Generate(ctx, config.NumProfiles, config.DuplicateRatio)
	if err != nil {
		return nil, fmt.Errorf("profile generation failed: %w", err)
	}
	stats.ProfilesGenerated = len(subs)

	ids := submitAll(ctx, config, client, subs, stats)
	evals := pollResults(ctx, config, client, ids, stats)
	summarize(evals, stats)

	var serviceStats map[string]any
	if err := client.getJSON(ctx, config.BaseURL+"/stats", &serviceStats); err != nil {
		log.Warn(ctx, "failed to fetch service stats", logger.Error(err))
	} else {
		log.Info(ctx, "service stats", logger.Any("stats", serviceStats))
	}

	if config.OutputFile != "" {
		if err := saveSubmissions(ctx, config.OutputFile, subs); err != nil {
			log.Warn(ctx, "failed to save submissions", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config, client *HTTPClient) error {
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	// The health route serves Prometheus metrics, so any 200 counts.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	logger.Get().Named("loadgen").Info(ctx, "service is healthy")
	return nil
}

// saveSubmissions writes the generated bodies to filename as a JSON array.
func saveSubmissions(ctx context.Context, filename string, subs []Submission) error {
	if len(subs) == 0 {
		return fmt.Errorf("no submissions to save")
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal submissions: %w", err)
	}
	if err := os.WriteFile(filename, data, outputPermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Named("loadgen").Info(ctx, "submissions saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, perSecond float64
	if stats.Submitted > 0 {
		acceptRate = float64(stats.Accepted+stats.Duplicates) / float64(stats.Submitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Named("loadgen").Info(ctx, "final statistics",
		logger.Int("profilesGenerated", stats.ProfilesGenerated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("backpressured", stats.Backpressured),
		logger.Int("failed", stats.Failed),
		logger.Int("completed", stats.Completed),
		logger.Int("evaluationsFailed", stats.EvaluationsFailed),
		logger.Int("stillPending", stats.StillPending),
		logger.Int("eligiblePrograms", stats.EligiblePrograms),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("submissionsPerSecond", perSecond))
}
