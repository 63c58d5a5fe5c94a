// Package loadgen drives a running apsmatch service with generated learner
// profiles and reports throughput and evaluation outcomes.
package loadgen

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rebooked/apsmatch/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging sends log output to stdout and logFile. If logFile is empty,
// a timestamped filename is generated. The returned closer closes the file.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	if logFile == "" {
		logFile = "loadgen_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		if err := logger.SetLevelString("debug"); err != nil {
			_ = file.Close()
			return nil, err
		}
	}
	return file, nil
}

// ShowHelp prints usage information for the load tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`APS Match Load Tool
===================

Submits generated learner profiles to /evaluations concurrently, polls the
results and reports throughput and outcomes.

Usage:
  go run ./cmd/loadgen [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -profiles int
        Number of profiles to submit (default 1000)
  -duplicates float
        Share of submissions that repeat an earlier request_id (default 0.1)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -poll-timeout duration
        How long to wait for pending evaluations (default 2m)
  -seed uint
        Generator seed, 0 for random (default 0)
  -output string
        Write generated submissions to this JSON file
  -log string
        Log file for run output (default: loadgen_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  go run ./cmd/loadgen -profiles 20000 -workers 32
  go run ./cmd/loadgen -seed 42 -duplicates 0.3 -output run.json
`)
}
