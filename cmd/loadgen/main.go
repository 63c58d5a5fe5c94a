package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rebooked/apsmatch/internal/loadgen"
)

// Default configuration constants.
const (
	defaultProfiles       = 1000
	defaultDuplicateRatio = 0.1
	defaultWorkers        = 2 // multiplier for runtime.NumCPU()
	defaultTimeout        = 30 * time.Second
	defaultRunTimeout     = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		profiles    = flag.Int("profiles", defaultProfiles, "Number of profiles to submit")
		duplicates  = flag.Float64("duplicates", defaultDuplicateRatio, "Share of submissions that repeat an earlier request_id")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		pollTimeout = flag.Duration("poll-timeout", loadgen.DefaultPollTimeout, "How long to wait for pending evaluations")
		seed        = flag.Uint64("seed", 0, "Generator seed, 0 for random")
		outputFile  = flag.String("output", "", "Write generated submissions to this JSON file")
		logFile     = flag.String("log", "", "Log file for run output (default: loadgen_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp()
		return
	}

	closer, err := loadgen.SetupLogging(*logFile, *verbose)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	config := &loadgen.Config{
		BaseURL:        *baseURL,
		NumProfiles:    *profiles,
		DuplicateRatio: *duplicates,
		Workers:        *workers,
		Timeout:        *timeout,
		PollInterval:   loadgen.DefaultPollInterval,
		PollTimeout:    *pollTimeout,
		OutputFile:     *outputFile,
		LogFile:        *logFile,
		Seed:           *seed,
		Verbose:        *verbose,
	}

	if _, err := loadgen.Run(ctx, config); err != nil {
		_, _ = os.Stderr.WriteString("Load run failed: " + err.Error() + "\n")
		return
	}
}
