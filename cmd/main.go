package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rebooked/apsmatch/internal/adapters/http/api"
	"github.com/rebooked/apsmatch/internal/adapters/http/swagger"
	"github.com/rebooked/apsmatch/internal/adapters/repository"
	service "github.com/rebooked/apsmatch/internal/app"
	"github.com/rebooked/apsmatch/internal/config"
	"github.com/rebooked/apsmatch/internal/domain/catalog"
	"github.com/rebooked/apsmatch/internal/domain/eligibility"
	"github.com/rebooked/apsmatch/internal/domain/subject"
	"github.com/rebooked/apsmatch/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout          = 10 * time.Second
	writeTimeout         = 10 * time.Second
	idleTimeout          = 60 * time.Second
	readHeaderTimeout    = 5 * time.Second
	shutdownTimeout      = 30 * time.Second
	storeMetricsInterval = time.Minute // a redis count is a full SCAN
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger isn't available yet
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg); err != nil {
		log.Error(ctx, "apsmatch exited with error", logger.Error(err))
		os.Exit(1)
	}
}

// run starts the service and the HTTP server and blocks until ctx is done.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	handler, limiter := newHandler(ctx, cfg, svc)
	if limiter != nil {
		go limiter.Run(ctx)
	}
	go startStoreMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
	return runErr
}

// newService builds the matcher, checker, catalog and result store from cfg.
func newService(ctx context.Context, cfg *config.Config) (*service.Service, error) {
	cat, err := catalog.Load(ctx, cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	matcher := subject.NewMatcher(
		subject.WithFuzzyConfidence(cfg.FuzzyConfidence),
		subject.WithFuzzyLengthRatio(cfg.FuzzyLengthRatio),
	)
	checker := eligibility.NewChecker(
		eligibility.WithMatcher(matcher),
		eligibility.WithPrimaryThreshold(cfg.MatchPrimaryThreshold),
		eligibility.WithFallbackThreshold(cfg.MatchFallbackThreshold),
	)

	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return service.New(
		service.WithLogger(logger.Get().Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithCatalog(cat),
		service.WithChecker(checker),
		service.WithStore(store),
	), nil
}

// newStore selects the evaluation store backend.
func newStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		client, err := repository.NewRedisClient(ctx, repository.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		logger.Get().Info(ctx, "using redis evaluation store",
			logger.String("addr", cfg.RedisAddr),
			logger.String("prefix", cfg.RedisPrefix),
		)
		return repository.NewRedisStore(client,
			repository.WithPrefix(cfg.RedisPrefix),
			repository.WithTTL(time.Duration(cfg.ResultTTLSeconds)*time.Second),
		), nil
	case config.BackendMemory, "":
		return repository.NewMemoryStore(repository.WithMaxEntries(cfg.StoreMaxEntries)), nil
	default:
		return nil, fmt.Errorf("%w: %q", repository.ErrUnknownBackend, cfg.StoreBackend)
	}
}

// newHandler registers the API and docs routes. The limiter is nil when rate
// limiting is disabled.
func newHandler(ctx context.Context, cfg *config.Config, svc *service.Service) (http.Handler, *api.RateLimiter) {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)

	limiter := api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, api.WithTrustedProxy(cfg.RateLimitTrustProxy))
	api.NewServer(svc, api.WithRateLimiter(limiter)).Register(ctx, mux)
	return mux, limiter
}

// startStoreMetricsUpdater samples the store size for the entries gauge.
// Queue and worker gauges are kept current by the service itself.
func startStoreMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(storeMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.StoredEvaluations(ctx); err != nil {
				logger.Get().Warn(ctx, "failed to sample store size", logger.Error(err))
			}
		}
	}
}
