// Package service wires the matching engine, the APS calculator and the
// program catalog into the evaluation service behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	jobqueue "github.com/rebooked/apsmatch/internal/adapters/mq/queue"
	workerpool "github.com/rebooked/apsmatch/internal/adapters/mq/worker"
	"github.com/rebooked/apsmatch/internal/adapters/repository"
	"github.com/rebooked/apsmatch/internal/domain/catalog"
	"github.com/rebooked/apsmatch/internal/domain/dedupe"
	"github.com/rebooked/apsmatch/internal/domain/eligibility"
	"github.com/rebooked/apsmatch/internal/domain/model"
	"github.com/rebooked/apsmatch/internal/domain/scoring"
	"github.com/rebooked/apsmatch/internal/domain/types"
	"github.com/rebooked/apsmatch/pkg/logger"
	"github.com/rebooked/apsmatch/pkg/metrics"
)

const (
	defaultQueueSize  = 10000
	defaultDedupeSize = 50000
)

// Service evaluates learner profiles synchronously and through the job queue.
type Service struct {
	mu sync.RWMutex

	// Domain
	calculator scoring.Scorer
	checker    *eligibility.Checker
	catalog    *catalog.Catalog

	// Pipeline
	store   repository.Store
	deduper dedupe.Deduper
	queue   jobqueue.Queue
	pool    *workerpool.Pool

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int

	// State
	started  bool
	inflight sync.Map // evaluation id -> chan struct{}, closed once Submit settles

	now    func() time.Time
	newID  func() string
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the job queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the number of remembered request ids.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the evaluation result store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithCatalog sets the program catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithChecker sets the requirement checker, e.g. with configured thresholds.
func WithChecker(c *eligibility.Checker) Option {
	return func(s *Service) {
		if c != nil {
			s.checker = c
		}
	}
}

// WithScorer sets the APS calculator.
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.calculator = sc
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service. Components not supplied through options get
// in-memory defaults.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.checker == nil {
		s.checker = eligibility.NewChecker()
	}
	if s.calculator == nil {
		s.calculator = scoring.NewCalculator(scoring.WithTable(s.checker.Matcher().Table()))
	}
	if s.catalog == nil {
		s.catalog = catalog.Default()
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	return s
}

// Start creates the queue and deduper and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s, s.store)
	s.pool.Start(ctx)

	s.started = true
	primary, fallback := s.checker.Thresholds()
	s.logger.Info(ctx, "evaluation service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("programs", s.catalog.Len()),
		logger.Int("primaryThreshold", primary),
		logger.Int("fallbackThreshold", fallback),
	)
	return nil
}

// Stop drains the queue, waits for the workers and closes the store. Workers
// do not stop with the Start context, so call Stop to flush accepted jobs.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping evaluation service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "evaluation service stopped")
	return errors.Join(errs...)
}

// Checker returns the requirement checker.
func (s *Service) Checker() *eligibility.Checker { return s.checker }

// Catalog returns the program catalog.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// CalculateAPS scores marks without evaluating any program.
func (s *Service) CalculateAPS(ctx context.Context, subjects []scoring.MarkedSubject) (scoring.Result, error) {
	res, err := s.calculator.Calculate(ctx, subjects)
	if err != nil {
		return scoring.Result{}, err
	}
	metrics.RecordAPSTotal(res.Total)
	return res, nil
}

// EvaluateProfile computes the APS and checks it against each selected
// program. Results come back ranked.
func (s *Service) EvaluateProfile(ctx context.Context, p model.Profile) (scoring.Result, []types.ProgramResult, error) {
	programs, err := s.catalog.Select(p.ProgramIDs)
	if err != nil {
		return scoring.Result{}, nil, err
	}
	aps, err := s.CalculateAPS(ctx, p.Subjects)
	if err != nil {
		return scoring.Result{}, nil, err
	}

	held := aps.UserSubjects()
	results := make([]types.ProgramResult, 0, len(programs))
	for _, prog := range programs {
		if err := ctx.Err(); err != nil {
			return scoring.Result{}, nil, fmt.Errorf("context cancelled: %w", err)
		}
		check := s.checker.Check(held, prog.Subjects)
		for _, m := range check.MatchedSubjects {
			metrics.RecordMatch(string(m.Rule), m.Confidence)
		}

		r := types.ProgramResult{
			ProgramID:    prog.ID,
			Program:      prog.Name,
			University:   prog.University,
			MinAPS:       prog.MinAPS,
			APS:          aps.Total,
			APSMargin:    aps.Total - prog.MinAPS,
			APSMet:       aps.Total >= prog.MinAPS,
			SubjectsMet:  check.IsEligible,
			Requirements: check,
		}
		r.Eligible = r.APSMet && r.SubjectsMet
		metrics.RecordProgramCheck(r.Eligible)
		results = append(results, r)
	}
	types.RankPrograms(results)
	return aps, results, nil
}

// Evaluate runs a queued job. It satisfies the worker pool's Evaluator.
func (s *Service) Evaluate(ctx context.Context, job model.Job) (model.Evaluation, error) {
	aps, programs, err := s.EvaluateProfile(ctx, job.Profile)
	if err != nil {
		return model.Evaluation{}, err
	}
	return model.NewPending(job).Complete(aps, programs, s.now()), nil
}

// Submit queues a profile for asynchronous evaluation. A non-empty requestID
// makes the call idempotent: a repeat returns the first evaluation and
// duplicate=true. A repeat that races the first submission waits for it to
// be accepted or rejected; if it was rejected the repeat is submitted in its
// place.
func (s *Service) Submit(ctx context.Context, p model.Profile, requestID string) (e model.Evaluation, duplicate bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return model.Evaluation{}, false, ErrNotStarted
	}
	if len(p.Subjects) == 0 {
		return model.Evaluation{}, false, fmt.Errorf("%w: %v", ErrInvalidInput, scoring.ErrNoSubjects)
	}
	if _, err := s.catalog.Select(p.ProgramIDs); err != nil {
		return model.Evaluation{}, false, err
	}

	id := s.newID()
	if requestID != "" {
		settled := make(chan struct{})
		s.inflight.Store(id, settled)
		defer func() {
			s.inflight.Delete(id)
			close(settled)
		}()

		existing, found, err := s.claim(ctx, requestID, id)
		if found || err != nil {
			return existing, found, err
		}
	}

	job := model.Job{ID: id, RequestID: requestID, Profile: p, SubmittedAt: s.now()}
	pending := model.NewPending(job)
	if err := s.store.Put(ctx, pending); err != nil {
		s.release(ctx, requestID)
		return model.Evaluation{}, false, err
	}

	if err := s.queue.Enqueue(ctx, job); err != nil {
		// Nobody was handed this id, so drop the record with it.
		if derr := s.store.Delete(context.WithoutCancel(ctx), id); derr != nil {
			s.logger.Warn(ctx, "failed to drop rejected evaluation", logger.String("evaluation_id", id), logger.Error(derr))
		}
		s.release(ctx, requestID)
		if errors.Is(err, jobqueue.ErrFull) {
			s.logger.Warn(ctx, "queue full, rejecting submission", logger.Int("capacity", s.queue.Cap()))
			return model.Evaluation{}, false, fmt.Errorf("%w: %v", ErrBackpressure, err)
		}
		return model.Evaluation{}, false, err
	}
	metrics.UpdateQueueSize(s.queue.Len(ctx))
	return pending, false, nil
}

// claim binds requestID to id. When the key is already bound it returns the
// bound evaluation with found=true, waiting out a submission still in flight.
func (s *Service) claim(ctx context.Context, requestID, id string) (model.Evaluation, bool, error) {
	for {
		bound, claimed := s.deduper.Claim(ctx, requestID, id)
		if claimed {
			return model.Evaluation{}, false, nil
		}

		if ch, ok := s.inflight.Load(bound); ok {
			select {
			case <-ch.(chan struct{}):
			case <-ctx.Done():
				return model.Evaluation{}, false, fmt.Errorf("context cancelled: %w", ctx.Err())
			}
			if current, ok := s.deduper.Lookup(ctx, requestID); !ok || current != bound {
				// The first submission was rejected and released the key.
				continue
			}
		}

		metrics.RecordDuplicateSubmission()
		existing, err := s.store.Get(ctx, bound)
		if errors.Is(err, repository.ErrNotFound) {
			// Result expired or was evicted; the id is still the answer.
			return model.Evaluation{ID: bound, RequestID: requestID, Status: model.StatusPending}, true, nil
		}
		return existing, true, err
	}
}

func (s *Service) release(ctx context.Context, requestID string) {
	if requestID != "" {
		s.deduper.Release(ctx, requestID)
	}
}

// Result returns the stored evaluation with id.
func (s *Service) Result(ctx context.Context, id string) (model.Evaluation, error) {
	return s.store.Get(ctx, id)
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	primary, fallback := s.checker.Thresholds()
	stats := map[string]any{
		"started":           s.started,
		"workerCount":       s.workerCount,
		"queueSize":         s.queueSize,
		"dedupeSize":        s.dedupeSize,
		"programs":          s.catalog.Len(),
		"subjects":          s.checker.Matcher().Table().Len(),
		"primaryThreshold":  primary,
		"fallbackThreshold": fallback,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["poolSize"] = s.pool.Size()
		stats["activeWorkers"] = s.pool.Active()
		stats["requestKeys"] = s.deduper.Size()
		metrics.UpdateQueueSize(queueLen)
	}
	if n, err := s.StoredEvaluations(ctx); err == nil {
		stats["storedEvaluations"] = n
	}
	return stats
}

// StoredEvaluations counts the evaluations held by the store and refreshes
// the store gauge. On redis this is a full key scan, so sample it sparingly.
func (s *Service) StoredEvaluations(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("service", "store_count")
		return 0, err
	}
	metrics.UpdateStoreEntries(n)
	return n, nil
}
