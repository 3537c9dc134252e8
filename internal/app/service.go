// Package service wires the review engine components into the operations
// exposed by the HTTP API and the operator CLI.
package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/cadence/internal/adapters/repository"
	"github.com/okian/cadence/internal/adapters/repository/sqlite"
	"github.com/okian/cadence/internal/domain/dedupe"
	"github.com/okian/cadence/internal/domain/generator"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/domain/pairing"
	"github.com/okian/cadence/internal/domain/publish"
	"github.com/okian/cadence/internal/domain/scoring"
	"github.com/okian/cadence/pkg/logger"
	"github.com/okian/cadence/pkg/metrics"
)

// ErrNotStarted is returned by operations called before Start.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for the review engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Backend
	ownsStore bool
	generator *generator.Generator
	loader    *pairing.Loader
	gate      *publish.Gate
	scorer    *scoring.Scorer
	inflight  dedupe.Deduper

	// Configuration
	storePath      string
	batchLimit     int
	scoringOptions []scoring.Option
	now            func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the document store. The caller keeps ownership and closes
// it after Stop.
func WithStore(b repository.Backend) Option {
	return func(s *Service) {
		if b != nil {
			s.store = b
		}
	}
}

// WithStorePath opens a SQLite store at path on Start. Ignored when WithStore
// is given.
func WithStorePath(path string) Option {
	return func(s *Service) {
		s.storePath = path
	}
}

// WithBatchLimit sets the per-batch mutation ceiling.
func WithBatchLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

// WithScoring sets the scorer configuration.
func WithScoring(opts ...scoring.Option) Option {
	return func(s *Service) {
		s.scoringOptions = append(s.scoringOptions, opts...)
	}
}

// WithClock sets the time source for created, updated and published
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		batchLimit: repository.DefaultBatchLimit,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store when needed and builds the components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Default().Named("service")
	}

	if s.store == nil {
		if s.storePath != "" {
			st, err := sqlite.Open(ctx, s.storePath, sqlite.WithBatchLimit(s.batchLimit))
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			s.store = st
			s.logger.Info(ctx, "using sqlite store", logger.String("path", s.storePath))
		} else {
			s.store = repository.NewMemoryStore(repository.WithBatchLimit(s.batchLimit))
			s.logger.Info(ctx, "using in-memory store")
		}
		s.ownsStore = true
	}

	s.scorer = scoring.New(s.scoringOptions...)
	s.inflight = dedupe.NewInMemoryDeduper()
	s.generator = generator.New(s.store,
		generator.WithBatchLimit(s.batchLimit),
		generator.WithClock(s.now),
		generator.WithLogger(s.logger.Named("generator")),
	)
	s.loader = pairing.NewLoader(s.store, pairing.WithLogger(s.logger.Named("pairing")))
	s.gate = publish.New(s.store, s.store,
		publish.WithScorer(s.scorer),
		publish.WithLoader(s.loader),
		publish.WithInFlight(s.inflight),
		publish.WithClock(s.now),
		publish.WithLogger(s.logger.Named("publish")),
	)

	s.started = true
	minScore, maxScore := s.scorer.Range()
	s.logger.Info(ctx, "review service started",
		logger.Int("batchLimit", s.store.BatchLimit()),
		logger.Int("scoreMin", minScore),
		logger.Int("scoreMax", maxScore),
		logger.Float64("leadershipWeight", s.scorer.LeadershipWeight()),
	)
	return nil
}

// Stop releases the store if the service opened it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "closing store failed", logger.Error(err))
		}
		s.store = nil
		s.ownsStore = false
	}
	s.started = false
	s.logger.Info(ctx, "review service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// GenerateNextCycle creates the next three monthly cycles. A nil start
// continues after the latest existing cycle.
func (s *Service) GenerateNextCycle(ctx context.Context, start *model.Period) (generator.Summary, error) {
	if err := s.ready(); err != nil {
		return generator.Summary{}, err
	}
	sum, err := s.generator.GenerateNextCycle(ctx, start)
	if err != nil {
		metrics.RecordErrorByComponent("generator", errorType(err))
	}
	return sum, err
}

// ResolvePairingsForParticipant returns every pairing the participant
// appears in for the cycle.
func (s *Service) ResolvePairingsForParticipant(ctx context.Context, cycleID, participantID string) ([]model.Pairing, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.loader.ForParticipant(ctx, cycleID, participantID)
}

// AuditPairLinking reports broken pairs and orphaned records of the cycle.
func (s *Service) AuditPairLinking(ctx context.Context, cycleID string) (pairing.AuditReport, error) {
	if err := s.ready(); err != nil {
		return pairing.AuditReport{}, err
	}
	return s.loader.Audit(ctx, cycleID)
}

// ComputeComposite scores a set of six sub-scores.
func (s *Service) ComputeComposite(scores model.Scores) (scoring.Result, error) {
	if err := s.ready(); err != nil {
		return scoring.Result{}, err
	}
	return s.scorer.Compute(scores)
}

// PublishPair publishes subjectID's outcome of the pair on behalf of
// publisherID.
func (s *Service) PublishPair(ctx context.Context, pairID, subjectID, publisherID string) (model.PublishedRecord, error) {
	if err := s.ready(); err != nil {
		return model.PublishedRecord{}, err
	}
	return s.gate.Publish(ctx, pairID, subjectID, publisherID)
}

// PublishAdHoc publishes an outcome outside any cycle pair.
func (s *Service) PublishAdHoc(ctx context.Context, subjectID, publisherID string, scores model.Scores) (model.PublishedRecord, error) {
	if err := s.ready(); err != nil {
		return model.PublishedRecord{}, err
	}
	return s.gate.PublishAdHoc(ctx, subjectID, publisherID, scores)
}

// SubmitEvaluation fills in an evaluation on behalf of its giver.
func (s *Service) SubmitEvaluation(ctx context.Context, evaluationID, actorID string, scores model.Scores, status model.Status) (model.Evaluation, error) {
	if err := s.ready(); err != nil {
		return model.Evaluation{}, err
	}
	return s.gate.Submit(ctx, evaluationID, actorID, scores, status)
}

// PairState returns the publication state of one pair direction.
func (s *Service) PairState(ctx context.Context, pairID, subjectID string) (model.PairState, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	return s.gate.State(ctx, pairID, subjectID)
}

// CheckNavigable returns publish.ErrLocked once any outcome of the pair has
// been published.
func (s *Service) CheckNavigable(ctx context.Context, pairID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.gate.CheckNavigable(ctx, pairID)
}

// ListCycles returns every cycle in sequence order.
func (s *Service) ListCycles(ctx context.Context) ([]model.Cycle, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	docs, err := s.store.List(ctx, repository.Cycles)
	if err != nil {
		return nil, err
	}
	cycles, err := repository.DecodeAll[model.Cycle](docs)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(cycles, func(a, b model.Cycle) int { return cmp.Compare(a.Sequence, b.Sequence) })
	return cycles, nil
}

// CloseCycle marks a cycle closed; its records no longer accept
// submissions.
func (s *Service) CloseCycle(ctx context.Context, cycleID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	err := s.store.Update(ctx, repository.Cycles, cycleID, repository.Patch{
		Fields: map[string]string{repository.FieldStatus: string(model.CycleClosed)},
		Set:    map[string]any{"status": model.CycleClosed},
	})
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", pairing.ErrCycleNotFound, cycleID)
	}
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "cycle closed", logger.String("cycle", cycleID))
	return nil
}

// ImportParticipants upserts participant records.
func (s *Service) ImportParticipants(ctx context.Context, ps []model.Participant) error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, p := range ps {
		if p.ID == "" {
			return fmt.Errorf("%w: participant without id", repository.ErrInvalidRequest)
		}
		if p.Layer != "" && !p.Layer.Valid() {
			return fmt.Errorf("%w: participant %s has unknown layer %q", repository.ErrInvalidRequest, p.ID, p.Layer)
		}
		doc, err := repository.EncodeParticipant(p)
		if err != nil {
			return err
		}
		if err := s.store.Set(ctx, repository.Participants, doc); err != nil {
			return fmt.Errorf("import participant %s: %w", p.ID, err)
		}
	}
	s.logger.Info(ctx, "participants imported", logger.Int("count", len(ps)))
	return nil
}

// ImportEvaluations writes already normalized evaluation records, skipping
// ids that exist. It returns how many were written.
func (s *Service) ImportEvaluations(ctx context.Context, evs []model.Evaluation) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	written := 0
	for _, e := range evs {
		doc, err := repository.EncodeEvaluation(e)
		if err != nil {
			return written, err
		}
		err = s.store.Create(ctx, repository.Evaluations, doc)
		if errors.Is(err, repository.ErrAlreadyExists) {
			s.logger.Debug(ctx, "evaluation already present", logger.String("evaluation", e.ID))
			continue
		}
		if err != nil {
			return written, fmt.Errorf("import evaluation %s: %w", e.ID, err)
		}
		written++
	}
	s.logger.Info(ctx, "evaluations imported",
		logger.Int("received", len(evs)),
		logger.Int("written", written),
	)
	return written, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":    s.started,
		"batchLimit": s.batchLimit,
	}
	if !s.started {
		return stats
	}
	for name, collection := range map[string]string{
		"participants": repository.Participants,
		"cycles":       repository.Cycles,
		"evaluations":  repository.Evaluations,
		"published":    repository.Published,
	} {
		docs, err := s.store.List(ctx, collection)
		if err != nil {
			s.logger.Warn(ctx, "stats listing failed", logger.String("collection", collection), logger.Error(err))
			continue
		}
		stats[name] = len(docs)
	}
	stats["publishesInFlight"] = s.inflight.Size()
	return stats
}

func errorType(err error) string {
	switch {
	case errors.Is(err, generator.ErrDuplicateCycle):
		return "duplicate_cycle"
	case errors.Is(err, generator.ErrBatchFailed):
		return "batch_failed"
	case errors.Is(err, generator.ErrStartRequired), errors.Is(err, generator.ErrStartNotAfterLatest):
		return "bad_start"
	}
	return "internal"
}
