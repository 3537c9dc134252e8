package pairing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/cadence/internal/adapters/repository"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/pkg/logger"
	"github.com/okian/cadence/pkg/metrics"
)

// Loader fetches what resolution needs from the store. Reads for one view run
// in parallel and complete before any pairing logic runs.
type Loader struct {
	store repository.Store
	log   logger.Logger
}

// NewLoader creates a loader reading from store.
func NewLoader(store repository.Store, opts ...Option) *Loader {
	l := &Loader{store: store, log: logger.Default().Named("pairing")}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// View is the data one resolution runs on.
type View struct {
	Cycle model.Cycle
	Input Input
}

// Load fetches the cycle, the participant's local slice, the full cycle set,
// participants and published records concurrently. An empty participantID
// skips the local slice.
func (l *Loader) Load(ctx context.Context, cycleID, participantID string) (View, error) {
	var (
		v               View
		given, received []model.Evaluation
		all             []model.Evaluation
		participants    []model.Participant
		published       []model.PublishedRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := l.store.Get(gctx, repository.Cycles, cycleID)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrCycleNotFound, cycleID)
		}
		if err != nil {
			return err
		}
		v.Cycle, err = repository.Decode[model.Cycle](doc)
		return err
	})
	if participantID != "" {
		g.Go(func() (err error) {
			given, err = query[model.Evaluation](gctx, l.store, repository.Evaluations,
				repository.Eq(repository.FieldCycle, cycleID), repository.Eq(repository.FieldGiver, participantID))
			return err
		})
		g.Go(func() (err error) {
			received, err = query[model.Evaluation](gctx, l.store, repository.Evaluations,
				repository.Eq(repository.FieldCycle, cycleID), repository.Eq(repository.FieldReceiver, participantID))
			return err
		})
	}
	g.Go(func() (err error) {
		all, err = query[model.Evaluation](gctx, l.store, repository.Evaluations,
			repository.Eq(repository.FieldCycle, cycleID))
		return err
	})
	g.Go(func() (err error) {
		participants, err = query[model.Participant](gctx, l.store, repository.Participants)
		return err
	})
	g.Go(func() (err error) {
		published, err = query[model.PublishedRecord](gctx, l.store, repository.Published,
			repository.Eq(repository.FieldCycle, cycleID))
		return err
	})
	if err := g.Wait(); err != nil {
		return View{}, err
	}

	v.Input = Input{
		CycleID:       cycleID,
		ParticipantID: participantID,
		Local:         mergeLocal(given, received),
		All:           all,
		Participants:  make(map[string]model.Participant, len(participants)),
		Published:     published,
	}
	for _, p := range participants {
		v.Input.Participants[p.ID] = p
	}
	return v, nil
}

// mergeLocal unions the two slices; a self record appears in both.
func mergeLocal(given, received []model.Evaluation) []model.Evaluation {
	out := make([]model.Evaluation, 0, len(given)+len(received))
	seen := make(map[string]struct{}, len(given))
	for _, set := range [][]model.Evaluation{given, received} {
		for _, e := range set {
			if _, ok := seen[e.ID]; ok {
				continue
			}
			seen[e.ID] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// ForParticipant resolves every pairing the participant appears in.
func (l *Loader) ForParticipant(ctx context.Context, cycleID, participantID string) ([]model.Pairing, error) {
	if participantID == "" {
		return nil, ErrParticipantRequired
	}
	start := time.Now()
	v, err := l.Load(ctx, cycleID, participantID)
	if err != nil {
		return nil, fmt.Errorf("load %s for %s: %w", cycleID, participantID, err)
	}
	pairs := Resolve(v.Input)

	broken, fallbacks := 0, 0
	for _, p := range pairs {
		fallbacks += p.Fallbacks
		if p.Broken {
			broken++
			l.log.Warn(ctx, "broken pairing",
				logger.String("cycle", cycleID),
				logger.String("pair", p.ID),
				logger.Strings("problems", p.Problems),
			)
		}
	}
	metrics.RecordPairingsResolved(len(pairs), broken)
	metrics.RecordResolutionDuration(float64(time.Since(start).Milliseconds()))
	l.log.Debug(ctx, "pairings resolved",
		logger.String("cycle", cycleID),
		logger.String("participant", participantID),
		logger.Int("pairs", len(pairs)),
		logger.Int("broken", broken),
		logger.Int("fallbacks", fallbacks),
	)
	return pairs, nil
}

// ForPair resolves a single pairing by id.
func (l *Loader) ForPair(ctx context.Context, pairID string) (model.Pairing, View, error) {
	docs, err := l.store.Query(ctx, repository.Evaluations, repository.Eq(repository.FieldPair, pairID))
	if err != nil {
		return model.Pairing{}, View{}, err
	}
	if len(docs) == 0 {
		return model.Pairing{}, View{}, fmt.Errorf("%w: %s", ErrPairNotFound, pairID)
	}
	cycleID := docs[0].Fields[repository.FieldCycle]
	v, err := l.Load(ctx, cycleID, "")
	if err != nil {
		return model.Pairing{}, View{}, err
	}
	p, ok := ResolvePair(v.Input, pairID)
	if !ok {
		return model.Pairing{}, View{}, fmt.Errorf("%w: %s", ErrPairNotFound, pairID)
	}
	return p, v, nil
}

// Audit checks pair linking for a cycle.
func (l *Loader) Audit(ctx context.Context, cycleID string) (AuditReport, error) {
	v, err := l.Load(ctx, cycleID, "")
	if err != nil {
		return AuditReport{}, fmt.Errorf("audit %s: %w", cycleID, err)
	}
	report := Audit(v.Cycle, v.Input)
	l.log.Info(ctx, "pair linking audited",
		logger.String("cycle", cycleID),
		logger.Int("records", report.Records),
		logger.Int("pairs", report.Pairs),
		logger.Int("broken", len(report.BrokenPairs)),
		logger.Int("orphaned_records", len(report.OrphanedRecords)),
		logger.Int("orphaned_self", len(report.OrphanedSelfAssessments)),
	)
	return report, nil
}

func query[T any](ctx context.Context, s repository.Store, collection string, filters ...repository.Filter) ([]T, error) {
	docs, err := s.Query(ctx, collection, filters...)
	if err != nil {
		return nil, err
	}
	return repository.DecodeAll[T](docs)
}
