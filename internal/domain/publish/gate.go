// Package publish finalizes pair outcomes into immutable published records
// and guards every later edit of the records behind them.
package publish

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/cadence/internal/adapters/repository"
	"github.com/okian/cadence/internal/domain/dedupe"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/domain/pairing"
	"github.com/okian/cadence/internal/domain/scoring"
	"github.com/okian/cadence/pkg/logger"
	"github.com/okian/cadence/pkg/metrics"
)

// CounterName is the system-wide sequence shared by cycle and ad-hoc
// publications.
const CounterName = "published_records"

// adHocPrefix keys published records that do not belong to a pair.
const adHocPrefix = "adhoc:"

// Gate publishes pair outcomes exactly once.
type Gate struct {
	store    repository.Store
	counter  repository.Counter
	loader   *pairing.Loader
	scorer   *scoring.Scorer
	inflight dedupe.Deduper
	log      logger.Logger
	now      func() time.Time
}

// New creates a gate over store; counter allocates published sequence
// numbers.
func New(store repository.Store, counter repository.Counter, opts ...Option) *Gate {
	g := &Gate{
		store:    store,
		counter:  counter,
		scorer:   scoring.New(),
		inflight: dedupe.NewInMemoryDeduper(),
		log:      logger.Default().Named("publish"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.loader == nil {
		g.loader = pairing.NewLoader(store, pairing.WithLogger(g.log))
	}
	return g
}

// Publish writes the scored outcome of subjectID's direction of the pair.
// Checks run in order: the pair must exist and be well formed, the subject
// must not be published yet, the caller must be the inferred publisher and
// every constituent record must be terminal.
func (g *Gate) Publish(ctx context.Context, pairID, subjectID, publisherID string) (rec model.PublishedRecord, err error) {
	defer func() { metrics.RecordPublishOutcome(outcome(err)) }()

	if pairID == "" || subjectID == "" || publisherID == "" {
		return model.PublishedRecord{}, fmt.Errorf("%w: pair, subject and publisher are required", ErrInvalidRequest)
	}
	key := model.PublishedKey(pairID, subjectID)
	if g.inflight.SeenAndRecord(ctx, key) {
		return model.PublishedRecord{}, fmt.Errorf("%w: %s is being published", ErrAlreadyPublished, key)
	}
	defer g.inflight.Unrecord(ctx, key)

	p, v, err := g.loader.ForPair(ctx, pairID)
	if errors.Is(err, pairing.ErrPairNotFound) {
		return model.PublishedRecord{}, fmt.Errorf("%w: %s", ErrPairNotFound, pairID)
	}
	if err != nil {
		return model.PublishedRecord{}, err
	}
	if p.Broken {
		return model.PublishedRecord{}, fmt.Errorf("%w: %s: %s", ErrMalformedPair, pairID, strings.Join(p.Problems, "; "))
	}
	if !slices.Contains(p.Subjects(), subjectID) {
		return model.PublishedRecord{}, fmt.Errorf("%w: %s in %s", ErrSubjectNotInPair, subjectID, pairID)
	}
	if _, ok := p.PublishedFor(subjectID); ok {
		return model.PublishedRecord{}, fmt.Errorf("%w: %s", ErrAlreadyPublished, key)
	}
	if want := p.PublisherFor(subjectID); publisherID != want {
		return model.PublishedRecord{}, fmt.Errorf("%w: %s may not publish %s", ErrNotAuthorized, publisherID, key)
	}
	if !p.Complete() {
		return model.PublishedRecord{}, fmt.Errorf("%w: %s is %s", ErrNotComplete, key, p.StateFor(subjectID))
	}

	ev := p.EvaluationOf(subjectID)
	if ev == nil || ev.Scores == nil {
		return model.PublishedRecord{}, fmt.Errorf("%w: %s has no scored evaluation", ErrNotComplete, key)
	}
	res, err := g.scorer.Compute(*ev.Scores)
	if err != nil {
		return model.PublishedRecord{}, fmt.Errorf("score %s: %w", ev.ID, err)
	}

	rec = model.PublishedRecord{
		Key:         key,
		PairID:      pairID,
		SubjectID:   subjectID,
		CycleID:     v.Cycle.ID,
		Composite:   res.Composite,
		Label:       res.Class.Label,
		Code:        res.Class.Code,
		PublisherID: publisherID,
	}
	if err := g.create(ctx, &rec); err != nil {
		return model.PublishedRecord{}, err
	}

	patch := repository.Patch{
		Fields: map[string]string{repository.FieldStatus: string(model.StatusPublished)},
		Set: map[string]any{
			repository.BodyStatus:    model.StatusPublished,
			repository.BodyUpdatedAt: rec.PublishedAt,
		},
	}
	if err := g.store.Update(ctx, repository.Evaluations, ev.ID, patch); err != nil {
		// The published record is authoritative for locking; the status is
		// informational.
		g.log.Warn(ctx, "published record written but evaluation status not updated",
			logger.String("key", key),
			logger.String("evaluation", ev.ID),
			logger.Error(err),
		)
	}

	g.log.Info(ctx, "pair published",
		logger.String("key", key),
		logger.Int64("sequence", rec.Sequence),
		logger.Int("composite", rec.Composite),
		logger.String("label", rec.Label),
	)
	return rec, nil
}

// PublishAdHoc publishes a scored outcome that does not belong to a cycle
// pair. It shares the publication sequence with Publish.
func (g *Gate) PublishAdHoc(ctx context.Context, subjectID, publisherID string, scores model.Scores) (rec model.PublishedRecord, err error) {
	defer func() { metrics.RecordPublishOutcome(outcome(err)) }()

	if subjectID == "" || publisherID == "" {
		return model.PublishedRecord{}, fmt.Errorf("%w: subject and publisher are required", ErrInvalidRequest)
	}
	res, err := g.scorer.Compute(scores)
	if err != nil {
		return model.PublishedRecord{}, err
	}
	rec = model.PublishedRecord{
		Key:         adHocPrefix + uuid.NewString(),
		SubjectID:   subjectID,
		Composite:   res.Composite,
		Label:       res.Class.Label,
		Code:        res.Class.Code,
		PublisherID: publisherID,
		AdHoc:       true,
	}
	if err := g.create(ctx, &rec); err != nil {
		return model.PublishedRecord{}, err
	}
	g.log.Info(ctx, "ad-hoc record published",
		logger.String("key", rec.Key),
		logger.String("subject", subjectID),
		logger.Int64("sequence", rec.Sequence),
	)
	return rec, nil
}

// create allocates the sequence and writes rec only if its key is unused.
func (g *Gate) create(ctx context.Context, rec *model.PublishedRecord) error {
	seq, err := g.counter.Next(ctx, CounterName)
	if err != nil {
		return fmt.Errorf("allocate sequence: %w", err)
	}
	rec.Sequence = seq
	rec.PublishedAt = g.now()

	doc, err := repository.EncodePublished(*rec)
	if err != nil {
		return err
	}
	if err := g.store.Create(ctx, repository.Published, doc); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return fmt.Errorf("%w: %s", ErrAlreadyPublished, rec.Key)
		}
		return fmt.Errorf("write published record %s: %w", rec.Key, err)
	}
	metrics.UpdatePublishedSequence(seq)
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomePublished
	case errors.Is(err, ErrPairNotFound):
		return outcomeNotFound
	case errors.Is(err, ErrMalformedPair):
		return outcomeMalformed
	case errors.Is(err, ErrAlreadyPublished):
		return outcomeAlready
	case errors.Is(err, ErrNotAuthorized):
		return outcomeNotAuthorized
	case errors.Is(err, ErrNotComplete):
		return outcomeNotComplete
	case errors.Is(err, ErrSubjectNotInPair), errors.Is(err, ErrInvalidRequest):
		return outcomeInvalidSubject
	}
	return outcomeError
}
