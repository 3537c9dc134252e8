package publish

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/okian/cadence/internal/adapters/repository"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/domain/pairing"
	"github.com/okian/cadence/pkg/logger"
	"github.com/okian/cadence/pkg/metrics"
)

// Submit fills in an evaluation on behalf of its giver. Submissions are
// refused once the record, or any pair it belongs to, has been published.
// An empty status means completed.
func (g *Gate) Submit(ctx context.Context, evaluationID, actorID string, scores model.Scores, status model.Status) (model.Evaluation, error) {
	if status == "" {
		status = model.StatusCompleted
	}
	if status != model.StatusCompleted && status != model.StatusCalibrated {
		return model.Evaluation{}, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	doc, err := g.store.Get(ctx, repository.Evaluations, evaluationID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Evaluation{}, fmt.Errorf("%w: %s", ErrEvaluationNotFound, evaluationID)
	}
	if err != nil {
		return model.Evaluation{}, err
	}
	ev, err := repository.Decode[model.Evaluation](doc)
	if err != nil {
		return model.Evaluation{}, err
	}
	if ev.Giver.ID != actorID {
		return model.Evaluation{}, fmt.Errorf("%w: %s is not the giver of %s", ErrNotAuthorized, actorID, evaluationID)
	}
	if err := g.checkOpen(ctx, ev.CycleID); err != nil {
		return model.Evaluation{}, err
	}
	if err := g.checkUnlocked(ctx, ev); err != nil {
		return model.Evaluation{}, err
	}

	res, err := g.scorer.Compute(scores)
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("submit %s: %w", evaluationID, err)
	}
	now := g.now()
	patch := repository.Patch{
		Fields: map[string]string{repository.FieldStatus: string(status)},
		Set: map[string]any{
			repository.BodyStatus:    status,
			repository.BodyScores:    scores,
			repository.BodyComposite: res.Composite,
			repository.BodyLabel:     res.Class.Label,
			repository.BodyUpdatedAt: now,
		},
	}
	if err := g.store.Update(ctx, repository.Evaluations, evaluationID, patch); err != nil {
		return model.Evaluation{}, fmt.Errorf("submit %s: %w", evaluationID, err)
	}
	metrics.RecordEvaluationSubmitted()

	ev.Status = status
	ev.Scores = &scores
	ev.Composite = &res.Composite
	ev.Label = res.Class.Label
	ev.UpdatedAt = now
	g.log.Debug(ctx, "evaluation submitted",
		logger.String("evaluation", evaluationID),
		logger.String("status", string(status)),
		logger.Int("composite", res.Composite),
	)
	return ev, nil
}

func (g *Gate) checkOpen(ctx context.Context, cycleID string) error {
	doc, err := g.store.Get(ctx, repository.Cycles, cycleID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", pairing.ErrCycleNotFound, cycleID)
	}
	if err != nil {
		return err
	}
	if doc.Fields[repository.FieldStatus] == string(model.CycleClosed) {
		return fmt.Errorf("%w: %s", ErrCycleClosed, cycleID)
	}
	return nil
}

// checkUnlocked fails when ev is published or belongs to a pair with any
// published outcome. A self record listing several pairs is locked by the
// first of them to publish.
func (g *Gate) checkUnlocked(ctx context.Context, ev model.Evaluation) error {
	if ev.Status == model.StatusPublished {
		return fmt.Errorf("%w: %s", ErrLocked, ev.ID)
	}
	pairs := ev.LinkedPairs()
	if len(pairs) == 0 {
		return nil
	}
	docs, err := g.store.Query(ctx, repository.Published, repository.In(repository.FieldPair, pairs...))
	if err != nil {
		return err
	}
	if len(docs) > 0 {
		return fmt.Errorf("%w: %s via %s", ErrLocked, ev.ID, docs[0].ID)
	}
	return nil
}

// CheckNavigable returns ErrLocked once any outcome of the pair has been
// published; callers must not open its records for editing after that.
func (g *Gate) CheckNavigable(ctx context.Context, pairID string) error {
	docs, err := g.store.Query(ctx, repository.Published, repository.Eq(repository.FieldPair, pairID))
	if err != nil {
		return err
	}
	if len(docs) > 0 {
		return fmt.Errorf("%w: pair %s", ErrLocked, pairID)
	}
	return nil
}

// State returns the publication state of subjectID's direction of the pair.
func (g *Gate) State(ctx context.Context, pairID, subjectID string) (model.PairState, error) {
	p, _, err := g.loader.ForPair(ctx, pairID)
	if errors.Is(err, pairing.ErrPairNotFound) {
		return "", fmt.Errorf("%w: %s", ErrPairNotFound, pairID)
	}
	if err != nil {
		return "", err
	}
	if !slices.Contains(p.Subjects(), subjectID) {
		return "", fmt.Errorf("%w: %s in %s", ErrSubjectNotInPair, subjectID, pairID)
	}
	return p.StateFor(subjectID), nil
}
