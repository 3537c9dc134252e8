// Package generator creates review cycles and their evaluation records.
package generator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/okian/cadence/internal/adapters/repository"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/domain/orggraph"
	"github.com/okian/cadence/pkg/logger"
	"github.com/okian/cadence/pkg/metrics"
)

// MonthSummary describes the records written for one cycle.
type MonthSummary struct {
	CycleID           string          `json:"cycleId"`
	Kind              model.CycleKind `json:"kind"`
	Sequence          int             `json:"sequence"`
	Position          int             `json:"position"`
	SelfAssessments   int             `json:"selfAssessments"`
	Directional       int             `json:"directional"`
	Peer              int             `json:"peer"`
	SkippedDuplicates int             `json:"skippedDuplicates"`
	Records           int             `json:"records"`
	Batches           int             `json:"batches"`
}

// Summary is the result of one generation run.
type Summary struct {
	CycleIDs          []string       `json:"cycleIds"`
	Months            []MonthSummary `json:"months"`
	TotalRecords      int            `json:"totalRecords"`
	ManagersProcessed int            `json:"managersProcessed"`
	SkippedEdges      int            `json:"skippedEdges"`
	Resumed           bool           `json:"resumed"`
}

// Generator creates the next run of monthly cycles.
type Generator struct {
	store      repository.Store
	log        logger.Logger
	now        func() time.Time
	batchLimit int
}

// New creates a generator writing to store.
func New(store repository.Store, opts ...Option) *Generator {
	g := &Generator{
		store: store,
		log:   logger.Default().Named("generator"),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	if limit := store.BatchLimit(); g.batchLimit == 0 || g.batchLimit > limit {
		g.batchLimit = limit
	}
	return g
}

// target is a month to create.
type target struct {
	period   model.Period
	sequence int
	position int
}

// GenerateNextCycle creates the next run of monthly cycles and every
// evaluation record they require. start is required when no cycle exists
// yet; otherwise the run follows the latest cycle, or completes the latest
// run when an earlier invocation stopped part way.
func (g *Generator) GenerateNextCycle(ctx context.Context, start *model.Period) (Summary, error) {
	began := time.Now()
	defer func() {
		metrics.RecordGenerationDuration(float64(time.Since(began).Milliseconds()))
	}()

	participants, err := loadAll[model.Participant](ctx, g.store, repository.Participants)
	if err != nil {
		return Summary{}, fmt.Errorf("load participants: %w", err)
	}
	cycles, err := loadAll[model.Cycle](ctx, g.store, repository.Cycles)
	if err != nil {
		return Summary{}, fmt.Errorf("load cycles: %w", err)
	}

	targets, resumed, err := plan(cycles, start)
	if err != nil {
		return Summary{}, err
	}

	graph, err := orggraph.Build(ctx, participants, orggraph.WithLogger(g.log))
	if err != nil {
		return Summary{}, fmt.Errorf("build graph: %w", err)
	}

	summary := Summary{
		ManagersProcessed: len(graph.Managers),
		SkippedEdges:      len(graph.Skipped),
		Resumed:           resumed,
	}
	g.log.Info(ctx, "generating cycles",
		logger.String("start", targets[0].period.String()),
		logger.Int("months", len(targets)),
		logger.Int("managers", summary.ManagersProcessed),
		logger.Int("skipped_edges", summary.SkippedEdges),
		logger.Bool("resumed", resumed),
	)

	now := g.now()
	for _, t := range targets {
		c := model.Cycle{
			ID:        model.CycleID(t.period),
			Year:      t.period.Year,
			Month:     t.period.Month,
			Sequence:  t.sequence,
			Position:  t.position,
			Kind:      model.KindForSequence(t.sequence),
			Status:    model.CycleActive,
			CreatedAt: now,
		}
		ms, err := g.writeMonth(ctx, graph, c, now)
		if errors.Is(err, ErrDuplicateCycle) {
			g.log.Warn(ctx, "cycle created concurrently", logger.String("cycle", c.ID))
			return summary, err
		}
		if err != nil {
			metrics.RecordBatchFailed()
			g.log.Error(ctx, "cycle generation stopped",
				logger.String("cycle", c.ID),
				logger.Strings("completed", summary.CycleIDs),
				logger.Error(err),
			)
			return summary, &BatchError{
				CompletedCycleIDs: slices.Clone(summary.CycleIDs),
				FailedPeriod:      t.period,
				Batch:             ms.Batches + 1,
				Err:               err,
			}
		}
		summary.CycleIDs = append(summary.CycleIDs, c.ID)
		summary.Months = append(summary.Months, ms)
		summary.TotalRecords += ms.Records
	}
	return summary, nil
}

// plan resolves the months to create and rejects any that already exist.
func plan(cycles []model.Cycle, start *model.Period) ([]target, bool, error) {
	var latest *model.Cycle
	existing := make(map[string]struct{}, len(cycles))
	for i := range cycles {
		existing[cycles[i].ID] = struct{}{}
		if latest == nil || latest.Period().Before(cycles[i].Period()) {
			latest = &cycles[i]
		}
	}

	var (
		first    model.Period
		sequence = 1
		position = 1
		resumed  bool
	)
	switch {
	case latest == nil && start == nil:
		return nil, false, ErrStartRequired
	case latest == nil:
		first = *start
	case latest.Position > 0 && latest.Position < model.RunLength:
		// An unfinished run is completed before a new one may begin.
		first = latest.Period().Next()
		if start != nil && *start != first {
			return nil, false, fmt.Errorf("%w: run ending %s is unfinished, resume at %s not %s",
				ErrStartNotAfterLatest, latest.ID, first, *start)
		}
		sequence = latest.Sequence + 1
		position = latest.Position + 1
		resumed = true
	case start != nil:
		first = *start
		sequence = latest.Sequence + 1
	default:
		first = latest.Period().Next()
		sequence = latest.Sequence + 1
	}

	var targets []target
	p := first
	for pos := position; pos <= model.RunLength; pos++ {
		targets = append(targets, target{period: p, sequence: sequence, position: pos})
		sequence++
		p = p.Next()
	}

	var dups []string
	for _, t := range targets {
		if _, ok := existing[model.CycleID(t.period)]; ok {
			dups = append(dups, model.CycleID(t.period))
		}
	}
	if len(dups) > 0 {
		return nil, false, &DuplicateCycleError{CycleIDs: dups}
	}
	if latest != nil && !latest.Period().Before(first) {
		return nil, false, fmt.Errorf("%w: %s is not after %s", ErrStartNotAfterLatest, first, latest.ID)
	}
	return targets, resumed, nil
}

// writeMonth commits the month's records batch by batch and writes the
// cycle document last, so a cycle exists only once all of its records do.
func (g *Generator) writeMonth(ctx context.Context, graph orggraph.Graph, c model.Cycle, now time.Time) (MonthSummary, error) {
	mp, err := planMonth(ctx, graph, c, now)
	if err != nil {
		return MonthSummary{}, err
	}
	ms := mp.summary

	for i, batch := range pack(mp.units, g.batchLimit) {
		var muts []repository.Mutation
		byKind := make(map[model.EvaluationKind]int)
		for _, u := range batch {
			muts = append(muts, u.muts...)
			for _, rec := range u.records {
				byKind[rec.Kind]++
			}
		}
		if err := g.store.Commit(ctx, muts); err != nil {
			return ms, fmt.Errorf("commit batch %d of %s: %w", i+1, c.ID, err)
		}
		ms.Batches++
		metrics.RecordBatchCommitted(len(muts))
		for kind, n := range byKind {
			metrics.RecordEvaluationsCreated(string(kind), n)
		}
		g.log.Debug(ctx, "batch committed",
			logger.String("cycle", c.ID),
			logger.Int("batch", i+1),
			logger.Int("mutations", len(muts)),
		)
	}

	doc, err := repository.EncodeCycle(c)
	if err != nil {
		return ms, err
	}
	if err := g.store.Create(ctx, repository.Cycles, doc); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return ms, &DuplicateCycleError{CycleIDs: []string{c.ID}}
		}
		return ms, fmt.Errorf("write cycle %s: %w", c.ID, err)
	}
	metrics.RecordCycleGenerated(string(c.Kind))
	g.log.Info(ctx, "cycle created",
		logger.String("cycle", c.ID),
		logger.String("kind", string(c.Kind)),
		logger.Int("records", ms.Records),
		logger.Int("self", ms.SelfAssessments),
		logger.Int("directional", ms.Directional),
		logger.Int("peer", ms.Peer),
		logger.Int("skipped_duplicates", ms.SkippedDuplicates),
		logger.Int("batches", ms.Batches),
	)
	return ms, nil
}

func loadAll[T any](ctx context.Context, s repository.Store, collection string) ([]T, error) {
	docs, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	return repository.DecodeAll[T](docs)
}
