package generator

import (
	"context"
	"time"

	"github.com/okian/cadence/internal/adapters/repository"
	"github.com/okian/cadence/internal/domain/dedupe"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/domain/orggraph"
	"github.com/okian/cadence/pkg/metrics"
)

// unit is a group of mutations that must land in the same batch.
type unit struct {
	muts    []repository.Mutation
	records []model.Evaluation
}

func (u unit) size() int { return len(u.muts) }

// monthPlan is every write for one cycle, in commit order.
type monthPlan struct {
	cycle   model.Cycle
	units   []unit
	summary MonthSummary
}

type planner struct {
	graph orggraph.Graph
	cycle model.Cycle
	now   time.Time
	seen  dedupe.Deduper
	plan  monthPlan
}

// planMonth builds the records for one cycle. Self records come first so
// that every later unit only references self records committed in the same
// or an earlier batch.
func planMonth(ctx context.Context, g orggraph.Graph, c model.Cycle, now time.Time) (monthPlan, error) {
	p := &planner{
		graph: g,
		cycle: c,
		now:   now,
		seen:  dedupe.NewInMemoryDeduper(),
		plan: monthPlan{
			cycle: c,
			summary: MonthSummary{
				CycleID:  c.ID,
				Kind:     c.Kind,
				Sequence: c.Sequence,
				Position: c.Position,
			},
		},
	}

	if c.Kind == model.CycleOneToOne {
		for _, e := range g.Edges() {
			rec := p.record(model.KindManagerDown, e.Manager, e.Report, "")
			if p.claim(ctx, rec) {
				if err := p.add([]model.Evaluation{rec}); err != nil {
					return monthPlan{}, err
				}
				p.plan.summary.Directional++
			}
		}
		return p.plan, nil
	}

	for _, part := range g.Participants() {
		rec := p.record(model.KindSelf, part, part, "")
		p.claim(ctx, rec)
		if err := p.add([]model.Evaluation{rec}); err != nil {
			return monthPlan{}, err
		}
		p.plan.summary.SelfAssessments++
	}

	for _, e := range g.Edges() {
		pairID := model.ManagerPairID(c.ID, e.Manager.ID, e.Report.ID)
		down := p.record(model.KindManagerDown, e.Manager, e.Report, pairID)
		up := p.record(model.KindManagerUp, e.Report, e.Manager, pairID)
		if !p.claimAll(ctx, down, up) {
			continue
		}
		if err := p.add([]model.Evaluation{down, up},
			repository.AppendUniqueMutation(repository.Evaluations, p.selfID(e.Manager.ID), repository.BodyPairIDs, pairID),
			repository.AppendUniqueMutation(repository.Evaluations, p.selfID(e.Report.ID), repository.BodyPairIDs, pairID),
		); err != nil {
			return monthPlan{}, err
		}
		p.plan.summary.Directional += 2
	}

	leaders := g.Layer(model.LayerLeadership)
	for _, assessor := range leaders {
		for _, subject := range leaders {
			if assessor.ID == subject.ID {
				continue
			}
			pairID := model.PeerPairID(c.ID, assessor.ID, subject.ID)
			rec := p.record(model.KindPeer, assessor, subject, pairID)
			if !p.claim(ctx, rec) {
				continue
			}
			// Only the subject's self record links to a peer pair.
			if err := p.add([]model.Evaluation{rec},
				repository.AppendUniqueMutation(repository.Evaluations, p.selfID(subject.ID), repository.BodyPairIDs, pairID),
			); err != nil {
				return monthPlan{}, err
			}
			p.plan.summary.Peer++
		}
	}
	return p.plan, nil
}

func (p *planner) selfID(participantID string) string {
	return model.EvaluationID(p.cycle.ID, participantID, participantID)
}

func (p *planner) record(kind model.EvaluationKind, giver, receiver model.Participant, pairID string) model.Evaluation {
	return model.Evaluation{
		ID:        model.EvaluationID(p.cycle.ID, giver.ID, receiver.ID),
		CycleID:   p.cycle.ID,
		Kind:      kind,
		Giver:     giver.Party(),
		Receiver:  receiver.Party(),
		PairID:    pairID,
		Status:    model.StatusPending,
		CreatedAt: p.now,
	}
}

// claim reports whether rec's triple is new for this month.
func (p *planner) claim(ctx context.Context, rec model.Evaluation) bool {
	if p.seen.SeenAndRecord(ctx, dedupe.TripleKey(rec.CycleID, rec.Giver.ID, rec.Receiver.ID)) {
		p.plan.summary.SkippedDuplicates++
		metrics.RecordDuplicateTriple()
		return false
	}
	return true
}

// claimAll claims every triple or none.
func (p *planner) claimAll(ctx context.Context, recs ...model.Evaluation) bool {
	claimed := make([]model.Evaluation, 0, len(recs))
	for _, rec := range recs {
		if !p.claim(ctx, rec) {
			for _, c := range claimed {
				p.seen.Unrecord(ctx, dedupe.TripleKey(c.CycleID, c.Giver.ID, c.Receiver.ID))
			}
			return false
		}
		claimed = append(claimed, rec)
	}
	return true
}

// add appends one unit that writes records and then applies extra.
func (p *planner) add(records []model.Evaluation, extra ...repository.Mutation) error {
	u := unit{records: records}
	for _, rec := range records {
		doc, err := repository.EncodeEvaluation(rec)
		if err != nil {
			return err
		}
		u.muts = append(u.muts, repository.SetMutation(repository.Evaluations, doc))
	}
	u.muts = append(u.muts, extra...)
	p.plan.units = append(p.plan.units, u)
	p.plan.summary.Records += len(u.records)
	return nil
}

// pack groups units into batches of at most limit mutations without
// splitting a unit.
func pack(units []unit, limit int) [][]unit {
	var (
		out  [][]unit
		cur  []unit
		size int
	)
	for _, u := range units {
		if size > 0 && size+u.size() > limit {
			out = append(out, cur)
			cur, size = nil, 0
		}
		cur = append(cur, u)
		size += u.size()
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
