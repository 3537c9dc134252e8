package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/okian/cadence/internal/adapters/repository"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/domain/pairing"
)

// unassignedPillar groups subjects without a pillar.
const unassignedPillar = "unassigned"

// Index aggregates the cycle's published composites. Subjects in the
// executive and leadership layers form the leadership score; everyone else
// is grouped by pillar. A subject published in several pairs counts once
// with the mean of their composites.
func (s *Service) Index(ctx context.Context, cycleID string) (model.Index, error) {
	if err := s.ready(); err != nil {
		return model.Index{}, err
	}
	_, err := s.store.Get(ctx, repository.Cycles, cycleID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Index{}, fmt.Errorf("%w: %s", pairing.ErrCycleNotFound, cycleID)
	}
	if err != nil {
		return model.Index{}, err
	}
	docs, err := s.store.Query(ctx, repository.Published, repository.Eq(repository.FieldCycle, cycleID))
	if err != nil {
		return model.Index{}, err
	}
	recs, err := repository.DecodeAll[model.PublishedRecord](docs)
	if err != nil {
		return model.Index{}, err
	}
	pdocs, err := s.store.List(ctx, repository.Participants)
	if err != nil {
		return model.Index{}, err
	}
	participants, err := repository.DecodeAll[model.Participant](pdocs)
	if err != nil {
		return model.Index{}, err
	}
	return buildIndex(cycleID, recs, participants, s.scorer.Blend, s.scorer.LeadershipWeight()), nil
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

func (m mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

func buildIndex(cycleID string, recs []model.PublishedRecord, ps []model.Participant, blend func(l, p float64) float64, weight float64) model.Index {
	byID := make(map[string]model.Participant, len(ps))
	for _, p := range ps {
		byID[p.ID] = p
	}
	subjects := make(map[string]*mean)
	for _, r := range recs {
		if r.AdHoc {
			continue
		}
		m, ok := subjects[r.SubjectID]
		if !ok {
			m = &mean{}
			subjects[r.SubjectID] = m
		}
		m.add(float64(r.Composite))
	}

	var leadership mean
	pillars := make(map[string]*mean)
	for id, m := range subjects {
		p := byID[id]
		if p.Layer == model.LayerExecutive || p.Layer == model.LayerLeadership {
			leadership.add(m.value())
			continue
		}
		name := cmp.Or(p.Pillar, unassignedPillar)
		pm, ok := pillars[name]
		if !ok {
			pm = &mean{}
			pillars[name] = pm
		}
		pm.add(m.value())
	}

	idx := model.Index{
		CycleID:            cycleID,
		Weight:             weight,
		Leadership:         leadership.value(),
		LeadershipSubjects: leadership.n,
		Pillars:            []model.PillarIndex{},
	}
	var overall mean
	for name, pm := range pillars {
		pi := model.PillarIndex{Pillar: name, Score: pm.value(), Subjects: pm.n, Blended: pm.value()}
		if leadership.n > 0 {
			pi.Blended = blend(idx.Leadership, pi.Score)
		}
		idx.Pillars = append(idx.Pillars, pi)
		overall.add(pi.Score)
	}
	slices.SortFunc(idx.Pillars, func(a, b model.PillarIndex) int { return cmp.Compare(a.Pillar, b.Pillar) })

	switch {
	case leadership.n > 0 && overall.n > 0:
		idx.Overall = blend(idx.Leadership, overall.value())
	case leadership.n > 0:
		idx.Overall = idx.Leadership
	default:
		idx.Overall = overall.value()
	}
	return idx
}
