// Package pairing reconstructs logical evaluation pairs from raw evaluation
// records at read time and audits pair linking for a cycle.
package pairing

import (
	"slices"
	"strings"

	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/pkg/metrics"
)

// Input is everything resolution reads. Local is the slice loaded for the
// participant (records they give or receive); All is the exhaustive cycle
// set consulted when Local lacks a dependency.
type Input struct {
	CycleID       string
	ParticipantID string
	Local         []model.Evaluation
	All           []model.Evaluation
	Participants  map[string]model.Participant
	Published     []model.PublishedRecord
}

type resolver struct {
	in        Input
	byPair    map[string][]model.Evaluation
	localSelf []model.Evaluation
	allSelf   []model.Evaluation
	published map[string][]model.PublishedRecord
}

func newResolver(in Input) *resolver {
	r := &resolver{
		in:        in,
		byPair:    make(map[string][]model.Evaluation),
		published: make(map[string][]model.PublishedRecord),
	}
	seen := make(map[string]struct{})
	for i, set := range [][]model.Evaluation{in.Local, in.All} {
		for _, e := range set {
			if e.Kind == model.KindSelf {
				if i == 0 {
					r.localSelf = append(r.localSelf, e)
				} else {
					r.allSelf = append(r.allSelf, e)
				}
				continue
			}
			if _, ok := seen[e.ID]; ok || e.PairID == "" || !e.Kind.Directional() {
				continue
			}
			seen[e.ID] = struct{}{}
			r.byPair[e.PairID] = append(r.byPair[e.PairID], e)
		}
	}
	for _, p := range in.Published {
		if p.PairID != "" {
			r.published[p.PairID] = append(r.published[p.PairID], p)
		}
	}
	return r
}

// Resolve returns every pairing the participant appears in, ordered by pair
// id. Pairs that cannot be reconstructed are returned with Broken set and
// their problems listed.
func Resolve(in Input) []model.Pairing {
	r := newResolver(in)
	var out []model.Pairing
	for _, id := range r.pairIDs() {
		p := r.resolve(id)
		if p.Has(in.ParticipantID) {
			out = append(out, p)
		}
	}
	return out
}

// ResolvePair reconstructs a single pairing by id.
func ResolvePair(in Input, pairID string) (model.Pairing, bool) {
	r := newResolver(in)
	if _, ok := r.byPair[pairID]; !ok {
		return model.Pairing{}, false
	}
	return r.resolve(pairID), true
}

func (r *resolver) pairIDs() []string {
	ids := make([]string, 0, len(r.byPair))
	for id := range r.byPair {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *resolver) resolve(pairID string) model.Pairing {
	recs := r.byPair[pairID]
	slices.SortFunc(recs, func(a, b model.Evaluation) int { return strings.Compare(a.ID, b.ID) })

	p := model.Pairing{ID: pairID, CycleID: r.in.CycleID, Published: r.published[pairID]}
	p.Locked = len(p.Published) > 0
	switch len(recs) {
	case 1:
		r.single(&p, recs[0])
	case 2:
		r.double(&p, recs[0], recs[1])
	default:
		p.PersonA, p.PersonB = recs[0].Giver.ID, recs[0].Receiver.ID
		p.Broken = true
		p.Problems = append(p.Problems, ProblemTooManyRecords)
	}

	kind := recs[0].Kind
	p.Relationship = r.relationship(p.PersonA, p.PersonB, kind)
	if p.Publisher == "" {
		p.Publisher = p.PersonB
	}

	if p.Bidirectional() {
		p.SelfA = r.self(&p, p.PersonA)
	}
	p.SelfB = r.self(&p, p.PersonB)
	return p
}

func (r *resolver) single(p *model.Pairing, e model.Evaluation) {
	switch e.Kind {
	case model.KindPeer:
		p.PersonA, p.PersonB = e.Giver.ID, e.Receiver.ID
		p.AToB = &e
		p.Publisher = e.Receiver.ID
	case model.KindManagerDown:
		p.PersonA, p.PersonB = e.Giver.ID, e.Receiver.ID
		p.AToB = &e
		p.Publisher = e.Giver.ID
		p.Broken = true
		p.Problems = append(p.Problems, ProblemMissingCounterpart)
	default:
		p.PersonA, p.PersonB = e.Receiver.ID, e.Giver.ID
		p.BToA = &e
		p.Publisher = e.Receiver.ID
		p.Broken = true
		p.Problems = append(p.Problems, ProblemMissingCounterpart)
	}
}

func (r *resolver) double(p *model.Pairing, a, b model.Evaluation) {
	if a.Kind == model.KindManagerUp {
		a, b = b, a
	}
	p.PersonA, p.PersonB = a.Giver.ID, a.Receiver.ID
	p.AToB, p.BToA = &a, &b
	p.Publisher = a.Giver.ID

	if a.Giver.ID != b.Receiver.ID || a.Receiver.ID != b.Giver.ID || a.Giver.ID == a.Receiver.ID {
		p.Broken = true
		p.Problems = append(p.Problems, ProblemNotMirrored)
	}
	if a.Kind != model.KindManagerDown || b.Kind != model.KindManagerUp {
		p.Broken = true
		p.Problems = append(p.Problems, ProblemUnexpectedKinds)
	}
}

// relationship is peer when both parties share a layer. When either party is
// unknown the record kind decides.
func (r *resolver) relationship(a, b string, kind model.EvaluationKind) model.Relationship {
	pa, okA := r.in.Participants[a]
	pb, okB := r.in.Participants[b]
	if okA && okB && pa.Layer != "" && pb.Layer != "" {
		if pa.Layer == pb.Layer {
			return model.RelationshipPeer
		}
		return model.RelationshipManagerReport
	}
	if kind == model.KindPeer {
		return model.RelationshipPeer
	}
	return model.RelationshipManagerReport
}

// self finds the self-assessment of participantID linked to the pairing,
// first in the local slice and then in the full cycle set. Without a local
// slice the full set is the primary lookup and no fallback is counted.
func (r *resolver) self(p *model.Pairing, participantID string) *model.Evaluation {
	if e := findSelf(r.localSelf, participantID, p.ID); e != nil {
		return e
	}
	if e := findSelf(r.allSelf, participantID, p.ID); e != nil {
		if r.in.ParticipantID != "" {
			p.Fallbacks++
			metrics.RecordSelfFallback()
		}
		return e
	}
	p.Broken = true
	p.Problems = append(p.Problems, ProblemMissingSelf+participantID)
	return nil
}

func findSelf(set []model.Evaluation, participantID, pairID string) *model.Evaluation {
	for i := range set {
		e := set[i]
		if e.Receiver.ID == participantID && slices.Contains(e.PairIDs, pairID) {
			return &e
		}
	}
	return nil
}
