package pairing

import (
	"slices"

	"github.com/okian/cadence/internal/domain/model"
)

// BrokenPair is a pair that failed reconstruction.
type BrokenPair struct {
	PairID       string   `json:"pairId"`
	Participants []string `json:"participants"`
	Problems     []string `json:"problems"`
}

// Finding is a record that violates a linking invariant.
type Finding struct {
	RecordID      string `json:"recordId"`
	ParticipantID string `json:"participantId"`
	PairID        string `json:"pairId,omitempty"`
	Reason        string `json:"reason"`
}

// AuditReport is the result of checking pair linking for one cycle.
type AuditReport struct {
	CycleID                 string       `json:"cycleId"`
	Records                 int          `json:"records"`
	Pairs                   int          `json:"pairs"`
	BrokenPairs             []BrokenPair `json:"brokenPairs"`
	OrphanedRecords         []Finding    `json:"orphanedRecords"`
	OrphanedSelfAssessments []Finding    `json:"orphanedSelfAssessments"`
}

// Clean reports whether the audit found nothing.
func (r AuditReport) Clean() bool {
	return len(r.BrokenPairs) == 0 && len(r.OrphanedRecords) == 0 && len(r.OrphanedSelfAssessments) == 0
}

// Audit findings.
const (
	ReasonNoPairID            = "directional record in a 360 cycle has no pair id"
	ReasonUnknownGiver        = "giver is not a known participant"
	ReasonUnknownReceiver     = "receiver is not a known participant"
	ReasonDanglingPairID      = "self-assessment lists a pair id with no directional records"
	ReasonDuplicateSelf       = "participant has more than one self-assessment"
	ReasonSelfInOneToOneCycle = "self-assessment in a one-to-one cycle"
)

// Audit checks every record of a cycle against the linking invariants.
// in.All must hold the complete cycle set; in.Local and in.ParticipantID
// are ignored.
func Audit(c model.Cycle, in Input) AuditReport {
	in.Local = nil
	r := newResolver(in)
	report := AuditReport{
		CycleID:                 c.ID,
		Records:                 len(in.All),
		Pairs:                   len(r.byPair),
		BrokenPairs:             []BrokenPair{},
		OrphanedRecords:         []Finding{},
		OrphanedSelfAssessments: []Finding{},
	}

	for _, id := range r.pairIDs() {
		p := r.resolve(id)
		if !p.Broken {
			continue
		}
		report.BrokenPairs = append(report.BrokenPairs, BrokenPair{
			PairID:       id,
			Participants: []string{p.PersonA, p.PersonB},
			Problems:     p.Problems,
		})
	}

	known := func(id string) bool {
		if in.Participants == nil {
			return true
		}
		_, ok := in.Participants[id]
		return ok
	}

	selfCount := make(map[string]int)
	for _, e := range in.All {
		if !known(e.Giver.ID) {
			report.OrphanedRecords = append(report.OrphanedRecords, finding(e, e.Giver.ID, ReasonUnknownGiver))
		} else if !known(e.Receiver.ID) {
			report.OrphanedRecords = append(report.OrphanedRecords, finding(e, e.Receiver.ID, ReasonUnknownReceiver))
		}

		switch {
		case e.Kind == model.KindSelf:
			selfCount[e.Receiver.ID]++
			if selfCount[e.Receiver.ID] == 2 {
				report.OrphanedSelfAssessments = append(report.OrphanedSelfAssessments, finding(e, e.Receiver.ID, ReasonDuplicateSelf))
			}
			if c.Kind == model.CycleOneToOne {
				report.OrphanedSelfAssessments = append(report.OrphanedSelfAssessments, finding(e, e.Receiver.ID, ReasonSelfInOneToOneCycle))
			}
			// An empty list is valid: a manager without reports or peers.
			for _, pid := range e.PairIDs {
				if _, ok := r.byPair[pid]; !ok {
					f := finding(e, e.Receiver.ID, ReasonDanglingPairID)
					f.PairID = pid
					report.OrphanedSelfAssessments = append(report.OrphanedSelfAssessments, f)
				}
			}
		case c.Kind == model.CycleThreeSixty && e.Kind.Directional() && e.PairID == "":
			report.OrphanedRecords = append(report.OrphanedRecords, finding(e, e.Receiver.ID, ReasonNoPairID))
		}
	}

	sortFindings(report.OrphanedRecords)
	sortFindings(report.OrphanedSelfAssessments)
	return report
}

func finding(e model.Evaluation, participantID, reason string) Finding {
	return Finding{RecordID: e.ID, ParticipantID: participantID, PairID: e.PairID, Reason: reason}
}

func sortFindings(fs []Finding) {
	slices.SortStableFunc(fs, func(a, b Finding) int {
		switch {
		case a.RecordID < b.RecordID:
			return -1
		case a.RecordID > b.RecordID:
			return 1
		}
		return 0
	})
}
