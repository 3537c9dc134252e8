package model

import "slices"

// Relationship classifies a pairing.
type Relationship string

const (
	RelationshipManagerReport Relationship = "manager-report"
	RelationshipPeer          Relationship = "peer"
)

// PairState is the publication state of one pair direction.
type PairState string

const (
	StateNotStarted        PairState = "not_started"
	StatePartiallyComplete PairState = "partially_complete"
	StateAllComplete       PairState = "all_complete"
	StatePublished         PairState = "published"
)

// Pairing groups the self-assessments and directional assessments that
// describe one evaluation relationship. For peer pairings PersonA is the
// assessor, PersonB the subject, and only SelfB and AToB are populated.
// Locked is set once any outcome of the pair is published; its records
// must not be opened for editing after that.
// Publisher follows the records: the manager of a down/up pair publishes
// both directions, and the subject publishes a peer record. Relationship
// is descriptive and does not change who publishes.
type Pairing struct {
	ID           string            `json:"id"`
	CycleID      string            `json:"cycleId"`
	Relationship Relationship      `json:"relationship"`
	PersonA      string            `json:"personA"`
	PersonB      string            `json:"personB"`
	SelfA        *Evaluation       `json:"selfA,omitempty"`
	SelfB        *Evaluation       `json:"selfB,omitempty"`
	AToB         *Evaluation       `json:"aToB,omitempty"`
	BToA         *Evaluation       `json:"bToA,omitempty"`
	Publisher    string            `json:"publisher"`
	Broken       bool              `json:"broken"`
	Problems     []string          `json:"problems,omitempty"`
	Fallbacks    int               `json:"fallbacks"`
	Published    []PublishedRecord `json:"published,omitempty"`
	Locked       bool              `json:"locked"`
}

// Bidirectional reports whether both directions were generated for the pair.
func (p *Pairing) Bidirectional() bool {
	return p.BToA != nil
}

// Has reports whether the participant is one of the two parties.
func (p *Pairing) Has(participantID string) bool {
	return p.PersonA == participantID || p.PersonB == participantID
}

// Subjects lists the participants whose outcome can be published from this
// pairing.
func (p *Pairing) Subjects() []string {
	if p.Bidirectional() {
		return []string{p.PersonA, p.PersonB}
	}
	return []string{p.PersonB}
}

// PublisherFor returns who may publish the outcome for subjectID, or ""
// when subjectID is not a subject of the pairing.
func (p *Pairing) PublisherFor(subjectID string) string {
	if !slices.Contains(p.Subjects(), subjectID) {
		return ""
	}
	return p.Publisher
}

// Constituents returns the records the pairing is built from. Missing
// records are omitted.
func (p *Pairing) Constituents() []*Evaluation {
	out := make([]*Evaluation, 0, 4)
	for _, e := range []*Evaluation{p.SelfA, p.SelfB, p.AToB, p.BToA} {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// expected is the number of constituents a well-formed pairing carries.
func (p *Pairing) expected() int {
	if p.Bidirectional() {
		return 4
	}
	return 2
}

// Complete reports whether every constituent record is present and has
// reached a terminal status.
func (p *Pairing) Complete() bool {
	if p.Broken {
		return false
	}
	cs := p.Constituents()
	if len(cs) != p.expected() {
		return false
	}
	for _, e := range cs {
		if !e.Status.Terminal() {
			return false
		}
	}
	return true
}

// EvaluationOf returns the directional record whose receiver is subjectID.
func (p *Pairing) EvaluationOf(subjectID string) *Evaluation {
	for _, e := range []*Evaluation{p.AToB, p.BToA} {
		if e != nil && e.Receiver.ID == subjectID {
			return e
		}
	}
	return nil
}

// PublishedFor returns the published record for subjectID, if any.
func (p *Pairing) PublishedFor(subjectID string) (PublishedRecord, bool) {
	for _, r := range p.Published {
		if r.SubjectID == subjectID {
			return r, true
		}
	}
	return PublishedRecord{}, false
}

// StateFor returns the publication state of the pair direction whose
// subject is subjectID.
func (p *Pairing) StateFor(subjectID string) PairState {
	if _, ok := p.PublishedFor(subjectID); ok {
		return StatePublished
	}
	if p.Complete() {
		return StateAllComplete
	}
	for _, e := range p.Constituents() {
		if e.Status.Terminal() {
			return StatePartiallyComplete
		}
	}
	return StateNotStarted
}
