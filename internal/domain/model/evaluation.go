package model

import "time"

// EvaluationKind identifies who evaluates whom.
type EvaluationKind string

const (
	KindSelf        EvaluationKind = "self"
	KindManagerDown EvaluationKind = "manager-down"
	KindManagerUp   EvaluationKind = "manager-up"
	KindPeer        EvaluationKind = "peer"
)

// Directional reports whether the kind is a giver->receiver assessment of
// someone else.
func (k EvaluationKind) Directional() bool {
	return k == KindManagerDown || k == KindManagerUp || k == KindPeer
}

// Status is the progress of an evaluation record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusCompleted  Status = "completed"
	StatusCalibrated Status = "calibrated"
	StatusPublished  Status = "published"
)

// Terminal reports whether the record has left the pending state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCalibrated || s == StatusPublished
}

// Party identifies a giver or receiver.
type Party struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// NumDomains is the number of scored domains per axis.
const NumDomains = 3

// Scores holds the six sub-scores of an evaluation: one per domain on the
// current-value axis and one per domain on the growth-potential axis.
type Scores struct {
	Value  [NumDomains]int `json:"value"`
	Growth [NumDomains]int `json:"growth"`
}

// Evaluation is the atomic record produced by the generator.
type Evaluation struct {
	ID        string         `json:"id"`
	CycleID   string         `json:"cycleId"`
	Kind      EvaluationKind `json:"kind"`
	Giver     Party          `json:"giver"`
	Receiver  Party          `json:"receiver"`
	PairID    string         `json:"pairId,omitempty"`
	PairIDs   []string       `json:"pairIds,omitempty"`
	Status    Status         `json:"status"`
	Scores    *Scores        `json:"scores,omitempty"`
	Composite *int           `json:"composite,omitempty"`
	Label     string         `json:"label,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt,omitzero"`
	LegacyID  string         `json:"legacyId,omitempty"`
}

// Subject returns the id of the person being evaluated.
func (e Evaluation) Subject() string {
	return e.Receiver.ID
}

// LinkedPairs returns every pair id the record participates in.
func (e Evaluation) LinkedPairs() []string {
	if e.PairID != "" {
		return []string{e.PairID}
	}
	return e.PairIDs
}
