package model

import "time"

// PublishedRecord is the immutable scored outcome of a pair direction, or of
// a legacy ad-hoc evaluation when AdHoc is set.
type PublishedRecord struct {
	Key         string    `json:"key"`
	Sequence    int64     `json:"sequence"`
	PairID      string    `json:"pairId,omitempty"`
	SubjectID   string    `json:"subjectId"`
	CycleID     string    `json:"cycleId,omitempty"`
	Composite   int       `json:"composite"`
	Label       string    `json:"label"`
	Code        string    `json:"code"`
	PublishedAt time.Time `json:"publishedAt"`
	PublisherID string    `json:"publisherId"`
	AdHoc       bool      `json:"adHoc,omitempty"`
}
