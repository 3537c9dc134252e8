package model

// PillarIndex is the mean published composite of one pillar, blended with
// the leadership-layer mean.
type PillarIndex struct {
	Pillar   string  `json:"pillar"`
	Score    float64 `json:"score"`
	Subjects int     `json:"subjects"`
	Blended  float64 `json:"blended"`
}

// Index is the top-level score index of a cycle.
type Index struct {
	CycleID            string        `json:"cycleId"`
	Weight             float64       `json:"leadershipWeight"`
	Leadership         float64       `json:"leadership"`
	LeadershipSubjects int           `json:"leadershipSubjects"`
	Pillars            []PillarIndex `json:"pillars"`
	Overall            float64       `json:"overall"`
}
