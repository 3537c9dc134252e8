// Package scoring computes composite scores and 9-box classifications from
// the six sub-scores of an evaluation.
package scoring

import (
	"fmt"

	"github.com/okian/cadence/internal/domain/model"
)

// Default scoring configuration constants.
const (
	defaultMin              = 0
	defaultMax              = 2
	defaultLowMax           = 2
	defaultMidMax           = 4
	defaultLeadershipWeight = 0.6
)

// Bucket is the band an axis total falls into.
type Bucket string

const (
	Low  Bucket = "low"
	Mid  Bucket = "mid"
	High Bucket = "high"
)

// labels is indexed by [value][growth].
var labels = map[Bucket]map[Bucket]string{
	Low:  {Low: "Risk", Mid: "Inconsistent Player", High: "Rough Diamond"},
	Mid:  {Low: "Effective", Mid: "Core Player", High: "Growth Employee"},
	High: {Low: "Trusted Professional", Mid: "High Performer", High: "Star"},
}

// Classification is a 9-box cell.
type Classification struct {
	Value  Bucket `json:"value"`
	Growth Bucket `json:"growth"`
	Label  string `json:"label"`
	Code   string `json:"code"`
}

// Result is the outcome of scoring one evaluation.
type Result struct {
	Composite   int            `json:"composite"`
	ValueTotal  int            `json:"valueTotal"`
	GrowthTotal int            `json:"growthTotal"`
	Class       Classification `json:"classification"`
}

// Composite computes composite results.
type Composite interface {
	Compute(scores model.Scores) (Result, error)
}

// Scorer is the default Composite. It is immutable after construction and
// safe for concurrent use.
type Scorer struct {
	min              int
	max              int
	lowMax           int
	midMax           int
	leadershipWeight float64
}

// New creates a scorer with configuration options.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		min:              defaultMin,
		max:              defaultMax,
		lowMax:           defaultLowMax,
		midMax:           defaultMidMax,
		leadershipWeight: defaultLeadershipWeight,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compute validates every sub-score, sums them into the composite and
// classifies the two axis totals.
func (s *Scorer) Compute(scores model.Scores) (Result, error) {
	var r Result
	for i := 0; i < model.NumDomains; i++ {
		if err := s.check("value", i, scores.Value[i]); err != nil {
			return Result{}, err
		}
		if err := s.check("growth", i, scores.Growth[i]); err != nil {
			return Result{}, err
		}
		r.ValueTotal += scores.Value[i]
		r.GrowthTotal += scores.Growth[i]
	}
	r.Composite = r.ValueTotal + r.GrowthTotal
	r.Class = s.Classify(r.ValueTotal, r.GrowthTotal)
	return r, nil
}

func (s *Scorer) check(axis string, domain, v int) error {
	if v < s.min || v > s.max {
		return fmt.Errorf("%w: %s[%d]=%d not in [%d,%d]", ErrScoreOutOfRange, axis, domain, v, s.min, s.max)
	}
	return nil
}

// Bucket bands an axis total.
func (s *Scorer) Bucket(total int) Bucket {
	switch {
	case total <= s.lowMax:
		return Low
	case total <= s.midMax:
		return Mid
	default:
		return High
	}
}

// Classify returns the 9-box cell for the two axis totals.
func (s *Scorer) Classify(valueTotal, growthTotal int) Classification {
	v, g := s.Bucket(valueTotal), s.Bucket(growthTotal)
	return Classification{
		Value:  v,
		Growth: g,
		Label:  labels[v][g],
		Code:   string(v) + "/" + string(g),
	}
}

// Blend combines a leadership-layer score and a pillar-layer score into the
// top-level index using the configured leadership weight.
func (s *Scorer) Blend(leadership, pillar float64) float64 {
	return s.leadershipWeight*leadership + (1-s.leadershipWeight)*pillar
}

// LeadershipWeight returns the configured blend weight.
func (s *Scorer) LeadershipWeight() float64 {
	return s.leadershipWeight
}

// Range returns the inclusive sub-score bounds.
func (s *Scorer) Range() (minScore, maxScore int) {
	return s.min, s.max
}
