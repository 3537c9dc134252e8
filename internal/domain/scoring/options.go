package scoring

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithRange sets the inclusive range every sub-score must fall in.
func WithRange(minScore, maxScore int) Option {
	return func(s *Scorer) {
		if minScore <= maxScore {
			s.min = minScore
			s.max = maxScore
		}
	}
}

// WithThresholds sets the axis-total bucket bounds: totals up to lowMax are
// low, up to midMax mid, anything higher high.
func WithThresholds(lowMax, midMax int) Option {
	return func(s *Scorer) {
		if lowMax < midMax {
			s.lowMax = lowMax
			s.midMax = midMax
		}
	}
}

// WithLeadershipWeight sets the share of the leadership-layer score in the
// blended index; the pillar score takes the rest.
func WithLeadershipWeight(w float64) Option {
	return func(s *Scorer) {
		if w >= 0 && w <= 1 {
			s.leadershipWeight = w
		}
	}
}
