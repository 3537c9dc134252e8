package publish

import (
	"time"

	"github.com/okian/cadence/internal/domain/dedupe"
	"github.com/okian/cadence/internal/domain/pairing"
	"github.com/okian/cadence/internal/domain/scoring"
	"github.com/okian/cadence/pkg/logger"
)

// Option applies a configuration option to the Gate.
type Option func(*Gate)

// WithScorer sets the scorer used for submissions and publication.
func WithScorer(s *scoring.Scorer) Option {
	return func(g *Gate) {
		if s != nil {
			g.scorer = s
		}
	}
}

// WithLoader sets the pairing loader.
func WithLoader(l *pairing.Loader) Option {
	return func(g *Gate) {
		if l != nil {
			g.loader = l
		}
	}
}

// WithInFlight sets the guard that serializes publishes of one key.
func WithInFlight(d dedupe.Deduper) Option {
	return func(g *Gate) {
		if d != nil {
			g.inflight = d
		}
	}
}

// WithLogger sets the gate logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

// WithClock sets the time source for publication timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}
