package generator

import (
	"time"

	"github.com/okian/cadence/pkg/logger"
)

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithLogger sets the generator logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.log = l
		}
	}
}

// WithClock sets the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithBatchLimit caps the mutations per batch below the store limit.
func WithBatchLimit(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.batchLimit = n
		}
	}
}
