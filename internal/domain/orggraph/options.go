package orggraph

import "github.com/okian/cadence/pkg/logger"

// Option applies a configuration option to Build.
type Option func(*builder)

// WithLogger sets the logger used for data-integrity warnings.
func WithLogger(l logger.Logger) Option {
	return func(b *builder) {
		if l != nil {
			b.log = l
		}
	}
}
