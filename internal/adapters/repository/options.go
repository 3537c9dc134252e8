package repository

import "context"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithBatchLimit sets the maximum number of mutations per Commit.
func WithBatchLimit(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

// CommitHook runs before each Commit is applied; seq counts commits from 1.
// A non-nil error aborts the commit with nothing written.
type CommitHook func(ctx context.Context, seq int, muts []Mutation) error

// WithCommitHook installs a hook consulted before every Commit. It is used to
// inject write failures.
func WithCommitHook(h CommitHook) Option {
	return func(s *MemoryStore) {
		s.hook = h
	}
}
