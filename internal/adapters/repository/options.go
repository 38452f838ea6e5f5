package repository

import "github.com/okian/gaffer/pkg/logger"

// Default Postgres store configuration constants.
const (
	defaultWriteChunkSize = 500
	defaultFeedPageSize   = 1000
)

// PostgresOption applies a configuration option to the PostgresStore.
type PostgresOption func(*PostgresStore)

// WithWriteChunkSize sets how many rows go into one write batch.
func WithWriteChunkSize(n int) PostgresOption {
	return func(s *PostgresStore) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithFeedPageSize sets how many raw matches one feed query returns.
func WithFeedPageSize(n int) PostgresOption {
	return func(s *PostgresStore) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) PostgresOption {
	return func(s *PostgresStore) {
		if l != nil {
			s.logger = l
		}
	}
}
