package service

import (
	"time"

	"github.com/okian/gaffer/internal/adapters/feed"
	"github.com/okian/gaffer/internal/adapters/repository"
	"github.com/okian/gaffer/internal/domain/elo"
	"github.com/okian/gaffer/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the rating store. Defaults to an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithFeed sets the match source. Defaults to an empty static feed.
func WithFeed(source feed.Feed) Option {
	return func(s *Service) {
		if source != nil {
			s.feed = source
		}
	}
}

// WithEngineOptions sets the options every run's engine is built with.
func WithEngineOptions(opts ...elo.Option) Option {
	return func(s *Service) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithQueueSize sets how many update requests may wait at once.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithUpdateInterval schedules a run every interval. Zero disables it.
func WithUpdateInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval >= 0 {
			s.interval = interval
		}
	}
}

// WithRunOnStart queues a run as soon as the service starts.
func WithRunOnStart(enabled bool) Option {
	return func(s *Service) {
		s.runOnStart = enabled
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
