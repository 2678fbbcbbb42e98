package repository

import (
	"time"

	"github.com/google/uuid"
)

type settings struct {
	now   func() time.Time
	newID func() string
}

func defaultSettings() settings {
	return settings{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Option applies a configuration option to a store.
type Option func(*settings)

// WithClock sets the time source used for created-at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets the generator for match record ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *settings) {
		if gen != nil {
			s.newID = gen
		}
	}
}
