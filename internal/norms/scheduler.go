package norms

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler reloads a Cache on a fixed interval.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// NewScheduler registers a forced refresh of cache every interval. Each run
// is bounded by timeout.
func NewScheduler(cache *Cache, interval, timeout time.Duration, log zerolog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("refresh interval must be positive, got %s", interval)
	}
	c := cron.New()
	s := &Scheduler{cron: c, log: log.With().Str("component", "norm_scheduler").Logger()}

	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := cache.Refresh(ctx, true); err != nil {
			s.log.Warn().Err(err).Msg("scheduled norm refresh failed, keeping cached table")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule norm refresh: %w", err)
	}
	return s, nil
}

// Start begins running scheduled refreshes in the background.
func (s *Scheduler) Start() {
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("norm scheduler started")
	s.cron.Start()
}

// Stop halts the scheduler; the returned context is done once a running
// refresh has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
