package norms

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/gyeh/grdload/internal/model"
)

// DefaultRefreshInterval is how long a loaded table is served before a
// reload is attempted.
const DefaultRefreshInterval = 24 * time.Hour

// Persister stores loaded entries so a later process can start from them
// when the remote source is down.
type Persister interface {
	UpsertNorms(ctx context.Context, entries []model.NormEntry) error
	ListNorms(ctx context.Context) ([]model.NormEntry, error)
}

// Cache serves the most recently loaded table. Readers never block on a
// reload; a reload swaps the table pointer in one step.
type Cache struct {
	src       Source
	opts      LoadOptions
	interval  time.Duration
	persister Persister
	log       zerolog.Logger

	table atomic.Pointer[Table]
	group singleflight.Group
	now   func() time.Time
}

// CacheOptions configures a Cache.
type CacheOptions struct {
	Load      LoadOptions
	Interval  time.Duration
	Persister Persister // optional
}

// NewCache returns an empty cache over src. Nothing is loaded until the
// first Refresh or Current call.
func NewCache(src Source, opts CacheOptions, log zerolog.Logger) *Cache {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	c := &Cache{
		src:       src,
		opts:      opts.Load,
		interval:  interval,
		persister: opts.Persister,
		log:       log.With().Str("component", "norms").Logger(),
		now:       time.Now,
	}
	if opts.Load.Now != nil {
		c.now = opts.Load.Now
	}
	return c
}

// Lookup returns the entry for code from the current table.
func (c *Cache) Lookup(code string) (model.NormEntry, bool) {
	return c.table.Load().Lookup(code)
}

// Loaded reports whether any table has been loaded.
func (c *Cache) Loaded() bool {
	return c.table.Load() != nil
}

// Interval returns the refresh interval.
func (c *Cache) Interval() time.Duration { return c.interval }

func (c *Cache) stale(t *Table) bool {
	return c.now().Sub(t.LoadedAt()) >= c.interval
}

// Current returns the cached table. A stale table is returned immediately and
// refreshed in the background; only when nothing was ever loaded does
// Current load synchronously.
func (c *Cache) Current(ctx context.Context) (*Table, error) {
	if t := c.table.Load(); t != nil {
		if c.stale(t) {
			go func() {
				_, _ = c.Refresh(context.WithoutCancel(ctx), false)
			}()
		}
		return t, nil
	}
	t, err := c.Refresh(ctx, true)
	if t != nil {
		return t, nil
	}
	return nil, err
}

// Refresh reloads the table when force is set or the current one is stale.
// Concurrent calls share one load. On failure the previous table stays in
// place and is returned together with the error.
func (c *Cache) Refresh(ctx context.Context, force bool) (*Table, error) {
	if cur := c.table.Load(); cur != nil && !force && !c.stale(cur) {
		return cur, nil
	}

	v, err, _ := c.group.Do("refresh", func() (any, error) {
		return c.reload(ctx)
	})
	if err != nil {
		return c.table.Load(), err
	}
	return v.(*Table), nil
}

func (c *Cache) reload(ctx context.Context) (*Table, error) {
	start := c.now()
	t, stats, err := Load(ctx, c.src, c.opts)
	if err != nil {
		c.log.Error().Err(err).Msg("norm load failed")
		if c.table.Load() == nil {
			c.warmStart(ctx)
		}
		return nil, err
	}

	c.table.Store(t)
	c.log.Info().
		Str("source", c.src.Name()).
		Int("entries", t.Len()).
		Int("rows", stats.Rows).
		Int("skipped_no_code", stats.SkippedNoCode).
		Int("skipped_cutoff", stats.SkippedCutoff).
		Dur("duration", c.now().Sub(start)).
		Msg("norm table loaded")

	if c.persister != nil {
		if err := c.persister.UpsertNorms(ctx, t.Entries()); err != nil {
			c.log.Warn().Err(err).Msg("persist norm entries failed (non-fatal)")
		}
	}
	return t, nil
}

// warmStart installs the persisted entries when the source is unreachable
// and nothing is cached. The table is dated zero so the next call retries
// the source.
func (c *Cache) warmStart(ctx context.Context) {
	if c.persister == nil {
		return
	}
	entries, err := c.persister.ListNorms(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("read persisted norm entries failed")
		return
	}
	if len(entries) == 0 {
		return
	}
	t := NewTable(entries, time.Time{}, "persisted")
	if c.table.CompareAndSwap(nil, t) {
		c.log.Warn().Int("entries", t.Len()).Msg("serving persisted norm table")
	}
}

// Describe returns a one-line summary of the cached table for CLI output.
func (c *Cache) Describe() string {
	t := c.table.Load()
	if t == nil {
		return "no norm table loaded"
	}
	return fmt.Sprintf("%d entries from %s loaded %s", t.Len(), t.Source(), t.LoadedAt().Format(time.RFC3339))
}
