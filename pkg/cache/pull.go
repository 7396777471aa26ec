package cache

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/entsync/entsync/pkg/log"
	"github.com/entsync/entsync/pkg/metrics"
	"github.com/entsync/entsync/pkg/remote"
	"github.com/entsync/entsync/pkg/types"
)

// PullCache serves server-owned data through a read-through hierarchy:
// an in-memory mirror first, then a remote fetch, then the last persisted
// snapshot when the server is unreachable. A nil result means the data is
// unavailable everywhere; LastError distinguishes why.
type PullCache struct {
	name   string
	entry  *Entry
	fetch  remote.FetchFunc
	writer *Writer
	logger zerolog.Logger

	mu      sync.Mutex
	mirror  types.Record
	lastErr error
}

// NewPullCache creates a pull cache named name with its snapshot at path.
// The writer may be nil, in which case snapshots are written inline.
func NewPullCache(name, path string, fetch remote.FetchFunc, writer *Writer) *PullCache {
	return &PullCache{
		name:   name,
		entry:  NewEntry(path),
		fetch:  fetch,
		writer: writer,
		logger: log.WithCache(name),
	}
}

// Read returns the cached data, fetching from the server when the memory
// mirror is empty. The result is nil when the data is unavailable:
// the machine is unregistered, the server does not expose the resource,
// authentication failed, or the server is unreachable with no snapshot on
// disk. Stale disk data is served only for connectivity failures, never for
// authentication failures.
//
// Callers must not mutate the returned record.
func (c *PullCache) Read(ctx context.Context, consumerUUID string) types.Record {
	if consumerUUID == "" {
		c.logger.Debug().Msg("not registered, nothing to read")
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mirror != nil {
		metrics.CacheReadsTotal.WithLabelValues(c.name, "memory").Inc()
		return c.mirror
	}

	rec, err := c.fetch(ctx, consumerUUID)
	if err == nil {
		c.lastErr = nil
		c.mirror = rec
		c.persist(rec)
		metrics.CacheReadsTotal.WithLabelValues(c.name, "remote").Inc()
		return c.mirror
	}

	c.lastErr = err
	switch {
	case remote.IsUnsupported(err):
		c.logger.Debug().Msg("server does not expose this resource")
		return nil
	case remote.IsAuthError(err):
		// Credentials are wrong; serving a snapshot would hide that.
		c.logger.Error().Err(err).Msg("authentication failed, not falling back to cache")
		return nil
	case remote.IsConnectionError(err):
		if stale, ok, readErr := c.entry.ReadRecord(); readErr == nil && ok {
			c.logger.Warn().Err(err).Msg("server unreachable, using cached data")
			c.mirror = stale
			metrics.CacheReadsTotal.WithLabelValues(c.name, "stale").Inc()
			return c.mirror
		}
		c.logger.Error().Err(err).Msg("server unreachable and no cached data available")
		metrics.CacheReadsTotal.WithLabelValues(c.name, "miss").Inc()
		return nil
	default:
		c.logger.Error().Err(err).Msg("unable to fetch data from the server")
		return nil
	}
}

// Refresh discards the memory mirror and re-reads through the hierarchy.
func (c *PullCache) Refresh(ctx context.Context, consumerUUID string) types.Record {
	c.mu.Lock()
	c.mirror = nil
	c.mu.Unlock()
	return c.Read(ctx, consumerUUID)
}

// LastError returns the error from the most recent fetch attempt, or nil
// when it succeeded. It lets callers tell "server says there is no data"
// apart from "could not ask the server".
func (c *PullCache) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Delete drops both the memory mirror and the disk snapshot, typically on
// unregistration.
func (c *PullCache) Delete() error {
	c.mu.Lock()
	c.mirror = nil
	c.lastErr = nil
	c.mu.Unlock()
	return c.entry.Delete()
}

func (c *PullCache) persist(rec types.Record) {
	if c.writer != nil {
		c.writer.Enqueue(c.name, c.entry, rec)
		return
	}
	if err := c.entry.Write(rec); err != nil {
		c.logger.Error().Err(err).Str("path", c.entry.Path()).Msg("unable to write cache snapshot")
	}
}
