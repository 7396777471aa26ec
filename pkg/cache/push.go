package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/entsync/entsync/pkg/log"
	"github.com/entsync/entsync/pkg/metrics"
	"github.com/entsync/entsync/pkg/remote"
	"github.com/entsync/entsync/pkg/types"
)

// ErrUpdateFailed is the single operator-facing error for any uncategorized
// push failure. The specific cause is logged, never surfaced; transport
// internals do not belong in the CLI output.
var ErrUpdateFailed = errors.New("error updating system data on the server, see the log for details")

// FactsSource provides the current live facts for a push collection. The
// payload must be JSON-serializable; sources are expected to compute it
// lazily and cache it in memory until invalidated.
type FactsSource interface {
	Payload() (interface{}, error)
}

// FactsFunc adapts a closure to FactsSource.
type FactsFunc func() (interface{}, error)

func (f FactsFunc) Payload() (interface{}, error) {
	return f()
}

// PushCache detects when a local facts collection has drifted from the
// snapshot last pushed to the server, pushes the full current facts when it
// has, and persists the new snapshot. It never retries; retry policy is the
// caller's.
type PushCache struct {
	name      string
	entry     *Entry
	source    FactsSource
	push      remote.PushFunc
	supported func(ctx context.Context) bool
	logger    zerolog.Logger
}

// NewPushCache creates a push cache named name (used for logging and
// metrics) with its snapshot at path. The supported probe may be nil when
// the collection has no server-side capability gate.
func NewPushCache(name, path string, source FactsSource, push remote.PushFunc, supported func(ctx context.Context) bool) *PushCache {
	return &PushCache{
		name:      name,
		entry:     NewEntry(path),
		source:    source,
		push:      push,
		supported: supported,
		logger:    log.WithCache(name),
	}
}

// HasChanged deep-compares the current live facts against the last-pushed
// snapshot. The comparison runs over keys and values through JSON
// normalization; equal key counts with different values still compare as
// changed. No snapshot on disk always reads as changed.
func (c *PushCache) HasChanged() (bool, error) {
	payload, err := c.source.Payload()
	if err != nil {
		return false, fmt.Errorf("failed to collect %s facts: %w", c.name, err)
	}

	var cached interface{}
	ok, err := c.entry.Read(&cached)
	if err != nil {
		return false, err
	}
	if !ok {
		c.logger.Debug().Str("path", c.entry.Path()).Msg("no cache snapshot, treating as changed")
		return true, nil
	}

	normalized, err := normalize(payload)
	if err != nil {
		return false, err
	}
	return !types.ValueEqual(normalized, cached), nil
}

// UpdateCheck pushes the current facts when they differ from the last
// pushed snapshot (or when forced) and persists the new snapshot. It
// returns the number of updates performed: 0 when nothing needed doing,
// 1 on a successful push.
//
// An empty consumer UUID means the machine is not registered; that is a
// silent no-op, not a failure. A structured server error (*remote.APIError)
// is re-raised verbatim. Any other push failure is masked into
// ErrUpdateFailed with the detail logged.
func (c *PushCache) UpdateCheck(ctx context.Context, consumerUUID string, force bool) (int, error) {
	if consumerUUID == "" {
		c.logger.Debug().Msg("not registered, skipping cache sync")
		metrics.PushSkipsTotal.WithLabelValues(c.name, "unregistered").Inc()
		return 0, nil
	}

	if c.supported != nil && !c.supported(ctx) {
		c.logger.Info().Msg("server does not support this collection, skipping upload")
		metrics.PushSkipsTotal.WithLabelValues(c.name, "unsupported").Inc()
		return 0, nil
	}

	changed, err := c.HasChanged()
	if err != nil {
		return 0, err
	}
	if !changed && !force {
		c.logger.Debug().Msg("no changes")
		metrics.PushSkipsTotal.WithLabelValues(c.name, "unchanged").Inc()
		return 0, nil
	}

	payload, err := c.source.Payload()
	if err != nil {
		return 0, fmt.Errorf("failed to collect %s facts: %w", c.name, err)
	}

	c.logger.Debug().Msg("system data has changed, updating server")
	if err := c.push(ctx, consumerUUID, payload); err != nil {
		metrics.PushFailuresTotal.WithLabelValues(c.name).Inc()
		if remote.IsAPIError(err) {
			return 0, err
		}
		c.logger.Error().Err(err).Msg("error updating system data on the server")
		return 0, ErrUpdateFailed
	}

	if err := c.WriteCache(); err != nil {
		// The push succeeded; a failed snapshot write only means the next
		// run re-detects a change.
		c.logger.Error().Err(err).Msg("unable to write cache snapshot")
	}
	metrics.PushUpdatesTotal.WithLabelValues(c.name).Inc()
	return 1, nil
}

// WriteCache persists the current facts as the last-pushed snapshot. Only
// call after successful communication with the server; exposed because some
// collections are bundled into the registration request and need the
// snapshot written without an UpdateCheck.
func (c *PushCache) WriteCache() error {
	payload, err := c.source.Payload()
	if err != nil {
		return fmt.Errorf("failed to collect %s facts: %w", c.name, err)
	}
	return c.entry.Write(payload)
}

// Delete removes the snapshot so the next check reads as changed.
func (c *PushCache) Delete() error {
	return c.entry.Delete()
}

// normalize round-trips a payload through JSON so it compares cleanly
// against a snapshot decoded from disk.
func normalize(payload interface{}) (interface{}, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload for comparison: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode payload for comparison: %w", err)
	}
	return out, nil
}
