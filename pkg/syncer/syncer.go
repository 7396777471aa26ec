package syncer

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/entsync/entsync/pkg/log"
	"github.com/entsync/entsync/pkg/merge"
	"github.com/entsync/entsync/pkg/metrics"
	"github.com/entsync/entsync/pkg/remote"
	"github.com/entsync/entsync/pkg/store"
	"github.com/entsync/entsync/pkg/types"
)

// Option configures a Session.
type Option func(*Session)

// WithPolicy overrides the default prefer-remote conflict policy.
func WithPolicy(policy merge.ConflictPolicy) Option {
	return func(s *Session) {
		s.policy = policy
	}
}

// WithChangeFunc registers a callback invoked for every key the merge
// resolves away from the last-synced snapshot. Used by the CLI to report
// what a sync actually did.
func WithChangeFunc(fn merge.ChangeFunc) Option {
	return func(s *Session) {
		s.onChange = fn
	}
}

// Session runs reconciliation cycles between the user-edited local store,
// the last-synced cache store and the server-held record. Mutations applied
// through the session mark it dirty; Close flushes a dirty session with one
// final cycle.
//
// A Session is safe for concurrent use. Each cycle is atomic with respect
// to session mutations.
type Session struct {
	local        *store.Store
	cache        *store.Store
	resource     remote.Resource
	consumerUUID string
	policy       merge.ConflictPolicy
	onChange     merge.ChangeFunc
	logger       zerolog.Logger

	mu     sync.Mutex
	dirty  bool
	closed bool
}

// New creates a session over the two stores and the remote resource. An
// empty consumerUUID means the machine is not registered: cycles then
// reconcile local against cache only and never touch the network.
func New(local, cache *store.Store, resource remote.Resource, consumerUUID string, opts ...Option) *Session {
	s := &Session{
		local:        local,
		cache:        cache,
		resource:     resource,
		consumerUUID: consumerUUID,
		policy:       merge.PreferRemote,
		logger:       log.WithConsumerUUID(consumerUUID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync runs one reconciliation cycle: fetch the server record, three-way
// merge it with the local and cached snapshots, persist the merged result
// to both stores, and push it back when the server's copy is behind.
//
// An unreachable or unsupported server degrades the cycle to a local merge;
// the push is skipped and the error is not surfaced. Authentication
// failures and structured server errors are returned unmodified. A cycle
// with no drift anywhere completes as a no-op.
func (s *Session) Sync(ctx context.Context) (types.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sync(ctx)
}

func (s *Session) sync(ctx context.Context) (types.Record, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SyncDuration)
	metrics.SyncCyclesTotal.Inc()

	localRec := s.local.Contents()
	baseRec := s.cache.Contents()

	remoteRec, pushable, err := s.fetchRemote(ctx)
	if err != nil {
		return nil, err
	}

	merged, err := merge.Merge(localRec, baseRec, remoteRec, s.policy, s.reportChange)
	if err != nil {
		return nil, err
	}

	if pushable && !merged.Equal(remoteRec) {
		if err := s.push(ctx, merged); err != nil {
			// Keep the merged result locally so the edit survives; the
			// cache snapshot must not advance past what the server holds.
			s.saveLocal(merged)
			return nil, err
		}
	}

	s.saveLocal(merged)
	if s.cache.Replace(merged) || s.cache.Dirty() {
		if err := s.cache.Save(); err != nil {
			return nil, err
		}
	}

	s.dirty = false
	s.logger.Debug().Msg("sync cycle complete")
	return merged, nil
}

// fetchRemote returns the server's record and whether a push may follow.
// Unregistered, unsupported and unreachable all soften to an empty record
// with the push disabled.
func (s *Session) fetchRemote(ctx context.Context) (types.Record, bool, error) {
	if s.resource == nil || s.consumerUUID == "" {
		s.logger.Debug().Msg("not registered, reconciling locally")
		return types.Record{}, false, nil
	}
	if !s.resource.Supported(ctx) {
		s.logger.Info().Msg("server does not support this resource, reconciling locally")
		return types.Record{}, false, nil
	}

	rec, err := s.resource.Fetch(ctx, s.consumerUUID)
	switch {
	case err == nil:
		return rec, true, nil
	case remote.IsUnsupported(err):
		s.logger.Info().Msg("server does not support this resource, reconciling locally")
		return types.Record{}, false, nil
	case remote.IsConnectionError(err):
		s.logger.Warn().Err(err).Msg("server unreachable, reconciling locally")
		return types.Record{}, false, nil
	default:
		return nil, false, err
	}
}

func (s *Session) push(ctx context.Context, merged types.Record) error {
	err := s.resource.Push(ctx, s.consumerUUID, merged)
	switch {
	case err == nil:
		return nil
	case remote.IsUnsupported(err):
		s.logger.Info().Msg("server does not support this resource, push skipped")
		return nil
	case remote.IsConnectionError(err):
		s.logger.Warn().Err(err).Msg("server unreachable, changes kept locally")
		return nil
	default:
		return err
	}
}

func (s *Session) saveLocal(merged types.Record) {
	if s.local.Replace(merged) || s.local.Dirty() {
		if err := s.local.Save(); err != nil {
			s.logger.Error().Err(err).Str("path", s.local.Path()).Msg("unable to save local record")
		}
	}
}

func (s *Session) reportChange(change merge.DiffChange) {
	metrics.SyncChangesTotal.WithLabelValues(string(change.Source)).Inc()
	s.logger.Debug().
		Str("key", change.Key).
		Str("source", string(change.Source)).
		Msg("record key changed")
	if s.onChange != nil {
		s.onChange(change)
	}
}

// Set assigns value to key in the local record and marks the session dirty
// when the value changed.
func (s *Session) Set(key string, value interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.local.Set(key, value)
	s.dirty = s.dirty || changed
	return changed
}

// Unset removes key from the local record. Unsetting a key that holds
// nothing leaves the session clean.
func (s *Session) Unset(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	existed := s.local.Unset(key)
	s.dirty = s.dirty || s.local.Dirty()
	return existed
}

// Add appends value to the list at key in the local record.
func (s *Session) Add(key string, value interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.local.Add(key, value)
	s.dirty = s.dirty || changed
	return changed
}

// Remove deletes value from the list at key in the local record.
func (s *Session) Remove(key string, value interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.local.Remove(key, value)
	s.dirty = s.dirty || changed
	return changed
}

// Local returns a copy of the current local record.
func (s *Session) Local() types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local.Contents()
}

// Dirty reports whether the session holds unsynced mutations.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Close flushes a dirty session by running one final sync cycle. Closing a
// clean or already-closed session is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.dirty {
		return nil
	}
	_, err := s.sync(ctx)
	return err
}
