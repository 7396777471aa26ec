package remote

import (
	"context"

	"github.com/entsync/entsync/pkg/types"
)

// Resource is the narrow capability the sync engines borrow for one
// server-held resource. Implementations are thin adapters over a transport;
// they own no cache state and perform no retries.
//
// Fetch returns the current server-held record for the consumer. Push
// overwrites it. Supported probes whether the server provides the resource
// at all; engines degrade to a silent skip when it returns false.
type Resource interface {
	Fetch(ctx context.Context, consumerUUID string) (types.Record, error)
	Push(ctx context.Context, consumerUUID string, rec types.Record) error
	Supported(ctx context.Context) bool
}

// FetchFunc adapts a bare fetch closure to the pull-cache contract.
type FetchFunc func(ctx context.Context, consumerUUID string) (types.Record, error)

// PushFunc adapts a bare push closure for push-cache collections whose
// payloads are not flat records.
type PushFunc func(ctx context.Context, consumerUUID string, payload interface{}) error
