package remote

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/entsync/entsync/pkg/log"
	"github.com/entsync/entsync/pkg/store"
	"github.com/entsync/entsync/pkg/types"
)

// SyspurposeCapability is the server capability gating system purpose
// synchronization.
const SyspurposeCapability = "syspurpose"

// SyspurposeResource adapts the consumer endpoint to the Resource contract
// for the system purpose record, translating between the server's attribute
// names (role, addOns, serviceLevel, usage) and the local keys.
type SyspurposeResource struct {
	client *HTTPClient
	logger zerolog.Logger
}

// NewSyspurposeResource wraps client as the syspurpose resource.
func NewSyspurposeResource(client *HTTPClient) *SyspurposeResource {
	return &SyspurposeResource{
		client: client,
		logger: log.WithResource("syspurpose"),
	}
}

// Supported reports whether the server can sync system purpose at all.
func (r *SyspurposeResource) Supported(ctx context.Context) bool {
	return r.client.HasCapability(ctx, SyspurposeCapability)
}

// Fetch reads the consumer and projects its purpose attributes onto local
// keys. Attributes the server did not return stay absent; the merge layer
// treats that as "not supported", never as a deletion.
func (r *SyspurposeResource) Fetch(ctx context.Context, consumerUUID string) (types.Record, error) {
	consumer, err := r.client.GetConsumer(ctx, consumerUUID)
	if err != nil {
		return nil, err
	}

	rec := types.Record{}
	for _, attr := range store.Attributes {
		if value, ok := consumer[store.LocalToRemote[attr]]; ok && value != nil {
			rec[attr] = value
		}
	}
	r.logger.Debug().Int("attributes", len(rec)).Msg("fetched server-held record")
	return rec, nil
}

// Push overwrites the consumer's purpose attributes. The server expects
// every attribute on every update, with empty string (or empty list for
// add-ons) standing in for unset values.
func (r *SyspurposeResource) Push(ctx context.Context, consumerUUID string, rec types.Record) error {
	attrs := types.Record{
		"role":         orEmptyString(rec[store.KeyRole]),
		"addOns":       types.ToList(rec[store.KeyAddons]),
		"serviceLevel": orEmptyString(rec[store.KeyServiceLevel]),
		"usage":        orEmptyString(rec[store.KeyUsage]),
	}
	r.logger.Debug().Msg("updating server-held record")
	return r.client.UpdateConsumer(ctx, consumerUUID, attrs)
}

func orEmptyString(v interface{}) interface{} {
	if v == nil {
		return ""
	}
	return v
}
