/*
Package remote defines the capability the sync engines borrow to reach the
entitlement server, the error taxonomy those engines dispatch on, and a thin
HTTP implementation of both.

# Resource contract

The engines never see a server client; they see one Resource per
server-held collection:

	type Resource interface {
		Fetch(ctx context.Context, consumerUUID string) (types.Record, error)
		Push(ctx context.Context, consumerUUID string, rec types.Record) error
		Supported(ctx context.Context) bool
	}

Per-resource behavior (attribute name translation, payload shaping) lives in
small adapters like SyspurposeResource rather than in a class hierarchy.
Pull-only collections use a bare FetchFunc closure.

# Error taxonomy

Every failure a Resource returns falls into exactly one category, and the
cache layer's behavior hangs off which one:

  - AuthenticationError: identity rejected. No stale-cache fallback ever.
  - ConnectionError / RateLimitError: transient. Pull caches fall back to
    the last persisted snapshot.
  - UnsupportedResourceError: old server. Silent skip, log only.
  - APIError: structured business error. Re-raised to the caller verbatim;
    nothing in this codebase may catch it.

Use the Is* predicates rather than matching types directly.

# HTTP client

HTTPClient is deliberately dumb: JSON in, JSON out, one taxonomy mapping in
statusError. It holds no cache state, retries nothing, and imposes no
timeouts of its own; the injected http.Client (and its TLS configuration,
which is outside this package's scope) carries all transport policy.
Capabilities from /status are probed once and held for the client lifetime.
*/
package remote
