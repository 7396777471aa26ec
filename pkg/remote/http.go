package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/entsync/entsync/pkg/log"
	"github.com/entsync/entsync/pkg/types"
)

// CombinedReportingCapability is the server capability gating the combined
// multi-content-type profile upload.
const CombinedReportingCapability = "combined_reporting"

// HTTPClient talks JSON to the entitlement server. It performs no retries
// and manages no timeouts beyond what the injected http.Client carries;
// retry and cancellation policy belong to the caller.
type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
	logger  zerolog.Logger

	mu   sync.Mutex
	caps map[string]bool
}

// ServerStatus is the server's self-description.
type ServerStatus struct {
	Version             string   `json:"version"`
	Release             string   `json:"release"`
	ManagerCapabilities []string `json:"managerCapabilities"`
}

// NewHTTPClient creates a client for the server at base, e.g.
// "https://entitlement.example.com/api". A nil httpClient falls back to
// http.DefaultClient; callers wanting TLS client certificates or timeouts
// configure them on the client they pass in.
func NewHTTPClient(base string, httpClient *http.Client) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", base, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		baseURL: u,
		http:    httpClient,
		logger:  log.WithComponent("remote"),
	}, nil
}

// Status fetches the server's status document.
func (c *HTTPClient) Status(ctx context.Context) (*ServerStatus, error) {
	var status ServerStatus
	if err := c.get(ctx, "/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// HasCapability reports whether the server advertises the named capability.
// Capabilities are fetched once and held for the client's lifetime; a probe
// failure reads as "not supported" and is logged, never raised.
func (c *HTTPClient) HasCapability(ctx context.Context, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.caps == nil {
		status, err := c.Status(ctx)
		if err != nil {
			c.logger.Debug().Err(err).Msg("capability probe failed")
			return false
		}
		c.caps = make(map[string]bool, len(status.ManagerCapabilities))
		for _, capability := range status.ManagerCapabilities {
			c.caps[capability] = true
		}
	}
	return c.caps[name]
}

// RegisterConsumer creates a consumer on the server and returns the record
// the server created, including the UUID it assigned.
func (c *HTTPClient) RegisterConsumer(ctx context.Context, consumer types.Record) (types.Record, error) {
	var created types.Record
	if err := c.send(ctx, http.MethodPost, "/consumers", consumer, &created); err != nil {
		return nil, err
	}
	return created, nil
}

// UnregisterConsumer deletes the consumer from the server.
func (c *HTTPClient) UnregisterConsumer(ctx context.Context, consumerUUID string) error {
	return c.send(ctx, http.MethodDelete, "/consumers/"+consumerUUID, nil, nil)
}

// GetConsumer fetches the consumer record.
func (c *HTTPClient) GetConsumer(ctx context.Context, consumerUUID string) (types.Record, error) {
	var rec types.Record
	if err := c.get(ctx, "/consumers/"+consumerUUID, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateConsumer overwrites consumer attributes on the server.
func (c *HTTPClient) UpdateConsumer(ctx context.Context, consumerUUID string, attrs types.Record) error {
	return c.send(ctx, http.MethodPut, "/consumers/"+consumerUUID, attrs, nil)
}

// GetCompliance fetches the entitlement compliance status for the consumer.
func (c *HTTPClient) GetCompliance(ctx context.Context, consumerUUID string) (types.Record, error) {
	var rec types.Record
	if err := c.get(ctx, "/consumers/"+consumerUUID+"/compliance", &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetSyspurposeCompliance fetches the system purpose compliance status.
func (c *HTTPClient) GetSyspurposeCompliance(ctx context.Context, consumerUUID string) (types.Record, error) {
	var rec types.Record
	if err := c.get(ctx, "/consumers/"+consumerUUID+"/purpose_compliance", &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetContentOverrides fetches the content overrides set for the consumer.
func (c *HTTPClient) GetContentOverrides(ctx context.Context, consumerUUID string) ([]types.Record, error) {
	var overrides []types.Record
	if err := c.get(ctx, "/consumers/"+consumerUUID+"/content_overrides", &overrides); err != nil {
		return nil, err
	}
	return overrides, nil
}

// GetRelease fetches the consumer's release setting.
func (c *HTTPClient) GetRelease(ctx context.Context, consumerUUID string) (types.Record, error) {
	var rec types.Record
	if err := c.get(ctx, "/consumers/"+consumerUUID+"/release", &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetEntitlements fetches the consumer's entitlement (pool) list.
func (c *HTTPClient) GetEntitlements(ctx context.Context, consumerUUID string) ([]types.Record, error) {
	var pools []types.Record
	if err := c.get(ctx, "/consumers/"+consumerUUID+"/entitlements", &pools); err != nil {
		return nil, err
	}
	return pools, nil
}

// UpdatePackageProfile uploads the package profile.
func (c *HTTPClient) UpdatePackageProfile(ctx context.Context, consumerUUID string, profile interface{}) error {
	return c.send(ctx, http.MethodPut, "/consumers/"+consumerUUID+"/packages", profile, nil)
}

// UpdateCombinedProfile uploads the combined content profile, available on
// servers with the combined_reporting capability.
func (c *HTTPClient) UpdateCombinedProfile(ctx context.Context, consumerUUID string, profile interface{}) error {
	return c.send(ctx, http.MethodPut, "/consumers/"+consumerUUID+"/profiles", profile, nil)
}

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) error {
	return c.send(ctx, http.MethodGet, path, nil, out)
}

func (c *HTTPClient) send(ctx context.Context, method, path string, body, out interface{}) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, payload)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ConnectionError{Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
		return nil
	}

	return c.statusError(resp, path, data)
}

// statusError maps an HTTP failure onto the error taxonomy the cache layer
// dispatches on.
func (c *HTTPClient) statusError(resp *http.Response, path string, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthenticationError{Err: fmt.Errorf("server returned status %d for %s", resp.StatusCode, path)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: resp.Header.Get("Retry-After")}
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// Old servers answer 404 for endpoints they predate.
		return &UnsupportedResourceError{Resource: path}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &ConnectionError{Err: fmt.Errorf("server returned status %d for %s", resp.StatusCode, path)}
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var parsed struct {
		DisplayMessage string `json:"displayMessage"`
		RequestID      string `json:"requestUuid"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Message = parsed.DisplayMessage
		apiErr.Code = parsed.RequestID
	}
	return apiErr
}
