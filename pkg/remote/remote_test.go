package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/entsync/entsync/pkg/store"
	"github.com/entsync/entsync/pkg/types"
	"github.com/stretchr/testify/assert"
)

func decodeJSONBody(r *http.Request, out interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewHTTPClient(srv.URL, srv.Client())
	assert.NoError(t, err)
	return client
}

func TestStatusErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized is auth error",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.True(t, IsAuthError(err))
				assert.False(t, IsConnectionError(err))
			},
		},
		{
			name:   "forbidden is auth error",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				assert.True(t, IsAuthError(err))
			},
		},
		{
			name:   "rate limit is connection-class",
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				assert.True(t, IsConnectionError(err))
				assert.False(t, IsAuthError(err))
			},
		},
		{
			name:   "not found is unsupported",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				assert.True(t, IsUnsupported(err))
			},
		},
		{
			name:   "server error is connection-class",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				assert.True(t, IsConnectionError(err))
			},
		},
		{
			name:   "bad request is structured API error",
			status: http.StatusBadRequest,
			body:   `{"displayMessage": "Role \"foo\" is not valid"}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				if assert.True(t, errors.As(err, &apiErr)) {
					assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
					assert.Equal(t, `Role "foo" is not valid`, apiErr.Message)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.body != "" {
					_, _ = w.Write([]byte(tt.body))
				}
			}))

			_, err := client.GetConsumer(context.Background(), "abc")
			assert.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestUnreachableServerIsConnectionError(t *testing.T) {
	client, err := NewHTTPClient("http://127.0.0.1:1", nil)
	assert.NoError(t, err)

	_, err = client.GetConsumer(context.Background(), "abc")
	assert.True(t, IsConnectionError(err))
}

func TestHasCapability(t *testing.T) {
	var statusCalls int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		statusCalls++
		_, _ = w.Write([]byte(`{"version": "4.3", "managerCapabilities": ["syspurpose", "combined_reporting"]}`))
	}))

	ctx := context.Background()
	assert.True(t, client.HasCapability(ctx, "syspurpose"))
	assert.False(t, client.HasCapability(ctx, "cloud_registration"))
	assert.Equal(t, 1, statusCalls, "capabilities are probed once")
}

func TestCapabilityProbeFailureReadsAsUnsupported(t *testing.T) {
	client, err := NewHTTPClient("http://127.0.0.1:1", nil)
	assert.NoError(t, err)
	assert.False(t, client.HasCapability(context.Background(), "syspurpose"))
}

func TestSyspurposeFetchTranslatesRemoteNames(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/consumers/abc", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"uuid": "abc",
			"role": "server",
			"addOns": ["a", "b"],
			"serviceLevel": "Premium",
			"facts": {"ignored": "yes"}
		}`))
	}))

	resource := NewSyspurposeResource(client)
	rec, err := resource.Fetch(context.Background(), "abc")
	assert.NoError(t, err)

	assert.Equal(t, "server", rec[store.KeyRole])
	assert.Equal(t, []interface{}{"a", "b"}, rec[store.KeyAddons])
	assert.Equal(t, "Premium", rec[store.KeyServiceLevel])
	assert.False(t, rec.Has(store.KeyUsage), "attributes the server omitted stay absent")
	assert.False(t, rec.Has("facts"), "unknown attributes are filtered out")
}

func TestSyspurposePushSendsEmptyForUnset(t *testing.T) {
	var got types.Record
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.NoError(t, decodeJSONBody(r, &got))
		w.WriteHeader(http.StatusNoContent)
	}))

	resource := NewSyspurposeResource(client)
	err := resource.Push(context.Background(), "abc", types.Record{
		store.KeyRole: "server",
	})
	assert.NoError(t, err)

	assert.Equal(t, "server", got["role"])
	assert.Equal(t, "", got["serviceLevel"])
	assert.Equal(t, "", got["usage"])
	assert.Equal(t, []interface{}{}, got["addOns"])
}
