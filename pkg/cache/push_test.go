package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/entsync/entsync/pkg/remote"
)

type stubSource struct {
	payload interface{}
	err     error
}

func (s *stubSource) Payload() (interface{}, error) {
	return s.payload, s.err
}

type pushRecorder struct {
	calls    int
	lastUUID string
	lastData interface{}
	err      error
}

func (p *pushRecorder) push(ctx context.Context, consumerUUID string, payload interface{}) error {
	p.calls++
	p.lastUUID = consumerUUID
	p.lastData = payload
	return p.err
}

func newPushFixture(t *testing.T, payload interface{}) (*PushCache, *pushRecorder) {
	t.Helper()
	src := &stubSource{payload: payload}
	rec := &pushRecorder{}
	c := NewPushCache("profile", filepath.Join(t.TempDir(), "profile.json"), src, rec.push, nil)
	return c, rec
}

func TestPushUnregisteredIsNoop(t *testing.T) {
	c, rec := newPushFixture(t, map[string]interface{}{"rpm": []string{"bash"}})

	n, err := c.UpdateCheck(context.Background(), "", false)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, rec.calls)
}

func TestPushUnsupportedIsNoop(t *testing.T) {
	src := &stubSource{payload: map[string]interface{}{"rpm": []string{"bash"}}}
	rec := &pushRecorder{}
	c := NewPushCache("profile", filepath.Join(t.TempDir(), "profile.json"), src, rec.push,
		func(ctx context.Context) bool { return false })

	n, err := c.UpdateCheck(context.Background(), "abc", false)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, rec.calls)
}

func TestPushFirstRunPushesAndSnapshots(t *testing.T) {
	c, rec := newPushFixture(t, map[string]interface{}{"rpm": []string{"bash"}})

	n, err := c.UpdateCheck(context.Background(), "abc", false)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, "abc", rec.lastUUID)
	assert.True(t, c.entry.Exists())
}

func TestPushUnchangedIsSkipped(t *testing.T) {
	c, rec := newPushFixture(t, map[string]interface{}{"rpm": []string{"bash"}})

	_, err := c.UpdateCheck(context.Background(), "abc", false)
	assert.NoError(t, err)

	n, err := c.UpdateCheck(context.Background(), "abc", false)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, rec.calls)
}

func TestPushDetectsValueChangeWithSameKeyCount(t *testing.T) {
	src := &stubSource{payload: map[string]interface{}{"rpm": []string{"bash-5.1"}}}
	rec := &pushRecorder{}
	c := NewPushCache("profile", filepath.Join(t.TempDir(), "profile.json"), src, rec.push, nil)

	_, err := c.UpdateCheck(context.Background(), "abc", false)
	assert.NoError(t, err)

	// Same shape, different value. Key-count comparison would miss this.
	src.payload = map[string]interface{}{"rpm": []string{"bash-5.2"}}
	n, err := c.UpdateCheck(context.Background(), "abc", false)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, rec.calls)
}

func TestPushForceBypassesComparison(t *testing.T) {
	c, rec := newPushFixture(t, map[string]interface{}{"rpm": []string{"bash"}})

	_, err := c.UpdateCheck(context.Background(), "abc", false)
	assert.NoError(t, err)

	n, err := c.UpdateCheck(context.Background(), "abc", true)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, rec.calls)
}

func TestPushAPIErrorPassesThrough(t *testing.T) {
	c, rec := newPushFixture(t, map[string]interface{}{"rpm": []string{"bash"}})
	rec.err = &remote.APIError{StatusCode: 400, Message: "malformed profile"}

	_, err := c.UpdateCheck(context.Background(), "abc", false)
	var apiErr *remote.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "malformed profile", apiErr.Message)
	assert.False(t, c.entry.Exists(), "failed push must not snapshot")
}

func TestPushOtherErrorsAreMasked(t *testing.T) {
	c, rec := newPushFixture(t, map[string]interface{}{"rpm": []string{"bash"}})
	rec.err = &remote.ConnectionError{Err: errors.New("dial tcp: connection refused")}

	_, err := c.UpdateCheck(context.Background(), "abc", false)
	assert.ErrorIs(t, err, ErrUpdateFailed)
	assert.NotContains(t, err.Error(), "dial tcp")
	assert.False(t, c.entry.Exists())
}

func TestPushFailureRetriedNextRun(t *testing.T) {
	c, rec := newPushFixture(t, map[string]interface{}{"rpm": []string{"bash"}})
	rec.err = &remote.ConnectionError{Err: errors.New("refused")}

	_, err := c.UpdateCheck(context.Background(), "abc", false)
	assert.Error(t, err)

	rec.err = nil
	n, err := c.UpdateCheck(context.Background(), "abc", false)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPushDeleteForcesNextPush(t *testing.T) {
	c, rec := newPushFixture(t, map[string]interface{}{"rpm": []string{"bash"}})

	_, err := c.UpdateCheck(context.Background(), "abc", false)
	assert.NoError(t, err)
	assert.NoError(t, c.Delete())

	n, err := c.UpdateCheck(context.Background(), "abc", false)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, rec.calls)
}

func TestHasChangedNormalizesTypes(t *testing.T) {
	// Live payloads carry ints and []string; snapshots decode to float64
	// and []interface{}. The comparison must see through that.
	src := &stubSource{payload: map[string]interface{}{
		"count": 3,
		"repos": []string{"baseos"},
	}}
	c := NewPushCache("profile", filepath.Join(t.TempDir(), "profile.json"), src, nil, nil)
	assert.NoError(t, c.WriteCache())

	changed, err := c.HasChanged()
	assert.NoError(t, err)
	assert.False(t, changed)
}

func TestHasChangedSourceError(t *testing.T) {
	src := &stubSource{err: errors.New("rpm db open failed")}
	c := NewPushCache("profile", filepath.Join(t.TempDir(), "profile.json"), src, nil, nil)

	_, err := c.HasChanged()
	assert.Error(t, err)
}
