package clickhouse

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	cfg := defaultClientConfig()
	for _, opt := range []ClientOption{
		WithAddr("ch.internal", 9440),
		WithDatabase("sentiment"),
		WithCredentials("writer", "p@ss"),
		WithTimeouts(2*time.Second, 30*time.Second),
		WithAsyncInsert(true, true),
	} {
		opt(cfg)
	}

	u, err := url.Parse(cfg.DSN())
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.internal:9440", u.Host)
	assert.Equal(t, "/sentiment", u.Path)
	assert.Equal(t, "writer", u.User.Username())
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)

	q := u.Query()
	assert.Equal(t, "2s", q.Get("dial_timeout"))
	assert.Equal(t, "30", q.Get("read_timeout"))
	assert.Equal(t, "1", q.Get("async_insert"))
	assert.Equal(t, "1", q.Get("wait_for_async_insert"))
}

func TestDSNWithoutAsyncInsert(t *testing.T) {
	cfg := defaultClientConfig()
	WithAddr("localhost", 9000)(cfg)
	WithAsyncInsert(false, true)(cfg)

	u, err := url.Parse(cfg.DSN())
	require.NoError(t, err)
	assert.Empty(t, u.Query().Get("async_insert"))
	assert.Empty(t, u.Query().Get("wait_for_async_insert"))
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.ErrorContains(t, err, "host is required")
}
