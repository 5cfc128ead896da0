package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clustermon/core/internal/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectErrorAuthDenied(t *testing.T) {
	e := &ConnectError{Kind: "auth_denied", Err: errors.New("denied")}
	assert.True(t, e.AuthDenied())

	r := &ConnectError{Kind: "refused", Err: errors.New("refused")}
	assert.False(t, r.AuthDenied())
}

func TestDialWithRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	dial := func(ctx context.Context) (backend.Conn, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("not yet")
		}
		return fakeConn{}, nil
	}

	cfg := RetryConfig{MaxRetries: 5, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffFactor: 2}
	conn, err := DialWithRetry(context.Background(), cfg, dial)
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, 3, attempts)
}

func TestDialWithRetryExhausted(t *testing.T) {
	dial := func(ctx context.Context) (backend.Conn, error) {
		return nil, errors.New("always fails")
	}
	cfg := RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffFactor: 2}
	_, err := DialWithRetry(context.Background(), cfg, dial)
	assert.Error(t, err)
}

func TestDialWithRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dial := func(ctx context.Context) (backend.Conn, error) {
		return nil, errors.New("fails")
	}
	cfg := RetryConfig{MaxRetries: 3, InitialBackoff: 10 * time.Millisecond, MaxBackoff: time.Second, BackoffFactor: 2}
	_, err := DialWithRetry(ctx, cfg, dial)
	assert.Error(t, err)
}

func TestAtoiSafe(t *testing.T) {
	assert.Equal(t, 42, atoiSafe("42"))
	assert.Equal(t, 0, atoiSafe("not-a-number"))
	assert.Equal(t, 0, atoiSafe(""))
}

type fakeConn struct{}

func (fakeConn) Ping() error  { return nil }
func (fakeConn) Close() error { return nil }
