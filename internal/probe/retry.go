package probe

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/clustermon/core/internal/backend"
)

// RetryConfig configures exponential backoff on connect, generalized from
// the teacher's HTTP retry client (internal/collector/retry.go) to a
// connect-attempt loop instead of an HTTP round trip.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		BackoffFactor:  2.0,
	}
}

// DialFunc opens one connection attempt.
type DialFunc func(ctx context.Context) (backend.Conn, error)

// DialWithRetry runs DialFunc up to MaxRetries+1 times with exponential
// backoff between attempts, honoring ctx cancellation.
func DialWithRetry(ctx context.Context, cfg RetryConfig, dial DialFunc) (backend.Conn, error) {
	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		conn, err := dial(ctx)
		if err == nil {
			return conn, nil
		}
		lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)

		if attempt < cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("dial cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff = time.Duration(math.Min(float64(cfg.MaxBackoff), float64(backoff)*cfg.BackoffFactor))
			}
		}
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
