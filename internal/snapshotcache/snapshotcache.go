// Package snapshotcache mirrors each monitor's last-committed server
// status bitmap into Redis, where a reader can fetch it with GetSnapshot
// without contending with the worker loop's mutex.
package snapshotcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clustermon/core/internal/status"
)

// Mirror implements monitor.SnapshotMirror on top of a Redis client.
type Mirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Config holds Redis snapshot mirror configuration.
type Config struct {
	Address  string
	Password string
	DB       int
	KeyPrefix string
	TTL      time.Duration
}

// New creates a Mirror and verifies connectivity.
func New(cfg Config) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("snapshotcache: connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "clustermon"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Mirror{client: client, prefix: prefix, ttl: ttl}, nil
}

func (m *Mirror) key(monitorName string) string {
	return fmt.Sprintf("%s:snapshot:%s", m.prefix, monitorName)
}

// PutSnapshot implements monitor.SnapshotMirror. It is fire-and-forget from
// the worker loop's perspective: a Redis outage must never stall a tick.
func (m *Mirror) PutSnapshot(monitorName string, servers map[string]status.Bits) {
	encoded := make(map[string]uint64, len(servers))
	for name, bits := range servers {
		encoded[name] = uint64(bits)
	}

	data, err := json.Marshal(encoded)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = m.client.Set(ctx, m.key(monitorName), data, m.ttl).Err()
}

// GetSnapshot reads back the mirrored bitmap for a monitor. It returns a
// nil map and no error when no snapshot is stored for the monitor.
func (m *Mirror) GetSnapshot(ctx context.Context, monitorName string) (map[string]status.Bits, error) {
	data, err := m.client.Get(ctx, m.key(monitorName)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshotcache: get %s: %w", monitorName, err)
	}

	var encoded map[string]uint64
	if err := json.Unmarshal(data, &encoded); err != nil {
		return nil, fmt.Errorf("snapshotcache: decode %s: %w", monitorName, err)
	}

	out := make(map[string]status.Bits, len(encoded))
	for name, bits := range encoded {
		out[name] = status.Bits(bits)
	}
	return out, nil
}

// Close releases the underlying Redis connection.
func (m *Mirror) Close() error {
	return m.client.Close()
}
