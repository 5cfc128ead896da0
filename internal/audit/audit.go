// Package audit persists dispatched monitor events to Postgres for
// long-term history, independent of the bounded binary journal kept on
// disk for crash recovery.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clustermon/core/internal/backend"
	"github.com/clustermon/core/internal/metrics"
	"github.com/clustermon/core/internal/status"
)

// Record is a single audited event, one row of the monitor_events table.
type Record struct {
	ID          uuid.UUID
	MonitorName string
	ServerName  string
	Event       status.Event
	OccurredAt  time.Time
}

// Store buffers Records and flushes them to Postgres in batches, mirroring
// the buffered-channel-plus-ticker pattern the rest of this codebase uses
// for high-frequency writes that must not block the monitor worker loop.
type Store struct {
	pool      *pgxpool.Pool
	batchSize int
	buffer    chan Record
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	metrics   *metrics.APIMetrics
}

// NewStore creates a Store backed by pool and starts its background
// flush worker. Close must be called to drain the buffer on shutdown.
// apiMetrics may be nil to skip instrumentation.
func NewStore(pool *pgxpool.Pool, batchSize int, flushInterval time.Duration, apiMetrics *metrics.APIMetrics) *Store {
	if batchSize <= 0 {
		batchSize = 50
	}
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		pool:      pool,
		batchSize: batchSize,
		buffer:    make(chan Record, batchSize*4),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		metrics:   apiMetrics,
	}

	go s.flushLoop(flushInterval)

	return s
}

// RecordEvent implements monitor.AuditSink. It does not wait for buffer
// space: if the buffer is full the event is inserted synchronously on the
// caller's goroutine rather than dropped.
func (s *Store) RecordEvent(monitorName string, server backend.ServerRef, event status.Event, at time.Time) {
	rec := Record{
		ID:          uuid.New(),
		MonitorName: monitorName,
		ServerName:  server.Name,
		Event:       event,
		OccurredAt:  at,
	}

	select {
	case s.buffer <- rec:
	default:
		_ = s.insertOne(context.Background(), rec)
	}
}

func (s *Store) insertOne(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, "insert_monitor_event",
		rec.ID, rec.MonitorName, rec.ServerName, rec.Event.String(), rec.OccurredAt)
	return err
}

func (s *Store) flushLoop(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	batch := make([]Record, 0, s.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		err := s.batchInsert(s.ctx, batch)
		if s.metrics != nil {
			s.metrics.RecordDBQuery("audit", "batch_insert", time.Since(start).Seconds())
			if err != nil {
				s.metrics.RecordDBError("audit", "batch_insert")
			}
		}
		// Best-effort: the monitor_events table is a convenience
		// history, not the source of truth for cluster state.
		batch = batch[:0]
	}

	for {
		select {
		case <-s.ctx.Done():
			for {
				select {
				case rec := <-s.buffer:
					batch = append(batch, rec)
				default:
					flush()
					return
				}
			}
		case rec := <-s.buffer:
			batch = append(batch, rec)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (s *Store) batchInsert(ctx context.Context, batch []Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("audit: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range batch {
		if _, err := tx.Exec(ctx, `
			INSERT INTO monitor_events (id, monitor_name, server_name, event, occurred_at)
			VALUES ($1, $2, $3, $4, $5)
		`, rec.ID, rec.MonitorName, rec.ServerName, rec.Event.String(), rec.OccurredAt); err != nil {
			return fmt.Errorf("audit: insert event: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// History returns events for a monitor, most recent first, bounded by
// limit.
func (s *Store) History(ctx context.Context, monitorName string, limit int) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, monitor_name, server_name, event, occurred_at
		FROM monitor_events
		WHERE monitor_name = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, monitorName, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var eventName string
		if err := rows.Scan(&rec.ID, &rec.MonitorName, &rec.ServerName, &eventName, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("audit: scan history row: %w", err)
		}
		rec.Event = status.ParseEvent(eventName)
		out = append(out, rec)
	}

	return out, rows.Err()
}

// Close stops the flush worker, draining any buffered records first.
func (s *Store) Close() error {
	s.cancel()
	<-s.done
	return nil
}
