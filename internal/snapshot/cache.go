package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/JuruSysadmin/JuruConnect-sub001/internal/bus"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/event"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/telemetry"
)

// ErrQueryTimeout is returned when a Get cannot be answered within its bound.
var ErrQueryTimeout = errors.New("snapshot: query timed out")

// Status classifies the outcome of the most recent fetch.
type Status string

const (
	StatusLoading Status = "loading"
	StatusOk      Status = "ok"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
)

// Snapshot is the latest-known aggregate metrics value. It is an immutable
// value: the cache replaces it wholesale and hands out copies, never a
// shared map.
type Snapshot struct {
	Metrics     map[string]decimal.Decimal
	FetchedAt   time.Time
	Status      Status
	ErrorDetail string
}

func (s Snapshot) clone() Snapshot {
	metrics := make(map[string]decimal.Decimal, len(s.Metrics))
	for k, v := range s.Metrics {
		metrics[k] = v
	}
	s.Metrics = metrics
	return s
}

type query struct {
	reply chan Snapshot
}

type update struct {
	metrics map[string]decimal.Decimal
	status  Status
	detail  string
	at      time.Time
}

// Cache owns the current Snapshot. It is the sole writer; every read and
// write goes through its goroutine, so a slow reader can never corrupt or
// block an update beyond channel hand-off.
type Cache struct {
	queries chan query
	updates chan update
	broker  *bus.Broker
	logger  zerolog.Logger
}

// NewCache constructs the cache. It starts in Loading state.
func NewCache(broker *bus.Broker, logger zerolog.Logger) *Cache {
	return &Cache{
		queries: make(chan query),
		updates: make(chan update, 8),
		broker:  broker,
		logger:  logger.With().Str("component", "metrics_cache").Logger(),
	}
}

// Run owns the snapshot until ctx is cancelled.
func (c *Cache) Run(ctx context.Context) error {
	current := Snapshot{
		Metrics: make(map[string]decimal.Decimal),
		Status:  StatusLoading,
	}
	telemetry.SnapshotStatus.Set(statusValue(current.Status))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case q := <-c.queries:
			q.reply <- current.clone()
		case u := <-c.updates:
			current = apply(current, u)
			telemetry.SnapshotStatus.Set(statusValue(current.Status))
			if c.broker != nil {
				c.broker.Publish(event.TopicMetricsUpdated, current.clone())
			}
		}
	}
}

// apply builds the replacement snapshot. A successful fetch merges the new
// values over the previous ones; a failed fetch keeps the last-known-good
// metrics and only flips the status, so subscribers can flag staleness.
func apply(current Snapshot, u update) Snapshot {
	next := current.clone()
	next.Status = u.status
	next.ErrorDetail = u.detail

	if u.status == StatusOk {
		next.FetchedAt = u.at
		next.ErrorDetail = ""
		for k, v := range u.metrics {
			next.Metrics[k] = v
		}
	}
	return next
}

// Get returns the current snapshot, waiting at most timeout for the owning
// goroutine to answer. It never blocks past its bound.
func (c *Cache) Get(timeout time.Duration) (Snapshot, error) {
	q := query{reply: make(chan Snapshot, 1)}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.queries <- q:
	case <-timer.C:
		return Snapshot{}, ErrQueryTimeout
	}

	select {
	case snap := <-q.reply:
		return snap, nil
	case <-timer.C:
		return Snapshot{}, ErrQueryTimeout
	}
}

// RecordSuccess replaces the snapshot with freshly fetched values.
func (c *Cache) RecordSuccess(metrics map[string]decimal.Decimal) {
	c.updates <- update{metrics: metrics, status: StatusOk, at: time.Now().UTC()}
}

// RecordFailure keeps the previous values and records the failure cause.
func (c *Cache) RecordFailure(status Status, detail string) {
	if status != StatusTimeout {
		status = StatusError
	}
	c.updates <- update{status: status, detail: detail}
}

func statusValue(s Status) float64 {
	switch s {
	case StatusOk:
		return 1
	case StatusError:
		return 2
	case StatusTimeout:
		return 3
	default:
		return 0
	}
}
