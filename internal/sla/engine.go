package sla

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JuruSysadmin/JuruConnect-sub001/internal/bus"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/event"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/scheduler"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/telemetry"
)

// Severity grades an SLA breach.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Category names the SLA timer that was breached.
type Category string

// State is the alert lifecycle position. Resolved and Cancelled are
// terminal.
type State string

const (
	StateActive    State = "active"
	StateResolved  State = "resolved"
	StateCancelled State = "cancelled"
)

// Alert is a tracked SLA breach. Its lifecycle is independent of the scan
// that created it: only operator action terminates it.
type Alert struct {
	ID        string
	EntityRef string
	Severity  Severity
	Category  Category
	CreatedAt time.Time
	State     State
	ClosedAt  *time.Time
}

// Thresholds holds the warning/critical elapsed-time bounds for a category.
type Thresholds struct {
	Warning  time.Duration
	Critical time.Duration
}

// EntitySource supplies the monitored entities and their SLA timers
// (elapsed time per category).
type EntitySource interface {
	ListEntities(ctx context.Context) ([]string, error)
	EntityTimers(ctx context.Context, entityRef string) (map[Category]time.Duration, error)
}

// AuditSink receives alert transitions for history keeping. Optional.
type AuditSink interface {
	InsertAlertAudit(ctx context.Context, alert Alert, action string) error
}

// Options tune the engine.
type Options struct {
	ScanInterval    time.Duration
	ForceScanWindow time.Duration
	Thresholds      map[Category]Thresholds
}

// ScanResult summarises one scan pass.
type ScanResult struct {
	ScannedAt time.Time
	Entities  int
	Failures  int
	Created   int
}

// Stats is a derived read-only view over the alert set, recomputed on
// demand.
type Stats struct {
	ActiveTotal    int
	BySeverity     map[Severity]int
	ByCategory     map[Category]int
	ComplianceRate float64
}

type alertKey struct {
	entity   string
	category Category
}

// Engine evaluates monitored entities against their SLA thresholds and owns
// the resulting alerts. At most one Active alert exists per
// (entity, category) key at any time.
type Engine struct {
	mu         sync.Mutex
	active     map[alertKey]*Alert
	alerts     map[string]*Alert
	order      []string
	lastForced time.Time
	lastTotal  int

	source EntitySource
	broker *bus.Broker
	audit  AuditSink
	opts   Options
	logger zerolog.Logger
}

// NewEngine constructs the alert engine.
func NewEngine(source EntitySource, broker *bus.Broker, audit AuditSink, opts Options, logger zerolog.Logger) *Engine {
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = time.Minute
	}
	if opts.ForceScanWindow <= 0 {
		opts.ForceScanWindow = 10 * time.Second
	}
	return &Engine{
		active: make(map[alertKey]*Alert),
		alerts: make(map[string]*Alert),
		source: source,
		broker: broker,
		audit:  audit,
		opts:   opts,
		logger: logger.With().Str("component", "sla_engine").Logger(),
	}
}

// Run drives the periodic scan loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	sched := scheduler.New(scheduler.Options{Interval: e.opts.ScanInterval, Name: "sla_scan"}, e.logger)
	return sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
		_, err := e.Scan(ctx)
		return err
	})
}

// ForceScan runs an immediate scan unless one was forced inside the
// rate-limit window; then it is rejected outright, not queued.
func (e *Engine) ForceScan(ctx context.Context) (ScanResult, error) {
	e.mu.Lock()
	since := time.Since(e.lastForced)
	if since < e.opts.ForceScanWindow {
		e.mu.Unlock()
		return ScanResult{}, &RateLimitedError{RetryAfter: e.opts.ForceScanWindow - since}
	}
	e.lastForced = time.Now()
	e.mu.Unlock()

	return e.Scan(ctx)
}

// Scan evaluates every monitored entity. One entity's unreachable data never
// aborts the others: the failure is logged and the scan continues.
func (e *Engine) Scan(ctx context.Context) (ScanResult, error) {
	started := time.Now()
	defer func() {
		telemetry.ScanDuration.Observe(time.Since(started).Seconds())
	}()

	entities, err := e.source.ListEntities(ctx)
	if err != nil {
		return ScanResult{}, err
	}

	result := ScanResult{ScannedAt: started.UTC(), Entities: len(entities)}

	for _, entityRef := range entities {
		timers, err := e.source.EntityTimers(ctx, entityRef)
		if err != nil {
			result.Failures++
			telemetry.ScanFailures.Inc()
			e.logger.Error().Err(err).Str("entity", entityRef).Msg("entity unreachable, skipping")
			continue
		}
		result.Created += e.evaluate(entityRef, timers)
	}

	e.mu.Lock()
	e.lastTotal = len(entities)
	e.mu.Unlock()

	e.logger.Info().
		Int("entities", result.Entities).
		Int("failures", result.Failures).
		Int("created", result.Created).
		Dur("took", time.Since(started)).
		Msg("sla scan completed")

	return result, nil
}

// evaluate applies the thresholds to one entity's timers and returns how
// many alerts were created.
func (e *Engine) evaluate(entityRef string, timers map[Category]time.Duration) int {
	created := 0
	for category, elapsed := range timers {
		bounds, ok := e.opts.Thresholds[category]
		if !ok {
			continue
		}

		var severity Severity
		switch {
		case bounds.Critical > 0 && elapsed >= bounds.Critical:
			severity = SeverityCritical
		case bounds.Warning > 0 && elapsed >= bounds.Warning:
			severity = SeverityWarning
		default:
			continue
		}

		if alert, isNew := e.raise(entityRef, category, severity); isNew {
			created++
			e.publish(alert)
		}
	}
	return created
}

// raise creates the Active alert for the key, or preserves the existing one.
func (e *Engine) raise(entityRef string, category Category, severity Severity) (Alert, bool) {
	key := alertKey{entity: entityRef, category: category}

	e.mu.Lock()
	if existing, ok := e.active[key]; ok {
		alert := *existing
		e.mu.Unlock()
		return alert, false
	}

	alert := &Alert{
		ID:        uuid.NewString(),
		EntityRef: entityRef,
		Severity:  severity,
		Category:  category,
		CreatedAt: time.Now().UTC(),
		State:     StateActive,
	}
	e.active[key] = alert
	e.alerts[alert.ID] = alert
	e.order = append(e.order, alert.ID)
	e.mu.Unlock()

	telemetry.ActiveAlerts.WithLabelValues(string(severity)).Inc()

	e.logger.Warn().
		Str("alert_id", alert.ID).
		Str("entity", entityRef).
		Str("category", string(category)).
		Str("severity", string(severity)).
		Msg("sla breach detected")

	e.auditAction(*alert, "created")
	return *alert, true
}

// Resolve terminates an Active alert. Terminal alerts reject the call.
func (e *Engine) Resolve(id string) (Alert, error) {
	return e.terminate(id, StateResolved)
}

// Cancel terminates an Active alert without marking it resolved.
func (e *Engine) Cancel(id string) (Alert, error) {
	return e.terminate(id, StateCancelled)
}

func (e *Engine) terminate(id string, to State) (Alert, error) {
	e.mu.Lock()
	alert, ok := e.alerts[id]
	if !ok {
		e.mu.Unlock()
		return Alert{}, ErrNotFound
	}
	if alert.State != StateActive {
		e.mu.Unlock()
		return *alert, ErrInvalidTransition
	}

	now := time.Now().UTC()
	alert.State = to
	alert.ClosedAt = &now
	delete(e.active, alertKey{entity: alert.EntityRef, category: alert.Category})
	snapshot := *alert
	e.mu.Unlock()

	telemetry.ActiveAlerts.WithLabelValues(string(snapshot.Severity)).Dec()

	e.logger.Info().
		Str("alert_id", snapshot.ID).
		Str("entity", snapshot.EntityRef).
		Str("state", string(to)).
		Msg("alert closed by operator")

	e.auditAction(snapshot, string(to))
	e.publish(snapshot)
	return snapshot, nil
}

func (e *Engine) publish(alert Alert) {
	if e.broker == nil {
		return
	}
	e.broker.Publish(event.TopicAlertChanged, alert)
	e.broker.Publish(event.SupervisorTopic(alert.EntityRef), alert)
}

func (e *Engine) auditAction(alert Alert, action string) {
	if e.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.audit.InsertAlertAudit(ctx, alert, action); err != nil {
		e.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to persist alert audit")
	}
}

// Alerts returns alerts in creation order. When activeOnly is set, terminal
// alerts are filtered out.
func (e *Engine) Alerts(activeOnly bool) []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Alert, 0, len(e.order))
	for _, id := range e.order {
		alert := e.alerts[id]
		if activeOnly && alert.State != StateActive {
			continue
		}
		out = append(out, *alert)
	}
	return out
}

// Get returns a single alert by id.
func (e *Engine) Get(id string) (Alert, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	alert, ok := e.alerts[id]
	if !ok {
		return Alert{}, ErrNotFound
	}
	return *alert, nil
}

// Stats recomputes the aggregate view. Nothing here is stored redundantly.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := Stats{
		BySeverity: make(map[Severity]int),
		ByCategory: make(map[Category]int),
	}

	breached := make(map[string]struct{})
	for key, alert := range e.active {
		stats.ActiveTotal++
		stats.BySeverity[alert.Severity]++
		stats.ByCategory[alert.Category]++
		breached[key.entity] = struct{}{}
	}

	if e.lastTotal > 0 {
		stats.ComplianceRate = 1 - float64(len(breached))/float64(e.lastTotal)
	} else {
		stats.ComplianceRate = 1
	}
	return stats
}

// Categories lists the configured threshold categories, sorted for stable
// display.
func (e *Engine) Categories() []Category {
	out := make([]Category, 0, len(e.opts.Thresholds))
	for c := range e.opts.Thresholds {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
