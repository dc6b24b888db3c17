package celebration

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/JuruSysadmin/JuruConnect-sub001/internal/bus"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/event"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/telemetry"
)

const (
	// DefaultCapacity caps how many celebrations are displayed at once.
	DefaultCapacity = 10
	// DefaultTTL is how long a celebration stays visible.
	DefaultTTL = 8 * time.Second
)

// Notification is a transient celebratory event tied to a goal achievement.
// Identified by its celebration id; destroyed by timer expiry or absorbed by
// dedup.
type Notification struct {
	ID            string
	SubjectName   string
	AchievedValue decimal.Decimal
	TargetValue   decimal.Decimal
	Percentage    decimal.Decimal
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Options tune the queue.
type Options struct {
	Capacity int
	TTL      time.Duration
}

// Queue holds the currently displayed celebrations. Each notification owns
// an independent expiry timer keyed by its celebration id; timers are never
// cancelled — a notification evicted early by the display cap simply makes
// the eventual firing a no-op.
type Queue struct {
	mu        sync.Mutex
	active    []Notification
	anyActive bool
	opts      Options
	broker    *bus.Broker
	logger    zerolog.Logger
}

// NewQueue constructs the celebration queue.
func NewQueue(opts Options, broker *bus.Broker, logger zerolog.Logger) *Queue {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Queue{
		opts:   opts,
		broker: broker,
		logger: logger.With().Str("component", "celebration_queue").Logger(),
	}
}

// OnGoalAchieved creates a notification for the event, unless its
// celebration id already identifies a live one — then the call is absorbed
// and the original expiry timer is left untouched. Returns the notification
// and whether it was newly created.
func (q *Queue) OnGoalAchieved(goal event.GoalAchieved) (Notification, bool) {
	q.mu.Lock()

	for _, n := range q.active {
		if n.ID == goal.CelebrationID {
			q.mu.Unlock()
			q.logger.Debug().Str("celebration_id", goal.CelebrationID).Msg("duplicate celebration absorbed")
			return n, false
		}
	}

	now := time.Now().UTC()
	note := Notification{
		ID:            goal.CelebrationID,
		SubjectName:   goal.StoreName,
		AchievedValue: goal.Achieved,
		TargetValue:   goal.Target,
		Percentage:    goal.Percentage,
		CreatedAt:     now,
		ExpiresAt:     now.Add(q.opts.TTL),
	}

	q.active = append([]Notification{note}, q.active...)
	if len(q.active) > q.opts.Capacity {
		q.active = q.active[:q.opts.Capacity]
	}
	q.anyActive = true
	size := len(q.active)
	q.mu.Unlock()

	telemetry.ActiveNotifications.Set(float64(size))

	// one-shot expiry carrying the id; safe no-op if already evicted
	time.AfterFunc(q.opts.TTL, func() { q.expire(note.ID) })

	q.logger.Info().
		Str("celebration_id", note.ID).
		Str("store", note.SubjectName).
		Str("percentage", note.Percentage.String()).
		Msg("goal celebration started")

	if q.broker != nil {
		q.broker.Publish(event.TopicGoalCelebration, note)
	}
	return note, true
}

// expire removes exactly the matching notification, if still present.
func (q *Queue) expire(id string) {
	q.mu.Lock()
	kept := q.active[:0]
	removed := false
	for _, n := range q.active {
		if n.ID == id {
			removed = true
			continue
		}
		kept = append(kept, n)
	}
	q.active = kept
	q.anyActive = len(q.active) > 0
	size := len(q.active)
	q.mu.Unlock()

	telemetry.ActiveNotifications.Set(float64(size))

	if removed {
		q.logger.Debug().Str("celebration_id", id).Msg("celebration expired")
	}
}

// Active returns a copy of the currently displayed notifications, newest
// first.
func (q *Queue) Active() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Notification, len(q.active))
	copy(out, q.active)
	return out
}

// AnyActive reports whether at least one celebration is displayed.
func (q *Queue) AnyActive() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.anyActive
}
