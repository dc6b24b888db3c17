package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/JuruSysadmin/JuruConnect-sub001/internal/celebration"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/event"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/feed"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/sla"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/snapshot"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/storage"
)

// Service routes canonical domain events into the core components and
// exposes the operator surface. It holds no domain state of its own.
type Service struct {
	cache        *snapshot.Cache
	live         *feed.LiveFeed
	celebrations *celebration.Queue
	engine       *sla.Engine
	sales        storage.SaleStore
	queryTimeout time.Duration
	logger       zerolog.Logger
}

// New constructs the service.
func New(cache *snapshot.Cache, live *feed.LiveFeed, celebrations *celebration.Queue, engine *sla.Engine, sales storage.SaleStore, queryTimeout time.Duration, logger zerolog.Logger) *Service {
	if queryTimeout <= 0 {
		queryTimeout = 2 * time.Second
	}
	return &Service{
		cache:        cache,
		live:         live,
		celebrations: celebrations,
		engine:       engine,
		sales:        sales,
		queryTimeout: queryTimeout,
		logger:       logger.With().Str("component", "service").Logger(),
	}
}

// HandleSale ranks the sale into the live feed and records it in the
// collaborating history store when one is configured. A store failure never
// fails the in-memory path.
func (s *Service) HandleSale(ctx context.Context, sale event.Sale) feed.Entry {
	entry := feed.FromSale(sale)
	s.live.Push(entry)

	if s.sales != nil {
		if err := s.sales.InsertSale(ctx, sale); err != nil {
			s.logger.Error().Err(err).Str("sale_id", sale.ID).Msg("failed to persist sale")
		}
	}

	s.logger.Info().
		Str("sale_id", sale.ID).
		Str("store", sale.StoreName).
		Str("amount", sale.Amount.String()).
		Msg("sale added to live feed")

	return entry
}

// HandleGoalAchieved hands the event to the celebration queue. Duplicates
// are absorbed there.
func (s *Service) HandleGoalAchieved(ctx context.Context, goal event.GoalAchieved) (celebration.Notification, bool) {
	return s.celebrations.OnGoalAchieved(goal)
}

// Snapshot returns the current metrics snapshot within the query bound.
func (s *Service) Snapshot() (snapshot.Snapshot, error) {
	return s.cache.Get(s.queryTimeout)
}

// FeedEntries returns the current live feed ranking.
func (s *Service) FeedEntries() []feed.Entry {
	return s.live.Entries()
}

// Notifications returns the currently displayed celebrations.
func (s *Service) Notifications() []celebration.Notification {
	return s.celebrations.Active()
}

// Alerts lists SLA alerts.
func (s *Service) Alerts(activeOnly bool) []sla.Alert {
	return s.engine.Alerts(activeOnly)
}

// AlertStats recomputes the aggregate alert view.
func (s *Service) AlertStats() sla.Stats {
	return s.engine.Stats()
}

// ResolveAlert terminates an Active alert as resolved.
func (s *Service) ResolveAlert(id string) (sla.Alert, error) {
	return s.engine.Resolve(id)
}

// CancelAlert terminates an Active alert as cancelled.
func (s *Service) CancelAlert(id string) (sla.Alert, error) {
	return s.engine.Cancel(id)
}

// ForceScan triggers an immediate SLA scan, subject to the rate limit.
func (s *Service) ForceScan(ctx context.Context) (sla.ScanResult, error) {
	return s.engine.ForceScan(ctx)
}
