package app

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/JuruSysadmin/JuruConnect-sub001/internal/alerting"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/bus"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/celebration"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/config"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/feed"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/fetcher"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/ingest"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/service"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/sla"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/snapshot"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/storage"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/telemetry"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	registerOnce sync.Once
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newMetricsAPI() *fetcher.API {
	return fetcher.NewAPI(fetcher.APIOptions{
		BaseURL:   a.Config.MetricsAPI.BaseURL,
		Timeout:   a.Config.MetricsAPI.RequestTimeout,
		UserAgent: a.Config.MetricsAPI.UserAgent,
		APIToken:  a.Config.MetricsAPI.APIToken,
	}, a.Logger)
}

func (a *App) newEntitySource() sla.EntitySource {
	return sla.NewAPISource(sla.APISourceOptions{
		BaseURL:   a.Config.MetricsAPI.BaseURL,
		Timeout:   a.Config.MetricsAPI.RequestTimeout,
		UserAgent: a.Config.MetricsAPI.UserAgent,
		APIToken:  a.Config.MetricsAPI.APIToken,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) slaOptions() sla.Options {
	thresholds := make(map[sla.Category]sla.Thresholds, len(a.Config.SLA.Thresholds))
	for category, bounds := range a.Config.SLA.Thresholds {
		thresholds[sla.Category(category)] = sla.Thresholds{
			Warning:  bounds.Warning,
			Critical: bounds.Critical,
		}
	}
	return sla.Options{
		ScanInterval:    a.Config.SLA.ScanInterval,
		ForceScanWindow: a.Config.SLA.ForceScanWindow,
		Thresholds:      thresholds,
	}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running dashboard core.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a.registerOnce.Do(telemetry.Register)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; history persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	broker := bus.NewBroker(a.Config.Broadcaster.BufferSize, a.Logger)
	defer broker.Close()

	cache := snapshot.NewCache(broker, a.Logger)

	api := a.newMetricsAPI()

	var sink snapshot.SampleSink
	if store != nil {
		sink = store
	}
	poller := snapshot.NewPoller(cache, api, api, sink, snapshot.PollerOptions{
		CounterInterval: a.Config.Poller.CounterInterval,
		SummaryInterval: a.Config.Poller.SummaryInterval,
		FetchTimeout:    a.Config.Poller.FetchTimeout,
	}, a.Logger)

	live := feed.New(a.Config.Feed.Capacity, broker, a.Logger)
	celebrations := celebration.NewQueue(celebration.Options{
		Capacity: a.Config.Celebration.Capacity,
		TTL:      a.Config.Celebration.TTL,
	}, broker, a.Logger)

	var audit sla.AuditSink
	if store != nil {
		audit = store
	}
	engine := sla.NewEngine(a.newEntitySource(), broker, audit, a.slaOptions(), a.Logger)

	var sales storage.SaleStore
	if store != nil {
		sales = store
	}
	svc := service.New(cache, live, celebrations, engine, sales, a.Config.Poller.QueryTimeout, a.Logger)

	server := ingest.NewServer(svc, ingest.Options{
		Listen:          a.Config.Server.Listen,
		ShutdownTimeout: a.Config.Server.ShutdownTimeout,
	}, a.Logger)

	var wg sync.WaitGroup
	runWorker := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error().Err(err).Str("worker", name).Msg("worker terminated with error")
				cancel()
			}
		}()
	}

	runWorker("metrics_cache", cache.Run)
	runWorker("poller", poller.Run)
	runWorker("sla_engine", engine.Run)

	if notifier := a.newNotifier(); notifier != nil {
		forwarder := alerting.NewForwarder(broker, notifier, a.Logger)
		runWorker("alert_forwarder", forwarder.Run)
	}

	a.Logger.Info().Msg("starting dashboard core")
	err = server.Run(ctx)

	cancel()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("core terminated with error")
		return err
	}

	a.Logger.Info().Msg("dashboard core stopped")
	return nil
}

// ExportOptions hold parameters for exporting metric history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	MetricKey string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Alerts bool
}
