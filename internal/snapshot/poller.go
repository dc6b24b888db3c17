package snapshot

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/JuruSysadmin/JuruConnect-sub001/internal/fetcher"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/scheduler"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/telemetry"
)

// SampleSink receives successful summary fetches for history keeping. The
// core never reads history back; the sink is the collaborating store.
type SampleSink interface {
	InsertMetricSample(ctx context.Context, at time.Time, metrics map[string]decimal.Decimal) error
}

// PollerOptions tune the refresh cadence.
type PollerOptions struct {
	CounterInterval time.Duration
	SummaryInterval time.Duration
	FetchTimeout    time.Duration
}

// Poller drives the cache refresh loops: a fast tick for lightweight
// counters and a slow tick for the heavier summary call. A tick that fires
// while the previous fetch of the same kind is still in flight is skipped.
type Poller struct {
	cache    *Cache
	summary  fetcher.SummaryFetcher
	counters fetcher.CounterFetcher
	sink     SampleSink
	opts     PollerOptions
	logger   zerolog.Logger
}

// NewPoller constructs the poller.
func NewPoller(cache *Cache, summary fetcher.SummaryFetcher, counters fetcher.CounterFetcher, sink SampleSink, opts PollerOptions, logger zerolog.Logger) *Poller {
	if opts.CounterInterval <= 0 {
		opts.CounterInterval = time.Second
	}
	if opts.SummaryInterval <= 0 {
		opts.SummaryInterval = 30 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	return &Poller{
		cache:    cache,
		summary:  summary,
		counters: counters,
		sink:     sink,
		opts:     opts,
		logger:   logger.With().Str("component", "poller").Logger(),
	}
}

// Run blocks until ctx is cancelled, driving both refresh loops. Failed
// fetches are recorded and retried on the next tick; there is no backoff.
func (p *Poller) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	if p.counters != nil {
		fast := scheduler.New(scheduler.Options{Interval: p.opts.CounterInterval}, p.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = fast.Run(ctx, func(ctx context.Context, _ time.Time) error {
				p.refreshCounters(ctx)
				return nil
			})
		}()
	}

	if p.summary != nil {
		slow := scheduler.New(scheduler.Options{Interval: p.opts.SummaryInterval}, p.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = slow.Run(ctx, func(ctx context.Context, _ time.Time) error {
				p.refreshSummary(ctx)
				return nil
			})
		}()
	}

	wg.Wait()
	return ctx.Err()
}

func (p *Poller) refreshCounters(ctx context.Context) {
	p.fetchInto(ctx, "counters", p.counters.FetchCounters)
}

func (p *Poller) refreshSummary(ctx context.Context) {
	metrics := p.fetchInto(ctx, "summary", p.summary.FetchSummary)
	if metrics == nil || p.sink == nil {
		return
	}
	if err := p.sink.InsertMetricSample(ctx, time.Now().UTC(), metrics); err != nil {
		p.logger.Error().Err(err).Msg("failed to persist metric sample")
	}
}

func (p *Poller) fetchInto(ctx context.Context, kind string, fetch func(context.Context) (map[string]decimal.Decimal, error)) map[string]decimal.Decimal {
	fetchCtx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
	defer cancel()

	metrics, err := fetch(fetchCtx)
	if err != nil {
		status := classifyFailure(err)
		telemetry.FetchesTotal.WithLabelValues(kind, string(status)).Inc()
		p.cache.RecordFailure(status, err.Error())
		p.logger.Warn().Err(err).Str("kind", kind).Str("status", string(status)).Msg("metrics fetch failed")
		return nil
	}

	telemetry.FetchesTotal.WithLabelValues(kind, "ok").Inc()
	p.cache.RecordSuccess(metrics)
	return metrics
}

func classifyFailure(err error) Status {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusTimeout
	}
	return StatusError
}
