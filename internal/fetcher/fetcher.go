package fetcher

import (
	"context"

	"github.com/shopspring/decimal"
)

// SummaryFetcher retrieves the heavy aggregate dashboard metrics.
type SummaryFetcher interface {
	FetchSummary(ctx context.Context) (map[string]decimal.Decimal, error)
}

// CounterFetcher retrieves the lightweight realtime counters.
type CounterFetcher interface {
	FetchCounters(ctx context.Context) (map[string]decimal.Decimal, error)
}
