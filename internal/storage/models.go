package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// MetricSampleRow is one persisted summary fetch. The core never reads these
// back for its own state; they exist for the show/export surfaces.
type MetricSampleRow struct {
	FetchedAt time.Time
	Metrics   map[string]decimal.Decimal
	CreatedAt time.Time
}

// SaleRow is a persisted sale event.
type SaleRow struct {
	ID         string
	SellerName string
	StoreName  string
	Amount     decimal.Decimal
	Goal       decimal.Decimal
	OccurredAt time.Time
	CreatedAt  time.Time
}

// AlertAuditRow captures one alert transition for auditing.
type AlertAuditRow struct {
	ID        int64
	AlertID   string
	EntityRef string
	Severity  string
	Category  string
	Action    string
	CreatedAt time.Time
}
