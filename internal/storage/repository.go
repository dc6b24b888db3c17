package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/JuruSysadmin/JuruConnect-sub001/internal/event"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/sla"
)

const (
	insertMetricSampleSQL = `INSERT INTO metric_samples (
        fetched_at,
        metrics
    ) VALUES (
        $1,$2
    )
    ON CONFLICT (fetched_at) DO UPDATE
    SET metrics = EXCLUDED.metrics;`

	listMetricSamplesBetweenSQL = `SELECT
        fetched_at,
        metrics,
        created_at
    FROM metric_samples
    WHERE fetched_at >= $1
      AND fetched_at < $2
    ORDER BY fetched_at;`

	listRecentMetricSamplesSQL = `SELECT
        fetched_at,
        metrics,
        created_at
    FROM metric_samples
    ORDER BY fetched_at DESC
    LIMIT $1;`

	insertSaleSQL = `INSERT INTO sales (
        id,
        seller_name,
        store_name,
        amount,
        goal,
        occurred_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (id) DO NOTHING;`

	listRecentSalesSQL = `SELECT
        id,
        seller_name,
        store_name,
        amount,
        goal,
        occurred_at,
        created_at
    FROM sales
    ORDER BY occurred_at DESC
    LIMIT $1;`

	insertAlertAuditSQL = `INSERT INTO alert_audit (
        alert_id,
        entity_ref,
        severity,
        category,
        action
    ) VALUES (
        $1,$2,$3,$4,$5
    );`

	listRecentAlertAuditSQL = `SELECT
        id,
        alert_id,
        entity_ref,
        severity,
        category,
        action,
        created_at
    FROM alert_audit
    ORDER BY created_at DESC
    LIMIT $1;`
)

// MetricSampleStore defines metric history persistence.
type MetricSampleStore interface {
	InsertMetricSample(ctx context.Context, at time.Time, metrics map[string]decimal.Decimal) error
	ListMetricSamplesBetween(ctx context.Context, from, to time.Time) ([]MetricSampleRow, error)
	ListRecentMetricSamples(ctx context.Context, limit int) ([]MetricSampleRow, error)
}

// SaleStore defines sale history persistence.
type SaleStore interface {
	InsertSale(ctx context.Context, sale event.Sale) error
	ListRecentSales(ctx context.Context, limit int) ([]SaleRow, error)
}

// AlertAuditStore defines alert transition auditing.
type AlertAuditStore interface {
	InsertAlertAudit(ctx context.Context, alert sla.Alert, action string) error
	ListRecentAlertAudit(ctx context.Context, limit int) ([]AlertAuditRow, error)
}

// Store aggregates the collaborating history sinks. The in-memory core never
// rebuilds itself from here; rows exist for auditing and the CLI surfaces.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertMetricSample persists one summary fetch.
func (s *Store) InsertMetricSample(ctx context.Context, at time.Time, metrics map[string]decimal.Decimal) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	if _, execErr := pool.Exec(ctx, insertMetricSampleSQL, at, payload); execErr != nil {
		return fmt.Errorf("insert metric sample: %w", execErr)
	}
	return nil
}

// ListMetricSamplesBetween lists samples within a time window.
func (s *Store) ListMetricSamplesBetween(ctx context.Context, from, to time.Time) ([]MetricSampleRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listMetricSamplesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list metric samples between: %w", queryErr)
	}
	defer rows.Close()

	return collectMetricSamples(rows)
}

// ListRecentMetricSamples lists the most recent samples, newest first.
func (s *Store) ListRecentMetricSamples(ctx context.Context, limit int) ([]MetricSampleRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentMetricSamplesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent metric samples: %w", queryErr)
	}
	defer rows.Close()

	return collectMetricSamples(rows)
}

func collectMetricSamples(rows pgx.Rows) ([]MetricSampleRow, error) {
	samples := make([]MetricSampleRow, 0)
	for rows.Next() {
		var (
			row     MetricSampleRow
			payload []byte
		)
		if err := rows.Scan(&row.FetchedAt, &payload, &row.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &row.Metrics); err != nil {
			return nil, fmt.Errorf("parse metrics payload: %w", err)
		}
		samples = append(samples, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// InsertSale persists a sale event. Re-delivered events are ignored by id.
func (s *Store) InsertSale(ctx context.Context, sale event.Sale) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertSaleSQL,
		sale.ID,
		sale.SellerName,
		sale.StoreName,
		sale.Amount.String(),
		sale.Goal.String(),
		sale.OccurredAt,
	)
	if execErr != nil {
		return fmt.Errorf("insert sale: %w", execErr)
	}
	return nil
}

// ListRecentSales lists the most recent sales, newest first.
func (s *Store) ListRecentSales(ctx context.Context, limit int) ([]SaleRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSalesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent sales: %w", queryErr)
	}
	defer rows.Close()

	sales := make([]SaleRow, 0, limit)
	for rows.Next() {
		var (
			row       SaleRow
			amountStr string
			goalStr   string
		)
		if err := rows.Scan(
			&row.ID,
			&row.SellerName,
			&row.StoreName,
			&amountStr,
			&goalStr,
			&row.OccurredAt,
			&row.CreatedAt,
		); err != nil {
			return nil, err
		}

		var convErr error
		row.Amount, convErr = decimal.NewFromString(amountStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse sale amount: %w", convErr)
		}
		row.Goal, convErr = decimal.NewFromString(goalStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse sale goal: %w", convErr)
		}

		sales = append(sales, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return sales, nil
}

// InsertAlertAudit persists one alert transition.
func (s *Store) InsertAlertAudit(ctx context.Context, alert sla.Alert, action string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertAlertAuditSQL,
		alert.ID,
		alert.EntityRef,
		string(alert.Severity),
		string(alert.Category),
		action,
	)
	if execErr != nil {
		return fmt.Errorf("insert alert audit: %w", execErr)
	}
	return nil
}

// ListRecentAlertAudit lists the most recent alert transitions.
func (s *Store) ListRecentAlertAudit(ctx context.Context, limit int) ([]AlertAuditRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertAuditSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alert audit: %w", queryErr)
	}
	defer rows.Close()

	audits := make([]AlertAuditRow, 0, limit)
	for rows.Next() {
		var row AlertAuditRow
		if err := rows.Scan(
			&row.ID,
			&row.AlertID,
			&row.EntityRef,
			&row.Severity,
			&row.Category,
			&row.Action,
			&row.CreatedAt,
		); err != nil {
			return nil, err
		}
		audits = append(audits, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return audits, nil
}
