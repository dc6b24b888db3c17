package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	summaryPath  = "/api/v1/dashboard/summary"
	countersPath = "/api/v1/dashboard/counters"
)

// APIOptions parameterise the dashboard metrics API client.
type APIOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	APIToken  string
}

// API fetches metrics from the company dashboard API.
type API struct {
	opts    APIOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewAPI constructs a metrics API client.
func NewAPI(opts APIOptions, logger zerolog.Logger) *API {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")

	return &API{
		opts:    opts,
		logger:  logger.With().Str("component", "metrics_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchSummary retrieves the aggregate dashboard metrics.
func (a *API) FetchSummary(ctx context.Context) (map[string]decimal.Decimal, error) {
	return a.fetch(ctx, summaryPath)
}

// FetchCounters retrieves the lightweight realtime counters.
func (a *API) FetchCounters(ctx context.Context) (map[string]decimal.Decimal, error) {
	return a.fetch(ctx, countersPath)
}

func (a *API) fetch(ctx context.Context, path string) (map[string]decimal.Decimal, error) {
	if a.baseURL == "" {
		return nil, errors.New("metrics api base url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(a.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "jurucore/1.0")
	}
	if a.opts.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.opts.APIToken)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var res metricsResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("parse metrics response: %w", err)
	}

	if !res.OK {
		reason := res.Reason
		if reason == "" {
			reason = "unspecified"
		}
		return nil, fmt.Errorf("metrics api rejected request: %s", reason)
	}

	if len(res.Metrics) == 0 {
		return nil, errors.New("metrics api returned empty mapping")
	}

	return res.Metrics, nil
}

type metricsResponse struct {
	OK      bool                       `json:"ok"`
	Metrics map[string]decimal.Decimal `json:"metrics"`
	Reason  string                     `json:"reason"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Reason != "" {
			return fmt.Errorf("metrics api error (%d): %s", status, apiErr.Reason)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("metrics api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("metrics api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("metrics api error (%d)", status)
}

var _ SummaryFetcher = (*API)(nil)
var _ CounterFetcher = (*API)(nil)
