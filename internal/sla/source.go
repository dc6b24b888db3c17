package sla

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
)

const supervisorStatusPath = "/api/v1/supervisors/status"

// APISourceOptions parameterise the supervisor status source.
type APISourceOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	APIToken  string
}

// APISource reads supervisor SLA timers from the dashboard API.
type APISource struct {
	opts    APISourceOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewAPISource constructs the HTTP entity source.
func NewAPISource(opts APISourceOptions, logger zerolog.Logger) *APISource {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APISource{
		opts:    opts,
		logger:  logger.With().Str("component", "sla_source").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

type supervisorStatus struct {
	ID     string             `json:"id"`
	Timers map[string]float64 `json:"timers"` // seconds elapsed per category
}

// ListEntities fetches the monitored supervisor ids.
func (s *APISource) ListEntities(ctx context.Context) ([]string, error) {
	statuses, err := s.fetchStatuses(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(statuses))
	for _, st := range statuses {
		ids = append(ids, st.ID)
	}
	return ids, nil
}

// EntityTimers fetches one supervisor's SLA timers.
func (s *APISource) EntityTimers(ctx context.Context, entityRef string) (map[Category]time.Duration, error) {
	statuses, err := s.fetchStatuses(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range statuses {
		if st.ID != entityRef {
			continue
		}
		timers := make(map[Category]time.Duration, len(st.Timers))
		for category, seconds := range st.Timers {
			timers[Category(category)] = time.Duration(seconds * float64(time.Second))
		}
		return timers, nil
	}
	return nil, fmt.Errorf("supervisor %s not present in status payload", entityRef)
}

func (s *APISource) fetchStatuses(ctx context.Context) ([]supervisorStatus, error) {
	if s.baseURL == "" {
		return nil, errors.New("sla source base url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+supervisorStatusPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(s.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	if s.opts.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.opts.APIToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("supervisor status error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var statuses []supervisorStatus
	if err := json.Unmarshal(payload, &statuses); err != nil {
		return nil, fmt.Errorf("parse supervisor status: %w", err)
	}
	return statuses, nil
}

var _ EntitySource = (*APISource)(nil)
