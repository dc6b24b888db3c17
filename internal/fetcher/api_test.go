package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestFetchMissingBaseURL(t *testing.T) {
	api := NewAPI(APIOptions{}, noopLogger())
	if _, err := api.FetchSummary(context.Background()); err == nil {
		t.Fatal("未配置 base url 时应返回错误")
	}
}

func TestFetchSummarySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "summary") {
			t.Fatalf("路径应包含 summary, 实际 %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":      true,
			"metrics": map[string]string{"sale": "1000.0", "goal": "150000"},
		})
	}))
	defer srv.Close()

	api := NewAPI(APIOptions{BaseURL: srv.URL, Timeout: time.Second, UserAgent: "test"}, noopLogger())

	metrics, err := api.FetchSummary(context.Background())
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if !metrics["sale"].Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("期望 sale=1000, 实际 %s", metrics["sale"])
	}
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "upstream", "reason": "database offline"})
	}))
	defer srv.Close()

	api := NewAPI(APIOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := api.FetchCounters(context.Background())
	if err == nil {
		t.Fatal("HTTP 502 应返回错误")
	}
	if !strings.Contains(err.Error(), "database offline") {
		t.Fatalf("错误应包含 reason, 实际 %v", err)
	}
}

func TestFetchRejectedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "reason": "maintenance"})
	}))
	defer srv.Close()

	api := NewAPI(APIOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := api.FetchSummary(context.Background()); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	api := NewAPI(APIOptions{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, noopLogger())
	if _, err := api.FetchSummary(context.Background()); err == nil {
		t.Fatal("超时应返回错误")
	}
}
