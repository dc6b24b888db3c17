package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("默认配置应可加载: %v", err)
	}
	if cfg.Poller.CounterInterval != time.Second {
		t.Fatalf("counter_interval 默认应为 1s, 实际 %s", cfg.Poller.CounterInterval)
	}
	if cfg.Poller.SummaryInterval != 30*time.Second {
		t.Fatalf("summary_interval 默认应为 30s, 实际 %s", cfg.Poller.SummaryInterval)
	}
	if cfg.Feed.Capacity != 15 {
		t.Fatalf("feed.capacity 默认应为 15, 实际 %d", cfg.Feed.Capacity)
	}
	if cfg.Celebration.TTL != 8*time.Second {
		t.Fatalf("celebration.ttl 默认应为 8s, 实际 %s", cfg.Celebration.TTL)
	}
	if _, ok := cfg.SLA.Thresholds["sync-freshness"]; !ok {
		t.Fatal("默认阈值应包含 sync-freshness")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("celebration:\n  ttl: 3s\nsla:\n  scan_interval: 5s\n  thresholds:\n    goal-pace:\n      warning: 1m\n      critical: 2m\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Celebration.TTL != 3*time.Second {
		t.Fatalf("文件应覆盖默认 ttl, 实际 %s", cfg.Celebration.TTL)
	}
	th, ok := cfg.SLA.Thresholds["goal-pace"]
	if !ok || th.Critical != 2*time.Minute {
		t.Fatalf("阈值表解析错误: %+v", cfg.SLA.Thresholds)
	}
}

func TestValidateRejectsTelegramWithoutToken(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Alerting.Telegram.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("未配置 bot_token 时应校验失败")
	}
}

func TestValidateRejectsZeroIntervals(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.SLA.ScanInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("scan_interval=0 应校验失败")
	}
}
