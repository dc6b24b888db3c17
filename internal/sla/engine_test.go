package sla

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const catSync = Category("sync-freshness")

type stubSource struct {
	entities []string
	timers   map[string]map[Category]time.Duration
	broken   map[string]error
}

func (s *stubSource) ListEntities(ctx context.Context) ([]string, error) {
	return s.entities, nil
}

func (s *stubSource) EntityTimers(ctx context.Context, entityRef string) (map[Category]time.Duration, error) {
	if err, ok := s.broken[entityRef]; ok {
		return nil, err
	}
	return s.timers[entityRef], nil
}

func defaultOpts() Options {
	return Options{
		ScanInterval:    time.Minute,
		ForceScanWindow: 50 * time.Millisecond,
		Thresholds: map[Category]Thresholds{
			catSync: {Warning: time.Minute, Critical: 5 * time.Minute},
		},
	}
}

func breachedSource(entities ...string) *stubSource {
	src := &stubSource{entities: entities, timers: map[string]map[Category]time.Duration{}}
	for _, e := range entities {
		src.timers[e] = map[Category]time.Duration{catSync: 10 * time.Minute}
	}
	return src
}

func TestScanCreatesAlertOnBreach(t *testing.T) {
	e := NewEngine(breachedSource("sup-1"), nil, nil, defaultOpts(), zerolog.Nop())

	res, err := e.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Created != 1 {
		t.Fatalf("应创建 1 条告警, 实际 %d", res.Created)
	}

	alerts := e.Alerts(true)
	if len(alerts) != 1 {
		t.Fatalf("应有 1 条活跃告警, 实际 %d", len(alerts))
	}
	if alerts[0].Severity != SeverityCritical {
		t.Fatalf("10 分钟滞后应为 critical, 实际 %s", alerts[0].Severity)
	}
}

func TestScanSeverityWarningBelowCritical(t *testing.T) {
	src := &stubSource{
		entities: []string{"sup-1"},
		timers: map[string]map[Category]time.Duration{
			"sup-1": {catSync: 2 * time.Minute},
		},
	}
	e := NewEngine(src, nil, nil, defaultOpts(), zerolog.Nop())

	if _, err := e.Scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got := e.Alerts(true)[0].Severity; got != SeverityWarning {
		t.Fatalf("2 分钟滞后应为 warning, 实际 %s", got)
	}
}

func TestNoDuplicateActivePerKey(t *testing.T) {
	e := NewEngine(breachedSource("sup-1"), nil, nil, defaultOpts(), zerolog.Nop())

	for i := 0; i < 5; i++ {
		if _, err := e.Scan(context.Background()); err != nil {
			t.Fatalf("scan %d: %v", i, err)
		}
	}

	if n := len(e.Alerts(true)); n != 1 {
		t.Fatalf("同一 (entity, category) 不应有多条活跃告警, 实际 %d", n)
	}
}

func TestResolveOnceThenInvalidTransition(t *testing.T) {
	e := NewEngine(breachedSource("sup-1"), nil, nil, defaultOpts(), zerolog.Nop())
	_, _ = e.Scan(context.Background())

	id := e.Alerts(true)[0].ID

	resolved, err := e.Resolve(id)
	if err != nil {
		t.Fatalf("首次 resolve 应成功: %v", err)
	}
	if resolved.State != StateResolved || resolved.ClosedAt == nil {
		t.Fatalf("resolve 后状态错误: %+v", resolved)
	}

	if _, err := e.Resolve(id); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("重复 resolve 应返回 ErrInvalidTransition, 实际 %v", err)
	}
	if _, err := e.Cancel(id); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("terminal 告警 cancel 应被拒绝, 实际 %v", err)
	}
}

func TestResolveUnknownIDNotFound(t *testing.T) {
	e := NewEngine(breachedSource(), nil, nil, defaultOpts(), zerolog.Nop())
	if _, err := e.Resolve("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("未知 id 应返回 ErrNotFound, 实际 %v", err)
	}
}

func TestBreachAfterResolveCreatesFreshAlert(t *testing.T) {
	e := NewEngine(breachedSource("sup-1"), nil, nil, defaultOpts(), zerolog.Nop())
	_, _ = e.Scan(context.Background())

	first := e.Alerts(true)[0]
	if _, err := e.Resolve(first.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	_, _ = e.Scan(context.Background())

	active := e.Alerts(true)
	if len(active) != 1 {
		t.Fatalf("解除后再次越限应重新创建, 实际 %d 条", len(active))
	}
	if active[0].ID == first.ID {
		t.Fatal("新告警应有新的 id")
	}
}

func TestScanIsolatesPerEntityFailure(t *testing.T) {
	src := breachedSource("sup-1", "sup-2", "sup-3")
	src.broken = map[string]error{"sup-2": errors.New("supervisor database offline")}

	e := NewEngine(src, nil, nil, defaultOpts(), zerolog.Nop())

	res, err := e.Scan(context.Background())
	if err != nil {
		t.Fatalf("单个实体失败不应中止扫描: %v", err)
	}
	if res.Failures != 1 {
		t.Fatalf("应记录 1 个失败, 实际 %d", res.Failures)
	}
	if res.Created != 2 {
		t.Fatalf("其余实体应继续评估, 实际创建 %d", res.Created)
	}
}

func TestForceScanRateLimited(t *testing.T) {
	e := NewEngine(breachedSource("sup-1"), nil, nil, defaultOpts(), zerolog.Nop())

	if _, err := e.ForceScan(context.Background()); err != nil {
		t.Fatalf("第一次 forceScan 应成功: %v", err)
	}

	_, err := e.ForceScan(context.Background())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("窗口内第二次 forceScan 应被限流, 实际 %v", err)
	}

	var rl *RateLimitedError
	if !errors.As(err, &rl) || rl.RetryAfter <= 0 {
		t.Fatalf("限流错误应携带 retry-after 提示: %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	if _, err := e.ForceScan(context.Background()); err != nil {
		t.Fatalf("窗口过后 forceScan 应恢复: %v", err)
	}
}

func TestStatsDerivedOnDemand(t *testing.T) {
	src := breachedSource("sup-1", "sup-2")
	src.timers["sup-2"] = map[Category]time.Duration{catSync: 30 * time.Second} // compliant

	e := NewEngine(src, nil, nil, defaultOpts(), zerolog.Nop())
	_, _ = e.Scan(context.Background())

	stats := e.Stats()
	if stats.ActiveTotal != 1 {
		t.Fatalf("应有 1 条活跃, 实际 %d", stats.ActiveTotal)
	}
	if stats.BySeverity[SeverityCritical] != 1 {
		t.Fatalf("severity 统计错误: %+v", stats.BySeverity)
	}
	if stats.ComplianceRate != 0.5 {
		t.Fatalf("合规率应为 0.5, 实际 %f", stats.ComplianceRate)
	}

	id := e.Alerts(true)[0].ID
	_, _ = e.Resolve(id)

	if e.Stats().ActiveTotal != 0 {
		t.Fatal("resolve 后统计应立即反映")
	}
}
