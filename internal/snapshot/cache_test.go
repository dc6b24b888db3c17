package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/JuruSysadmin/JuruConnect-sub001/internal/bus"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/event"
)

func runningCache(t *testing.T, broker *bus.Broker) *Cache {
	t.Helper()
	c := NewCache(broker, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = c.Run(ctx) }()
	return c
}

func waitForStatus(t *testing.T, c *Cache, want Status) Snapshot {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		snap, err := c.Get(100 * time.Millisecond)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if snap.Status == want {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("等待状态 %s 超时", want)
	return Snapshot{}
}

func TestCacheStartsLoading(t *testing.T) {
	c := runningCache(t, nil)

	snap, err := c.Get(100 * time.Millisecond)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap.Status != StatusLoading {
		t.Fatalf("首次成功前状态应为 loading, 实际 %s", snap.Status)
	}
}

func TestFirstSuccessSetsOk(t *testing.T) {
	c := runningCache(t, nil)

	c.RecordSuccess(map[string]decimal.Decimal{"sale": decimal.RequireFromString("1000.0")})

	snap := waitForStatus(t, c, StatusOk)
	if !snap.Metrics["sale"].Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("期望 sale=1000, 实际 %s", snap.Metrics["sale"])
	}
	if snap.FetchedAt.IsZero() {
		t.Fatal("成功后 FetchedAt 应被设置")
	}
}

func TestFailurePreservesLastKnownGood(t *testing.T) {
	c := runningCache(t, nil)

	c.RecordSuccess(map[string]decimal.Decimal{"sale": decimal.NewFromInt(1000)})
	waitForStatus(t, c, StatusOk)

	c.RecordFailure(StatusTimeout, "metrics api timed out")

	snap := waitForStatus(t, c, StatusTimeout)
	if !snap.Metrics["sale"].Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("失败后应保留旧值, 实际 %s", snap.Metrics["sale"])
	}
	if snap.ErrorDetail == "" {
		t.Fatal("失败原因应被记录")
	}
}

func TestRecoveryClearsErrorDetail(t *testing.T) {
	c := runningCache(t, nil)

	c.RecordFailure(StatusError, "boom")
	waitForStatus(t, c, StatusError)

	c.RecordSuccess(map[string]decimal.Decimal{"sale": decimal.NewFromInt(1)})

	snap := waitForStatus(t, c, StatusOk)
	if snap.ErrorDetail != "" {
		t.Fatalf("恢复后 errorDetail 应清空, 实际 %q", snap.ErrorDetail)
	}
}

func TestGetTimesOutWithoutOwner(t *testing.T) {
	c := NewCache(nil, zerolog.Nop()) // Run never started

	_, err := c.Get(20 * time.Millisecond)
	if !errors.Is(err, ErrQueryTimeout) {
		t.Fatalf("无人应答时应返回 ErrQueryTimeout, 实际 %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	c := runningCache(t, nil)
	c.RecordSuccess(map[string]decimal.Decimal{"sale": decimal.NewFromInt(1)})
	waitForStatus(t, c, StatusOk)

	snap, _ := c.Get(100 * time.Millisecond)
	snap.Metrics["sale"] = decimal.NewFromInt(999)

	again, _ := c.Get(100 * time.Millisecond)
	if !again.Metrics["sale"].Equal(decimal.NewFromInt(1)) {
		t.Fatal("Get 应返回副本, 外部修改不应影响缓存")
	}
}

func TestUpdatePublishesSnapshot(t *testing.T) {
	broker := bus.NewBroker(8, zerolog.Nop())
	defer broker.Close()

	sub := broker.Subscribe(event.TopicMetricsUpdated)

	c := runningCache(t, broker)
	c.RecordSuccess(map[string]decimal.Decimal{"sale": decimal.NewFromInt(7)})

	select {
	case evt := <-sub.Events():
		snap, ok := evt.Payload.(Snapshot)
		if !ok {
			t.Fatalf("载荷类型应为 Snapshot, 实际 %T", evt.Payload)
		}
		if snap.Status != StatusOk {
			t.Fatalf("广播的快照状态应为 ok, 实际 %s", snap.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("更新后应在 metrics-updated 主题广播")
	}
}
