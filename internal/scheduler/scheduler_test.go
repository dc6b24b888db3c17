package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSchedulerFiresRepeatedly(t *testing.T) {
	var fired atomic.Int32

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	s := New(Options{Interval: 20 * time.Millisecond, Name: "test"}, zerolog.Nop())
	_ = s.Run(ctx, func(ctx context.Context, _ time.Time) error {
		fired.Add(1)
		return nil
	})

	if fired.Load() < 3 {
		t.Fatalf("120ms 内应至少触发 3 次, 实际 %d", fired.Load())
	}
}

func TestSchedulerSkipsWhileTickInFlight(t *testing.T) {
	var fired atomic.Int32

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())
	_ = s.Run(ctx, func(ctx context.Context, _ time.Time) error {
		fired.Add(1)
		time.Sleep(60 * time.Millisecond)
		return nil
	})

	// a 60ms tick on a 10ms interval must not fire 15 times
	if fired.Load() > 4 {
		t.Fatalf("慢 tick 期间不应补发错过的触发, 实际 %d 次", fired.Load())
	}
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(Options{Interval: time.Hour}, zerolog.Nop())
	if err := s.Run(ctx, func(context.Context, time.Time) error { return nil }); err == nil {
		t.Fatal("取消后 Run 应返回 ctx 错误")
	}
}

func TestSchedulerRequiresPositiveInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("非法 interval 应 panic")
		}
	}()
	New(Options{}, zerolog.Nop())
}
