package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/JuruSysadmin/JuruConnect-sub001/internal/bus"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/event"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/sla"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func sampleNote() Notification {
	return Notification{
		AlertID:   "a-1",
		EntityRef: "sup-1",
		Severity:  "critical",
		Category:  "sync-freshness",
		State:     "active",
		CreatedAt: time.Now(),
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.Notify(context.Background(), sampleNote()); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if !strings.Contains(received["text"], "sup-1") {
		t.Fatalf("消息应包含实体标识: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.Notify(context.Background(), sampleNote()); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, note Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

func TestForwarderPushesOnlyCriticalActive(t *testing.T) {
	broker := bus.NewBroker(8, testLogger())
	defer broker.Close()

	rec := &recordingNotifier{}
	fwd := NewForwarder(broker, rec, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = fwd.Run(ctx) }()

	time.Sleep(20 * time.Millisecond) // wait for subscription

	broker.Publish(event.TopicAlertChanged, sla.Alert{ID: "a-1", EntityRef: "sup-1", Severity: sla.SeverityCritical, State: sla.StateActive})
	broker.Publish(event.TopicAlertChanged, sla.Alert{ID: "a-2", EntityRef: "sup-2", Severity: sla.SeverityWarning, State: sla.StateActive})
	broker.Publish(event.TopicAlertChanged, sla.Alert{ID: "a-3", EntityRef: "sup-3", Severity: sla.SeverityCritical, State: sla.StateResolved})

	deadline := time.Now().Add(time.Second)
	for rec.count() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(30 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("只有 critical+active 应被推送, 实际 %d 条", rec.count())
	}
}
