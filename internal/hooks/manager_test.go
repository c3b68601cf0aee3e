package hooks

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amaydixit11/jsoncrdt/internal/crdt"
)

func TestCallbackFiltering(t *testing.T) {
	m := NewManager()

	var applyCount, joinCount int
	m.OnApply(func(event Event) { applyCount++ })
	m.OnJoin(func(event Event) { joinCount++ })

	m.Trigger(NewApplyEvent("title", []crdt.Dot{{ReplicaID: "r1", Seq: 1}}))
	m.Trigger(NewJoinEvent("r2", []crdt.Dot{{ReplicaID: "r2", Seq: 1}}))

	if applyCount != 1 {
		t.Errorf("expected 1 apply callback, got %d", applyCount)
	}
	if joinCount != 1 {
		t.Errorf("expected 1 join callback, got %d", joinCount)
	}
}

func TestSubscription(t *testing.T) {
	m := NewManager()
	sub := m.SubscribeWithOptions(SubscriptionOptions{Types: []EventType{EventJoin}})
	defer sub.Close()

	m.Trigger(NewApplyEvent("title", nil))
	m.Trigger(NewJoinEvent("peer-1", nil))

	select {
	case event := <-sub.Events():
		if event.Type != EventJoin {
			t.Errorf("expected join event, got %v", event.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case event := <-sub.Events():
		t.Fatalf("unexpected second event: %+v", event)
	default:
	}
}

func TestWebhookDelivery(t *testing.T) {
	received := make(chan Event, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		received <- Event{Type: EventType(r.Header.Get("X-Jsoncrdt-Event"))}
	}))
	defer server.Close()

	m := NewManager()
	if err := m.RegisterWebhook(WebhookConfig{
		ID:     "wh-1",
		URL:    server.URL,
		Events: []EventType{EventJoin},
	}); err != nil {
		t.Fatalf("register webhook: %v", err)
	}

	m.Trigger(NewJoinEvent("peer-1", nil))

	select {
	case event := <-received:
		if event.Type != EventJoin {
			t.Errorf("expected join event header, got %v", event.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not called")
	}

	if len(m.ListWebhooks()) != 1 {
		t.Errorf("expected 1 registered webhook")
	}
	m.UnregisterWebhook("wh-1")
	if len(m.ListWebhooks()) != 0 {
		t.Errorf("expected 0 webhooks after unregister")
	}
}
