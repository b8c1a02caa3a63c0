package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func event() FailureEvent {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return FailureEvent{
		ItemID:      "item-1",
		OrderID:     "gid-1",
		OrderNumber: "#4711",
		Attempts:    3,
		LastError:   "write-back retries exhausted",
		CreatedAt:   now.Add(-10 * time.Minute),
		FailedAt:    now,
	}
}

func TestNotifier_SendsAlert(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode alert: %v", err)
		}
		received <- payload["text"]
	}))
	defer srv.Close()

	events := make(chan FailureEvent, 1)
	n := New(srv.URL, time.Second, events, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	events <- event()

	select {
	case text := <-received:
		for _, want := range []string{"#4711", "gid-1", "Attempts: 3", "exhausted"} {
			if !strings.Contains(text, want) {
				t.Errorf("alert text missing %q: %s", want, text)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected an alert POST")
	}
}

func TestNotifier_UnconfiguredURLSkips(t *testing.T) {
	events := make(chan FailureEvent, 1)
	n := New("", time.Second, events, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	// Must consume without panicking or blocking.
	events <- event()
	time.Sleep(50 * time.Millisecond)

	select {
	case events <- event():
	default:
		t.Fatal("notifier stopped consuming events")
	}
}

func TestNotifier_DeliveryFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	events := make(chan FailureEvent, 2)
	n := New(srv.URL, time.Second, events, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	// Two events through a failing webhook: the notifier keeps running.
	events <- event()
	events <- event()
	time.Sleep(100 * time.Millisecond)

	select {
	case events <- event():
	default:
		t.Fatal("notifier stopped consuming after delivery failures")
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("e", maxErrorLen+100)
	got := truncate(long, maxErrorLen)
	if len(got) > maxErrorLen+len("…") {
		t.Fatalf("expected truncation to %d bytes, got %d", maxErrorLen, len(got))
	}
	if truncate("short", maxErrorLen) != "short" {
		t.Fatal("short strings must pass through unchanged")
	}
}
