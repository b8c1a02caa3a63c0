package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodeOrderEvent(t *testing.T) {
	payload := json.RawMessage(`{
		"event": {
			"order_id": "gid-1001",
			"order_number": "#4711",
			"line_items": [
				{"sku": "MUG-BLUE", "quantity": 2},
				{"sku": "POSTER-A2", "quantity": 1}
			]
		}
	}`)

	ev, err := DecodeOrderEvent(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.OrderID != "gid-1001" || ev.OrderNumber != "#4711" {
		t.Fatalf("unexpected order identity: %+v", ev)
	}
	if len(ev.LineItems) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(ev.LineItems))
	}
}

func TestDecodeOrderEvent_MissingIdentity(t *testing.T) {
	cases := map[string]string{
		"no order_id":     `{"event": {"order_number": "#1", "line_items": [{"sku":"A","quantity":1}]}}`,
		"no order_number": `{"event": {"order_id": "x", "line_items": [{"sku":"A","quantity":1}]}}`,
		"blank order_id":  `{"event": {"order_id": "  ", "order_number": "#1", "line_items": [{"sku":"A","quantity":1}]}}`,
		"not an object":   `[1,2,3]`,
		"wrong nesting":   `{"order_id": "x", "order_number": "#1"}`,
	}
	for name, body := range cases {
		if _, err := DecodeOrderEvent(json.RawMessage(body)); err != ErrCorruptPayload {
			t.Errorf("%s: expected ErrCorruptPayload, got %v", name, err)
		}
	}
}

func TestDecodeOrderEvent_EmptyLineItems(t *testing.T) {
	body := `{"event": {"order_id": "x", "order_number": "#1", "line_items": []}}`
	if _, err := DecodeOrderEvent(json.RawMessage(body)); err != ErrNoLineItems {
		t.Fatalf("expected ErrNoLineItems, got %v", err)
	}
}

func TestDecodeOrderEvent_BadLineItem(t *testing.T) {
	body := `{"event": {"order_id": "x", "order_number": "#1", "line_items": [{"sku":"","quantity":1}]}}`
	if _, err := DecodeOrderEvent(json.RawMessage(body)); err != ErrCorruptPayload {
		t.Fatalf("expected ErrCorruptPayload for empty sku, got %v", err)
	}

	body = `{"event": {"order_id": "x", "order_number": "#1", "line_items": [{"sku":"A","quantity":0}]}}`
	if _, err := DecodeOrderEvent(json.RawMessage(body)); err != ErrCorruptPayload {
		t.Fatalf("expected ErrCorruptPayload for zero quantity, got %v", err)
	}
}

func TestNewQueueItem(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := json.RawMessage(`{"event": {"order_id": "gid-7", "order_number": "#7", "line_items": [{"sku":"A","quantity":1}]}}`)

	item := NewQueueItem(payload, now)
	if item.ID == "" {
		t.Fatal("expected a non-empty ID")
	}
	if item.Status != StatusPending {
		t.Fatalf("expected status=pending, got %s", item.Status)
	}
	if item.Attempts != 0 {
		t.Fatalf("expected attempts=0, got %d", item.Attempts)
	}
	if !item.Priority.Equal(now) || !item.CreatedAt.Equal(now) {
		t.Fatal("priority and created_at must equal the enqueue time")
	}
	if item.OrderID != "gid-7" || item.OrderNumber != "#7" {
		t.Fatalf("expected denormalized order identity, got %q %q", item.OrderID, item.OrderNumber)
	}
}

func TestNewQueueItem_UndecodablePayloadStillAccepted(t *testing.T) {
	// Validation is deferred to dispatch time; ingestion never rejects shape.
	item := NewQueueItem(json.RawMessage(`{"something": "else"}`), time.Now().UTC())
	if item.Status != StatusPending {
		t.Fatalf("expected status=pending, got %s", item.Status)
	}
	if item.OrderID != "" || item.OrderNumber != "" {
		t.Fatal("expected empty denormalized identity for unrecognized shape")
	}
}

func TestStatusIsTerminal(t *testing.T) {
	if StatusPending.IsTerminal() || StatusProcessing.IsTerminal() {
		t.Fatal("pending/processing must not be terminal")
	}
	if !StatusCompleted.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Fatal("completed/failed must be terminal")
	}
}
