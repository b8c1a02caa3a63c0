package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status tracks the lifecycle of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// QueueItem is one durable unit of work: an inbound order-allocated event
// awaiting or undergoing box assignment.
//
// Priority is the enqueue timestamp and the FIFO claim key. A retried item
// keeps its original Priority, so old retries outrank brand-new items.
// Attempts counts genuine processing attempts only; recovery resets never
// touch it.
type QueueItem struct {
	ID          string            `json:"id"`
	Payload     json.RawMessage   `json:"payload"`
	OrderID     string            `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	Status      Status            `json:"status"`
	Priority    time.Time         `json:"priority"`
	Attempts    int               `json:"attempts"`
	LastError   *string           `json:"last_error,omitempty"`
	RetryAfter  *time.Time        `json:"retry_after,omitempty"`
	Result      *AssignmentResult `json:"result,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// NewQueueItem builds a pending item from a raw webhook payload.
// The order identity is extracted best-effort for the denormalized columns;
// extraction failure is not an error here — structural validation is
// deferred to dispatch time so ingestion is never lossy.
func NewQueueItem(payload json.RawMessage, now time.Time) *QueueItem {
	item := &QueueItem{
		ID:        uuid.New().String(),
		Payload:   payload,
		Status:    StatusPending,
		Priority:  now,
		CreatedAt: now,
	}
	if ev, err := DecodeOrderEvent(payload); err == nil {
		item.OrderID = ev.OrderID
		item.OrderNumber = ev.OrderNumber
	}
	return item
}

// AssignmentResult is the recorded outcome of a successful box assignment.
// BoxName is the label sent downstream (post single-unit translation);
// StatusLabel embeds the box class's original name.
type AssignmentResult struct {
	OrderNumber string   `json:"order_number"`
	TotalSize   int      `json:"total_size"`
	BoxName     string   `json:"box_name"`
	StatusLabel string   `json:"status_label"`
	MissingSKUs []string `json:"missing_skus,omitempty"`
}

// LineItem is one SKU/quantity pair from the inbound event.
type LineItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// OrderAllocatedEvent is the decoded, validated form of a queue item payload.
type OrderAllocatedEvent struct {
	OrderID     string
	OrderNumber string
	LineItems   []LineItem
}

// rawOrderEvent mirrors the warehouse webhook body: order identity and
// line items nested under an "event" object.
type rawOrderEvent struct {
	Event struct {
		OrderID     string     `json:"order_id"`
		OrderNumber string     `json:"order_number"`
		LineItems   []LineItem `json:"line_items"`
	} `json:"event"`
}

// DecodeOrderEvent parses and structurally validates a stored payload.
// A payload without a decodable order identity is corrupt and must be
// dead-lettered, never retried. Empty line items are rejected here too:
// such an order can never be assigned a box.
func DecodeOrderEvent(payload json.RawMessage) (*OrderAllocatedEvent, error) {
	var raw rawOrderEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, ErrCorruptPayload
	}
	if strings.TrimSpace(raw.Event.OrderID) == "" || strings.TrimSpace(raw.Event.OrderNumber) == "" {
		return nil, ErrCorruptPayload
	}
	if len(raw.Event.LineItems) == 0 {
		return nil, ErrNoLineItems
	}
	for _, li := range raw.Event.LineItems {
		if li.SKU == "" || li.Quantity <= 0 {
			return nil, ErrCorruptPayload
		}
	}
	return &OrderAllocatedEvent{
		OrderID:     raw.Event.OrderID,
		OrderNumber: raw.Event.OrderNumber,
		LineItems:   raw.Event.LineItems,
	}, nil
}

// ListFilter holds query parameters for paginated queue listing.
type ListFilter struct {
	Status *Status
	Page   int
	Limit  int
}

// AuditEntry records one terminal assignment outcome for SLA reporting.
type AuditEntry struct {
	OrderNumber string
	Success     bool
	TotalSize   int
	BoxName     string
	MissingSKUs []string
	Error       *string
	Duration    time.Duration
}
