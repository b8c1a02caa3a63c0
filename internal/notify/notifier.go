// Package notify delivers best-effort alerts for queue items that exhausted
// their retry budget. The dispatcher emits FailureEvents on a channel after
// the failed transition commits; this package consumes them independently,
// so a notifier outage can never affect queue correctness.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// maxErrorLen bounds the error text included in an alert.
const maxErrorLen = 500

// FailureEvent describes one item that entered failed via attempt exhaustion.
type FailureEvent struct {
	ItemID      string
	OrderID     string
	OrderNumber string
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	FailedAt    time.Time
}

// Notifier POSTs failure alerts to an external chat webhook.
// An empty webhook URL disables delivery entirely; notification failures
// are logged and swallowed.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	events     <-chan FailureEvent
	logger     *zap.Logger
}

func New(webhookURL string, timeout time.Duration, events <-chan FailureEvent, logger *zap.Logger) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		events:     events,
		logger:     logger,
	}
}

// Run consumes failure events until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	n.logger.Info("failure notifier started", zap.Bool("enabled", n.webhookURL != ""))
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("failure notifier stopping")
			return
		case ev := <-n.events:
			n.send(ctx, ev)
		}
	}
}

func (n *Notifier) send(ctx context.Context, ev FailureEvent) {
	if n.webhookURL == "" {
		return
	}

	text := fmt.Sprintf(
		"Box assignment failed permanently.\nOrder: %s (%s)\nAttempts: %d\nError: %s\nEnqueued: %s\nFailed: %s",
		ev.OrderNumber, ev.OrderID, ev.Attempts,
		truncate(ev.LastError, maxErrorLen),
		ev.CreatedAt.Format(time.RFC3339),
		ev.FailedAt.Format(time.RFC3339),
	)

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		n.logger.Warn("marshal alert", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("create alert request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Warn("failure alert not delivered",
			zap.String("item_id", ev.ItemID), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Warn("failure alert rejected",
			zap.String("item_id", ev.ItemID), zap.Int("status", resp.StatusCode))
		return
	}

	n.logger.Info("failure alert sent",
		zap.String("item_id", ev.ItemID),
		zap.String("order_number", ev.OrderNumber),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
