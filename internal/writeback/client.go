// Package writeback calls the external order-mutation API that assigns the
// selected box and fulfillment-status label to an order.
package writeback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client abstracts the downstream mutation call.
// Mocking this interface in tests gives full control over downstream
// behaviour without making real HTTP calls.
type Client interface {
	AssignBox(ctx context.Context, orderID, boxName, statusLabel string) error
}

// APIError is an error reported by the API itself (as opposed to transport
// or HTTP-level failures). Errors carrying a recognized validation or
// not-found code are permanent: retrying cannot change the outcome.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %s: %s", e.Code, e.Message)
}

var nonRetryableCodes = map[string]struct{}{
	"VALIDATION_ERROR": {},
	"INVALID_INPUT":    {},
	"NOT_FOUND":        {},
}

// Retryable reports whether the error may resolve on a later attempt.
// Unrecognized codes are treated as retryable and consume the budget.
func (e *APIError) Retryable() bool {
	_, permanent := nonRetryableCodes[e.Code]
	return !permanent
}

// assignBoxMutation sends all fields as typed variables; values are never
// interpolated into the document.
const assignBoxMutation = `mutation AssignBox($orderId: ID!, $boxName: String!, $status: String!) {
  orderBoxAssign(orderId: $orderId, boxName: $boxName, fulfillmentStatus: $status) {
    userErrors { code message }
  }
}`

type mutationRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type mutationResponse struct {
	Data struct {
		OrderBoxAssign struct {
			UserErrors []struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"userErrors"`
		} `json:"orderBoxAssign"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// HTTPClient implements Client against the real API with bearer-token auth
// and a table-driven retry policy: one warmup delay before the first attempt
// (smoothing bursts against upstream rate limits), then one extra attempt
// per entry in retryDelays.
type HTTPClient struct {
	endpoint    string
	token       string
	warmup      time.Duration
	retryDelays []time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
}

func NewHTTPClient(endpoint, token string, timeout, warmup time.Duration, retryDelays []time.Duration, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		endpoint:    endpoint,
		token:       token,
		warmup:      warmup,
		retryDelays: retryDelays,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// AssignBox issues the mutation with classified retries. Non-retryable API
// errors abort after a single network attempt; everything else (HTTP errors,
// unclassified API errors, network errors) consumes the retry budget. On
// exhaustion the last error is surfaced.
func (c *HTTPClient) AssignBox(ctx context.Context, orderID, boxName, statusLabel string) error {
	if err := sleepCtx(ctx, c.warmup); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= len(c.retryDelays); attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, c.retryDelays[attempt-1]); err != nil {
				return err
			}
		}

		err := c.mutate(ctx, orderID, boxName, statusLabel)
		if err == nil {
			return nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return fmt.Errorf("write-back rejected: %w", err)
		}

		lastErr = err
		c.logger.Warn("write-back attempt failed",
			zap.String("order_id", orderID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return fmt.Errorf("write-back retries exhausted after %d attempts: %w",
		len(c.retryDelays)+1, lastErr)
}

func (c *HTTPClient) mutate(ctx context.Context, orderID, boxName, statusLabel string) error {
	body, err := json.Marshal(mutationRequest{
		Query: assignBoxMutation,
		Variables: map[string]any{
			"orderId": orderID,
			"boxName": boxName,
			"status":  statusLabel,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected write-back status: %d", resp.StatusCode)
	}

	var mr mutationResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if len(mr.Errors) > 0 {
		msgs := make([]string, len(mr.Errors))
		for i, e := range mr.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("write-back errors: %s", strings.Join(msgs, "; "))
	}
	if ue := mr.Data.OrderBoxAssign.UserErrors; len(ue) > 0 {
		return &APIError{Code: ue[0].Code, Message: ue[0].Message}
	}

	return nil
}

// sleepCtx suspends for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// compile-time check that HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)
