package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	apimw "github.com/packhub/boxflow/internal/api/middleware"
	"github.com/packhub/boxflow/internal/domain"
	"github.com/packhub/boxflow/internal/repository"
)

// IngestHandler persists inbound order-allocated webhooks as pending queue
// items. The payload's shape is not validated here — validation is deferred
// to dispatch time so ingestion is never lossy. Success is acknowledged once
// the durable write lands, independent of the eventual processing outcome.
type IngestHandler struct {
	repo     repository.QueueRepository
	logger   *zap.Logger
	onIngest func()
}

func NewIngestHandler(repo repository.QueueRepository, logger *zap.Logger, onIngest func()) *IngestHandler {
	if onIngest == nil {
		onIngest = func() {}
	}
	return &IngestHandler{repo: repo, logger: logger, onIngest: onIngest}
}

// Ingest handles POST /webhooks/order-allocated
//
// Responses: 200 once the item is durably persisted, 400 for a body that is
// not JSON at all, 500 when the write fails (the source redelivers).
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if !json.Valid(body) {
		mapError(w, domain.ErrInvalidPayload)
		return
	}

	item := domain.NewQueueItem(json.RawMessage(body), time.Now().UTC())

	if err := h.repo.Create(r.Context(), item); err != nil {
		h.logger.Error("failed to persist inbound event",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "failed to persist event")
		return
	}

	h.onIngest()
	h.logger.Info("event enqueued",
		zap.String("item_id", item.ID),
		zap.String("order_number", item.OrderNumber),
	)
	respondJSON(w, http.StatusOK, map[string]string{"id": item.ID, "status": string(item.Status)})
}
