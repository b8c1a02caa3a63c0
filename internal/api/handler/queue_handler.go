package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/packhub/boxflow/internal/domain"
	"github.com/packhub/boxflow/internal/repository"
)

// QueueHandler exposes the operator-facing queue inspection endpoints.
// The terminal failed set and last_error fields surfaced here are the
// pipeline's visible failure surface.
type QueueHandler struct {
	repo   repository.QueueRepository
	logger *zap.Logger
}

func NewQueueHandler(repo repository.QueueRepository, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{repo: repo, logger: logger}
}

// GetByID handles GET /api/v1/queue/{id}
func (h *QueueHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// List handles GET /api/v1/queue with status filtering and pagination.
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		mapError(w, err)
		return
	}

	items, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list queue items", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list queue items")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  items,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

// Stats handles GET /api/v1/queue/stats — a JSON snapshot of item counts
// per status.
func (h *QueueHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.repo.CountByStatus(r.Context())
	if err != nil {
		h.logger.Error("failed to count queue items", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to count queue items")
		return
	}
	respondJSON(w, http.StatusOK, counts)
}

func parseListFilter(r *http.Request) (domain.ListFilter, error) {
	q := r.URL.Query()
	filter := domain.ListFilter{Page: 1, Limit: 20}

	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		filter.Page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if s := q.Get("status"); s != "" {
		st := domain.Status(s)
		if !st.IsValid() {
			return filter, domain.ErrInvalidStatus
		}
		filter.Status = &st
	}
	return filter, nil
}
