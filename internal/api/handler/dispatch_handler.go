package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/packhub/boxflow/internal/dispatcher"
)

// DispatchHandler exposes the on-demand dispatch entry point. It shares the
// timer path's claim/process/update logic, so triggering it concurrently
// with the background dispatcher is safe: the atomic claim prevents
// double-processing.
type DispatchHandler struct {
	d      *dispatcher.Dispatcher
	logger *zap.Logger
}

func NewDispatchHandler(d *dispatcher.Dispatcher, logger *zap.Logger) *DispatchHandler {
	return &DispatchHandler{d: d, logger: logger}
}

// Run handles POST /api/v1/dispatch/run
func (h *DispatchHandler) Run(w http.ResponseWriter, r *http.Request) {
	processed, err := h.d.RunTick(r.Context())
	if err != nil {
		h.logger.Error("on-demand dispatch failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "dispatch failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"processed": processed})
}
