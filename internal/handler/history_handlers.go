package handler

import (
	"net/http"
	"strconv"

	"github.com/mtlprog/tasksync/internal/handler/dto"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// handleUndo reverts the acting user's most recent action.
// @Summary Undo
// @Description Reverts the caller's most recent outstanding action. Returns the restored task, or a deletion confirmation when a CREATE is undone.
// @Tags history
// @Produce json
// @Param X-Actor header string false "Acting username"
// @Success 200 {object} domain.Task
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /history/undo [post]
func (h *Handler) handleUndo(w http.ResponseWriter, r *http.Request) {
	var req dto.ActorRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.historyService.Undo(r.Context(), resolveActor(r, req.Username))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result.Value())
}

// handleRedo re-applies the acting user's most recently undone action.
// @Summary Redo
// @Description Re-applies the caller's most recently undone action. Returns the task, or a deletion confirmation when a DELETE is redone.
// @Tags history
// @Produce json
// @Param X-Actor header string false "Acting username"
// @Success 200 {object} domain.Task
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /history/redo [post]
func (h *Handler) handleRedo(w http.ResponseWriter, r *http.Request) {
	var req dto.ActorRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.historyService.Redo(r.Context(), resolveActor(r, req.Username))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result.Value())
}

// handleHistory lists the acting user's action records.
// @Summary Action history
// @Tags history
// @Produce json
// @Param X-Actor header string true "Acting username"
// @Param limit query int false "Maximum records (default 50, max 500)"
// @Success 200 {object} dto.HistoryResponse
// @Router /history [get]
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := resolveActor(r, "")

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxHistoryLimit {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}

	records, err := h.historyService.History(ctx, actor, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	stats, err := h.historyService.HistoryStats(ctx, actor)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.HistoryResponse{
		Actions: records,
		Stats:   dto.ToHistoryStatsResponse(stats),
	})
}

// handleHistoryStats reports undo and redo availability for the acting user.
// @Summary Undo/redo availability
// @Tags history
// @Produce json
// @Param X-Actor header string true "Acting username"
// @Success 200 {object} dto.HistoryStatsResponse
// @Router /history/stats [get]
func (h *Handler) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.historyService.HistoryStats(r.Context(), resolveActor(r, ""))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToHistoryStatsResponse(stats))
}
