package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/tournament-arena/middleware"
	"github.com/Dosada05/tournament-arena/services"
)

var errNotQueued = errors.New("user is not queued")

type QueueHandler struct {
	queueService services.QueueService
}

func NewQueueHandler(qs services.QueueService) *QueueHandler {
	return &QueueHandler{queueService: qs}
}

type joinQueueInput struct {
	Size int `json:"size"`
}

// JoinHandler godoc
// @Summary Join the queue for a bracket of the given size
// @Tags queue
// @Description The caller must be connected over the WebSocket. When the queue fills, a tournament is created and every member receives {"t":"a","d":"<tournament id>"}.
// @Accept json
// @Produce json
// @Param input body joinQueueInput true "Bracket size (2 or 4)"
// @Success 200 {object} map[string]interface{} "Queued"
// @Success 201 {object} map[string]interface{} "Queue filled, tournament created"
// @Failure 404 {object} map[string]string "Caller is offline or has no match settings"
// @Failure 409 {object} map[string]string "Already queued"
// @Failure 422 {object} map[string]string "Invalid size"
// @Security BearerAuth
// @Router /queue [post]
func (h *QueueHandler) JoinHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input joinQueueInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ticket, err := h.queueService.Join(r.Context(), currentUserID, input.Size)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	status := http.StatusOK
	if ticket.Tournament != nil {
		status = http.StatusCreated
	}
	if err := writeJSON(w, status, jsonResponse{"queue": ticket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// LeaveHandler godoc
// @Summary Leave the queue
// @Tags queue
// @Success 204
// @Security BearerAuth
// @Router /queue [delete]
func (h *QueueHandler) LeaveHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	if err := h.queueService.Leave(r.Context(), currentUserID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PositionHandler godoc
// @Summary Caller's place in the queue
// @Tags queue
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Not queued"
// @Security BearerAuth
// @Router /queue [get]
func (h *QueueHandler) PositionHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	ticket, ok := h.queueService.Position(currentUserID)
	if !ok {
		notFoundResponse(w, r, errNotQueued)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"queue": ticket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
