package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-arena/middleware"
	"github.com/Dosada05/tournament-arena/services"
	"github.com/google/uuid"
)

// OnlineUsers lists users with a live connection.
type OnlineUsers interface {
	ListOnlineUsers() []uuid.UUID
}

type UserHandler struct {
	tournamentService services.TournamentService
	online            OnlineUsers
}

func NewUserHandler(ts services.TournamentService, online OnlineUsers) *UserHandler {
	return &UserHandler{tournamentService: ts, online: online}
}

type updateSettingsInput struct {
	MaxScore int `json:"max_score"`
}

// GetSettingsHandler godoc
// @Summary Caller's match settings
// @Tags users
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "No settings yet"
// @Security BearerAuth
// @Router /users/me/settings [get]
func (h *UserHandler) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	settings, err := h.tournamentService.GetSettings(r.Context(), currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"settings": settings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateSettingsHandler godoc
// @Summary Create or replace the caller's match settings
// @Tags users
// @Accept json
// @Produce json
// @Param input body updateSettingsInput true "Points needed to win a match"
// @Success 200 {object} map[string]interface{}
// @Failure 422 {object} map[string]string "max_score must be positive"
// @Security BearerAuth
// @Router /users/me/settings [put]
func (h *UserHandler) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input updateSettingsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	settings, err := h.tournamentService.UpdateSettings(r.Context(), currentUserID, input.MaxScore)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"settings": settings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListOnlineHandler godoc
// @Summary Users currently connected
// @Tags users
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /users/online [get]
func (h *UserHandler) ListOnlineHandler(w http.ResponseWriter, r *http.Request) {
	users := h.online.ListOnlineUsers()
	if err := writeJSON(w, http.StatusOK, jsonResponse{"users": users}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
