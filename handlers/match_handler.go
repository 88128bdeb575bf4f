package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-arena/middleware"
	"github.com/Dosada05/tournament-arena/services"
	"github.com/google/uuid"
)

// ScoreSync mirrors recorded scores into the live session of a match.
type ScoreSync interface {
	SyncScore(matchID uuid.UUID, score1, score2 int, finished bool)
}

type MatchHandler struct {
	matchService services.MatchService
	sessions     ScoreSync
}

func NewMatchHandler(ms services.MatchService, sessions ScoreSync) *MatchHandler {
	return &MatchHandler{matchService: ms, sessions: sessions}
}

// RecordPointHandler godoc
// @Summary Record a point for the caller
// @Tags matches
// @Description Increments the caller's score. Reaching the tournament's max score finishes the match and, once the round is complete, advances the bracket.
// @Produce json
// @Param matchID path string true "Match ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string "Caller does not play in this match"
// @Failure 404 {object} map[string]string "Match not found"
// @Failure 409 {object} map[string]string "Match is not being played"
// @Security BearerAuth
// @Router /matches/{matchID}/points [post]
func (h *MatchHandler) RecordPointHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	result, err := h.matchService.RecordPoint(r.Context(), matchID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if h.sessions != nil {
		h.sessions.SyncScore(matchID, result.Match.Score1, result.Match.Score2, result.MatchFinished)
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
