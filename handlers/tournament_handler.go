package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-arena/middleware"
	"github.com/Dosada05/tournament-arena/models"
	"github.com/Dosada05/tournament-arena/services"
	"github.com/google/uuid"
)

// Notifier pushes a frame to a connected user.
type Notifier interface {
	NotifyUser(userID uuid.UUID, payload []byte) error
}

type TournamentHandler struct {
	tournamentService services.TournamentService
	matchService      services.MatchService
	notifier          Notifier
}

func NewTournamentHandler(ts services.TournamentService, ms services.MatchService, notifier Notifier) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: ts,
		matchService:      ms,
		notifier:          notifier,
	}
}

type createTournamentInput struct {
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
}

// CreateHandler godoc
// @Summary Create a bracket tournament
// @Tags tournaments
// @Description The caller must be one of the participants and must have match settings. Two players start immediately, four players wait for every acceptance.
// @Accept json
// @Produce json
// @Param input body createTournamentInput true "Participants (2 or 4 user ids)"
// @Success 201 {object} map[string]interface{} "Tournament created"
// @Failure 400 {object} map[string]string "Malformed body or duplicate participants"
// @Failure 404 {object} map[string]string "Creator has no match settings"
// @Failure 422 {object} map[string]string "Bracket size is not 2 or 4"
// @Security BearerAuth
// @Router /tournaments [post]
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to create tournament")
		return
	}

	var input createTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.CreateTournament(r.Context(), currentUserID, input.ParticipantIDs)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler godoc
// @Summary Tournament with participants and bracket
// @Tags tournaments
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Tournament not found"
// @Security BearerAuth
// @Router /tournaments/{tournamentID} [get]
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.GetTournament(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AcceptHandler godoc
// @Summary Accept participation
// @Tags tournaments
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string "Caller does not take part"
// @Failure 409 {object} map[string]string "Tournament is not awaiting acceptance"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/accept [post]
func (h *TournamentHandler) AcceptHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	tournament, err := h.tournamentService.AcceptParticipation(r.Context(), id, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeclineHandler godoc
// @Summary Decline participation
// @Tags tournaments
// @Description Cancels the tournament and its open matches. Connected participants are notified.
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string "Caller does not take part"
// @Failure 409 {object} map[string]string "Tournament already finished or cancelled"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/decline [post]
func (h *TournamentHandler) DeclineHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	tournament, err := h.tournamentService.DeclineParticipation(r.Context(), id, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.notifyParticipants(tournament, models.MsgDecline)

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) notifyParticipants(tournament *models.Tournament, msgType string) {
	if h.notifier == nil {
		return
	}
	payload, err := models.EncodeMessage(msgType, tournament.ID.String(), nil)
	if err != nil {
		logger.Error("failed to encode notification", slog.Any("error", err))
		return
	}
	for _, p := range tournament.Participants {
		if err := h.notifier.NotifyUser(p.UserID, payload); err != nil && !errors.Is(err, services.ErrNotFound) {
			logger.Warn("failed to notify participant",
				slog.String("tournament_id", tournament.ID.String()),
				slog.String("user_id", p.UserID.String()),
				slog.Any("error", err))
		}
	}
}

// ContentionHandler godoc
// @Summary Whether the caller can still win the tournament
// @Tags tournaments
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Tournament not found"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/contention [get]
func (h *TournamentHandler) ContentionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	inContention, err := h.matchService.UserStillInContention(r.Context(), id, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"in_contention": inContention}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMineHandler godoc
// @Summary Tournaments of the caller
// @Tags tournaments
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /users/me/tournaments [get]
func (h *TournamentHandler) ListMineHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	tournaments, err := h.tournamentService.ListUserTournaments(r.Context(), currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if tournaments == nil {
		tournaments = []models.Tournament{}
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
