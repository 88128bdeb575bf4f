package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Dosada05/tournament-arena/locks"
	"github.com/Dosada05/tournament-arena/realtime"
	"github.com/Dosada05/tournament-arena/services"
	"github.com/gorilla/websocket"
)

var errUpgradeFailed = errors.New("websocket upgrade failed")

// Апгрейд выполняется под DomainAuth, поэтому рукопожатие ограничено по времени.
const handshakeTimeout = 10 * time.Second

type WebSocketHandler struct {
	auth     services.AuthService
	locks    *locks.Service
	registry *realtime.Registry
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWebSocketHandler(auth services.AuthService, lockService *locks.Service, registry *realtime.Registry, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		auth:     auth,
		locks:    lockService,
		registry: registry,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			CheckOrigin:      originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

// originChecker пропускает все Origin, если список пуст или содержит "*".
func originChecker(allowed []string) func(r *http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			allowed = nil
			break
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(allowed) == 0 || origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// ServeWs godoc
// @Summary Open the real-time connection
// @Tags realtime
// @Description Upgrades to a WebSocket. The access token is passed as the token query parameter or the Authorization header.
// @Param token query string false "Access token"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} map[string]string "Token is missing or invalid"
// @Router /ws [get]
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
	}

	var identity *services.Identity
	err := h.locks.Do(r.Context(), locks.DomainAuth, func(ctx context.Context) error {
		var err error
		identity, err = h.auth.VerifyToken(token)
		if err != nil {
			return err
		}
		if identity.Kind != services.TokenAccess {
			return services.ErrInvalidToken
		}

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade сам отвечает клиенту.
			return errors.Join(errUpgradeFailed, err)
		}
		client := realtime.NewClient(conn, h.logger)

		if _, err := h.registry.Register(identity.UserID, client); err != nil {
			code := websocket.CloseInternalServerErr
			if errors.Is(err, realtime.ErrAlreadyConnected) {
				code = websocket.ClosePolicyViolation
			}
			_ = client.Close(code, err.Error())
			return errors.Join(errUpgradeFailed, err)
		}

		go client.WritePump()
		go client.ReadPump()
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, errUpgradeFailed):
		h.logger.Warn("websocket connection rejected", slog.Any("error", err))
	default:
		mapServiceErrorToHTTP(w, r, err)
	}
}
