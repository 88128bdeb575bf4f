package routes

import (
	"log/slog"
	"net/http"
	"time"

	_ "github.com/Dosada05/tournament-arena/docs" // swagger docs
	"github.com/Dosada05/tournament-arena/handlers"
	"github.com/Dosada05/tournament-arena/middleware"
	"github.com/Dosada05/tournament-arena/services"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Handlers struct {
	WebSocket  *handlers.WebSocketHandler
	Tournament *handlers.TournamentHandler
	Match      *handlers.MatchHandler
	Queue      *handlers.QueueHandler
	User       *handlers.UserHandler
}

func SetupRoutes(router chi.Router, h Handlers, auth services.AuthService, allowedOrigins []string, logger *slog.Logger) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Токен проверяется внутри обработчика до апгрейда.
	router.Get("/ws", h.WebSocket.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(auth, logger))
		r.Use(chiMiddleware.Timeout(15 * time.Second))

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", h.Queue.PositionHandler)
			r.Post("/", h.Queue.JoinHandler)
			r.Delete("/", h.Queue.LeaveHandler)
		})

		r.Route("/tournaments", func(r chi.Router) {
			r.Post("/", h.Tournament.CreateHandler)
			r.Route("/{tournamentID}", func(r chi.Router) {
				r.Get("/", h.Tournament.GetByIDHandler)
				r.Post("/accept", h.Tournament.AcceptHandler)
				r.Post("/decline", h.Tournament.DeclineHandler)
				r.Get("/contention", h.Tournament.ContentionHandler)
			})
		})

		r.Post("/matches/{matchID}/points", h.Match.RecordPointHandler)

		r.Route("/users", func(r chi.Router) {
			r.Get("/online", h.User.ListOnlineHandler)
			r.Get("/me/tournaments", h.Tournament.ListMineHandler)
			r.Get("/me/settings", h.User.GetSettingsHandler)
			r.Put("/me/settings", h.User.UpdateSettingsHandler)
		})
	})
}
