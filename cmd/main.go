package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/tournament-arena/brackets"
	"github.com/Dosada05/tournament-arena/config"
	"github.com/Dosada05/tournament-arena/db"
	"github.com/Dosada05/tournament-arena/handlers"
	"github.com/Dosada05/tournament-arena/locks"
	"github.com/Dosada05/tournament-arena/realtime"
	"github.com/Dosada05/tournament-arena/repositories"
	api "github.com/Dosada05/tournament-arena/routes"
	"github.com/Dosada05/tournament-arena/services"
	"github.com/Dosada05/tournament-arena/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	handlers.SetLogger(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("db_driver", cfg.DatabaseDriver))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	if cfg.DatabaseDriver == db.DriverSQLite {
		err = db.MigrateInstance(dbConn)
	} else {
		err = db.Migrate(cfg.DatabaseURL)
	}
	if err != nil {
		logger.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migrations applied")

	// Архив сеток в Cloudflare R2 (опционально)
	r2Config := storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
		Endpoint:        cfg.R2Endpoint,
	}
	var uploader storage.FileUploader
	if r2Config.Enabled() {
		uploader, err = storage.NewCloudflareR2Uploader(context.Background(), r2Config)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized", slog.String("bucket", cfg.R2BucketName))
	} else {
		logger.Info("Cloudflare R2 is not configured, bracket archive disabled")
	}

	// Инициализация репозиториев
	tournamentRepo := repositories.NewTournamentRepository(dbConn)
	participantRepo := repositories.NewParticipantRepository(dbConn)
	matchRepo := repositories.NewMatchRepository(dbConn)
	settingsRepo := repositories.NewSettingsRepository(dbConn)

	// Инициализация сервисов
	lockService := locks.NewService()
	tournamentLocks := locks.NewKeyedMutex[uuid.UUID]()
	registry := realtime.NewRegistry(logger)

	authService := services.NewAuthService(cfg.JWTSecretKey)
	tournamentService := services.NewTournamentService(
		dbConn,
		tournamentRepo,
		participantRepo,
		matchRepo,
		settingsRepo,
		brackets.NewSingleEliminationGenerator(),
		tournamentLocks,
		logger,
	)
	matchService := services.NewMatchService(
		dbConn,
		tournamentRepo,
		participantRepo,
		matchRepo,
		tournamentService,
		services.NewBracketArchiver(uploader, logger),
		tournamentLocks,
		logger,
	)
	queueService := services.NewQueueService(lockService, registry, tournamentService, settingsRepo, logger)
	dispatcher := realtime.NewDispatcher(registry, matchService, tournamentService, logger)
	logger.Info("services initialized")

	// Связываем реестр соединений с диспетчером и очередью
	registry.OnMessage(func(connectionID string, payload []byte) {
		_ = dispatcher.Dispatch(context.Background(), connectionID, payload)
	})
	registry.OnDisconnect(dispatcher.Disconnect)
	registry.OnDisconnect(func(connectionID string, userID uuid.UUID) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := queueService.Leave(ctx, userID); err != nil {
			logger.Error("failed to remove disconnected user from queue",
				slog.String("user_id", userID.String()), slog.Any("error", err))
		}
	})

	// Инициализация обработчиков HTTP
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		WebSocket:  handlers.NewWebSocketHandler(authService, lockService, registry, cfg.CORSAllowedOrigins, logger),
		Tournament: handlers.NewTournamentHandler(tournamentService, matchService, registry),
		Match:      handlers.NewMatchHandler(matchService, dispatcher),
		Queue:      handlers.NewQueueHandler(queueService),
		User:       handlers.NewUserHandler(tournamentService, registry),
	}, authService, cfg.CORSAllowedOrigins, logger)
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		}
		// Hijacked websocket соединения Shutdown не закрывает.
		for _, userID := range registry.ListOnlineUsers() {
			if connID, err := registry.ConnectionOf(userID); err == nil {
				_ = registry.Close(connID, websocket.CloseGoingAway, "server shutting down")
			}
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
