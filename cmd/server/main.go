package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-chi/chi/v5"
	"github.com/goldenage/center-api/internal/auth"
	"github.com/goldenage/center-api/internal/config"
	"github.com/goldenage/center-api/internal/database"
	"github.com/goldenage/center-api/internal/handlers"
	"github.com/goldenage/center-api/internal/notifier"
	"github.com/goldenage/center-api/internal/registration"
	"github.com/goldenage/center-api/internal/survey"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.LoadConfig()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Staff notifications are optional; the service runs without them.
	var staffNotifier notifier.Notifier
	if cfg.DiscordBotToken != "" {
		session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
		if err != nil {
			log.Warn().Err(err).Msg("discord notifier not initialized")
		} else {
			staffNotifier = notifier.NewDiscordNotifier(session, cfg.DiscordNotificationsChannelID, log)
		}
	}

	authHandler := auth.NewAuthHandler(cfg, db, log)
	registrationSvc := registration.NewService(db, log)
	surveySvc := survey.NewService(db, log)

	activityHandler := handlers.NewActivityHandler(db, registrationSvc, authHandler, log)
	registrationHandler := handlers.NewRegistrationHandler(db, registrationSvc, staffNotifier, authHandler, log)
	surveyHandler := handlers.NewSurveyHandler(db, surveySvc, authHandler, log)
	messageHandler := handlers.NewMessageHandler(db, authHandler, log)
	apiKeyHandler := handlers.NewAPIKeyHandler(db, authHandler)

	r := chi.NewRouter()
	handlers.RegisterRoutes(r, cfg, authHandler, activityHandler, registrationHandler, surveyHandler, messageHandler, apiKeyHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
