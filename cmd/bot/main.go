package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/code4md/ajubot/internal/backend"
	"github.com/code4md/ajubot/internal/conversation"
	"github.com/code4md/ajubot/internal/db"
	"github.com/code4md/ajubot/internal/directory"
	"github.com/code4md/ajubot/internal/engine"
	"github.com/code4md/ajubot/internal/models"
	"github.com/code4md/ajubot/internal/reporter"
	"github.com/code4md/ajubot/internal/restapi"
	"github.com/code4md/ajubot/internal/store"
	"github.com/code4md/ajubot/internal/telegram"
)

func main() {
	config := loadConfig()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if config.LogPretty {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	log.Logger = logger

	logger.Info().Msg("starting ajubot")

	database, err := db.New(config.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer database.Close()

	dir, err := directory.New(database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load volunteer directory")
	}
	st, err := store.New(database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load request store")
	}

	backendClient := backend.NewClient(config.BackendURL, config.BackendUser, config.BackendPass, logger)

	bot, err := telegram.New(config.TelegramToken, dir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize bot")
	}

	eng := engine.New(st, dir, bot, backendClient, logger)
	rep := reporter.New(st, backendClient, logger)
	machine := conversation.New(dir, st, eng, rep, bot, backendClient, logger)
	bot.AttachMachine(machine)

	api := restapi.NewServer(config.RestAddr, eng, introspector{dir: dir, st: st}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := api.Start(); err != nil {
			logger.Error().Err(err).Msg("REST API stopped")
			cancel()
		}
	}()

	if err := bot.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("bot stopped")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("REST API shutdown failed")
	}

	logger.Info().Msg("ajubot stopped")
}

// introspector exposes the read-only state dump for /introspect.
type introspector struct {
	dir *directory.Directory
	st  *store.Store
}

func (i introspector) Volunteers() []*models.Volunteer { return i.dir.List() }
func (i introspector) Requests() []*models.Request     { return i.st.List() }

type Config struct {
	TelegramToken string
	DBPath        string
	BackendURL    string
	BackendUser   string
	BackendPass   string
	RestAddr      string
	LogPretty     bool
}

func loadConfig() Config {
	return Config{
		TelegramToken: mustGetEnv("TELEGRAM_BOT_TOKEN"),
		DBPath:        getEnvOrDefault("DB_PATH", "./data/ajubot.db"),
		BackendURL:    mustGetEnv("BACKEND_URL"),
		BackendUser:   mustGetEnv("BACKEND_USER"),
		BackendPass:   mustGetEnv("BACKEND_PASS"),
		RestAddr:      getEnvOrDefault("REST_ADDR", "127.0.0.1:5001"),
		LogPretty:     os.Getenv("LOG_PRETTY") != "",
	}
}

func mustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatal().Str("var", key).Msg("required environment variable is not set")
	}
	return value
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
