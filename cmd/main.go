package main

import (
	"log/slog"
	"os"

	httpapi "github.com/BatsyBS/Stream-Lightning/internal/api/http"
	"github.com/BatsyBS/Stream-Lightning/internal/config"
	"github.com/BatsyBS/Stream-Lightning/internal/repository"
	"github.com/BatsyBS/Stream-Lightning/internal/service"
	"github.com/BatsyBS/Stream-Lightning/lib/logger/slogpretty"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	roomRepo := repository.NewInMemoryRoomRepository()

	roomService := service.NewRoomService(roomRepo, log, cfg.Relay.ChatHistoryLimit)
	statsService := service.NewStatsService(cfg.Relay.StatsHistoryLimit, log)

	relayController := httpapi.NewRelayController(roomService, statsService, cfg, log)

	router := httpapi.SetupRouter(relayController, cfg)

	log.Info("starting signaling relay", slog.String("addr", cfg.HTTP.Address))
	if err := router.Run(cfg.HTTP.Address); err != nil {
		log.Error("http server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
