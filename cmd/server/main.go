package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/roomchat/internal/presence"
	"github.com/Tyrowin/roomchat/internal/server"
)

func main() {
	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}

	logger := server.NewLogger(cfg)

	hub := server.NewHub(presence.NewRegistry(), logger)
	go hub.Run()
	logger.Info().Msg("hub started and ready to manage WebSocket connections")

	origins := server.NewOriginPolicy(cfg, logger)
	router := server.NewRouter(server.NewHandler(hub, cfg, origins, logger), origins, logger)
	httpServer := server.CreateServer(cfg.Addr(), router)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("env", cfg.Env).Msg("starting roomchat server")
		serverErr <- server.StartServer(httpServer, logger)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down server...")
	}

	// Hijacked WebSocket connections are not tracked by http.Server, so the
	// hub closes them before the HTTP server drains.
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Warn().Err(err).Msg("hub shutdown incomplete")
	}
	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, logger); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	logger.Info().Msg("server stopped")
}
