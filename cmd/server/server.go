package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"skoll/internal/api"
	"skoll/internal/config"
	"skoll/internal/engine"
	skollnet "skoll/internal/net"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load config")
	}
	setupLogging(cfg.Logging)

	// Setup the matching engine, the TCP server and the HTTP gateway.
	eng := engine.New()
	srv := skollnet.New(cfg.Server.ListenAddress, cfg.Server.TCPPort, cfg.Server.Workers, eng)
	eng.SetNotifier(srv)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.ListenAddress, cfg.Server.HTTPPort),
		Handler:           api.NewServer(eng).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go srv.Run(ctx)
	go func() {
		log.Info().Str("address", httpSrv.Addr).Msg("http gateway running")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http gateway stopped")
		}
	}()

	// Block until we are told to go away.
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http gateway shutdown failed")
	}
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
