package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/lightsout/apps/go-server/internal/config"
	"github.com/robalobadob/lightsout/apps/go-server/internal/db"
	"github.com/robalobadob/lightsout/apps/go-server/internal/httpserver"
	"github.com/robalobadob/lightsout/apps/go-server/internal/store"
)

func main() {
	_ = godotenv.Load()

	path := getEnv("CONFIG_PATH", "./configs/server.yaml")
	load := config.LoadOptional
	if os.Getenv("CONFIG_PATH") != "" {
		load = config.Load // an explicit path must exist
	}
	cfg, err := load(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to load configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
	}
	defer database.Close()
	if err := db.Migrate(database); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	mem := store.NewMemoryStore()
	srv := httpserver.New(mem, database, *cfg)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Server.Port).
			Int("rows", cfg.Board.Rows).Int("cols", cfg.Board.Cols).
			Float64("chance", cfg.Board.ChanceLightStartsOn).
			Msg("starting go-server")
		errCh <- srv.Start(":" + cfg.Server.Port)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server exited")
		}
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
