package main

import (
	"os"

	"github.com/bryan-buckman/feedcache/internal/config"
	"github.com/bryan-buckman/feedcache/internal/database"
	"github.com/bryan-buckman/feedcache/internal/engine"
	"github.com/bryan-buckman/feedcache/internal/feed"
	"github.com/bryan-buckman/feedcache/internal/server"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("loading config failed")
	}

	logger := newLogger(cfg)

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("opening database failed")
	}
	defer db.Close()

	fetcher := feed.NewClient(feed.NewMockRoutes(), cfg.FetchTimeout, logger)
	eng := engine.New(db, fetcher, cfg.RefreshWorkers, logger)
	srv := server.New(eng, cfg.DefaultUserID, logger)

	if err := srv.Start(cfg.Listen); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out = os.Stderr
	logger := zerolog.New(out)
	if cfg.LogPretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
