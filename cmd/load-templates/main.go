package main

import (
	"context"
	"flag"

	"github.com/rs/zerolog/log"

	"meme-party/internal/config"
	"meme-party/internal/db"
	"meme-party/internal/logging"
)

func main() {
	filePath := flag.String("file", "templates.csv", "path to templates csv")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	conn, err := db.Open(db.Options{
		DSN:    cfg.DatabaseURL,
		Logger: logging.NewGormLogger(cfg.LogLevel == "debug"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(conn); err != nil {
			log.Fatal().Err(err).Msg("database migration failed")
		}
	}

	loaded, err := db.LoadTemplates(context.Background(), conn, *filePath)
	if err != nil {
		log.Fatal().Err(err).Int("loaded", loaded).Msg("failed to load templates")
	}
	log.Info().Int("loaded", loaded).Str("file", *filePath).Msg("templates loaded")
}
