package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"meme-party/internal/config"
	"meme-party/internal/db"
	"meme-party/internal/game"
	"meme-party/internal/logging"
	"meme-party/internal/server"
	"meme-party/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "meme-party", cfg.OTELEndpoint, cfg.OTELEnabled)
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup failed")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	store, catalog, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("datastore setup failed")
	}

	strategy, err := game.ParseStrategy(cfg.SchedulerStrategy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid scheduler strategy")
	}
	hub := server.NewHub()
	engine, err := game.NewEngine(store, game.Options{
		Strategy:     strategy,
		PollInterval: cfg.PollInterval,
		Catalog:      catalog,
		Notifier:     hub,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("engine setup failed")
	}
	srv := server.New(engine, hub, cfg)
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Str("scheduler", string(strategy)).Msg("meme-party server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return engine.Run(gctx)
	})
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		return runCleanup(gctx, engine, cfg.CleanupInterval, cfg.CleanupAfter)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return
	}
	log.Info().Msg("server stopped")
}

// openStore picks the gorm datastore when DATABASE_URL is set and the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg config.Config) (game.Datastore, game.Catalog, error) {
	seed := uint64(time.Now().UnixNano())
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL is not set; sessions are kept in memory")
		catalog, err := db.ReadCatalogFile(cfg.TemplatesFile, cfg.TemplateChoices, seed)
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("file", cfg.TemplatesFile).Msg("template file not found; entries start empty")
			return game.NewMemoryStore(), game.NewStaticCatalog(nil, cfg.TemplateChoices, seed), nil
		}
		if err != nil {
			return nil, nil, err
		}
		log.Info().Int("templates", len(catalog.Templates())).Str("file", cfg.TemplatesFile).Msg("template catalog loaded")
		return game.NewMemoryStore(), catalog, nil
	}
	conn, err := db.Open(db.Options{
		DSN:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		Logger:          logging.NewGormLogger(cfg.LogLevel == "debug"),
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(conn); err != nil {
			return nil, nil, err
		}
	}
	catalog, err := db.LoadCatalog(ctx, conn, cfg.TemplateChoices, seed)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Int("templates", len(catalog.Templates())).Msg("template catalog loaded")
	return db.NewStore(conn), catalog, nil
}

func runCleanup(ctx context.Context, engine *game.Engine, interval, olderThan time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := engine.Cleanup(ctx, olderThan); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("session cleanup failed")
			}
		}
	}
}
