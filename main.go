package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"menfess/internal/config"
	"menfess/internal/filter"
	"menfess/internal/identity"
	"menfess/internal/ledger"
	"menfess/internal/ratelimit"
	"menfess/internal/relay"
	"menfess/internal/repository"
	"menfess/internal/server"
	"menfess/internal/telegram"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err) // Should not happen in development
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	httpLog := logrus.New()

	// Load configuration
	cfgPath := "configs/config.yml"
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Database connection
	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, logger)

	// Banned-content filter
	terms, err := filter.LoadTerms(cfg.Moderation.BadwordsFile)
	if err != nil {
		logger.Fatal("Failed to load badwords file", zap.Error(err))
	}
	contentFilter := filter.New(terms)
	logger.Info("Content filter loaded", zap.Int("terms", contentFilter.Len()))

	// Initialize repositories
	violatorRepo := repository.NewViolatorRepository(db, logger)
	mappingRepo := repository.NewMappingRepository(db, logger)

	// Moderation components
	violationLedger := ledger.New(violatorRepo, cfg.Moderation.WarningLimit, logger)
	gate := ratelimit.New(time.Duration(cfg.Moderation.CooldownSeconds)*time.Second, clock.New())
	identityMap := identity.New(mappingRepo, logger)

	// Telegram bot doubles as the relay transport
	bot, err := telegram.NewBot(cfg, violationLedger, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Telegram bot", zap.Error(err))
	}

	coordinator := relay.NewCoordinator(bot, contentFilter, violationLedger, gate, identityMap, logger)
	bot.SetCoordinator(coordinator)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run Telegram bot in a goroutine
	go func() {
		if err := bot.Start(ctx); err != nil {
			logger.Error("Telegram bot failed", zap.Error(err))
		}
	}()

	// Initialize and run the moderator API
	srv := server.NewServer(db, violationLedger, httpLog, logger)
	go srv.Run(cfg.Server.Port)

	<-ctx.Done()
	logger.Info("Application stopped.")
}
