// Package app assembles and runs the bot: configuration, storage, the
// Telegram handlers, the broadcast scheduler and the module registry.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"surveybot/internal/bot"
	"surveybot/internal/config"
	"surveybot/internal/export"
	"surveybot/internal/plugin"
	"surveybot/internal/scheduler"
	"surveybot/internal/storage"
	"surveybot/internal/storage/sqlite"
	"surveybot/internal/storage/stubs"
)

type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        storage.Storage
	bot       *bot.Bot
	scheduler *scheduler.Scheduler
	registry  *plugin.Registry
}

// New wires every component together. Nothing is started yet; Run does that.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	var db storage.Storage
	if cfg.UseMockDB {
		logger.Warn("Using in-memory storage, all data is lost on restart")
		db = stubs.NewMockDB()
	} else {
		sqliteDB, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db = sqliteDB
	}
	if err := db.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := seedSettings(ctx, cfg, db); err != nil {
		return nil, err
	}

	exporter, err := export.NewSink(cfg.ExportDir, logger)
	if err != nil {
		return nil, err
	}

	b, err := bot.New(cfg, db, exporter, logger)
	if err != nil {
		return nil, err
	}

	sched, err := scheduler.New(db, b, logger)
	if err != nil {
		return nil, err
	}

	registry := plugin.NewRegistry(logger)
	for _, m := range []plugin.Module{
		bot.NewSurveyModule(b),
		bot.NewAdminModule(b),
		bot.NewCaptchaModule(b),
	} {
		if err := registry.Register(m); err != nil {
			return nil, err
		}
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		bot:       b,
		scheduler: sched,
		registry:  registry,
	}, nil
}

// seedSettings writes the environment-provided defaults into the settings
// table so the admin menu and the environment stay one source of truth.
func seedSettings(ctx context.Context, cfg *config.Config, db storage.Storage) error {
	if err := db.SetSetting(ctx, storage.SettingWelcomeMessage, cfg.WelcomeMessage); err != nil {
		return fmt.Errorf("failed to seed welcome message: %w", err)
	}
	testMode := "0"
	if cfg.TestMode {
		testMode = "1"
	}
	if err := db.SetSetting(ctx, storage.SettingTestMode, testMode); err != nil {
		return fmt.Errorf("failed to seed test mode: %w", err)
	}
	return nil
}

// Run starts the scheduler and the update loop and blocks until ctx is
// cancelled, then shuts everything down in reverse order.
func (a *App) Run(ctx context.Context) error {
	if err := a.bot.SetCommands(a.registry.Commands()); err != nil {
		a.logger.Warn("Failed to publish bot commands", zap.Error(err))
	}
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}

	a.bot.Start(ctx)

	a.bot.Stop()
	if err := a.scheduler.Stop(); err != nil {
		a.logger.Warn("Scheduler shutdown failed", zap.Error(err))
	}
	if err := a.registry.Close(); err != nil {
		a.logger.Warn("Module unload failed", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("Storage close failed", zap.Error(err))
	}
	a.logger.Info("Shutdown complete")
	return nil
}
