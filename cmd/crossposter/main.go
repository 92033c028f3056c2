package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"nuclight.org/crossposter/internal/approval"
	"nuclight.org/crossposter/internal/bot"
	"nuclight.org/crossposter/internal/config"
	"nuclight.org/crossposter/internal/logger"
	"nuclight.org/crossposter/internal/metrics"
	"nuclight.org/crossposter/internal/publish"
	"nuclight.org/crossposter/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up structured logger
	var lg logger.Logger
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Fatalf("Failed to init sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
		lg = logger.NewLoggerWithSentry(cfg.LogLevel)
	} else {
		lg = logger.NewLogger(cfg.LogLevel)
	}

	lg.Info("config loaded",
		"tag", cfg.PostTag,
		"required_reactions", cfg.Tracker.RequiredReactions,
		"expiration_window", cfg.Tracker.ExpirationWindow,
		"platforms", cfg.Platforms,
		"db_path", cfg.DBPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker, err := approval.NewTracker(cfg.Tracker, lg)
	if err != nil {
		log.Fatalf("Failed to create tracker: %v", err)
	}

	m := metrics.New()
	m.TrackPending(func() int { return len(tracker.Pending()) })
	tracker.OnTransition(m.ObserveTransition)

	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, lg); err != nil {
				lg.Error("metrics server failed", "error", err)
			}
		}()
	}

	dispatcher := publish.NewDispatcher(buildPublishers(cfg), cfg.PublishTimeout, lg)

	opts := bot.Options{
		Tracker:    tracker,
		Dispatcher: dispatcher,
		Observer:   m,
		PostTag:    cfg.PostTag,
	}

	// Delivery log is optional
	if cfg.DBPath != "" {
		db, err := storage.NewDB(cfg.DBPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()

		if err := db.Migrate(); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		opts.Deliveries = storage.NewDeliveryRepository(db)

		lg.Info("database initialized")
	}

	if err := bot.InitTemplates(); err != nil {
		log.Fatalf("Failed to init templates: %v", err)
	}

	// Create and start bot
	b, err := bot.New(cfg.TelegramToken, opts, lg)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	b.RegisterCommands()
	b.RegisterHandlers()

	go b.RunSweeper(ctx, cfg.SweepInterval)

	b.Start(ctx)
	b.Wait()

	lg.Info("bot stopped")
}

func buildPublishers(cfg *config.Config) []publish.Publisher {
	var publishers []publish.Publisher
	for _, platform := range cfg.Platforms {
		switch platform {
		case config.PlatformTwitter:
			publishers = append(publishers, publish.NewTwitter(publish.TwitterConfig{
				APIKey:       cfg.Twitter.APIKey,
				APISecret:    cfg.Twitter.APISecret,
				AccessToken:  cfg.Twitter.AccessToken,
				AccessSecret: cfg.Twitter.AccessSecret,
			}))
		case config.PlatformBluesky:
			publishers = append(publishers, publish.NewBluesky(publish.BlueskyConfig{
				Identifier: cfg.Bluesky.Identifier,
				Password:   cfg.Bluesky.Password,
				PDS:        cfg.Bluesky.PDS,
			}))
		case config.PlatformFarcaster:
			publishers = append(publishers, publish.NewFarcaster(publish.FarcasterConfig{
				Token:   cfg.Farcaster.Token,
				BaseURL: cfg.Farcaster.BaseURL,
			}))
		}
	}
	return publishers
}
