package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/tramite-watcher/internal/browser"
	"github.com/maltedev/tramite-watcher/internal/challenge"
	"github.com/maltedev/tramite-watcher/internal/config"
	"github.com/maltedev/tramite-watcher/internal/database"
	"github.com/maltedev/tramite-watcher/internal/extractor"
	"github.com/maltedev/tramite-watcher/internal/models"
	"github.com/maltedev/tramite-watcher/internal/notify"
	"github.com/maltedev/tramite-watcher/internal/ratelimit"
	"github.com/maltedev/tramite-watcher/internal/storage"
)

// cleanup releases whatever a builder opened.
type cleanup func()

func noop() {}

func newRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.StateStore, cleanup, error) {
	logger = logger.With("backend", cfg.State.Backend)

	switch cfg.State.Backend {
	case config.BackendFile:
		logger.Debug("using state file", "path", cfg.State.FilePath)
		return storage.NewFileStore(cfg.State.FilePath), noop, nil

	case config.BackendSQLite:
		store, err := storage.NewSQLiteStore(cfg.State.SQLitePath, cfg.Tramite.ID)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	case config.BackendPostgres:
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: 2,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", models.ErrPersistence, err)
		}
		store := database.NewStateStore(db, cfg.Tramite.ID)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil

	case config.BackendRedis:
		client, err := newRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", models.ErrPersistence, err)
		}
		return storage.NewRedisStore(client, cfg.State.RedisKey), func() { client.Close() }, nil
	}

	return nil, nil, fmt.Errorf("%w: unknown state backend %q", models.ErrConfiguration, cfg.State.Backend)
}

func buildNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (notify.Notifier, cleanup, error) {
	var (
		notifiers notify.Multi
		closers   []func()
	)
	release := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, channel := range cfg.Notify.Channels {
		switch channel {
		case config.ChannelEmail:
			notifiers = append(notifiers, notify.NewEmailNotifier(notify.SMTPConfig{
				Host:      cfg.Notify.SMTPHost,
				Port:      cfg.Notify.SMTPPort,
				Username:  cfg.Notify.SMTPUser,
				Password:  cfg.Notify.SMTPPassword,
				Recipient: cfg.Notify.Recipient,
				Timeout:   cfg.Notify.Timeout,
			}, logger))
		case config.ChannelStream:
			client, err := newRedisClient(ctx, cfg.Redis)
			if err != nil {
				release()
				return nil, nil, fmt.Errorf("%w: %w", models.ErrNotification, err)
			}
			closers = append(closers, func() { client.Close() })
			notifiers = append(notifiers, notify.NewStreamNotifier(client, cfg.Redis.Stream, models.TrackingID(cfg.Tramite.ID), logger))
		default:
			release()
			return nil, nil, fmt.Errorf("%w: unknown notification channel %q", models.ErrConfiguration, channel)
		}
	}

	if len(notifiers) == 1 {
		return notifiers[0], release, nil
	}
	return notifiers, release, nil
}

func browserOptions(cfg config.BrowserConfig) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Headless
	opts.Timeout = cfg.Timeout
	opts.ViewportWidth = cfg.ViewportWidth
	opts.ViewportHeight = cfg.ViewportHeight
	opts.AcceptLanguage = cfg.AcceptLanguage
	opts.TimezoneID = cfg.TimezoneID
	opts.Locale = cfg.Locale
	opts.UserAgent = cfg.UserAgent
	return opts
}

func buildExtractor(cfg *config.Config, logger *slog.Logger) (*extractor.Extractor, error) {
	selectors, err := extractor.LoadSelectors(cfg.Extractor.SelectorsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrConfiguration, err)
	}

	opts := browserOptions(cfg.Browser)
	open := extractor.NewBrowserFactory(opts)
	form := extractor.FormConfig{
		SiteURL:       cfg.Tramite.SiteURL,
		InputWait:     cfg.Extractor.InputWait,
		SettleTimeout: cfg.Extractor.SettleTimeout,
		StageWait:     cfg.Extractor.StageWait,
		DebugDir:      cfg.Extractor.DebugDir,
	}

	available := map[models.StrategyName]extractor.Strategy{
		models.StrategyEndpoint: extractor.NewEndpointStrategy(extractor.EndpointConfig{
			SiteURL:          cfg.Tramite.SiteURL,
			EndpointURL:      cfg.Tramite.EndpointURL,
			SiteKey:          cfg.Tramite.SiteKey,
			Action:           cfg.Tramite.Action,
			UserAgent:        cfg.Browser.UserAgent,
			Timeout:          cfg.Extractor.EndpointTimeout,
			CloudflareBypass: cfg.Extractor.CloudflareBypass,
		}, challenge.NewAcquirer(opts, cfg.Extractor.ChallengeTimeout, logger), logger),
		models.StrategyForm:   extractor.NewFormStrategy(form, selectors, open, logger),
		models.StrategyStages: extractor.NewStageStrategy(form, selectors, open, logger),
	}

	strategies, err := extractor.Select(cfg.Extractor.Strategies, available)
	if err != nil {
		return nil, err
	}
	ext := extractor.New(logger, strategies...)
	ext.SetPacer(ratelimit.NewJittered(cfg.Extractor.PaceMin, cfg.Extractor.PaceMax))
	return ext, nil
}
