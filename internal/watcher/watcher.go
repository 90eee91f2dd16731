package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maltedev/tramite-watcher/internal/models"
	"github.com/maltedev/tramite-watcher/internal/notify"
	"github.com/maltedev/tramite-watcher/internal/storage"
)

// Outcome is the terminal state of a successful run.
type Outcome string

const (
	OutcomeBaseline  Outcome = "baseline"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeNotified  Outcome = "notified"
)

type Extractor interface {
	Extract(ctx context.Context, id models.TrackingID) (*models.Observation, error)
}

type Config struct {
	TrackingID models.TrackingID
	SiteURL    string
}

// Watcher runs one check: extract, compare with the stored status, notify on
// change and persist.
type Watcher struct {
	config    Config
	extractor Extractor
	store     storage.StateStore
	notifier  notify.Notifier
	logger    *slog.Logger
}

func New(config Config, extractor Extractor, store storage.StateStore, notifier notify.Notifier, logger *slog.Logger) *Watcher {
	return &Watcher{
		config:    config,
		extractor: extractor,
		store:     store,
		notifier:  notifier,
		logger:    logger.With("component", "watcher", "tramite", config.TrackingID.String()),
	}
}

// Run executes a single check. The stored status only moves forward after a
// notification went out, so a failed delivery is retried on the next run.
func (w *Watcher) Run(ctx context.Context) (Outcome, error) {
	if err := w.config.TrackingID.Validate(); err != nil {
		return "", err
	}

	obs, err := w.extractor.Extract(ctx, w.config.TrackingID)
	if err != nil {
		return "", fmt.Errorf("extract status: %w", err)
	}
	if obs == nil || !obs.IsValid() {
		return "", fmt.Errorf("%w: empty status", models.ErrExtraction)
	}
	current := strings.TrimSpace(obs.StatusText)

	w.logger.Info("status observed", "strategy", obs.StrategyUsed, "status", current)

	previous, found, err := w.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, models.ErrPersistence) {
			err = fmt.Errorf("%w: %w", models.ErrPersistence, err)
		}
		return "", fmt.Errorf("load previous status: %w", err)
	}

	if !found {
		if err := w.save(ctx, current); err != nil {
			return "", err
		}
		w.logger.Info("baseline recorded, no notification sent")
		return OutcomeBaseline, nil
	}

	if !HasChanged(previous, current) {
		w.logger.Info("status unchanged")
		return OutcomeUnchanged, nil
	}

	w.logger.Info("status changed", "previous", previous, "current", current)

	msg := notify.Message{
		TrackingID: w.config.TrackingID,
		Previous:   previous,
		Current:    current,
		SiteURL:    w.config.SiteURL,
	}
	if err := w.notifier.Notify(ctx, msg.Subject(), msg.Body()); err != nil {
		if !errors.Is(err, models.ErrNotification) {
			err = fmt.Errorf("%w: %w", models.ErrNotification, err)
		}
		return "", fmt.Errorf("notify change: %w", err)
	}

	if err := w.save(ctx, current); err != nil {
		return "", err
	}
	return OutcomeNotified, nil
}

func (w *Watcher) save(ctx context.Context, status string) error {
	if err := w.store.Save(ctx, status); err != nil {
		if !errors.Is(err, models.ErrPersistence) {
			err = fmt.Errorf("%w: %w", models.ErrPersistence, err)
		}
		return fmt.Errorf("save status: %w", err)
	}
	return nil
}
