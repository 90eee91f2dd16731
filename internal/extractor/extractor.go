package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/tramite-watcher/internal/models"
)

// Strategy is one self-contained way of turning the live site into a status.
type Strategy interface {
	Name() models.StrategyName
	Attempt(ctx context.Context, id models.TrackingID) (*models.Observation, error)
}

// StrategyError records where inside a strategy the attempt failed.
type StrategyError struct {
	Strategy models.StrategyName
	Stage    string
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("%s strategy failed at %s: %v", e.Strategy, e.Stage, e.Err)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}

func failure(strategy models.StrategyName, stage string, err error) error {
	return &StrategyError{Strategy: strategy, Stage: stage, Err: err}
}

var errEmptyStatus = errors.New("strategy returned an empty status")

// Pacer spaces out consecutive strategy attempts against the site.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Extractor tries its strategies in order and returns the first non-empty status.
type Extractor struct {
	strategies []Strategy
	pacer      Pacer
	logger     *slog.Logger
}

func New(logger *slog.Logger, strategies ...Strategy) *Extractor {
	return &Extractor{
		strategies: strategies,
		logger:     logger.With("component", "extractor"),
	}
}

// SetPacer makes every attempt wait on p first.
func (e *Extractor) SetPacer(p Pacer) {
	e.pacer = p
}

func (e *Extractor) Strategies() []models.StrategyName {
	names := make([]models.StrategyName, 0, len(e.strategies))
	for _, s := range e.strategies {
		names = append(names, s.Name())
	}
	return names
}

func (e *Extractor) Extract(ctx context.Context, id models.TrackingID) (*models.Observation, error) {
	if err := id.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrExtraction, err)
	}
	if len(e.strategies) == 0 {
		return nil, fmt.Errorf("%w: no strategies configured", models.ErrExtraction)
	}

	var failures []error
	for _, strategy := range e.strategies {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}
		if e.pacer != nil {
			if err := e.pacer.Wait(ctx); err != nil {
				failures = append(failures, err)
				break
			}
		}

		start := time.Now()
		obs, err := strategy.Attempt(ctx, id)
		if err == nil && !obs.IsValid() {
			err = failure(strategy.Name(), "extract", errEmptyStatus)
		}
		if err != nil {
			stage := "unknown"
			var se *StrategyError
			if errors.As(err, &se) {
				stage = se.Stage
			}
			e.logger.Warn("strategy failed, trying next",
				"strategy", strategy.Name(),
				"stage", stage,
				"duration", time.Since(start),
				"error", err)
			failures = append(failures, err)
			continue
		}

		obs.StrategyUsed = strategy.Name()
		e.logger.Info("status extracted",
			"strategy", obs.StrategyUsed,
			"status", obs.StatusText,
			"duration", time.Since(start))
		return obs, nil
	}

	return nil, fmt.Errorf("%w: all %d strategies failed: %w", models.ErrExtraction, len(e.strategies), errors.Join(failures...))
}

// Select returns the strategies named in names, in that order.
func Select(names []string, available map[models.StrategyName]Strategy) ([]Strategy, error) {
	strategies := make([]Strategy, 0, len(names))
	for _, name := range names {
		s, ok := available[models.StrategyName(name)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown extraction strategy %q", models.ErrConfiguration, name)
		}
		strategies = append(strategies, s)
	}
	return strategies, nil
}
