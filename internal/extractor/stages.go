package extractor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/tramite-watcher/internal/browser"
	"github.com/maltedev/tramite-watcher/internal/models"
	"github.com/maltedev/tramite-watcher/internal/parser"
)

// StageStrategy submits the form and looks for the known lifecycle stages.
type StageStrategy struct {
	runner *formRunner
	parser parser.Parser
}

func NewStageStrategy(cfg FormConfig, selectors *Selectors, open BrowserFactory, logger *slog.Logger) *StageStrategy {
	runner := newFormRunner(cfg, selectors, open, logger.With("component", "stage_strategy"))
	return &StageStrategy{
		runner: runner,
		parser: parser.NewStatusParser(runner.selectors.ParserOptions()),
	}
}

func (s *StageStrategy) Name() models.StrategyName {
	return models.StrategyStages
}

func (s *StageStrategy) Attempt(ctx context.Context, id models.TrackingID) (*models.Observation, error) {
	return s.runner.run(ctx, s.Name(), id, func(b *browser.Browser, page playwright.Page) (*models.Observation, error) {
		if stage, ok := s.waitForStage(page); ok {
			s.runner.logger.Info("known stage rendered", "stage", stage)
		} else {
			s.runner.logger.Warn("no known stage rendered within wait", "per_stage_wait", s.runner.cfg.StageWait)
		}

		s.runner.capture(b, page, string(s.Name())+"_after_submit")

		snap, err := s.runner.snapshot(s.Name(), b, page)
		if err != nil {
			return nil, err
		}
		return observe(s.Name(), s.parser.StageStatus, snap)
	})
}

func (s *StageStrategy) waitForStage(page playwright.Page) (string, bool) {
	timeout := playwright.Float(float64(s.runner.cfg.StageWait.Milliseconds()))
	for _, stage := range s.runner.selectors.Stages {
		loc := page.Locator(fmt.Sprintf("text=%s", stage)).First()
		err := loc.WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: timeout,
		})
		if err == nil {
			return stage, true
		}
	}
	return "", false
}
