package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/tramite-watcher/internal/browser"
	"github.com/maltedev/tramite-watcher/internal/models"
	"github.com/maltedev/tramite-watcher/internal/parser"
)

// BrowserFactory opens a fresh scoped browser for one attempt.
type BrowserFactory func() (*browser.Browser, error)

func NewBrowserFactory(opts *browser.Options) BrowserFactory {
	return func() (*browser.Browser, error) {
		return browser.New(opts)
	}
}

type FormConfig struct {
	SiteURL       string
	InputWait     time.Duration
	SettleTimeout time.Duration
	StageWait     time.Duration
	DebugDir      string
}

var errNoInput = errors.New("no tracking input control found")

// formRunner holds the page interaction shared by the form and stage strategies.
type formRunner struct {
	cfg       FormConfig
	selectors *Selectors
	open      BrowserFactory
	logger    *slog.Logger
}

func newFormRunner(cfg FormConfig, selectors *Selectors, open BrowserFactory, logger *slog.Logger) *formRunner {
	if cfg.InputWait <= 0 {
		cfg.InputWait = 15 * time.Second
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 20 * time.Second
	}
	if cfg.StageWait <= 0 {
		cfg.StageWait = 3 * time.Second
	}
	if selectors == nil {
		selectors = DefaultSelectors()
	}
	return &formRunner{cfg: cfg, selectors: selectors, open: open, logger: logger}
}

// run opens the page, submits id and hands the settled page to inspect. The
// browser is released on every return path.
func (r *formRunner) run(ctx context.Context, strategy models.StrategyName, id models.TrackingID,
	inspect func(b *browser.Browser, page playwright.Page) (*models.Observation, error)) (*models.Observation, error) {
	b, err := r.open()
	if err != nil {
		return nil, failure(strategy, "browser", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			r.logger.Warn("failed to close browser", "strategy", strategy, "error", err)
		}
	}()

	page, err := b.NewPage()
	if err != nil {
		return nil, failure(strategy, "browser", err)
	}

	if err := b.Navigate(ctx, page, r.cfg.SiteURL, 2); err != nil {
		return nil, failure(strategy, "navigate", err)
	}

	input, selector, err := r.findInput(ctx, page)
	if err != nil {
		r.capture(b, page, string(strategy)+"_no_input")
		return nil, failure(strategy, "input", err)
	}
	r.logger.Debug("found tracking input", "strategy", strategy, "selector", selector)

	if err := input.Fill(id.String()); err != nil {
		return nil, failure(strategy, "input", fmt.Errorf("fill: %w", err))
	}

	if err := r.submit(page, input); err != nil {
		return nil, failure(strategy, "submit", err)
	}

	if err := b.WaitForIdle(page, r.cfg.SettleTimeout); err != nil {
		r.logger.Warn("network did not settle after submit", "strategy", strategy, "error", err)
	}

	return inspect(b, page)
}

func (r *formRunner) findInput(ctx context.Context, page playwright.Page) (playwright.Locator, string, error) {
	deadline := time.Now().Add(r.cfg.InputWait)
	for {
		for _, selector := range r.selectors.InputCandidates {
			loc := page.Locator(selector).First()
			count, err := loc.Count()
			if err != nil || count == 0 {
				continue
			}
			if visible, err := loc.IsVisible(); err == nil && visible {
				return loc, selector, nil
			}
		}

		if time.Now().After(deadline) {
			return nil, "", fmt.Errorf("%w after %s", errNoInput, r.cfg.InputWait)
		}

		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (r *formRunner) submit(page playwright.Page, input playwright.Locator) error {
	for _, selector := range r.selectors.SubmitCandidates {
		button := page.Locator(selector).First()
		count, err := button.Count()
		if err != nil || count == 0 {
			continue
		}

		if err := button.Click(); err != nil {
			r.logger.Warn("failed to click submit control", "selector", selector, "error", err)
			continue
		}
		r.logger.Debug("clicked submit control", "selector", selector)
		return nil
	}

	r.logger.Info("no submit control found, pressing Enter on input")
	if err := input.Press("Enter"); err != nil {
		return fmt.Errorf("press enter: %w", err)
	}
	return nil
}

// capture writes a screenshot for offline diagnosis. Failures are only logged.
func (r *formRunner) capture(b *browser.Browser, page playwright.Page, name string) {
	if r.cfg.DebugDir == "" {
		return
	}
	if _, err := b.Screenshot(page, r.cfg.DebugDir, name); err != nil {
		r.logger.Warn("failed to capture screenshot", "name", name, "error", err)
	}
}

func (r *formRunner) snapshot(strategy models.StrategyName, b *browser.Browser, page playwright.Page) (parser.Snapshot, error) {
	snap, err := b.Snapshot(page)
	if err != nil {
		return parser.Snapshot{}, failure(strategy, "snapshot", err)
	}
	return snap, nil
}

// FormStrategy submits the public form and reads the result area.
type FormStrategy struct {
	runner *formRunner
	parser parser.Parser
}

func NewFormStrategy(cfg FormConfig, selectors *Selectors, open BrowserFactory, logger *slog.Logger) *FormStrategy {
	runner := newFormRunner(cfg, selectors, open, logger.With("component", "form_strategy"))
	return &FormStrategy{
		runner: runner,
		parser: parser.NewStatusParser(runner.selectors.ParserOptions()),
	}
}

func (s *FormStrategy) Name() models.StrategyName {
	return models.StrategyForm
}

func (s *FormStrategy) Attempt(ctx context.Context, id models.TrackingID) (*models.Observation, error) {
	return s.runner.run(ctx, s.Name(), id, func(b *browser.Browser, page playwright.Page) (*models.Observation, error) {
		snap, err := s.runner.snapshot(s.Name(), b, page)
		if err != nil {
			return nil, err
		}
		return observe(s.Name(), s.parser.ResultText, snap)
	})
}

func observe(strategy models.StrategyName, resolve func(parser.Snapshot) (string, error), snap parser.Snapshot) (*models.Observation, error) {
	status, err := resolve(snap)
	if err != nil {
		return nil, failure(strategy, "extract", err)
	}
	return models.NewObservation(status, strategy, snap.HTML), nil
}
