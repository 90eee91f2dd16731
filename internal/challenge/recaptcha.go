package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/tramite-watcher/internal/browser"
	"github.com/maltedev/tramite-watcher/internal/models"
)

const executeScript = `([siteKey, action]) => new Promise((resolve, reject) => {
	grecaptcha.ready(() => {
		grecaptcha.execute(siteKey, {action: action}).then(resolve).catch(reject);
	});
})`

// Acquirer obtains reCAPTCHA v3 tokens. The score is bound to the browser
// state built while the page loads, so every call gets a fresh browser.
type Acquirer struct {
	browserOpts *browser.Options
	timeout     time.Duration
	logger      *slog.Logger
}

func NewAcquirer(opts *browser.Options, readyTimeout time.Duration, logger *slog.Logger) *Acquirer {
	if readyTimeout <= 0 {
		readyTimeout = 15 * time.Second
	}
	return &Acquirer{
		browserOpts: opts,
		timeout:     readyTimeout,
		logger:      logger.With("component", "challenge"),
	}
}

// Acquire returns a single-use token for action. It must be submitted within
// seconds or the server rejects it as expired.
func (a *Acquirer) Acquire(ctx context.Context, targetURL, siteKey, action string) (string, error) {
	if targetURL == "" || siteKey == "" || action == "" {
		return "", fmt.Errorf("%w: target url, site key and action are required", models.ErrChallenge)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrChallenge, err)
	}

	a.logger.Info("requesting challenge token", "url", targetURL, "action", action)

	b, err := browser.New(a.browserOpts)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrChallenge, err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			a.logger.Warn("failed to close challenge browser", "error", err)
		}
	}()

	page, err := b.NewPage()
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrChallenge, err)
	}

	if err := b.Navigate(ctx, page, targetURL, 1); err != nil {
		return "", fmt.Errorf("%w: load page: %w", models.ErrChallenge, err)
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrChallenge, err)
	}

	if _, err := page.WaitForFunction("typeof grecaptcha !== 'undefined'", nil, playwright.PageWaitForFunctionOptions{
		Timeout: playwright.Float(float64(a.timeout.Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("%w: challenge runtime not ready after %s: %w", models.ErrChallenge, a.timeout, err)
	}

	result, err := page.Evaluate(executeScript, []string{siteKey, action})
	if err != nil {
		return "", fmt.Errorf("%w: execute rejected: %w", models.ErrChallenge, err)
	}

	token, err := tokenFromResult(result)
	if err != nil {
		return "", err
	}

	a.logger.Info("challenge token obtained", "token_prefix", tokenPrefix(token))
	return token, nil
}

func tokenFromResult(result interface{}) (string, error) {
	token, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("%w: unexpected token type %T", models.ErrChallenge, result)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: empty token", models.ErrChallenge)
	}
	return token, nil
}

func tokenPrefix(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}
