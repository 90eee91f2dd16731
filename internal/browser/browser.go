package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/tramite-watcher/internal/parser"
)

// Browser is one scoped playwright session: a driver process, a chromium
// instance and a single context. Callers must Close it on every path.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1280,
		ViewportHeight: 900,
		AcceptLanguage: "es-AR,es;q=0.9,en;q=0.8",
		TimezoneID:     "America/Argentina/Buenos_Aires",
		Locale:         "es-AR",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"DNT":    "1",
		},
	}
}

// withDefaults fills zero fields so partially populated options from config
// still launch a usable context.
func (o *Options) withDefaults() *Options {
	d := DefaultOptions()
	if o == nil {
		return d
	}
	out := *o
	if out.Timeout <= 0 {
		out.Timeout = d.Timeout
	}
	if out.UserAgent == "" {
		out.UserAgent = d.UserAgent
	}
	if out.ViewportWidth <= 0 || out.ViewportHeight <= 0 {
		out.ViewportWidth, out.ViewportHeight = d.ViewportWidth, d.ViewportHeight
	}
	if out.AcceptLanguage == "" {
		out.AcceptLanguage = d.AcceptLanguage
	}
	if out.TimezoneID == "" {
		out.TimezoneID = d.TimezoneID
	}
	if out.Locale == "" {
		out.Locale = d.Locale
	}
	if out.ExtraHeaders == nil {
		out.ExtraHeaders = d.ExtraHeaders
	}
	return &out
}

func New(opts *Options) (*Browser, error) {
	opts = opts.withDefaults()

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	headers := make(map[string]string, len(opts.ExtraHeaders)+1)
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}
	headers["Accept-Language"] = opts.AcceptLanguage

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: context,
		opts:    opts,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return page, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Navigate opens url and waits for network idle, retrying transient failures.
func (b *Browser) Navigate(ctx context.Context, page playwright.Page, url string, maxRetries int) error {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			b.logger.Info("retrying navigation", "attempt", i+1, "url", url)
			if err := backoff(ctx, time.Duration(i)*time.Second); err != nil {
				return fmt.Errorf("navigation aborted: %w", err)
			}
		}

		_, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateNetworkidle,
			Timeout:   playwright.Float(float64(b.opts.Timeout.Milliseconds())),
		})
		if err == nil {
			return nil
		}

		lastErr = err
		b.logger.Warn("navigation failed", "error", err, "attempt", i+1)
	}

	return fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}

// backoff pauses for d unless ctx ends first.
func backoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WaitForIdle waits for network activity triggered by a form submission to settle.
func (b *Browser) WaitForIdle(page playwright.Page, timeout time.Duration) error {
	return page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

// Snapshot captures the page markup and rendered body text.
func (b *Browser) Snapshot(page playwright.Page) (parser.Snapshot, error) {
	html, err := page.Content()
	if err != nil {
		return parser.Snapshot{}, fmt.Errorf("failed to get page content: %w", err)
	}

	text, err := page.Locator("body").InnerText()
	if err != nil {
		b.logger.Debug("body inner text unavailable", "error", err)
		text = ""
	}

	return parser.Snapshot{HTML: html, VisibleText: text}, nil
}

// Screenshot writes a full page PNG into dir and returns its path.
func (b *Browser) Screenshot(page playwright.Page, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot dir: %w", err)
	}

	path := filepath.Join(dir, ScreenshotName(name))
	if _, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	}); err != nil {
		return "", fmt.Errorf("failed to take screenshot: %w", err)
	}

	b.logger.Info("saved screenshot", "path", path)
	return path, nil
}

// ScreenshotName turns a free form label into a safe file name.
func ScreenshotName(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	var sb strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		sb.WriteString("page")
	}
	return sb.String() + ".png"
}
