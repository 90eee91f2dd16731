package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"

	"github.com/maltedev/tramite-watcher/internal/models"
)

// TokenSource issues single-use challenge tokens.
type TokenSource interface {
	Acquire(ctx context.Context, targetURL, siteKey, action string) (string, error)
}

type EndpointConfig struct {
	SiteURL          string
	EndpointURL      string
	SiteKey          string
	Action           string
	UserAgent        string
	Timeout          time.Duration
	CloudflareBypass bool
}

// EndpointStrategy posts the tracking id plus a fresh challenge token to the
// search endpoint and reads the structured answer.
type EndpointStrategy struct {
	cfg    EndpointConfig
	tokens TokenSource
	client *resty.Client
	logger *slog.Logger
}

func NewEndpointStrategy(cfg EndpointConfig, tokens TokenSource, logger *slog.Logger) *EndpointStrategy {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	return &EndpointStrategy{
		cfg:    cfg,
		tokens: tokens,
		client: client,
		logger: logger.With("component", "endpoint_strategy"),
	}
}

func (s *EndpointStrategy) Name() models.StrategyName {
	return models.StrategyEndpoint
}

func (s *EndpointStrategy) Attempt(ctx context.Context, id models.TrackingID) (*models.Observation, error) {
	token, err := s.tokens.Acquire(ctx, s.cfg.SiteURL, s.cfg.SiteKey, s.cfg.Action)
	if err != nil {
		return nil, failure(s.Name(), "token", err)
	}

	s.logger.Info("querying status endpoint", "tramite", id, "url", s.cfg.EndpointURL)

	res, err := s.client.R().
		SetContext(ctx).
		SetHeader("Referer", s.cfg.SiteURL).
		SetHeader("Origin", origin(s.cfg.SiteURL)).
		SetFormData(map[string]string{
			"tramite": id.String(),
			"token":   token,
			"action":  s.cfg.Action,
		}).
		Post(s.cfg.EndpointURL)
	if err != nil {
		return nil, failure(s.Name(), "request", err)
	}
	if res.IsError() {
		return nil, failure(s.Name(), "request", fmt.Errorf("unexpected HTTP status %d", res.StatusCode()))
	}

	s.logger.Debug("endpoint response", "body", res.String())

	var body models.StatusResponse
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return nil, failure(s.Name(), "decode", fmt.Errorf("invalid JSON response: %w", err))
	}

	if body.Code != 0 {
		message := body.Message
		if message == "" {
			message = "unknown"
		}
		return nil, failure(s.Name(), "response", fmt.Errorf("api code %d: %s", body.Code, message))
	}
	if body.Data == nil {
		return nil, failure(s.Name(), "decode", fmt.Errorf("response has no data object"))
	}

	status := body.Data.StatusText()
	if status == "" {
		return nil, failure(s.Name(), "response", errEmptyStatus)
	}

	return models.NewObservation(status, s.Name(), res.String()), nil
}

func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}
