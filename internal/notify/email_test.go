package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/smtp"
	"testing"
	"time"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/tramite-watcher/internal/models"
)

func testSMTPConfig() SMTPConfig {
	return SMTPConfig{
		Host:      "smtp.gmail.com",
		Username:  "watcher@gmail.com",
		Password:  "app-password",
		Recipient: "me@example.com",
	}
}

func TestEmailNotifier_Notify(t *testing.T) {
	n := NewEmailNotifier(testSMTPConfig(), slog.Default())

	var (
		gotMail *email.Email
		gotAddr string
		gotTLS  *tls.Config
	)
	n.send = func(mail *email.Email, addr string, auth smtp.Auth, tlsConfig *tls.Config) error {
		gotMail, gotAddr, gotTLS = mail, addr, tlsConfig
		return nil
	}

	err := n.Notify(context.Background(), "[RENAPER] Cambio de estado en trámite 1", "cuerpo")
	require.NoError(t, err)

	assert.Equal(t, "smtp.gmail.com:465", gotAddr)
	require.NotNil(t, gotTLS, "port 465 uses implicit TLS")
	assert.Equal(t, "smtp.gmail.com", gotTLS.ServerName)
	assert.Equal(t, "watcher@gmail.com", gotMail.From)
	assert.Equal(t, []string{"me@example.com"}, gotMail.To)
	assert.Equal(t, "[RENAPER] Cambio de estado en trámite 1", gotMail.Subject)
	assert.Equal(t, "cuerpo", string(gotMail.Text))
}

func TestEmailNotifier_STARTTLSPort(t *testing.T) {
	cfg := testSMTPConfig()
	cfg.Port = 587
	n := NewEmailNotifier(cfg, slog.Default())

	var gotTLS *tls.Config
	n.send = func(_ *email.Email, _ string, _ smtp.Auth, tlsConfig *tls.Config) error {
		gotTLS = tlsConfig
		return nil
	}

	require.NoError(t, n.Notify(context.Background(), "s", "b"))
	assert.Nil(t, gotTLS)
}

func TestEmailNotifier_Failures(t *testing.T) {
	t.Run("smtp error", func(t *testing.T) {
		n := NewEmailNotifier(testSMTPConfig(), slog.Default())
		n.send = func(*email.Email, string, smtp.Auth, *tls.Config) error {
			return errors.New("535 5.7.8 Username and Password not accepted")
		}

		err := n.Notify(context.Background(), "s", "b")
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrNotification))
	})

	t.Run("timeout", func(t *testing.T) {
		cfg := testSMTPConfig()
		cfg.Timeout = 20 * time.Millisecond
		n := NewEmailNotifier(cfg, slog.Default())

		release := make(chan struct{})
		defer close(release)
		n.send = func(*email.Email, string, smtp.Auth, *tls.Config) error {
			<-release
			return nil
		}

		err := n.Notify(context.Background(), "s", "b")
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrNotification))
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}
