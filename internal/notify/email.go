package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"

	"github.com/maltedev/tramite-watcher/internal/models"
)

const implicitTLSPort = 465

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	Recipient string
	Timeout   time.Duration
}

// sendFunc delivers a prepared email (for testing)
type sendFunc func(mail *email.Email, addr string, auth smtp.Auth, tlsConfig *tls.Config) error

// EmailNotifier sends plain-text mail through an authenticated SMTP server.
type EmailNotifier struct {
	config SMTPConfig
	send   sendFunc
	logger *slog.Logger
}

func NewEmailNotifier(config SMTPConfig, logger *slog.Logger) *EmailNotifier {
	if config.Port == 0 {
		config.Port = implicitTLSPort
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &EmailNotifier{
		config: config,
		send:   deliver,
		logger: logger.With("component", "email_notifier"),
	}
}

func deliver(mail *email.Email, addr string, auth smtp.Auth, tlsConfig *tls.Config) error {
	if tlsConfig != nil {
		return mail.SendWithTLS(addr, auth, tlsConfig)
	}
	return mail.Send(addr, auth)
}

func (n *EmailNotifier) Notify(ctx context.Context, subject, body string) error {
	mail := email.NewEmail()
	mail.From = n.config.Username
	mail.To = []string{n.config.Recipient}
	mail.Subject = subject
	mail.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", n.config.Host, n.config.Port)
	auth := smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)

	// port 465 speaks TLS from the first byte, other ports upgrade with STARTTLS
	var tlsConfig *tls.Config
	if n.config.Port == implicitTLSPort {
		tlsConfig = &tls.Config{ServerName: n.config.Host, MinVersion: tls.VersionTLS12}
	}

	ctx, cancel := context.WithTimeout(ctx, n.config.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- n.send(mail, addr, auth, tlsConfig)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: send email via %s: %w", models.ErrNotification, addr, err)
		}
	case <-ctx.Done():
		// the send may still land; state stays unsaved so the next run mails again
		return fmt.Errorf("%w: send email via %s: %w", models.ErrNotification, addr, ctx.Err())
	}

	n.logger.Info("notification email sent", "recipient", n.config.Recipient, "subject", subject)
	return nil
}
