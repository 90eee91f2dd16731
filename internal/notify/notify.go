package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/maltedev/tramite-watcher/internal/models"
)

// Notifier delivers a change message to the interested person.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Message is a status change ready to be delivered.
type Message struct {
	TrackingID models.TrackingID
	Previous   string
	Current    string
	SiteURL    string
}

func (m Message) Subject() string {
	return fmt.Sprintf("[RENAPER] Cambio de estado en trámite %s", m.TrackingID)
}

func (m Message) Body() string {
	var b strings.Builder
	b.WriteString("Se detectó un cambio de estado en tu trámite.\n\n")
	fmt.Fprintf(&b, "Trámite: %s\n\n", m.TrackingID)
	fmt.Fprintf(&b, "Estado anterior:\n%s\n\n", strings.TrimSpace(m.Previous))
	fmt.Fprintf(&b, "Estado actual:\n%s\n", strings.TrimSpace(m.Current))
	if m.SiteURL != "" {
		fmt.Fprintf(&b, "\nConsultá el detalle en %s\n", m.SiteURL)
	}
	return b.String()
}

// Multi fans a message out to every notifier. The notification fails if any
// of them fails.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, subject, body string) error {
	if len(m) == 0 {
		return fmt.Errorf("%w: no notification channel configured", models.ErrNotification)
	}

	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		if !errors.Is(err, models.ErrNotification) {
			return fmt.Errorf("%w: %w", models.ErrNotification, err)
		}
		return err
	}
	return nil
}
