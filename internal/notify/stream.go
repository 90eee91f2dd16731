package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/tramite-watcher/internal/models"
)

const EventStatusChanged = "TRAMITE_STATUS_CHANGED"

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// StreamNotifier publishes change messages to a Redis stream.
type StreamNotifier struct {
	redis      RedisClient
	stream     string
	trackingID models.TrackingID
	now        func() time.Time
	logger     *slog.Logger
}

func NewStreamNotifier(client RedisClient, stream string, trackingID models.TrackingID, logger *slog.Logger) *StreamNotifier {
	return &StreamNotifier{
		redis:      client,
		stream:     stream,
		trackingID: trackingID,
		now:        time.Now,
		logger:     logger.With("component", "stream_notifier"),
	}
}

func (n *StreamNotifier) Notify(ctx context.Context, subject, body string) error {
	eventID := uuid.New()
	createdAt := n.now().UTC()

	data, err := json.Marshal(map[string]interface{}{
		"id":           eventID.String(),
		"type":         EventStatusChanged,
		"aggregate_id": n.trackingID.String(),
		"timestamp":    createdAt.Format(time.RFC3339),
		"payload": map[string]string{
			"subject": subject,
			"body":    body,
		},
		"metadata": map[string]string{
			"source": "tramite-watcher",
		},
	})
	if err != nil {
		return fmt.Errorf("%w: marshal stream event: %w", models.ErrNotification, err)
	}

	args := &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]interface{}{
			"data":         string(data),
			"type":         EventStatusChanged,
			"timestamp":    fmt.Sprintf("%d", createdAt.UnixNano()),
			"original_id":  eventID.String(),
			"aggregate_id": n.trackingID.String(),
			"subject":      subject,
		},
	}

	streamID, err := n.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("%w: publish to redis: %w", models.ErrNotification, err)
	}

	n.logger.Info("status change published",
		"stream", n.stream,
		"stream_id", streamID,
		"event_id", eventID)
	return nil
}
