package uploads

import (
	"context"
	"fmt"
	"log/slog"

	"campusevents/internal/metrics"
	"campusevents/internal/queue"
)

// MessageImageDelete is the queue message type carrying an image URL to remove.
const MessageImageDelete = "image.delete"

// QueuedCleaner defers image removal to the worker.
type QueuedCleaner struct {
	q queue.Queue
}

// NewQueuedCleaner publishes removals on q.
func NewQueuedCleaner(q queue.Queue) *QueuedCleaner {
	return &QueuedCleaner{q: q}
}

// RemoveImage enqueues the URL for deletion. The outcome of the removal
// itself is counted by Consume.
func (c *QueuedCleaner) RemoveImage(ctx context.Context, url string) error {
	if err := c.q.Publish(ctx, queue.Message{Type: MessageImageDelete, Body: []byte(url)}); err != nil {
		metrics.ImageCleanups.WithLabelValues("failed").Inc()
		return fmt.Errorf("enqueue image delete: %w", err)
	}
	metrics.ImageCleanups.WithLabelValues("queued").Inc()
	return nil
}

// Consume removes images named by image.delete messages until msgs closes.
// Other message types are skipped.
func Consume(ctx context.Context, msgs <-chan queue.Message, store *Store, log *slog.Logger) {
	for msg := range msgs {
		if msg.Type != MessageImageDelete {
			log.Warn("skipping unknown message", "type", msg.Type)
			continue
		}
		url := string(msg.Body)
		if err := store.Remove(ctx, url); err != nil {
			metrics.ImageCleanups.WithLabelValues("failed").Inc()
			log.Error("image delete failed", "image_url", url, "error", err)
			continue
		}
		metrics.ImageCleanups.WithLabelValues("ok").Inc()
		log.Info("AUDIT: image deleted", "image_url", url)
	}
}
