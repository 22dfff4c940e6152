package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"bookreview-backend/internal/shared"
)

// cleanupDelay leaves the blob store a moment to recover before the first retry.
const cleanupDelay = 30 * time.Second

// Client enqueues book maintenance tasks.
type Client struct {
	client   *asynq.Client
	maxRetry int
}

func NewClient(redisAddr, password string, db int, maxRetry int) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: password,
			DB:       db,
		}),
		maxRetry: maxRetry,
	}
}

// EnqueueImageDeletion schedules a retried removal of an image blob.
func (c *Client) EnqueueImageDeletion(ctx context.Context, key string) error {
	payload, err := json.Marshal(shared.DeleteImagePayload{Key: key})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	task := asynq.NewTask(shared.TypeDeleteBookImage, payload)
	info, err := c.client.EnqueueContext(
		ctx,
		task,
		asynq.Queue(shared.QueueMaintenance),
		asynq.MaxRetry(c.maxRetry),
		asynq.ProcessIn(cleanupDelay),
		asynq.Timeout(time.Minute),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", shared.TypeDeleteBookImage, err)
	}

	log.Info().
		Str("task_id", info.ID).
		Str("key", key).
		Msg("Image deletion enqueued")
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
