package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"bookreview-backend/internal/infrastructure/storage"
	"bookreview-backend/internal/shared"
	"bookreview-backend/pkg/logger"
)

// ================================================
// DELETE BOOK IMAGE JOB HANDLER
// ================================================

// DeleteImageHandler retries blob removals that failed inside a request.
type DeleteImageHandler struct {
	blobs storage.BlobStore
}

func NewDeleteImageHandler(blobs storage.BlobStore) *DeleteImageHandler {
	return &DeleteImageHandler{blobs: blobs}
}

func (h *DeleteImageHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.DeleteImagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Error("Unmarshal delete image payload failed", err)
		return fmt.Errorf("%w: unmarshal payload: %v", asynq.SkipRetry, err)
	}

	if err := storage.ValidateKey(payload.Key); err != nil {
		return fmt.Errorf("%w: key %q: %v", asynq.SkipRetry, payload.Key, err)
	}

	exists, err := h.blobs.Exists(ctx, payload.Key)
	if err != nil {
		return fmt.Errorf("check image %s: %w", payload.Key, err)
	}
	if !exists {
		logger.Debug("Image already removed: " + payload.Key)
		return nil
	}

	logger.Debug("Retrying image removal for " + payload.Key)
	if err := h.blobs.Delete(ctx, payload.Key); err != nil {
		return fmt.Errorf("delete image %s: %w", payload.Key, err)
	}

	log.Info().
		Str("key", payload.Key).
		Msg("Deleted orphaned book image")
	return nil
}
