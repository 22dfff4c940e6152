package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"bookreview-backend/internal/domains/book/model"
	"bookreview-backend/internal/infrastructure/storage"
)

// storeImage validates the upload and writes it under a fresh key.
func (s *BookService) storeImage(ctx context.Context, upload *model.ImageUpload) (string, error) {
	prepared, err := s.images.Prepare(upload.Data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrInvalidImage, err)
	}

	key := uuid.NewString() + prepared.Extension
	url, err := s.blobs.Put(ctx, key, prepared.Data, prepared.ContentType)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrBlobStore, err)
	}

	log.Debug().
		Str("image_key", key).
		Int("bytes", len(prepared.Data)).
		Msg("Image stored")

	return url, nil
}

// removeImage deletes the blob behind imageURL. It never fails the caller:
// errors are logged and the key is handed to the cleanup queue.
func (s *BookService) removeImage(ctx context.Context, imageURL string) {
	key, ok := storage.KeyFromURL(imageURL)
	if !ok {
		log.Warn().Str("image_url", imageURL).Msg("Cannot derive image key, skipping removal")
		return
	}

	err := s.blobs.Delete(ctx, key)
	if err == nil {
		return
	}

	log.Warn().Err(err).Str("image_key", key).Msg("Image removal failed, deferring")

	if s.cleanup == nil {
		return
	}
	if qerr := s.cleanup.EnqueueImageDeletion(ctx, key); qerr != nil {
		log.Error().Err(qerr).Str("image_key", key).Msg("Failed to enqueue image removal")
	}
}
