package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"bookreview-backend/internal/infrastructure/storage"
	"bookreview-backend/pkg/logger"
)

// ================================================
// SWEEP ORPHAN BOOK IMAGES JOB HANDLER
// ================================================

// ImageURLLister is the slice of the book repository the sweep needs.
type ImageURLLister interface {
	ListImageURLs(ctx context.Context) ([]string, error)
}

// SweepOrphansHandler removes blobs no book references anymore.
// Blobs younger than gracePeriod are kept: a create may have stored the image
// and not yet inserted the book.
type SweepOrphansHandler struct {
	books       ImageURLLister
	blobs       storage.BlobStore
	gracePeriod time.Duration
	now         func() time.Time
}

func NewSweepOrphansHandler(books ImageURLLister, blobs storage.BlobStore, gracePeriod time.Duration) *SweepOrphansHandler {
	return &SweepOrphansHandler{
		books:       books,
		blobs:       blobs,
		gracePeriod: gracePeriod,
		now:         time.Now,
	}
}

func (h *SweepOrphansHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	logger.Info("Starting SweepOrphanBookImages job", nil)

	var (
		urls  []string
		blobs []storage.BlobInfo
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		urls, err = h.books.ListImageURLs(gctx)
		if err != nil {
			return fmt.Errorf("list referenced images: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		blobs, err = h.blobs.List(gctx)
		if err != nil {
			return fmt.Errorf("list stored images: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	referenced := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if key, ok := storage.KeyFromURL(u); ok {
			referenced[key] = struct{}{}
		}
	}

	cutoff := h.now().Add(-h.gracePeriod)
	var (
		deleted int
		errs    []error
	)
	for _, blob := range blobs {
		if _, ok := referenced[blob.Key]; ok {
			continue
		}
		if blob.LastModified.After(cutoff) {
			continue
		}
		if err := h.blobs.Delete(ctx, blob.Key); err != nil {
			logger.Warn("Failed to delete orphan image", map[string]interface{}{
				"key":   blob.Key,
				"error": err.Error(),
			})
			errs = append(errs, fmt.Errorf("delete %s: %w", blob.Key, err))
			continue
		}
		deleted++
	}

	log.Info().
		Int("stored", len(blobs)).
		Int("referenced", len(referenced)).
		Int("deleted", deleted).
		Int("failed", len(errs)).
		Msg("Completed SweepOrphanBookImages job")

	return errors.Join(errs...)
}
