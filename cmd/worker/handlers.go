package main

import (
	"github.com/hibiken/asynq"

	bookJob "bookreview-backend/internal/domains/book/job"
	"bookreview-backend/internal/shared"
	"bookreview-backend/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	deleteBookImage   *bookJob.DeleteImageHandler
	sweepOrphanImages *bookJob.SweepOrphansHandler
}

func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		deleteBookImage:   bookJob.NewDeleteImageHandler(c.Blobs),
		sweepOrphanImages: bookJob.NewSweepOrphansHandler(c.BookRepo, c.Blobs, c.Config.Jobs.OrphanGracePeriod),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	// Maintenance tasks
	mux.HandleFunc(shared.TypeDeleteBookImage, h.deleteBookImage.ProcessTask)
	mux.HandleFunc(shared.TypeSweepOrphanBookImages, h.sweepOrphanImages.ProcessTask)
}
