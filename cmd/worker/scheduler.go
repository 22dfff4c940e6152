package main

import (
	"github.com/rs/zerolog/log"

	"bookreview-backend/internal/infrastructure/queue"
	"bookreview-backend/pkg/container"
)

type asynqScheduler struct {
	*queue.Scheduler
}

func setupScheduler(c *container.Container) *asynqScheduler {
	scheduler := queue.NewScheduler(c.Config.Redis, c.Config.Jobs)

	if err := scheduler.RegisterMaintenanceJobs(); err != nil {
		log.Fatal().Err(err).Msg("[Scheduler] Failed to register")
	}

	log.Info().Msg("[Scheduler] Starting...")
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("[Scheduler] Failed")
	}

	return &asynqScheduler{Scheduler: scheduler}
}

func (s *asynqScheduler) Shutdown() {
	log.Info().Msg("[Scheduler] Shutting down...")
	s.Scheduler.Shutdown()
	log.Info().Msg("[Scheduler] ✓ Stopped")
}
