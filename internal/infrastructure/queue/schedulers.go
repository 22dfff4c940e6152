package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"bookreview-backend/internal/config"
	"bookreview-backend/internal/shared"
	"bookreview-backend/pkg/logger"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
	jobConfig config.JobsConfig
}

func NewScheduler(redis config.RedisConfig, jobConfig config.JobsConfig) *Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: redis.Host, Password: redis.Password, DB: redis.DB},
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
		jobConfig: jobConfig,
	}
}

func (s *Scheduler) RegisterMaintenanceJobs() error {
	return s.registerSweepOrphanImagesJob()
}

// ================================================
// Sweep orphan images (JOB_ORPHAN_SWEEP_CRON, hourly by default)
// ================================================
func (s *Scheduler) registerSweepOrphanImagesJob() error {
	payload, err := json.Marshal(shared.SweepOrphanImagesPayload{})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeSweepOrphanBookImages, payload)

	_, err = s.scheduler.Register(
		s.jobConfig.OrphanSweepCron,
		task,
		asynq.Queue(shared.QueueMaintenance),
		asynq.MaxRetry(1),
		asynq.Timeout(10*time.Minute),
		asynq.Unique(30*time.Minute),
	)
	if err != nil {
		logger.Error("Failed to register SweepOrphanImages job", err)
		return err
	}

	logger.Info("Registered SweepOrphanImages job", map[string]interface{}{
		"schedule": s.jobConfig.OrphanSweepCron,
	})
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Start()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
