package scheduler

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/fluidpay/internal/tasks"
)

// Service enqueues the periodic upkeep sweep.
type Service struct {
	scheduler *asynq.Scheduler
	logger    *logrus.Entry
}

func NewService(redisOpts asynq.RedisConnOpt, logger *logrus.Logger) *Service {
	return &Service{
		scheduler: asynq.NewScheduler(redisOpts, &asynq.SchedulerOpts{Logger: logger}),
		logger:    logger.WithField("service", "scheduler"),
	}
}

// RegisterUpkeepSweep enqueues a sweep as caller on every tick of cronspec.
func (s *Service) RegisterUpkeepSweep(cronspec, caller string) error {
	task, err := tasks.NewUpkeepSweepTask(caller)
	if err != nil {
		return err
	}
	entryID, err := s.scheduler.Register(cronspec, task, asynq.Queue(tasks.QUEUE_NAME), asynq.MaxRetry(0))
	if err != nil {
		return fmt.Errorf("fail to register upkeep sweep: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"entry_id": entryID,
		"schedule": cronspec,
		"caller":   caller,
	}).Info("upkeep sweep scheduled")
	return nil
}

func (s *Service) Start() error {
	return s.scheduler.Start()
}

func (s *Service) Shutdown() {
	s.scheduler.Shutdown()
}
