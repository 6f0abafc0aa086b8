package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/fluidpay/common"
	"github.com/vultisig/fluidpay/internal/tasks"
	"github.com/vultisig/fluidpay/plugin/fluidpay"
)

type WorkerService struct {
	settlements Settlement
	sdClient    statsd.ClientInterface
	logger      *logrus.Entry
}

// NewWorker creates a new worker service
func NewWorker(settlements Settlement, sdClient statsd.ClientInterface, logger *logrus.Logger) *WorkerService {
	if sdClient == nil {
		sdClient = &statsd.NoOpClient{}
	}
	return &WorkerService{
		settlements: settlements,
		sdClient:    sdClient,
		logger:      logger.WithField("service", "worker"),
	}
}

func (s *WorkerService) incCounter(name string, tags []string) {
	if err := s.sdClient.Count(name, 1, tags, 1); err != nil {
		s.logger.Errorf("fail to count metric, err: %v", err)
	}
}

func (s *WorkerService) measureTime(name string, start time.Time, tags []string) {
	if err := s.sdClient.Timing(name, time.Since(start), tags, 1); err != nil {
		s.logger.Errorf("fail to measure time metric, err: %v", err)
	}
}

// HandleUpkeepSweep runs a sweep and writes the SweepResult as the task result.
// Per-token failures are part of the result and do not fail the task.
func (s *WorkerService) HandleUpkeepSweep(ctx context.Context, t *asynq.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.measureTime("worker.upkeep.sweep.latency", time.Now(), nil)

	var payload tasks.UpkeepSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	caller, err := common.ParseAddress(payload.Caller)
	if err != nil {
		return fmt.Errorf("invalid caller: %v: %w", err, asynq.SkipRetry)
	}
	s.incCounter("worker.upkeep.sweep", nil)

	result, err := s.settlements.Sweep(ctx, caller)
	if result == nil {
		if errors.Is(err, fluidpay.ErrAuthorization) {
			return fmt.Errorf("sweep rejected: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("sweep failed: %w", err)
	}
	if err != nil {
		s.logger.WithError(err).WithField("failures", len(result.Failures)).Warn("sweep finished with failures")
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("json.Marshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if t.ResultWriter() != nil {
		if _, err := t.ResultWriter().Write(resultBytes); err != nil {
			s.logger.Errorf("fail to write task result: %v", err)
			return fmt.Errorf("fail to write task result: %w", err)
		}
	}
	return nil
}
