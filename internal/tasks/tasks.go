package tasks

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	QUEUE_NAME = "fluidpay_queue"

	TypeUpkeepSweep = "upkeep:sweep"
)

var ErrTaskInProgress = errors.New("task is still in progress")

// UpkeepSweepPayload names the account the sweep is authorized as.
type UpkeepSweepPayload struct {
	Caller string `json:"caller"`
}

func NewUpkeepSweepTask(caller string) (*asynq.Task, error) {
	buf, err := json.Marshal(UpkeepSweepPayload{Caller: caller})
	if err != nil {
		return nil, fmt.Errorf("json.Marshal failed: %w", err)
	}
	return asynq.NewTask(TypeUpkeepSweep, buf), nil
}

// TaskInspector is the part of *asynq.Inspector used to read task results.
type TaskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

// GetTaskResult returns the result written by a completed task.
func GetTaskResult(inspector TaskInspector, taskID string) ([]byte, error) {
	info, err := inspector.GetTaskInfo(QUEUE_NAME, taskID)
	if err != nil {
		return nil, fmt.Errorf("fail to get task info: %w", err)
	}
	switch info.State {
	case asynq.TaskStateCompleted:
		return info.Result, nil
	case asynq.TaskStateArchived:
		return nil, fmt.Errorf("task failed: %s", info.LastErr)
	default:
		return nil, ErrTaskInProgress
	}
}
