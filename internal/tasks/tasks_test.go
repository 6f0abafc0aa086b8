package tasks

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	info *asynq.TaskInfo
	err  error
}

func (f fakeInspector) GetTaskInfo(queue, id string) (*asynq.TaskInfo, error) {
	if queue != QUEUE_NAME {
		return nil, errors.New("unexpected queue " + queue)
	}
	return f.info, f.err
}

func TestNewUpkeepSweepTask(t *testing.T) {
	task, err := NewUpkeepSweepTask("0x00000000000000000000000000000000000000a2")
	require.NoError(t, err)
	assert.Equal(t, TypeUpkeepSweep, task.Type())

	var p UpkeepSweepPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, "0x00000000000000000000000000000000000000a2", p.Caller)
}

func TestGetTaskResult(t *testing.T) {
	result, err := GetTaskResult(fakeInspector{info: &asynq.TaskInfo{State: asynq.TaskStateCompleted, Result: []byte(`{"ok":true}`)}}, "t1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))

	_, err = GetTaskResult(fakeInspector{info: &asynq.TaskInfo{State: asynq.TaskStateActive}}, "t1")
	assert.ErrorIs(t, err, ErrTaskInProgress)

	_, err = GetTaskResult(fakeInspector{info: &asynq.TaskInfo{State: asynq.TaskStateArchived, LastErr: "caller is not authorized"}}, "t1")
	assert.EqualError(t, err, "task failed: caller is not authorized")

	_, err = GetTaskResult(fakeInspector{err: asynq.ErrTaskNotFound}, "t1")
	assert.ErrorIs(t, err, asynq.ErrTaskNotFound)
}
