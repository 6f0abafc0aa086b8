package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"

	"github.com/vultisig/fluidpay/common"
	"github.com/vultisig/fluidpay/internal/tasks"
	"github.com/vultisig/fluidpay/internal/types"
)

const sweepResultRetention = 24 * time.Hour

func (s *Server) GetModule(c echo.Context) error {
	return c.JSON(http.StatusOK, s.settlements.Describe())
}

func (s *Server) GetTokenAccepted(c echo.Context) error {
	token, err := common.ParseAddress(c.Param("address"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	return c.JSON(http.StatusOK, types.TokenAcceptedResponse{
		Token:    token.Hex(),
		Accepted: s.settlements.IsAccepted(token),
	})
}

// CreateSettlement settles the caller's tokens. A failed settlement still
// returns the stored record alongside the error.
func (s *Server) CreateSettlement(c echo.Context) error {
	var req types.SettleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("fail to parse request"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}

	view, err := s.settlements.Settle(c.Request().Context(), callerFrom(c), req)
	if err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.WithError(err).WithField("request_id", req.RequestID).Error("settlement failed")
		}
		return c.JSON(status, errorResponse(err, view))
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) GetSettlement(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid settlement id"))
	}
	view, err := s.settlements.Get(c.Request().Context(), id)
	if err != nil {
		return c.JSON(errorStatus(err), errorResponse(err, nil))
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) ListSettlements(c echo.Context) error {
	take, err := queryInt(c, "take")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	skip, err := queryInt(c, "skip")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	views, err := s.settlements.History(c.Request().Context(), c.QueryParam("caller"), c.QueryParam("sort"), take, skip)
	if err != nil {
		return c.JSON(errorStatus(err), errorResponse(err, nil))
	}
	return c.JSON(http.StatusOK, types.SettlementListResponse{
		Settlements: views,
		Count:       len(views),
	})
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("invalid " + name)
	}
	return v, nil
}

// EnqueueSweep schedules an upkeep sweep as the signed caller. The worker
// authorizes the caller again when the task runs.
func (s *Server) EnqueueSweep(c echo.Context) error {
	var req types.SweepRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("fail to parse request"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	caller := callerFrom(c)
	module := s.settlements.Describe()
	if caller.Hex() != module.Upkeep && caller.Hex() != module.Owner {
		return c.JSON(http.StatusForbidden, NewErrorResponse("caller is not the upkeep or the owner"))
	}

	task, err := tasks.NewUpkeepSweepTask(caller.Hex())
	if err != nil {
		s.logger.WithError(err).Error("fail to create sweep task")
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("fail to create task"))
	}
	ti, err := s.client.EnqueueContext(c.Request().Context(), task,
		asynq.MaxRetry(0),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(sweepResultRetention),
		asynq.Queue(tasks.QUEUE_NAME))
	if err != nil {
		s.logger.WithError(err).Error("fail to enqueue sweep task")
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("fail to enqueue task"))
	}
	return c.JSON(http.StatusOK, types.SweepTaskResponse{TaskID: ti.ID})
}

// GetSweepResult returns the SweepResult written by a finished sweep task.
func (s *Server) GetSweepResult(c echo.Context) error {
	taskID := c.Param("taskId")
	if taskID == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("task id is required"))
	}
	result, err := tasks.GetTaskResult(s.inspector, taskID)
	if err != nil {
		switch {
		case errors.Is(err, tasks.ErrTaskInProgress):
			return c.JSON(http.StatusAccepted, NewErrorResponse(err.Error()))
		case errors.Is(err, asynq.ErrTaskNotFound), errors.Is(err, asynq.ErrQueueNotFound):
			return c.JSON(http.StatusNotFound, NewErrorResponse("task not found"))
		default:
			return c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
		}
	}
	return c.JSONBlob(http.StatusOK, result)
}
