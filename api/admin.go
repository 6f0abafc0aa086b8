package api

import (
	"context"
	"net/http"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"

	"github.com/vultisig/fluidpay/common"
	"github.com/vultisig/fluidpay/internal/types"
)

type addressMutator func(ctx context.Context, caller, addr ecommon.Address) error

type bpsMutator func(ctx context.Context, caller ecommon.Address, bps uint64) error

func (s *Server) SetOwner(c echo.Context) error {
	return s.mutateAddress(c, s.settlements.SetOwner)
}

func (s *Server) SetUpkeep(c echo.Context) error {
	return s.mutateAddress(c, s.settlements.SetUpkeep)
}

func (s *Server) AddToken(c echo.Context) error {
	return s.mutateAddress(c, s.settlements.AddToken)
}

func (s *Server) RemoveToken(c echo.Context) error {
	return s.mutateAddress(c, s.settlements.RemoveToken)
}

func (s *Server) SetFee(c echo.Context) error {
	return s.mutateBps(c, s.settlements.SetFee)
}

func (s *Server) SetSlippage(c echo.Context) error {
	return s.mutateBps(c, s.settlements.SetSlippage)
}

func (s *Server) SetSweepThreshold(c echo.Context) error {
	var req types.ThresholdRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("fail to parse request"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	threshold, err := common.ParseAmount(req.Threshold)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	if err := s.settlements.SetSweepThreshold(c.Request().Context(), callerFrom(c), threshold); err != nil {
		return c.JSON(errorStatus(err), errorResponse(err, nil))
	}
	return c.JSON(http.StatusOK, s.settlements.Describe())
}

// ListConfigEvents returns the audit log of owner configuration changes.
func (s *Server) ListConfigEvents(c echo.Context) error {
	take, err := queryInt(c, "take")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	events, err := s.settlements.ConfigEvents(c.Request().Context(), take)
	if err != nil {
		s.logger.WithError(err).Error("fail to list config events")
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("fail to list config events"))
	}
	return c.JSON(http.StatusOK, events)
}

func (s *Server) mutateAddress(c echo.Context, mutate addressMutator) error {
	var req types.AddressRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("fail to parse request"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	addr, err := common.ParseAddress(req.Address)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	if err := mutate(c.Request().Context(), callerFrom(c), addr); err != nil {
		return c.JSON(errorStatus(err), errorResponse(err, nil))
	}
	return c.JSON(http.StatusOK, s.settlements.Describe())
}

func (s *Server) mutateBps(c echo.Context, mutate bpsMutator) error {
	var req types.BpsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("fail to parse request"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
	if err := mutate(c.Request().Context(), callerFrom(c), *req.Bps); err != nil {
		return c.JSON(errorStatus(err), errorResponse(err, nil))
	}
	return c.JSON(http.StatusOK, s.settlements.Describe())
}
