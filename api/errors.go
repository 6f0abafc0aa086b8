package api

import (
	"errors"
	"net/http"

	"github.com/vultisig/fluidpay/internal/types"
	"github.com/vultisig/fluidpay/plugin/fluidpay"
	"github.com/vultisig/fluidpay/service"
	"github.com/vultisig/fluidpay/storage"
)

type ErrorResponse struct {
	Message    string                `json:"message"`
	Code       string                `json:"code,omitempty"`
	Settlement *types.SettlementView `json:"settlement,omitempty"`
}

func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Message: message}
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, fluidpay.ErrRollbackFailed):
		return http.StatusInternalServerError
	case errors.Is(err, fluidpay.ErrConfiguration),
		errors.Is(err, fluidpay.ErrInsufficientAmount),
		errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, fluidpay.ErrUnacceptedToken):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fluidpay.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, fluidpay.ErrSlippageExceeded),
		errors.Is(err, service.ErrRequestInProgress):
		return http.StatusConflict
	case errors.Is(err, fluidpay.ErrExternalCall):
		return http.StatusBadGateway
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(err error, view *types.SettlementView) ErrorResponse {
	resp := ErrorResponse{Message: err.Error(), Settlement: view}
	if code := fluidpay.ErrorCode(err); code != fluidpay.CodeUnknown {
		resp.Code = code
	}
	return resp
}
