package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/labstack/echo/v4"

	"github.com/vultisig/fluidpay/common"
	"github.com/vultisig/fluidpay/internal/sigutil"
)

const (
	HeaderCaller    = "X-Caller"
	HeaderSignature = "X-Signature"

	signatureMaxAge = 5 * time.Minute
	callerKey       = "caller"
)

func (s *Server) statsdMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		duration := time.Since(start).Milliseconds()

		// Send metrics to statsd
		_ = s.sdClient.Incr("http.requests", []string{"path:" + c.Path()}, 1)
		_ = s.sdClient.Timing("http.response_time", time.Duration(duration)*time.Millisecond, []string{"path:" + c.Path()}, 1)
		_ = s.sdClient.Incr("http.status."+fmt.Sprint(c.Response().Status), []string{"path:" + c.Path(), "method:" + c.Request().Method}, 1)

		return err
	}
}

// signatureMiddleware authenticates the caller named in X-Caller by recovering
// the signer of the raw body. The body must carry a fresh timestamp and is
// accepted once.
func (s *Server) signatureMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		caller, err := common.ParseAddress(req.Header.Get(HeaderCaller))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, NewErrorResponse("invalid caller header"))
		}
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return c.JSON(http.StatusBadRequest, NewErrorResponse("fail to read body"))
		}
		req.Body = io.NopCloser(bytes.NewReader(body))

		if err := sigutil.Verify(body, req.Header.Get(HeaderSignature), caller); err != nil {
			s.logger.WithError(err).WithField("caller", caller.Hex()).Debug("signature rejected")
			return c.JSON(http.StatusUnauthorized, NewErrorResponse("invalid signature"))
		}

		var envelope struct {
			Timestamp int64 `json:"timestamp"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid request body"))
		}
		signedAt := time.Unix(envelope.Timestamp, 0)
		now := s.now()
		if now.Sub(signedAt) > signatureMaxAge || signedAt.Sub(now) > signatureMaxAge {
			return c.JSON(http.StatusUnauthorized, NewErrorResponse("signature expired"))
		}

		// Keyed on the signed content so a re-encoded signature cannot replay it.
		key := "sig:" + crypto.Keccak256Hash(caller.Bytes(), body).Hex()
		claimed, err := s.claims.Claim(req.Context(), key, 2*signatureMaxAge)
		if err != nil {
			s.logger.WithError(err).Error("fail to claim signature")
			return c.JSON(http.StatusInternalServerError, NewErrorResponse("fail to verify request"))
		}
		if !claimed {
			return c.JSON(http.StatusUnauthorized, NewErrorResponse("signature already used"))
		}

		c.Set(callerKey, caller)
		return next(c)
	}
}

func callerFrom(c echo.Context) ecommon.Address {
	caller, _ := c.Get(callerKey).(ecommon.Address)
	return caller
}
