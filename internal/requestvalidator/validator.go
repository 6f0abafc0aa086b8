package requestvalidator

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// RequestValidator adapts validator.Validate to echo.Validator.
type RequestValidator struct {
	Validator *validator.Validate
}

func New() *RequestValidator {
	return &RequestValidator{Validator: validator.New()}
}

func (v *RequestValidator) Validate(i interface{}) error {
	if err := v.Validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
