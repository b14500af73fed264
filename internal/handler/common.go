package handler // handler defines http handlers

import (
    "errors"
    "strconv"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"
)

// getUserID extracts the user_id from echo.Context and converts it
// to uint64.  The JWT middleware stores the claim as whatever type
// the token carried, so several representations are accepted.
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// pathID parses a numeric :id path parameter, rejecting zero.
func pathID(c echo.Context, name string) (uint64, error) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, errors.New("invalid id")
    }
    return id, nil
}

// RequestValidator adapts go-playground/validator to echo's
// Validator interface so handlers can call c.Validate on bound
// request bodies.
type RequestValidator struct {
    validate *validator.Validate
}

// NewRequestValidator builds the validator used by all handlers.
func NewRequestValidator() *RequestValidator {
    return &RequestValidator{validate: validator.New()}
}

// Validate implements echo.Validator.
func (v *RequestValidator) Validate(i interface{}) error {
    return v.validate.Struct(i)
}
