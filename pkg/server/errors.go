package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/m-mizutani/qtda/pkg/utils/logging"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// apiError carries the status and user-facing message of a failed request
// together with the underlying cause, which is only logged.
type apiError struct {
	code    int
	message string
	details string
	err     error
}

func (e *apiError) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *apiError) Unwrap() error {
	return e.err
}

func newAPIError(code int, message string, cause error) *apiError {
	return &apiError{code: code, message: message, err: cause}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	resp := ErrorResponse{Error: http.StatusText(code)}

	var ae *apiError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &ae):
		code = ae.code
		resp = ErrorResponse{Error: ae.message, Details: ae.details}
	case errors.As(err, &he):
		code = he.Code
		resp.Error = http.StatusText(code)
		if he.Message != nil {
			resp.Error = fmt.Sprint(he.Message)
		}
	}

	req := c.Request()
	logger := logging.From(req.Context())
	attrs := []any{
		logging.ErrAttr(err),
		"status", code,
		"method", req.Method,
		"path", req.URL.Path,
	}
	if code >= http.StatusInternalServerError {
		logger.Error("request failed", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	if req.Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, resp)
}
