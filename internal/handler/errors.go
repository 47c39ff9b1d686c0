package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/eventsphere/internal/ticket"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	StatusCode int       `json:"statusCode"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Path       string    `json:"path"`
	Method     string    `json:"method"`
	Timestamp  time.Time `json:"timestamp"`
}

// ErrorHandler renders errors returned by handlers and middleware.
// Purchase domain errors keep their status and code, echo HTTP errors are
// mapped by status, and anything else becomes a logged 500.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		resp := ErrorResponse{
			Path:      c.Request().URL.Path,
			Method:    c.Request().Method,
			Timestamp: time.Now().UTC(),
		}

		var de *ticket.Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &de):
			resp.StatusCode, resp.Code, resp.Message = de.Status, de.Code, de.Message
		case errors.As(err, &he):
			resp.StatusCode = he.Code
			resp.Code = codeForStatus(he.Code)
			if msg, ok := he.Message.(string); ok {
				resp.Message = msg
			} else {
				resp.Message = http.StatusText(he.Code)
			}
		default:
			log.Error("request failed",
				zap.String("method", resp.Method),
				zap.String("path", resp.Path),
				zap.Error(err))
			resp.StatusCode = http.StatusInternalServerError
			resp.Code = "INTERNAL_ERROR"
			resp.Message = "Internal server error"
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(resp.StatusCode)
		} else {
			werr = c.JSON(resp.StatusCode, resp)
		}
		if werr != nil {
			log.Warn("failed to write error response", zap.Error(werr))
		}
	}
}

// codeForStatus turns "Too Many Requests" into "TOO_MANY_REQUESTS".
func codeForStatus(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "ERROR"
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}
