// Package handlers implements the read-only ops API over the bot's store.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tbourn/bindbot/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Fail aborts with an ErrorResponse. 5xx responses are logged with the
// request-scoped logger.
func Fail(c *gin.Context, status int, code, msg string) {
	if status >= 500 {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}
