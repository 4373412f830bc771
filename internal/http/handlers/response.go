// Package handlers implements the public HTTP API: conversations and chat,
// document ingestion, retrieval search, memories, and the guest and event
// planning data.
//
// This file holds the response helpers every endpoint goes through. Errors
// always come back as an ErrorResponse with a stable machine-readable code,
// so clients can branch on `code` and show `message` to the user. 5xx
// envelopes are also logged with the request-scoped logger before being
// written.
//
// A failed lookup looks like:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "conversation not found"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pmfonseca/wedding-assistant/internal/http/middleware"
)

// ErrorResponse is the error envelope shared by every endpoint. RequestID is
// echoed from the X-Request-ID response header so a client report can be
// matched to server logs. Code values are the constants in errors.go.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"conversation not found"`
}

// fail writes the error envelope with the given status and aborts the chain.
// Server-side failures (>=500) are additionally logged through the
// request-scoped logger so the access log line is not the only trace.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail exposes fail to other packages. The router uses it for its NoRoute and
// NoMethod fallbacks so those answers match handler errors byte for byte.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON with the given status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent answers 204 for operations with nothing to return, deletes mostly.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
