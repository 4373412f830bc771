// Package middleware contains the shared Gin middleware for the HTTP layer.
//
// This file covers the three pieces every request passes through before it
// reaches a handler:
//
//   - RequestID() assigns or propagates an X-Request-ID correlation header and
//     stores it in the Gin context.
//   - Logger() emits one structured zerolog access line per request, picks the
//     level from the outcome (info, warn on 4xx, error on 5xx or Gin errors)
//     and parks a request-scoped logger in the context for handlers.
//   - Recovery() turns panics into a JSON 500 envelope that still carries the
//     correlation ID, after logging the stack.
//
// The chain must run RequestID first, then the logger (RedactingLogger in the
// default wiring), then Recovery, so that panics and errors land in the log
// with the request ID attached. The request-scoped logger lives under the
// "logger" context key; LoggerFrom fetches it without nil checks.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key holding the correlation ID.
	requestIDKey = "requestID"
	// requestIDHeader carries the correlation ID on the wire, both ways.
	requestIDHeader = "X-Request-ID"
	// maxQueryLogLength caps the raw query bytes that make it into a log line.
	// Chat and search requests can carry long prompts in query params.
	maxQueryLogLength = 2048
)

// RequestID reuses an incoming X-Request-ID (header lookup is
// case-insensitive) or mints a UUIDv4, then mirrors it on the response header
// and stores it under the "requestID" context key. Runs first in the chain.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes one structured access log line per request.
//
// Request fields (method, route path, remote IP, user agent, referer,
// truncated query, request size, request and user IDs) are bound up front so
// the same logger can be handed to downstream code via the "logger" context
// key. Response fields (status, latency, bytes out) are added after c.Next().
// Level selection: error when Gin collected errors or status is 5xx, warn on
// 4xx, info otherwise.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		uid, _ := c.Get("userID")
		path := c.FullPath()
		if path == "" {
			// Unmatched route, fall back to the literal URL path.
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", asString(rid)).
			Str("user_id", asString(uid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("referer", c.Request.Referer()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			// ContentLength is -1 when the client did not declare one.
			Int64("bytes_in", c.Request.ContentLength).
			Logger()

		c.Set("logger", &l)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		bytesOut := c.Writer.Size()

		ev := l.With().
			Int("status", status).
			Dur("latency", latency).
			Int("bytes_out", bytesOut).
			Logger()

		switch {
		// Errors collected on the context outrank the status code.
		case len(c.Errors) > 0:
			ev.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= 500:
			ev.Error().Msg("request")
		case status >= 400:
			ev.Warn().Msg("request")
		default:
			ev.Info().Msg("request")
		}
	}
}

// Recovery logs the panic value plus stack under the request ID, then answers
// with the standard JSON error envelope when nothing has been written yet. If
// the handler already started the response body, only the status is forced to
// 500. Runs after the logger so the panic line carries request context.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid, _ := c.Get(requestIDKey)
				log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("request_id", asString(rid)).
					Msg("panic recovered")

				if !c.Writer.Written() {
					c.Header("Content-Type", "application/json")
					c.Header(requestIDHeader, asString(rid))
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"request_id": asString(rid),
						"code":       "internal_error",
						"message":    "internal server error",
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger attached by Logger or
// RedactingLogger. When none is present it hands back the global logger, so
// callers never need a nil check.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// asString unwraps a context value as a string, empty when it is anything else.
func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate caps s at max bytes and appends an ellipsis. max <= 0 disables the
// cap. Byte-level truncation can split a rune, which is fine for log output.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
