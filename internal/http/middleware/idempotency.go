// Package middleware contains the shared Gin middleware for the HTTP layer.
//
// This file gives POST /conversations/:id/messages idempotency. A retried
// chat turn must not run the agent loop twice, so clients send an
// Idempotency-Key header, the middleware validates it and stashes it in the
// context, and an injected lookup answers whether the same turn already
// completed. Handlers read the outcome through GetIdempotencyKey and
// IsReplay; persistence stays behind the IdempotencyLookup function type so
// this package never touches the database.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client-chosen key
// for an unsafe operation. The value must stay stable across retries of the
// same semantic request, one key per chat turn.
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys for idempotency state. Unexported, read through the
// accessors below.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // bool: true when a stored replay exists
	ctxKeyRateBypass = "rate.bypass" // bool: true to skip rate limiting
)

// GetIdempotencyKey returns the validated key stashed by
// IdempotencyValidator. Handlers read it from here rather than the raw
// header so they only ever see keys that passed validation.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the lookup found a completed result for this
// user, conversation and key. Handlers then serve the stored message instead
// of running the turn again.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures header validation for IdempotencyValidator.
// TTL windows are not checked here, that belongs to the lookup.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. When nil an RFC 7230 style
	// token pattern applies: ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
}

// IdempotencyLookup answers whether a successful, unexpired result exists
// for (userID, conversationID, key) at the given time. The router wires this
// to the idempotency table. Errors mean the lookup itself failed and must not
// block the request.
type IdempotencyLookup func(ctx context.Context, userID, conversationID, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator validates the Idempotency-Key header when present,
// stashes it, and consults the lookup for a prior completed turn. A detected
// replay sets both the replay flag and a rate-limit bypass flag, since the
// retry will be served from storage and costs nothing.
//
// Requests without the header pass through untouched. A malformed key gets a
// 400 with a compact error body. The middleware never serves the cached
// payload itself, the message handler does that.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_idempotency_key",
				"message": "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			uid := userIDFromCtx(c)
			conversationID := c.Param("id") // POST /conversations/:id/messages binds :id
			now := time.Now().UTC()

			if exists, _ := lookup(c.Request.Context(), uid, conversationID, key, now); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true) // replays are free, skip the limiter
			}
		}

		c.Next()
	}
}

// userIDFromCtx reads the identity set by upstream auth middleware, falling
// back to the development identity when none is present.
func userIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "demo-user"
}
