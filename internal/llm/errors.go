// Package llm – error values and upstream error shaping
//
// This file defines the sentinel errors shared by the chat and embedding
// clients plus StatusError, which preserves the upstream HTTP status so
// handlers can distinguish rate limiting and auth failures from transport
// problems. Rate-limit messages that carry a "wait N seconds" hint are
// reformatted into a human-readable wait time.
package llm

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrEmptyInput is returned when a completion or embedding is requested
	// for empty text.
	ErrEmptyInput = errors.New("input text is empty")

	// ErrNoChoices is returned when the upstream responds 200 but the body
	// contains no choices to read.
	ErrNoChoices = errors.New("completion response contained no choices")
)

// StatusError is an upstream API failure with its HTTP status attached.
type StatusError struct {
	Code    int
	Model   string
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("llm: upstream returned %d: %s", e.Code, e.Message)
}

// IsRateLimit reports whether the failure was a 429.
func (e *StatusError) IsRateLimit() bool { return e.Code == http.StatusTooManyRequests }

// AsStatusError unwraps err into a *StatusError if one is in the chain.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

var waitSecondsRe = regexp.MustCompile(`wait (\d+) seconds`)

// shapeUpstreamMessage rewrites rate-limit messages into a friendlier form.
// Upstream quota errors embed "wait N seconds"; that second count is turned
// into hours and minutes so the text can be surfaced to the user as-is.
func shapeUpstreamMessage(model, msg string) string {
	if !strings.Contains(msg, "Rate limit") {
		return msg
	}
	m := waitSecondsRe.FindStringSubmatch(msg)
	if m == nil {
		return fmt.Sprintf("Rate limit exceeded for %s. %s", model, msg)
	}
	secs, _ := strconv.Atoi(m[1])
	return fmt.Sprintf("Rate limit exceeded for %s. Wait %s to use this model again.", model, formatWait(secs))
}

// formatWait renders a wait in whole hours and minutes, e.g. "1 hour and
// 5 minutes" or "12 minutes".
func formatWait(seconds int) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%d %s and %d %s", hours, plural(hours, "hour"), minutes, plural(minutes, "minute"))
	}
	return fmt.Sprintf("%d %s", minutes, plural(minutes, "minute"))
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
