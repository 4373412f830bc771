// Error code constants shared by every endpoint in this package.
//
// Codes are lowercase snake_case and stable, clients branch on them rather
// than parsing messages. The generic ones mirror HTTP status semantics; the
// rest name failures a status code alone cannot convey, for example a chat
// turn where the agent loop errored after the request itself was accepted.
// Handlers pick the most specific code and hand it to fail() together with
// the status and a human-readable message.

package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Operation-specific:
	ErrCodeAnswerFailed     = "answer_failed"
	ErrCodeCreateFailed     = "create_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
