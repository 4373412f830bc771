// Package services defines the business logic for conversations, chat
// turns, and document ingestion. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

var (
	// ErrConversationNotFound indicates that the requested conversation does
	// not exist or is not accessible to the current user.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrEmptyPrompt is returned when a request to send a message contains
	// an empty prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when a request to send a message exceeds the
	// maximum configured length limit.
	ErrTooLong = errors.New("prompt too long")

	// ErrUnknownModel is returned when a chat turn names a model outside the
	// configured allow list.
	ErrUnknownModel = errors.New("unknown model")

	// ErrDocumentNotFound indicates that the requested document does not
	// exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrSummaryNotFound indicates that the requested conversation summary
	// does not exist or is not accessible to the current user.
	ErrSummaryNotFound = errors.New("summary not found")
)
