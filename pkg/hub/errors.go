package hub

import "errors"

var (
	// ErrUnknownCommand is returned (as an error-kind event to the
	// originating subscriber) when a client message's type field
	// doesn't match any known command, per spec.md §9's closed sum
	// type over message type.
	ErrUnknownCommand = errors.New("hub: unknown command type")

	// ErrSessionStopped rejects commands against a terminal session.
	ErrSessionStopped = errors.New("hub: session is stopped")

	// ErrInvalidMessage flags a structurally malformed client message
	// (missing a required field for its type).
	ErrInvalidMessage = errors.New("hub: invalid message")
)
