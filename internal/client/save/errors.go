package save

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLeader indicates that this window is not allowed to write; the edit stays pending
	ErrNotLeader = errors.New("not leader: save suppressed")

	// ErrInvalidRequest indicates a save scheduled without document id or producer
	ErrInvalidRequest = errors.New("invalid save request")

	// ErrClosed indicates that the coordinator has been closed
	ErrClosed = errors.New("save coordinator is closed")
)

// WriteError is returned when a document write failed after all attempts.
// The previous on-disk content is untouched and the edit remains pending.
type WriteError struct {
	Err        error
	DocumentID string
	Attempts   int
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write document %s failed after %d attempt(s): %v", e.DocumentID, e.Attempts, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
