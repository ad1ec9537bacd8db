package domain

import "errors"

// ErrNotFound is returned when the server confirms an entity does not exist.
var ErrNotFound = errors.New("entity not found")

// ErrTransient is returned when a request failed and the entity state is unknown.
var ErrTransient = errors.New("transient network failure")

// ErrCommitRejected is returned when the write-through of an edit commit fails.
var ErrCommitRejected = errors.New("commit rejected")

// ErrDeclined is returned when the user refuses a delete confirmation.
// Callers treat it as a silent no-op.
var ErrDeclined = errors.New("confirmation declined")

// ErrNotOpen is returned when an edit operation runs on a closed buffer.
var ErrNotOpen = errors.New("edit buffer not open")

// ErrBusy is returned when a buffer is already committing.
var ErrBusy = errors.New("edit buffer is committing")

// ErrUnknownKind is returned for an unrecognised collection name.
var ErrUnknownKind = errors.New("unknown entity kind")
