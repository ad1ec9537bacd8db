package ports

import (
	"context"
	"errors"

	"github.com/aretw0/pipemirror/pkg/domain"
)

// ErrSnapshotNotFound is returned when no snapshot has been saved yet.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore persists a copy of the mirror so a restarted client can show
// the last known state before its first refresh completes.
type SnapshotStore interface {
	// Save persists the snapshot, replacing any previous one.
	Save(ctx context.Context, snap domain.Snapshot) error

	// Load retrieves the last saved snapshot.
	// Returns ErrSnapshotNotFound if nothing was saved.
	Load(ctx context.Context) (*domain.Snapshot, error)

	// Delete removes the saved snapshot.
	Delete(ctx context.Context) error
}
