// Package repository defines the snapshot sequence and window stores.
package repository

import (
	"context"

	"github.com/okian/tally/internal/domain/model"
)

// SequenceStore provides append-only access to the ordered snapshot
// sequence. The core never re-orders or mutates appended snapshots.
type SequenceStore interface {
	// Append adds a snapshot to the tail of the sequence, assigning its
	// arrival Seq. Returns ErrOutOfOrder when the timestamp precedes the
	// current tail; equal timestamps are admitted and ordered by Seq.
	Append(ctx context.Context, snap model.Snapshot) (model.Snapshot, error)

	// All returns the published, immutable sequence in order. Callers must
	// not mutate the returned slice or its snapshots.
	All(ctx context.Context) []model.Snapshot

	// Latest returns the most recent snapshot, if any.
	Latest(ctx context.Context) (model.Snapshot, bool)

	// Len returns the number of snapshots in the sequence.
	Len(ctx context.Context) int
}

// WindowStore manages the admin-declared active window list. Windows are
// assumed disjoint by policy; the store validates each window in isolation
// but does not enforce disjointness.
type WindowStore interface {
	// Put validates and upserts a window by name.
	Put(ctx context.Context, w model.ActiveWindow) error

	// Delete removes a window by name. Returns ErrWindowNotFound.
	Delete(ctx context.Context, name string) error

	// List returns all windows sorted by start time.
	List(ctx context.Context) []model.ActiveWindow
}
