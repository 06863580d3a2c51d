// internal/store/store.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPath is returned for empty paths or paths with empty segments.
var ErrInvalidPath = errors.New("store: invalid path")

// ErrPermissionDenied marks authorization failures from a backend. Clients
// treat it as a deployment misconfiguration rather than a retryable fault.
var ErrPermissionDenied = errors.New("store: permission denied")

// Snapshot is a full copy of the subtree at Path, delivered to watchers on
// every change beneath it. Value is nil when the subtree is absent. The
// store collapses empty maps to absence, mirroring the production backend.
type Snapshot struct {
	Path  string
	Value any
}

// CancelFunc detaches a watcher. Safe to call more than once.
type CancelFunc func()

// Store is the shared keyed-document tree every client coordinates
// through. Delivery to watchers is at-least-once with no ordering
// guarantee across distinct paths, and concurrent writers to the same
// field are last-write-wins: correctness above this layer depends on the
// designated-writer convention, not on the store.
type Store interface {
	// Get returns a copy of the subtree at path, nil if absent.
	Get(ctx context.Context, path string) (any, error)

	// Set overwrites the subtree at path. A nil value deletes it.
	Set(ctx context.Context, path string, value any) error

	// Update merges the named fields into the document at path, leaving
	// siblings untouched. A field key may contain '/' to address a deeper
	// node, and a nil field value deletes that node.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Delete removes the subtree at path. Removing an absent path is a no-op.
	Delete(ctx context.Context, path string) error

	// Watch registers fn for snapshots of the subtree at path. fn is called
	// once immediately with the current value, then after every overlapping
	// change. Callbacks run sequentially per watcher.
	Watch(path string, fn func(Snapshot)) (CancelFunc, error)
}

// Decode unmarshals a snapshot value (generic JSON types) into dst.
func Decode(v any, dst any) error {
	if v == nil {
		return errors.New("store: decode of absent value")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("store: decode snapshot: %w", err)
	}
	return nil
}
