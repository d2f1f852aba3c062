package store

import (
	"errors"

	"github.com/google/uuid"
)

// ErrNotCached is returned when an operation names an entity the store has
// not loaded.
var ErrNotCached = errors.New("entity not in cache")

// FetchError reports a failed query. The cache keeps its previous contents.
type FetchError struct {
	Op     string
	Parent uuid.UUID
	Err    error
}

func (e *FetchError) Error() string  { return "failed to " + e.Op + ": " + e.Err.Error() }
func (e *FetchError) Unwrap() error  { return e.Err }
func (e *FetchError) Action() string { return e.Op }

// WriteError reports a failed create, update or delete. The cache is unchanged.
type WriteError struct {
	Op  string
	ID  uuid.UUID
	Err error
}

func (e *WriteError) Error() string  { return "failed to " + e.Op + ": " + e.Err.Error() }
func (e *WriteError) Unwrap() error  { return e.Err }
func (e *WriteError) Action() string { return e.Op }

// ReorderError reports a failed reorder or move. Unless the store was built
// with RollbackOnFailure, the optimistic order stays in the cache until the
// next fetch.
type ReorderError struct {
	Op         string
	Parent     uuid.UUID
	RolledBack bool
	Err        error
}

func (e *ReorderError) Error() string  { return "failed to " + e.Op + ": " + e.Err.Error() }
func (e *ReorderError) Unwrap() error  { return e.Err }
func (e *ReorderError) Action() string { return e.Op }

// Action returns the user action named by a store error, or "" for other errors.
func Action(err error) string {
	var a interface{ Action() string }
	if errors.As(err, &a) {
		return a.Action()
	}
	return ""
}
