package store

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"kanban/internal/model"
)

// Keyed is an entity identified by id.
type Keyed interface {
	Key() uuid.UUID
}

// RowBackend persists entities that have no position.
type RowBackend[T Keyed] interface {
	Query(ctx context.Context, parentID uuid.UUID) ([]T, error)
	Insert(ctx context.Context, row T) (T, error)
	Update(ctx context.Context, id uuid.UUID, patch model.Patch) (T, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// rowStore caches unpositioned children per parent, kept sorted by less.
// Besides its own writes it accepts point merges from the change feed.
type rowStore[T Keyed] struct {
	status

	noun     string
	plural   string
	editable model.Columns
	parentOf func(T) uuid.UUID
	less     func(a, b T) int
	backend  RowBackend[T]

	mu       sync.RWMutex
	items    map[uuid.UUID][]T
	onChange []func(parentID uuid.UUID)
}

func (s *rowStore[T]) init() {
	s.items = make(map[uuid.UUID][]T)
}

func (s *rowStore[T]) OnChange(fn func(parentID uuid.UUID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *rowStore[T]) Snapshot(parentID uuid.UUID) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items[parentID])
}

func (s *rowStore[T]) DropParent(parentID uuid.UUID) {
	s.mu.Lock()
	delete(s.items, parentID)
	s.mu.Unlock()
}

func (s *rowStore[T]) Fetch(ctx context.Context, parentID uuid.UUID) error {
	s.begin()
	rows, err := s.backend.Query(ctx, parentID)
	if err == nil {
		err = model.ValidateAll(rows)
	}
	if err != nil {
		return s.settle(&FetchError{Op: "fetch " + s.plural, Parent: parentID, Err: err})
	}
	rows = slices.Clone(rows)
	slices.SortStableFunc(rows, s.less)

	s.mu.Lock()
	s.items[parentID] = rows
	s.mu.Unlock()
	s.changed(parentID)
	return s.settle(nil)
}

func (s *rowStore[T]) create(ctx context.Context, row T) (T, error) {
	s.begin()
	created, err := s.backend.Insert(ctx, row)
	if err == nil {
		err = model.Validate(created)
	}
	if err != nil {
		var zero T
		return zero, s.settle(&WriteError{Op: "create " + s.noun, Err: err})
	}
	s.MergeInsert(created)
	return created, s.settle(nil)
}

func (s *rowStore[T]) update(ctx context.Context, op string, id uuid.UUID, patch model.Patch) (T, error) {
	s.begin()
	var zero T
	if err := patch.Check(s.editable); err != nil {
		return zero, s.settle(&WriteError{Op: op, ID: id, Err: err})
	}
	updated, err := s.backend.Update(ctx, id, patch)
	if err == nil {
		err = model.Validate(updated)
	}
	if err != nil {
		return zero, s.settle(&WriteError{Op: op, ID: id, Err: err})
	}
	s.MergeUpdate(updated)
	return updated, s.settle(nil)
}

func (s *rowStore[T]) remove(ctx context.Context, op string, id uuid.UUID) error {
	s.begin()
	if err := s.backend.Delete(ctx, id); err != nil {
		return s.settle(&WriteError{Op: op, ID: id, Err: err})
	}
	s.MergeDelete(id)
	return s.settle(nil)
}

// MergeInsert adds row to its parent's cache. Inserting an id that is
// already cached replaces it.
func (s *rowStore[T]) MergeInsert(row T) {
	parent := s.parentOf(row)
	s.mu.Lock()
	seq := slices.Clone(s.items[parent])
	if i := indexByKey(seq, row.Key()); i >= 0 {
		seq[i] = row
	} else {
		seq = append(seq, row)
	}
	slices.SortStableFunc(seq, s.less)
	s.items[parent] = seq
	s.mu.Unlock()
	s.changed(parent)
}

// MergeUpdate replaces the cached row with the same id. Unknown ids are ignored.
func (s *rowStore[T]) MergeUpdate(row T) {
	parent := s.parentOf(row)
	s.mu.Lock()
	seq := s.items[parent]
	i := indexByKey(seq, row.Key())
	if i >= 0 {
		seq = slices.Clone(seq)
		seq[i] = row
		s.items[parent] = seq
	}
	s.mu.Unlock()
	if i >= 0 {
		s.changed(parent)
	}
}

// MergeDelete removes id from whichever parent caches it.
func (s *rowStore[T]) MergeDelete(id uuid.UUID) {
	s.mu.Lock()
	var parent uuid.UUID
	found := false
	for p, seq := range s.items {
		if i := indexByKey(seq, id); i >= 0 {
			s.items[p] = slices.Delete(slices.Clone(seq), i, i+1)
			parent, found = p, true
			break
		}
	}
	s.mu.Unlock()
	if found {
		s.changed(parent)
	}
}

func (s *rowStore[T]) changed(parentID uuid.UUID) {
	s.mu.RLock()
	fns := slices.Clone(s.onChange)
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(parentID)
	}
}

func indexByKey[T Keyed](seq []T, id uuid.UUID) int {
	return slices.IndexFunc(seq, func(e T) bool { return e.Key() == id })
}
