// Package store holds the per-session entity caches. Reorders and moves are
// applied to the cache first and persisted afterwards; everything else waits
// for the backend's canonical row.
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"kanban/internal/model"
	"kanban/internal/position"
)

// Backend is the persistence capability set a positional store needs.
type Backend[T any] interface {
	// Query returns the children of parentID ordered by position.
	Query(ctx context.Context, parentID uuid.UUID) ([]T, error)
	Insert(ctx context.Context, row T) (T, error)
	Update(ctx context.Context, id uuid.UUID, patch model.Patch) (T, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// BatchUpsert writes the given positions for children of parentID.
	BatchUpsert(ctx context.Context, parentID uuid.UUID, placements []position.Placement) error
	// Move reparents id under parentID at pos, shifting siblings on both sides.
	Move(ctx context.Context, id, parentID uuid.UUID, pos int) (T, error)
}

type Options struct {
	// RollbackOnFailure restores the pre-operation order when a reorder or
	// move fails to persist. Off by default: the optimistic order stays
	// until the next fetch.
	RollbackOnFailure bool
	// SingleFlight shares one backend query among concurrent fetches of the
	// same parent and serializes reorders and moves per parent. Off by
	// default: concurrent operations race and the last to settle wins.
	SingleFlight bool
}

// Store caches the children of many parents (lists of boards, cards of
// lists, checklist items of checklists), each kept in position order.
type Store[T position.Parented[T]] struct {
	status

	noun     string
	plural   string
	editable model.Columns
	backend  Backend[T]
	opts     Options

	mu       sync.RWMutex
	items    map[uuid.UUID][]T
	onChange []func(parentID uuid.UUID)
	onDelete []func(id uuid.UUID)

	flight singleflight.Group
	locks  parentLocks
}

func NewListStore(backend Backend[model.List], opts Options) *Store[model.List] {
	return newStore("list", "lists", model.ListColumns, backend, opts)
}

func NewCardStore(backend Backend[model.Card], opts Options) *Store[model.Card] {
	return newStore("card", "cards", model.CardColumns, backend, opts)
}

func NewChecklistStore(backend Backend[model.Checklist], opts Options) *Store[model.Checklist] {
	return newStore("checklist", "checklists", model.ChecklistColumns, backend, opts)
}

func NewChecklistItemStore(backend Backend[model.ChecklistItem], opts Options) *Store[model.ChecklistItem] {
	return newStore("checklist item", "checklist items", model.ChecklistItemColumns, backend, opts)
}

func newStore[T position.Parented[T]](noun, plural string, editable model.Columns, backend Backend[T], opts Options) *Store[T] {
	return &Store[T]{
		noun:     noun,
		plural:   plural,
		editable: editable,
		backend:  backend,
		opts:     opts,
		items:    make(map[uuid.UUID][]T),
	}
}

// OnChange registers fn to run after the cached children of a parent change.
func (s *Store[T]) OnChange(fn func(parentID uuid.UUID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// OnDelete registers fn to run after an entity was deleted through this store.
func (s *Store[T]) OnDelete(fn func(id uuid.UUID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDelete = append(s.onDelete, fn)
}

// Snapshot returns a copy of the cached children of parentID.
func (s *Store[T]) Snapshot(parentID uuid.UUID) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items[parentID])
}

// Cached reports whether parentID has been fetched.
func (s *Store[T]) Cached(parentID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[parentID]
	return ok
}

// Get returns the cached entity id.
func (s *Store[T]) Get(id uuid.UUID) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parent, i := s.locate(id)
	if i < 0 {
		var zero T
		return zero, false
	}
	return s.items[parent][i], true
}

// DropParent forgets the cached children of parentID.
func (s *Store[T]) DropParent(parentID uuid.UUID) {
	s.mu.Lock()
	_, ok := s.items[parentID]
	delete(s.items, parentID)
	s.mu.Unlock()
	if ok {
		s.changed(parentID)
	}
}

// Fetch replaces the cached children of parentID with the backend's.
func (s *Store[T]) Fetch(ctx context.Context, parentID uuid.UUID) error {
	s.begin()
	rows, err := s.query(ctx, parentID)
	if err == nil {
		err = model.ValidateAll(rows)
	}
	if err != nil {
		return s.settle(&FetchError{Op: "fetch " + s.plural, Parent: parentID, Err: err})
	}
	rows = slices.Clone(rows)
	position.Sort(rows)

	s.mu.Lock()
	s.items[parentID] = rows
	s.mu.Unlock()
	s.changed(parentID)
	return s.settle(nil)
}

func (s *Store[T]) query(ctx context.Context, parentID uuid.UUID) ([]T, error) {
	if !s.opts.SingleFlight {
		return s.backend.Query(ctx, parentID)
	}
	v, err, _ := s.flight.Do(parentID.String(), func() (any, error) {
		return s.backend.Query(ctx, parentID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]T), nil
}

// Create inserts row under parentID at the end of its siblings and caches the
// canonical record once the backend returns it.
func (s *Store[T]) Create(ctx context.Context, parentID uuid.UUID, row T) (T, error) {
	s.begin()
	op := "create " + s.noun

	s.mu.RLock()
	count := len(s.items[parentID])
	s.mu.RUnlock()

	created, err := s.backend.Insert(ctx, row.WithParent(parentID).WithPos(count))
	if err == nil {
		err = model.Validate(created)
	}
	if err != nil {
		var zero T
		return zero, s.settle(&WriteError{Op: op, Err: err})
	}

	s.mu.Lock()
	siblings := s.items[created.Parent()]
	if i := position.IndexOf(siblings, created.Key()); i >= 0 {
		// a refetch triggered by our own insert got here first
		siblings = slices.Clone(siblings)
		siblings[i] = created
	} else {
		siblings = append(slices.Clone(siblings), created)
	}
	s.items[created.Parent()] = siblings
	s.mu.Unlock()
	s.changed(created.Parent())
	return created, s.settle(nil)
}

// Update applies a non-positional patch and merges the canonical record.
func (s *Store[T]) Update(ctx context.Context, id uuid.UUID, patch model.Patch) (T, error) {
	s.begin()
	op := "update " + s.noun
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

	s.mu.Lock()
	parent, i := s.locate(id)
	if i >= 0 {
		siblings := slices.Clone(s.items[parent])
		siblings[i] = updated
		s.items[parent] = siblings
	}
	s.mu.Unlock()
	if i >= 0 {
		s.changed(parent)
	}
	return updated, s.settle(nil)
}

// Delete removes id remotely, then from the cache, then runs the OnDelete
// hooks so dependent stores can drop its children.
func (s *Store[T]) Delete(ctx context.Context, id uuid.UUID) error {
	s.begin()
	if err := s.backend.Delete(ctx, id); err != nil {
		return s.settle(&WriteError{Op: "delete " + s.noun, ID: id, Err: err})
	}

	s.mu.Lock()
	parent, i := s.locate(id)
	if i >= 0 {
		siblings := slices.Delete(slices.Clone(s.items[parent]), i, i+1)
		s.items[parent] = position.Renumber(siblings)
	}
	hooks := slices.Clone(s.onDelete)
	s.mu.Unlock()

	if i >= 0 {
		s.changed(parent)
	}
	for _, h := range hooks {
		h(id)
	}
	return s.settle(nil)
}

// Reorder moves the child at index from to index to within parentID. The
// cache reflects the new order before the backend is called; a no-op move
// issues no write at all.
func (s *Store[T]) Reorder(ctx context.Context, parentID uuid.UUID, from, to int) error {
	return s.reorder(ctx, parentID, func(seq []T) ([]T, bool) {
		return position.Reorder(seq, from, to)
	})
}

// ReorderTo arranges the children of parentID in the order of ids.
func (s *Store[T]) ReorderTo(ctx context.Context, parentID uuid.UUID, ids []uuid.UUID) error {
	return s.reorder(ctx, parentID, func(seq []T) ([]T, bool) {
		out := position.ReorderByKeys(seq, ids)
		return out, len(position.Changed(seq, out)) > 0
	})
}

func (s *Store[T]) reorder(ctx context.Context, parentID uuid.UUID, apply func([]T) ([]T, bool)) error {
	if s.opts.SingleFlight {
		defer s.locks.lock(parentID)()
	}

	s.mu.Lock()
	before := s.items[parentID]
	after, changed := apply(before)
	placements := position.Changed(before, after)
	if !changed || len(placements) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.items[parentID] = after
	s.mu.Unlock()
	s.changed(parentID)

	s.begin()
	err := s.backend.BatchUpsert(ctx, parentID, placements)
	if err != nil {
		return s.settle(s.failReorder("reorder "+s.plural, parentID, err, map[uuid.UUID][]T{parentID: before}))
	}
	return s.settle(nil)
}

// Move puts id under newParentID at newIndex. Within the same parent it is a
// Reorder. Across parents both sibling sets are renumbered in the cache and
// a single move is sent to the backend.
func (s *Store[T]) Move(ctx context.Context, id, newParentID uuid.UUID, newIndex int) error {
	op := "move " + s.noun

	var unlock func()
	for {
		s.mu.RLock()
		parent, i := s.locate(id)
		s.mu.RUnlock()
		if i < 0 {
			s.begin()
			return s.settle(&ReorderError{Op: op, Parent: newParentID, Err: fmt.Errorf("%w: %s", ErrNotCached, id)})
		}
		if parent == newParentID {
			return s.Reorder(ctx, parent, i, newIndex)
		}
		if !s.opts.SingleFlight {
			break
		}
		unlock = s.locks.lock(parent, newParentID)
		s.mu.RLock()
		now, _ := s.locate(id)
		s.mu.RUnlock()
		if now == parent {
			break
		}
		unlock()
	}
	if unlock != nil {
		defer unlock()
	}

	s.mu.Lock()
	oldParent, i := s.locate(id)
	if i < 0 {
		s.mu.Unlock()
		s.begin()
		return s.settle(&ReorderError{Op: op, Parent: newParentID, Err: fmt.Errorf("%w: %s", ErrNotCached, id)})
	}
	source, dest := s.items[oldParent], s.items[newParentID]
	newSource, newDest, _ := position.MoveAcross(source, dest, id, newParentID, newIndex)
	s.items[oldParent] = newSource
	s.items[newParentID] = newDest
	pos := newDest[position.IndexOf(newDest, id)].Pos()
	s.mu.Unlock()
	s.changed(oldParent)
	s.changed(newParentID)

	s.begin()
	if _, err := s.backend.Move(ctx, id, newParentID, pos); err != nil {
		return s.settle(s.failReorder(op, newParentID, err, map[uuid.UUID][]T{oldParent: source, newParentID: dest}))
	}
	return s.settle(nil)
}

func (s *Store[T]) failReorder(op string, parentID uuid.UUID, err error, snapshot map[uuid.UUID][]T) error {
	rerr := &ReorderError{Op: op, Parent: parentID, Err: err}
	if !s.opts.RollbackOnFailure {
		return rerr
	}
	s.mu.Lock()
	for parent, seq := range snapshot {
		if seq == nil {
			delete(s.items, parent)
			continue
		}
		s.items[parent] = seq
	}
	s.mu.Unlock()
	for parent := range snapshot {
		s.changed(parent)
	}
	rerr.RolledBack = true
	return rerr
}

// locate finds id in the cache. Callers hold s.mu.
func (s *Store[T]) locate(id uuid.UUID) (uuid.UUID, int) {
	for parent, seq := range s.items {
		if i := position.IndexOf(seq, id); i >= 0 {
			return parent, i
		}
	}
	return uuid.Nil, -1
}

func (s *Store[T]) changed(parentID uuid.UUID) {
	s.mu.RLock()
	fns := slices.Clone(s.onChange)
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(parentID)
	}
}
