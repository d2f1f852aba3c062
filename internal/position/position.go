// Package position computes dense, zero-based sibling orderings for lists and
// cards. Everything here is pure: no I/O, no locking, inputs are never mutated.
package position

import (
	"cmp"
	"slices"

	"github.com/google/uuid"
)

// Positioned is an entity ranked among its siblings.
type Positioned[T any] interface {
	Key() uuid.UUID
	Pos() int
	WithPos(p int) T
}

// Parented is a Positioned entity that can change parents (a card moving
// between lists).
type Parented[T any] interface {
	Positioned[T]
	Parent() uuid.UUID
	WithParent(id uuid.UUID) T
}

// Placement is the persisted part of a reorder.
type Placement struct {
	ID       uuid.UUID `json:"id"`
	Position int       `json:"position"`
}

// Reorder moves the element at from to index to and renumbers every element
// to its new index. Indices are clamped to [0, len(seq)-1]. When from and to
// resolve to the same index the input is returned as is and changed is false.
func Reorder[T Positioned[T]](seq []T, from, to int) (out []T, changed bool) {
	n := len(seq)
	if n == 0 {
		return seq, false
	}
	from = clamp(from, 0, n-1)
	to = clamp(to, 0, n-1)
	if from == to {
		return seq, false
	}

	moved := seq[from]
	out = make([]T, 0, n)
	out = append(out, seq[:from]...)
	out = append(out, seq[from+1:]...)
	out = slices.Insert(out, to, moved)
	renumber(out)
	return out, true
}

// ReorderByKeys returns seq arranged in the order given by keys. Elements of
// seq missing from keys keep their relative order after the listed ones; keys
// unknown to seq are ignored.
func ReorderByKeys[T Positioned[T]](seq []T, keys []uuid.UUID) []T {
	index := make(map[uuid.UUID]int, len(seq))
	for i, e := range seq {
		index[e.Key()] = i
	}
	out := make([]T, 0, len(seq))
	taken := make(map[uuid.UUID]bool, len(seq))
	for _, k := range keys {
		i, ok := index[k]
		if !ok || taken[k] {
			continue
		}
		taken[k] = true
		out = append(out, seq[i])
	}
	for _, e := range seq {
		if !taken[e.Key()] {
			out = append(out, e)
		}
	}
	renumber(out)
	return out
}

// MoveAcross moves the entity with the given id from source into dest at
// index (clamped to [0, len(dest)], so anything past the end appends). Both
// sibling sets are renumbered and the moved entity's parent becomes destParent.
// ok is false when id is not in source.
func MoveAcross[T Parented[T]](source, dest []T, id, destParent uuid.UUID, index int) (newSource, newDest []T, ok bool) {
	i := IndexOf(source, id)
	if i < 0 {
		return source, dest, false
	}
	moved := source[i].WithParent(destParent)

	newSource = make([]T, 0, len(source)-1)
	newSource = append(newSource, source[:i]...)
	newSource = append(newSource, source[i+1:]...)
	renumber(newSource)

	index = clamp(index, 0, len(dest))
	newDest = make([]T, 0, len(dest)+1)
	newDest = append(newDest, dest...)
	newDest = slices.Insert(newDest, index, moved)
	renumber(newDest)
	return newSource, newDest, true
}

// Renumber returns a copy of seq with position = index.
func Renumber[T Positioned[T]](seq []T) []T {
	out := slices.Clone(seq)
	renumber(out)
	return out
}

// Changed returns the placements of after whose position differs from before
// (or that are new in after).
func Changed[T Positioned[T]](before, after []T) []Placement {
	prev := make(map[uuid.UUID]int, len(before))
	for _, e := range before {
		prev[e.Key()] = e.Pos()
	}
	var out []Placement
	for _, e := range after {
		if p, ok := prev[e.Key()]; ok && p == e.Pos() {
			continue
		}
		out = append(out, Placement{ID: e.Key(), Position: e.Pos()})
	}
	return out
}

// IsDense reports whether the positions of seq are exactly 0..n-1 in slice order.
func IsDense[T Positioned[T]](seq []T) bool {
	for i, e := range seq {
		if e.Pos() != i {
			return false
		}
	}
	return true
}

// Sort orders seq in place by position, breaking ties by id.
func Sort[T Positioned[T]](seq []T) {
	slices.SortStableFunc(seq, func(a, b T) int {
		if c := cmp.Compare(a.Pos(), b.Pos()); c != 0 {
			return c
		}
		return cmp.Compare(a.Key().String(), b.Key().String())
	})
}

// IndexOf returns the index of the element with id in seq, or -1.
func IndexOf[T Positioned[T]](seq []T, id uuid.UUID) int {
	return slices.IndexFunc(seq, func(e T) bool { return e.Key() == id })
}

func renumber[T Positioned[T]](seq []T) {
	for i := range seq {
		seq[i] = seq[i].WithPos(i)
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
