package position_test

import (
	"testing"

	"kanban/internal/position"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	id     uuid.UUID
	parent uuid.UUID
	name   string
	pos    int
}

func (i item) Key() uuid.UUID    { return i.id }
func (i item) Pos() int          { return i.pos }
func (i item) Parent() uuid.UUID { return i.parent }

func (i item) WithPos(p int) item {
	i.pos = p
	return i
}

func (i item) WithParent(id uuid.UUID) item {
	i.parent = id
	return i
}

func items(parent uuid.UUID, names ...string) []item {
	out := make([]item, len(names))
	for i, n := range names {
		out[i] = item{id: uuid.New(), parent: parent, name: n, pos: i}
	}
	return out
}

func names(seq []item) []string {
	out := make([]string, len(seq))
	for i, e := range seq {
		out[i] = e.name
	}
	return out
}

func TestReorder_MovesAndRenumbers(t *testing.T) {
	// Arrange
	seq := items(uuid.New(), "X", "Y", "Z")

	// Act
	out, changed := position.Reorder(seq, 0, 2)

	// Assert
	assert.True(t, changed)
	assert.Equal(t, []string{"Y", "Z", "X"}, names(out))
	assert.True(t, position.IsDense(out))
	assert.Equal(t, []string{"X", "Y", "Z"}, names(seq), "input must not be mutated")
	assert.Equal(t, 0, seq[0].pos)
}

func TestReorder_SameIndexIsNoop(t *testing.T) {
	seq := items(uuid.New(), "Y", "Z", "X")

	out, changed := position.Reorder(seq, 2, 2)

	assert.False(t, changed)
	assert.Equal(t, seq, out)
	assert.Empty(t, position.Changed(seq, out))
}

func TestReorder_ClampsIndices(t *testing.T) {
	seq := items(uuid.New(), "A", "B", "C")

	out, changed := position.Reorder(seq, 0, 10)
	assert.True(t, changed)
	assert.Equal(t, []string{"B", "C", "A"}, names(out))

	out, changed = position.Reorder(seq, -4, 0)
	assert.False(t, changed)
	assert.Equal(t, seq, out)

	out, changed = position.Reorder(seq, 9, 9)
	assert.False(t, changed, "both indices clamp to the last element")
	assert.Equal(t, seq, out)
}

func TestReorder_Empty(t *testing.T) {
	out, changed := position.Reorder([]item(nil), 0, 1)
	assert.False(t, changed)
	assert.Empty(t, out)
}

func TestReorder_DenseForEveryPair(t *testing.T) {
	seq := items(uuid.New(), "a", "b", "c", "d", "e")
	for from := range seq {
		for to := range seq {
			out, _ := position.Reorder(seq, from, to)
			require.Len(t, out, len(seq))
			require.True(t, position.IsDense(out), "from=%d to=%d", from, to)

			seen := map[uuid.UUID]bool{}
			for _, e := range out {
				seen[e.id] = true
			}
			require.Len(t, seen, len(seq))
			require.Equal(t, seq[from].id, out[to].id)
		}
	}
}

func TestReorderByKeys(t *testing.T) {
	seq := items(uuid.New(), "A", "B", "C", "D")

	out := position.ReorderByKeys(seq, []uuid.UUID{seq[2].id, seq[0].id, uuid.New()})

	assert.Equal(t, []string{"C", "A", "B", "D"}, names(out))
	assert.True(t, position.IsDense(out))
}

func TestMoveAcross_ConcreteScenario(t *testing.T) {
	// Card X moves from list A [X, Y] to list B [M] at index 1.
	listA, listB := uuid.New(), uuid.New()
	a := items(listA, "X", "Y")
	b := items(listB, "M")

	newA, newB, ok := position.MoveAcross(a, b, a[0].id, listB, 1)

	require.True(t, ok)
	assert.Equal(t, []string{"Y"}, names(newA))
	assert.Equal(t, 0, newA[0].pos)
	assert.Equal(t, []string{"M", "X"}, names(newB))
	assert.True(t, position.IsDense(newB))
	assert.Equal(t, listB, newB[1].parent)
	assert.Equal(t, listA, a[0].parent, "input must not be mutated")
}

func TestMoveAcross_Conservation(t *testing.T) {
	src := items(uuid.New(), "a", "b", "c", "d")
	destParent := uuid.New()
	dest := items(destParent, "m", "n", "o")

	for i := range src {
		for idx := -1; idx <= len(dest)+2; idx++ {
			newSrc, newDest, ok := position.MoveAcross(src, dest, src[i].id, destParent, idx)
			require.True(t, ok)
			require.Len(t, newSrc, len(src)-1)
			require.Len(t, newDest, len(dest)+1)
			require.True(t, position.IsDense(newSrc))
			require.True(t, position.IsDense(newDest))
			moved := newDest[position.IndexOf(newDest, src[i].id)]
			require.Equal(t, destParent, moved.parent)
		}
	}
}

func TestMoveAcross_BeyondLengthAppends(t *testing.T) {
	destParent := uuid.New()
	src := items(uuid.New(), "a")
	dest := items(destParent, "m", "n")

	_, newDest, ok := position.MoveAcross(src, dest, src[0].id, destParent, 42)

	require.True(t, ok)
	assert.Equal(t, []string{"m", "n", "a"}, names(newDest))
	assert.Equal(t, 2, newDest[2].pos)
}

func TestMoveAcross_UnknownID(t *testing.T) {
	src := items(uuid.New(), "a")
	dest := items(uuid.New(), "m")

	newSrc, newDest, ok := position.MoveAcross(src, dest, uuid.New(), uuid.New(), 0)

	assert.False(t, ok)
	assert.Equal(t, src, newSrc)
	assert.Equal(t, dest, newDest)
}

func TestChanged(t *testing.T) {
	seq := items(uuid.New(), "A", "B", "C", "D")
	out, _ := position.Reorder(seq, 1, 2)

	placements := position.Changed(seq, out)

	assert.ElementsMatch(t, []position.Placement{
		{ID: seq[2].id, Position: 1},
		{ID: seq[1].id, Position: 2},
	}, placements)
}

func TestSort(t *testing.T) {
	seq := items(uuid.New(), "A", "B", "C")
	seq[0].pos, seq[2].pos = 2, 0

	position.Sort(seq)

	assert.Equal(t, []string{"C", "B", "A"}, names(seq))
	assert.True(t, position.IsDense(seq))
	assert.Equal(t, 2, position.IndexOf(seq, seq[2].id))
	assert.Equal(t, -1, position.IndexOf(seq, uuid.New()))
}
