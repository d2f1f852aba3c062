// Package storetest provides in-memory store backends that behave like the
// PostgreSQL repositories, with call counters and failure injection.
package storetest

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"kanban/internal/feed"
	"kanban/internal/model"
	"kanban/internal/position"
)

var ErrNotFound = errors.New("row not found")

// calls counts backend calls per operation and injects failures.
type calls struct {
	mu     sync.Mutex
	counts map[string]int
	fail   map[string]error
	// Before runs at the start of every call, outside any lock.
	Before func(op string)
}

func (c *calls) enter(op string) error {
	if c.Before != nil {
		c.Before(op)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[op]++
	return c.fail[op]
}

// Count returns how many times op was called.
func (c *calls) Count(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[op]
}

// Writes is the number of Insert, Update, Delete, BatchUpsert and Move calls.
func (c *calls) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts["Insert"] + c.counts["Update"] + c.counts["Delete"] + c.counts["BatchUpsert"] + c.counts["Move"]
}

// Fail makes every later call to op return err. A nil err clears it.
func (c *calls) Fail(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail == nil {
		c.fail = make(map[string]error)
	}
	if err == nil {
		delete(c.fail, op)
		return
	}
	c.fail[op] = err
}

// Positional is an in-memory store.Backend for lists, cards, checklists or checklist items.
type Positional[T position.Parented[T]] struct {
	calls

	mu      sync.Mutex
	rows    map[uuid.UUID]T
	assign  func(row T, id uuid.UUID, now time.Time) T
	apply   func(row T, patch model.Patch, now time.Time) T
	notify  func(ctx context.Context, kind feed.Kind, before, after *T)
	batched func(ctx context.Context, parentID uuid.UUID)
}

// NewLists returns a list backend that announces its writes through n (may be nil).
func NewLists(n *feed.Notifier) *Positional[model.List] {
	return &Positional[model.List]{
		rows: make(map[uuid.UUID]model.List),
		assign: func(l model.List, id uuid.UUID, now time.Time) model.List {
			l.ID, l.CreatedAt, l.UpdatedAt = id, now, now
			return l
		},
		apply: func(l model.List, p model.Patch, now time.Time) model.List {
			if v, ok := p["title"].(string); ok {
				l.Title = v
			}
			l.UpdatedAt = now
			return l
		},
		notify: func(ctx context.Context, kind feed.Kind, before, after *model.List) {
			n.Lists(ctx, kind, before, after)
		},
		batched: func(ctx context.Context, boardID uuid.UUID) { n.ListsReordered(ctx, boardID) },
	}
}

// NewCards returns a card backend that announces its writes through n (may be nil).
func NewCards(n *feed.Notifier) *Positional[model.Card] {
	return &Positional[model.Card]{
		rows: make(map[uuid.UUID]model.Card),
		assign: func(c model.Card, id uuid.UUID, now time.Time) model.Card {
			c.ID, c.CreatedAt, c.UpdatedAt = id, now, now
			return c
		},
		apply: func(c model.Card, p model.Patch, now time.Time) model.Card {
			if v, ok := p["title"].(string); ok {
				c.Title = v
			}
			if v, ok := p["description"].(string); ok {
				c.Description = &v
			}
			c.UpdatedAt = now
			return c
		},
		notify: func(ctx context.Context, kind feed.Kind, before, after *model.Card) {
			n.Cards(ctx, kind, before, after)
		},
		batched: func(ctx context.Context, listID uuid.UUID) { n.CardsReordered(ctx, listID) },
	}
}

// NewChecklists returns a checklist backend that announces its writes through n (may be nil).
func NewChecklists(n *feed.Notifier) *Positional[model.Checklist] {
	return &Positional[model.Checklist]{
		rows: make(map[uuid.UUID]model.Checklist),
		assign: func(c model.Checklist, id uuid.UUID, now time.Time) model.Checklist {
			c.ID, c.CreatedAt, c.UpdatedAt = id, now, now
			return c
		},
		apply: func(c model.Checklist, p model.Patch, now time.Time) model.Checklist {
			if v, ok := p["title"].(string); ok {
				c.Title = v
			}
			c.UpdatedAt = now
			return c
		},
		notify: func(ctx context.Context, kind feed.Kind, before, after *model.Checklist) {
			n.Checklists(ctx, kind, before, after)
		},
		batched: func(ctx context.Context, cardID uuid.UUID) { n.ChecklistsReordered(ctx, cardID) },
	}
}

// NewChecklistItems returns a checklist item backend that announces its writes through n (may be nil).
func NewChecklistItems(n *feed.Notifier) *Positional[model.ChecklistItem] {
	return &Positional[model.ChecklistItem]{
		rows: make(map[uuid.UUID]model.ChecklistItem),
		assign: func(i model.ChecklistItem, id uuid.UUID, now time.Time) model.ChecklistItem {
			i.ID, i.CreatedAt, i.UpdatedAt = id, now, now
			return i
		},
		apply: func(i model.ChecklistItem, p model.Patch, now time.Time) model.ChecklistItem {
			if v, ok := p["title"].(string); ok {
				i.Title = v
			}
			if v, ok := p["is_complete"].(bool); ok {
				i.IsComplete = v
			}
			i.UpdatedAt = now
			return i
		},
		notify: func(ctx context.Context, kind feed.Kind, before, after *model.ChecklistItem) {
			n.ChecklistItems(ctx, kind, before, after)
		},
		batched: func(ctx context.Context, checklistID uuid.UUID) { n.ItemsReordered(ctx, checklistID) },
	}
}

// Seed stores rows as they are, without notifications.
func (b *Positional[T]) Seed(rows ...T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range rows {
		b.rows[r.Key()] = r
	}
}

// Rows returns the children of parentID in position order.
func (b *Positional[T]) Rows(parentID uuid.UUID) []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.children(parentID)
}

func (b *Positional[T]) children(parentID uuid.UUID) []T {
	var out []T
	for _, r := range b.rows {
		if r.Parent() == parentID {
			out = append(out, r)
		}
	}
	position.Sort(out)
	return out
}

func (b *Positional[T]) Get(_ context.Context, id uuid.UUID) (T, error) {
	if err := b.enter("Get"); err != nil {
		var zero T
		return zero, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rows[id]
	if !ok {
		return r, ErrNotFound
	}
	return r, nil
}

func (b *Positional[T]) Query(_ context.Context, parentID uuid.UUID) ([]T, error) {
	if err := b.enter("Query"); err != nil {
		return nil, err
	}
	return b.Rows(parentID), nil
}

func (b *Positional[T]) Insert(ctx context.Context, row T) (T, error) {
	if err := b.enter("Insert"); err != nil {
		var zero T
		return zero, err
	}
	b.mu.Lock()
	row = b.assign(row, uuid.New(), time.Now())
	b.rows[row.Key()] = row
	b.mu.Unlock()
	b.notify(ctx, feed.Insert, nil, &row)
	return row, nil
}

func (b *Positional[T]) Update(ctx context.Context, id uuid.UUID, patch model.Patch) (T, error) {
	var zero T
	if err := b.enter("Update"); err != nil {
		return zero, err
	}
	b.mu.Lock()
	before, ok := b.rows[id]
	if !ok {
		b.mu.Unlock()
		return zero, ErrNotFound
	}
	after := b.apply(before, patch, time.Now())
	b.rows[id] = after
	b.mu.Unlock()
	b.notify(ctx, feed.Update, &before, &after)
	return after, nil
}

func (b *Positional[T]) Delete(ctx context.Context, id uuid.UUID) error {
	if err := b.enter("Delete"); err != nil {
		return err
	}
	b.mu.Lock()
	before, ok := b.rows[id]
	if !ok {
		b.mu.Unlock()
		return ErrNotFound
	}
	delete(b.rows, id)
	for _, r := range b.children(before.Parent()) {
		if r.Pos() > before.Pos() {
			b.rows[r.Key()] = r.WithPos(r.Pos() - 1)
		}
	}
	b.mu.Unlock()
	b.notify(ctx, feed.Delete, &before, nil)
	return nil
}

func (b *Positional[T]) BatchUpsert(ctx context.Context, parentID uuid.UUID, placements []position.Placement) error {
	if err := b.enter("BatchUpsert"); err != nil {
		return err
	}
	b.mu.Lock()
	for _, p := range placements {
		if r, ok := b.rows[p.ID]; ok {
			b.rows[p.ID] = r.WithPos(p.Position)
		}
	}
	b.mu.Unlock()
	b.batched(ctx, parentID)
	return nil
}

func (b *Positional[T]) Move(ctx context.Context, id, parentID uuid.UUID, pos int) (T, error) {
	var zero T
	if err := b.enter("Move"); err != nil {
		return zero, err
	}
	b.mu.Lock()
	before, ok := b.rows[id]
	if !ok {
		b.mu.Unlock()
		return zero, ErrNotFound
	}
	source := b.children(before.Parent())
	dest := b.children(parentID)
	newSource, newDest, _ := position.MoveAcross(source, dest, id, parentID, pos)
	for _, r := range append(newSource, newDest...) {
		b.rows[r.Key()] = r
	}
	after := b.rows[id]
	b.mu.Unlock()
	b.notify(ctx, feed.Update, &before, &after)
	return after, nil
}

// Rows is an in-memory store.RowBackend for comments, members or labels.
type Rows[T interface{ Key() uuid.UUID }] struct {
	calls

	mu       sync.Mutex
	rows     []T
	parentOf func(T) uuid.UUID
	assign   func(row T, id uuid.UUID, now time.Time) T
	apply    func(row T, patch model.Patch, now time.Time) T
	notify   func(ctx context.Context, kind feed.Kind, before, after *T)
}

func NewComments(n *feed.Notifier) *Rows[model.Comment] {
	return &Rows[model.Comment]{
		parentOf: func(c model.Comment) uuid.UUID { return c.CardID },
		assign: func(c model.Comment, id uuid.UUID, now time.Time) model.Comment {
			c.ID, c.CreatedAt, c.UpdatedAt = id, now, now
			return c
		},
		apply: func(c model.Comment, p model.Patch, now time.Time) model.Comment {
			if v, ok := p["content"].(string); ok {
				c.Content = v
			}
			c.UpdatedAt = now
			return c
		},
		notify: func(ctx context.Context, kind feed.Kind, before, after *model.Comment) {
			n.Comments(ctx, kind, before, after)
		},
	}
}

func NewMembers(n *feed.Notifier) *Rows[model.BoardMember] {
	return &Rows[model.BoardMember]{
		parentOf: func(m model.BoardMember) uuid.UUID { return m.BoardID },
		assign: func(m model.BoardMember, id uuid.UUID, now time.Time) model.BoardMember {
			m.ID, m.CreatedAt = id, now
			return m
		},
		apply: func(m model.BoardMember, p model.Patch, _ time.Time) model.BoardMember {
			if v, ok := p["role"].(model.Role); ok {
				m.Role = v
			}
			return m
		},
		notify: func(ctx context.Context, kind feed.Kind, before, after *model.BoardMember) {
			n.Members(ctx, kind, before, after)
		},
	}
}

func NewLabels(n *feed.Notifier) *Rows[model.Label] {
	return &Rows[model.Label]{
		parentOf: func(l model.Label) uuid.UUID { return l.BoardID },
		assign: func(l model.Label, id uuid.UUID, now time.Time) model.Label {
			l.ID, l.CreatedAt = id, now
			return l
		},
		apply: func(l model.Label, p model.Patch, _ time.Time) model.Label {
			if v, ok := p["name"].(string); ok {
				l.Name = v
			}
			if v, ok := p["color"].(string); ok {
				l.Color = v
			}
			return l
		},
		notify: func(ctx context.Context, kind feed.Kind, before, after *model.Label) {
			n.Labels(ctx, kind, before, after)
		},
	}
}

func (b *Rows[T]) Seed(rows ...T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = append(b.rows, rows...)
}

func (b *Rows[T]) Query(_ context.Context, parentID uuid.UUID) ([]T, error) {
	if err := b.enter("Query"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []T
	for _, r := range b.rows {
		if b.parentOf(r) == parentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (b *Rows[T]) Insert(ctx context.Context, row T) (T, error) {
	if err := b.enter("Insert"); err != nil {
		var zero T
		return zero, err
	}
	b.mu.Lock()
	row = b.assign(row, uuid.New(), time.Now())
	b.rows = append(b.rows, row)
	b.mu.Unlock()
	b.notify(ctx, feed.Insert, nil, &row)
	return row, nil
}

func (b *Rows[T]) Update(ctx context.Context, id uuid.UUID, patch model.Patch) (T, error) {
	var zero T
	if err := b.enter("Update"); err != nil {
		return zero, err
	}
	b.mu.Lock()
	i := slices.IndexFunc(b.rows, func(r T) bool { return r.Key() == id })
	if i < 0 {
		b.mu.Unlock()
		return zero, ErrNotFound
	}
	before := b.rows[i]
	after := b.apply(before, patch, time.Now())
	b.rows[i] = after
	b.mu.Unlock()
	b.notify(ctx, feed.Update, &before, &after)
	return after, nil
}

func (b *Rows[T]) Delete(ctx context.Context, id uuid.UUID) error {
	if err := b.enter("Delete"); err != nil {
		return err
	}
	b.mu.Lock()
	i := slices.IndexFunc(b.rows, func(r T) bool { return r.Key() == id })
	if i < 0 {
		b.mu.Unlock()
		return ErrNotFound
	}
	before := b.rows[i]
	b.rows = slices.Delete(b.rows, i, i+1)
	b.mu.Unlock()
	b.notify(ctx, feed.Delete, &before, nil)
	return nil
}

// Boards is an in-memory store.BoardBackend.
type Boards struct {
	calls

	mu     sync.Mutex
	boards []model.Board
	// Visible filters ListForUser; nil means every board is visible.
	Visible func(board model.Board, userID uuid.UUID) bool
	n       *feed.Notifier
}

func NewBoards(n *feed.Notifier) *Boards {
	return &Boards{n: n}
}

func (b *Boards) Seed(boards ...model.Board) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.boards = append(b.boards, boards...)
}

func (b *Boards) ListForUser(_ context.Context, userID uuid.UUID) ([]model.Board, error) {
	if err := b.enter("Query"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []model.Board
	for _, board := range b.boards {
		if b.Visible == nil || b.Visible(board, userID) {
			out = append(out, board)
		}
	}
	return out, nil
}

func (b *Boards) Get(_ context.Context, id uuid.UUID) (model.Board, error) {
	if err := b.enter("Get"); err != nil {
		return model.Board{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, board := range b.boards {
		if board.ID == id {
			return board, nil
		}
	}
	return model.Board{}, ErrNotFound
}

func (b *Boards) Insert(ctx context.Context, board model.Board) (model.Board, error) {
	if err := b.enter("Insert"); err != nil {
		return model.Board{}, err
	}
	now := time.Now()
	board.ID, board.CreatedAt, board.UpdatedAt = uuid.New(), now, now
	b.mu.Lock()
	b.boards = append(b.boards, board)
	b.mu.Unlock()
	b.n.Boards(ctx, feed.Insert, nil, &board)
	return board, nil
}

func (b *Boards) Update(ctx context.Context, id uuid.UUID, patch model.Patch) (model.Board, error) {
	if err := b.enter("Update"); err != nil {
		return model.Board{}, err
	}
	b.mu.Lock()
	i := slices.IndexFunc(b.boards, func(x model.Board) bool { return x.ID == id })
	if i < 0 {
		b.mu.Unlock()
		return model.Board{}, ErrNotFound
	}
	before := b.boards[i]
	after := before
	if v, ok := patch["title"].(string); ok {
		after.Title = v
	}
	if v, ok := patch["description"].(string); ok {
		after.Description = &v
	}
	after.UpdatedAt = time.Now()
	b.boards[i] = after
	b.mu.Unlock()
	b.n.Boards(ctx, feed.Update, &before, &after)
	return after, nil
}

func (b *Boards) Delete(ctx context.Context, id uuid.UUID) error {
	if err := b.enter("Delete"); err != nil {
		return err
	}
	b.mu.Lock()
	i := slices.IndexFunc(b.boards, func(x model.Board) bool { return x.ID == id })
	if i < 0 {
		b.mu.Unlock()
		return ErrNotFound
	}
	before := b.boards[i]
	b.boards = slices.Delete(b.boards, i, i+1)
	b.mu.Unlock()
	b.n.Boards(ctx, feed.Delete, &before, nil)
	return nil
}
