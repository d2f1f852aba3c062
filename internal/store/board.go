package store

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"kanban/internal/model"
)

// BoardBackend persists boards. Boards have no position; they are listed
// newest first.
type BoardBackend interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Board, error)
	Get(ctx context.Context, id uuid.UUID) (model.Board, error)
	Insert(ctx context.Context, board model.Board) (model.Board, error)
	Update(ctx context.Context, id uuid.UUID, patch model.Patch) (model.Board, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// BoardStore caches the boards visible to one user and the board currently open.
type BoardStore struct {
	status

	backend BoardBackend

	mu       sync.RWMutex
	boards   []model.Board
	current  *model.Board
	onDelete []func(id uuid.UUID)
}

func NewBoardStore(backend BoardBackend) *BoardStore {
	return &BoardStore{backend: backend}
}

func (s *BoardStore) OnDelete(fn func(id uuid.UUID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDelete = append(s.onDelete, fn)
}

func (s *BoardStore) Boards() []model.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.boards)
}

// Current returns the open board, if any.
func (s *BoardStore) Current() (model.Board, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return model.Board{}, false
	}
	return *s.current, true
}

func (s *BoardStore) Fetch(ctx context.Context, userID uuid.UUID) error {
	s.begin()
	boards, err := s.backend.ListForUser(ctx, userID)
	if err == nil {
		err = model.ValidateAll(boards)
	}
	if err != nil {
		return s.settle(&FetchError{Op: "fetch boards", Parent: userID, Err: err})
	}
	boards = slices.Clone(boards)
	slices.SortStableFunc(boards, newestFirst)

	s.mu.Lock()
	s.boards = boards
	s.mu.Unlock()
	return s.settle(nil)
}

// Open loads one board and makes it current.
func (s *BoardStore) Open(ctx context.Context, id uuid.UUID) (model.Board, error) {
	s.begin()
	board, err := s.backend.Get(ctx, id)
	if err == nil {
		err = model.Validate(board)
	}
	if err != nil {
		return model.Board{}, s.settle(&FetchError{Op: "fetch board", Parent: id, Err: err})
	}
	s.mu.Lock()
	s.current = &board
	s.replace(board)
	s.mu.Unlock()
	return board, s.settle(nil)
}

// Create inserts a board and puts it first.
func (s *BoardStore) Create(ctx context.Context, ownerID uuid.UUID, title string, description *string) (model.Board, error) {
	s.begin()
	created, err := s.backend.Insert(ctx, model.Board{OwnerID: ownerID, Title: title, Description: description})
	if err == nil {
		err = model.Validate(created)
	}
	if err != nil {
		return model.Board{}, s.settle(&WriteError{Op: "create board", Err: err})
	}
	s.mu.Lock()
	s.boards = slices.Insert(slices.DeleteFunc(slices.Clone(s.boards), func(b model.Board) bool { return b.ID == created.ID }), 0, created)
	s.mu.Unlock()
	return created, s.settle(nil)
}

func (s *BoardStore) Update(ctx context.Context, id uuid.UUID, patch model.Patch) (model.Board, error) {
	s.begin()
	if err := patch.Check(model.BoardColumns); err != nil {
		return model.Board{}, s.settle(&WriteError{Op: "update board", ID: id, Err: err})
	}
	updated, err := s.backend.Update(ctx, id, patch)
	if err == nil {
		err = model.Validate(updated)
	}
	if err != nil {
		return model.Board{}, s.settle(&WriteError{Op: "update board", ID: id, Err: err})
	}
	s.mu.Lock()
	s.replace(updated)
	if s.current != nil && s.current.ID == id {
		s.current = &updated
	}
	s.mu.Unlock()
	return updated, s.settle(nil)
}

func (s *BoardStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.begin()
	if err := s.backend.Delete(ctx, id); err != nil {
		return s.settle(&WriteError{Op: "delete board", ID: id, Err: err})
	}
	s.mu.Lock()
	s.boards = slices.DeleteFunc(slices.Clone(s.boards), func(b model.Board) bool { return b.ID == id })
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
	hooks := slices.Clone(s.onDelete)
	s.mu.Unlock()
	for _, h := range hooks {
		h(id)
	}
	return s.settle(nil)
}

// MergeUpdate applies a board row seen on the change feed.
func (s *BoardStore) MergeUpdate(board model.Board) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(board)
	if s.current != nil && s.current.ID == board.ID {
		s.current = &board
	}
}

// replace swaps a cached board in place. Callers hold s.mu.
func (s *BoardStore) replace(board model.Board) {
	if i := slices.IndexFunc(s.boards, func(b model.Board) bool { return b.ID == board.ID }); i >= 0 {
		s.boards = slices.Clone(s.boards)
		s.boards[i] = board
	}
}

func newestFirst(a, b model.Board) int {
	return b.CreatedAt.Compare(a.CreatedAt)
}
