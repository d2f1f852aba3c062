package store

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"kanban/internal/model"
)

// LabelStore caches the labels of each opened board, oldest first.
type LabelStore struct {
	rowStore[model.Label]
}

func NewLabelStore(backend RowBackend[model.Label]) *LabelStore {
	s := &LabelStore{rowStore[model.Label]{
		noun:     "label",
		plural:   "labels",
		editable: model.LabelColumns,
		parentOf: func(l model.Label) uuid.UUID { return l.BoardID },
		less: func(a, b model.Label) int {
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
			return strings.Compare(a.Name, b.Name)
		},
		backend: backend,
	}}
	s.init()
	return s
}

func (s *LabelStore) Create(ctx context.Context, boardID uuid.UUID, name, color string) (model.Label, error) {
	return s.create(ctx, model.Label{BoardID: boardID, Name: name, Color: color})
}

func (s *LabelStore) Update(ctx context.Context, id uuid.UUID, patch model.Patch) (model.Label, error) {
	return s.update(ctx, "update label", id, patch)
}

func (s *LabelStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.remove(ctx, "delete label", id)
}
