package store

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"kanban/internal/model"
)

var commentColumns = model.Columns{"content": "required,text"}

// CommentStore caches the comment thread of each opened card, oldest first.
type CommentStore struct {
	rowStore[model.Comment]
}

func NewCommentStore(backend RowBackend[model.Comment]) *CommentStore {
	s := &CommentStore{rowStore[model.Comment]{
		noun:     "comment",
		plural:   "comments",
		editable: commentColumns,
		parentOf: func(c model.Comment) uuid.UUID { return c.CardID },
		less: func(a, b model.Comment) int {
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
			return strings.Compare(a.ID.String(), b.ID.String())
		},
		backend: backend,
	}}
	s.init()
	return s
}

func (s *CommentStore) Create(ctx context.Context, cardID, authorID uuid.UUID, content string) (model.Comment, error) {
	return s.create(ctx, model.Comment{CardID: cardID, AuthorID: authorID, Content: content})
}

func (s *CommentStore) Update(ctx context.Context, id uuid.UUID, content string) (model.Comment, error) {
	return s.update(ctx, "update comment", id, model.Patch{"content": content})
}

func (s *CommentStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.remove(ctx, "delete comment", id)
}
