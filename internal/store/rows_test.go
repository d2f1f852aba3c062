package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanban/internal/model"
	"kanban/internal/store"
	"kanban/internal/store/storetest"
)

func contents(comments []model.Comment) []string {
	out := make([]string, len(comments))
	for i, c := range comments {
		out[i] = c.Content
	}
	return out
}

func TestCommentStore_FetchOrdersByCreation(t *testing.T) {
	// Arrange
	cardID, author := uuid.New(), uuid.New()
	now := time.Now()
	backend := storetest.NewComments(nil)
	backend.Seed(
		model.Comment{ID: uuid.New(), CardID: cardID, AuthorID: author, Content: "second", CreatedAt: now},
		model.Comment{ID: uuid.New(), CardID: cardID, AuthorID: author, Content: "first", CreatedAt: now.Add(-time.Minute)},
		model.Comment{ID: uuid.New(), CardID: uuid.New(), AuthorID: author, Content: "elsewhere", CreatedAt: now},
	)
	s := store.NewCommentStore(backend)

	// Act
	err := s.Fetch(context.Background(), cardID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, contents(s.Snapshot(cardID)))
}

func TestCommentStore_CreateUpdateDelete(t *testing.T) {
	cardID, author := uuid.New(), uuid.New()
	backend := storetest.NewComments(nil)
	s := store.NewCommentStore(backend)
	ctx := context.Background()
	require.NoError(t, s.Fetch(ctx, cardID))

	created, err := s.Create(ctx, cardID, author, "hello")
	require.NoError(t, err)
	assert.Equal(t, author, created.AuthorID)
	assert.Equal(t, []string{"hello"}, contents(s.Snapshot(cardID)))

	_, err = s.Update(ctx, created.ID, "hello again")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello again"}, contents(s.Snapshot(cardID)))

	require.NoError(t, s.Delete(ctx, created.ID))
	assert.Empty(t, s.Snapshot(cardID))
}

func TestCommentStore_MergesAreIdempotent(t *testing.T) {
	cardID := uuid.New()
	s := store.NewCommentStore(storetest.NewComments(nil))
	c := model.Comment{ID: uuid.New(), CardID: cardID, AuthorID: uuid.New(), Content: "hi", CreatedAt: time.Now()}

	s.MergeInsert(c)
	s.MergeInsert(c)
	assert.Len(t, s.Snapshot(cardID), 1)

	c.Content = "edited"
	s.MergeUpdate(c)
	assert.Equal(t, []string{"edited"}, contents(s.Snapshot(cardID)))

	s.MergeUpdate(model.Comment{ID: uuid.New(), CardID: cardID, Content: "ghost"})
	assert.Len(t, s.Snapshot(cardID), 1)

	s.MergeDelete(c.ID)
	s.MergeDelete(c.ID)
	assert.Empty(t, s.Snapshot(cardID))
}

func TestCommentStore_DeleteFailure(t *testing.T) {
	cardID := uuid.New()
	backend := storetest.NewComments(nil)
	c := model.Comment{ID: uuid.New(), CardID: cardID, AuthorID: uuid.New(), Content: "keep", CreatedAt: time.Now()}
	backend.Seed(c)
	s := store.NewCommentStore(backend)
	require.NoError(t, s.Fetch(context.Background(), cardID))
	backend.Fail("Delete", errBackend)

	err := s.Delete(context.Background(), c.ID)

	assert.Equal(t, "delete comment", store.Action(err))
	assert.Equal(t, []string{"keep"}, contents(s.Snapshot(cardID)))
}

func TestMemberStore_RolesAndOrder(t *testing.T) {
	// Arrange
	boardID, owner := uuid.New(), uuid.New()
	backend := storetest.NewMembers(nil)
	backend.Seed(model.BoardMember{ID: uuid.New(), BoardID: boardID, UserID: owner, Role: model.RoleOwner, CreatedAt: time.Now()})
	s := store.NewMemberStore(backend)
	ctx := context.Background()
	require.NoError(t, s.Fetch(ctx, boardID))

	// Act
	viewer, err := s.Add(ctx, boardID, uuid.New(), model.RoleViewer, owner)
	require.NoError(t, err)
	_, err = s.Add(ctx, boardID, uuid.New(), model.RoleAdmin, owner)
	require.NoError(t, err)
	_, err = s.ChangeRole(ctx, viewer.ID, model.RoleMember)
	require.NoError(t, err)

	// Assert
	var roles []model.Role
	for _, m := range s.Snapshot(boardID) {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []model.Role{model.RoleOwner, model.RoleAdmin, model.RoleMember}, roles)

	require.NoError(t, s.Remove(ctx, viewer.ID))
	assert.Len(t, s.Snapshot(boardID), 2)
}

func TestMemberStore_RejectsInvalidRole(t *testing.T) {
	boardID := uuid.New()
	backend := storetest.NewMembers(nil)
	s := store.NewMemberStore(backend)

	_, err := s.Add(context.Background(), boardID, uuid.New(), model.Role("superuser"), uuid.New())

	assert.ErrorIs(t, err, model.ErrInvalidRow)
	assert.Empty(t, s.Snapshot(boardID))
}

func TestBoardStore_NewestFirst(t *testing.T) {
	// Arrange
	owner := uuid.New()
	backend := storetest.NewBoards(nil)
	old := model.Board{ID: uuid.New(), Title: "old", OwnerID: owner, CreatedAt: time.Now().Add(-time.Hour)}
	backend.Seed(old)
	s := store.NewBoardStore(backend)
	ctx := context.Background()
	require.NoError(t, s.Fetch(ctx, owner))

	// Act
	created, err := s.Create(ctx, owner, "new", nil)

	// Assert
	require.NoError(t, err)
	boards := s.Boards()
	require.Len(t, boards, 2)
	assert.Equal(t, created.ID, boards[0].ID)

	require.NoError(t, s.Fetch(ctx, owner))
	assert.Equal(t, created.ID, s.Boards()[0].ID)
}

func TestBoardStore_DeleteClearsCurrent(t *testing.T) {
	owner := uuid.New()
	backend := storetest.NewBoards(nil)
	b := model.Board{ID: uuid.New(), Title: "b", OwnerID: owner, CreatedAt: time.Now()}
	backend.Seed(b)
	s := store.NewBoardStore(backend)
	ctx := context.Background()
	_, err := s.Open(ctx, b.ID)
	require.NoError(t, err)

	var deleted []uuid.UUID
	s.OnDelete(func(id uuid.UUID) { deleted = append(deleted, id) })

	require.NoError(t, s.Delete(ctx, b.ID))

	_, ok := s.Current()
	assert.False(t, ok)
	assert.Equal(t, []uuid.UUID{b.ID}, deleted)
}

func TestBoardStore_UpdateRejectsOwnerChange(t *testing.T) {
	s := store.NewBoardStore(storetest.NewBoards(nil))

	_, err := s.Update(context.Background(), uuid.New(), model.Patch{"owner_id": uuid.New()})

	assert.ErrorIs(t, err, model.ErrPositionalPatch)
}
