package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kanban/internal/middleware"
	"kanban/internal/model"
	"kanban/internal/position"
	"kanban/internal/repository"
	"kanban/internal/store"
)

// Access answers whether a user holds at least a role on a board.
type Access interface {
	CheckAccess(ctx context.Context, boardID, userID uuid.UUID, required model.Role) (bool, error)
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return uuid.Nil, false
	}
	return userID, true
}

func paramID(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + label + " ID"})
		return uuid.Nil, false
	}
	return id, true
}

// authorize writes 403 or 500 and returns false unless userID has required on boardID.
func authorize(c *gin.Context, access Access, boardID, userID uuid.UUID, required model.Role) bool {
	ok, err := access.CheckAccess(c.Request.Context(), boardID, userID, required)
	if err != nil {
		writeError(c, err)
		return false
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return false
	}
	return true
}

// writeError maps repository and store errors to a status code.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrBoardNotFound),
		errors.Is(err, repository.ErrListNotFound),
		errors.Is(err, repository.ErrCardNotFound),
		errors.Is(err, repository.ErrCommentNotFound),
		errors.Is(err, repository.ErrMemberNotFound),
		errors.Is(err, repository.ErrLabelNotFound),
		errors.Is(err, repository.ErrLabelNotAttached),
		errors.Is(err, repository.ErrChecklistNotFound),
		errors.Is(err, repository.ErrItemNotFound),
		errors.Is(err, store.ErrNotCached):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrOwnerImmutable):
		status = http.StatusConflict
	case errors.Is(err, model.ErrPositionalPatch),
		errors.Is(err, model.ErrInvalidRow),
		errors.Is(err, model.ErrInvalidPatch):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(status, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// UserSummary is the public part of a user shown next to memberships and comments.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

type UserLookup interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error)
}

// summaries loads each distinct user in ids once.
func summaries(ctx context.Context, users UserLookup, ids []uuid.UUID) (map[uuid.UUID]*UserSummary, error) {
	seen := make(map[uuid.UUID]bool, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	found, err := users.GetByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*UserSummary, len(found))
	for _, u := range found {
		out[u.ID] = &UserSummary{ID: u.ID, Email: u.Email, Name: u.Name}
	}
	return out, nil
}

// reorderRequest moves one item (from, to) or, when Order is set, applies a full order.
type reorderRequest struct {
	From  *int        `json:"from"`
	To    *int        `json:"to"`
	Order []uuid.UUID `json:"order"`
}

func (r reorderRequest) valid() bool {
	return len(r.Order) > 0 || (r.From != nil && r.To != nil)
}

// reorder fetches parentID into s and applies req. It writes the error
// response and returns false on failure.
func reorder[T position.Parented[T]](c *gin.Context, s *store.Store[T], parentID uuid.UUID, req reorderRequest) bool {
	ctx := c.Request.Context()
	if err := s.Fetch(ctx, parentID); err != nil {
		writeError(c, err)
		return false
	}
	var err error
	if len(req.Order) > 0 {
		err = s.ReorderTo(ctx, parentID, req.Order)
	} else {
		err = s.Reorder(ctx, parentID, *req.From, *req.To)
	}
	if err != nil {
		writeError(c, err)
		return false
	}
	return true
}
