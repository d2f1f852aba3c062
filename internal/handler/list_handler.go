package handler

import (
	"context"
	"net/http"

	"kanban/internal/model"
	"kanban/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ListRepository interface {
	store.Backend[model.List]
	Get(ctx context.Context, id uuid.UUID) (model.List, error)
}

type ListHandler struct {
	lists  ListRepository
	access Access
	opts   store.Options
}

func NewListHandler(lists ListRepository, access Access, opts store.Options) *ListHandler {
	return &ListHandler{lists: lists, access: access, opts: opts}
}

type CreateListRequest struct {
	Title string `json:"title" binding:"required"`
}

// GetAll returns the board's lists in position order
func (h *ListHandler) GetAll(c *gin.Context) {
	h.withBoard(c, model.RoleViewer, func(boardID uuid.UUID) {
		lists, err := h.lists.Query(c.Request.Context(), boardID)
		if err != nil {
			writeError(c, err)
			return
		}
		if lists == nil {
			lists = []model.List{}
		}
		c.JSON(http.StatusOK, lists)
	})
}

// Create appends a list to the end of the board
func (h *ListHandler) Create(c *gin.Context) {
	h.withBoard(c, model.RoleMember, func(boardID uuid.UUID) {
		var req CreateListRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		s := store.NewListStore(h.lists, h.opts)
		if err := s.Fetch(c.Request.Context(), boardID); err != nil {
			writeError(c, err)
			return
		}
		list, err := s.Create(c.Request.Context(), boardID, model.List{Title: req.Title})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, list)
	})
}

// Reorder applies a move or a full order and returns the resulting lists.
// Only lists whose position changed are written.
func (h *ListHandler) Reorder(c *gin.Context) {
	h.withBoard(c, model.RoleMember, func(boardID uuid.UUID) {
		var req reorderRequest
		if err := c.ShouldBindJSON(&req); err != nil || !req.valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		s := store.NewListStore(h.lists, h.opts)
		if !reorder(c, s, boardID, req) {
			return
		}
		c.JSON(http.StatusOK, s.Snapshot(boardID))
	})
}

func (h *ListHandler) Update(c *gin.Context) {
	h.withList(c, func(list model.List) {
		var patch model.Patch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if err := patch.Check(model.ListColumns); err != nil {
			writeError(c, err)
			return
		}

		updated, err := h.lists.Update(c.Request.Context(), list.ID, patch)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	})
}

// Delete removes the list and its cards and closes the gap it leaves
func (h *ListHandler) Delete(c *gin.Context) {
	h.withList(c, func(list model.List) {
		if err := h.lists.Delete(c.Request.Context(), list.ID); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func (h *ListHandler) withBoard(c *gin.Context, required model.Role, fn func(boardID uuid.UUID)) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	boardID, ok := paramID(c, "id", "board")
	if !ok {
		return
	}
	if !authorize(c, h.access, boardID, userID, required) {
		return
	}
	fn(boardID)
}

// withList loads the list named by :id and requires member access to its board.
func (h *ListHandler) withList(c *gin.Context, fn func(list model.List)) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	listID, ok := paramID(c, "id", "list")
	if !ok {
		return
	}
	list, err := h.lists.Get(c.Request.Context(), listID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !authorize(c, h.access, list.BoardID, userID, model.RoleMember) {
		return
	}
	fn(list)
}
