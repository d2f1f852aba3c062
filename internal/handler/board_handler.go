package handler

import (
	"context"
	"net/http"

	"kanban/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BoardRepository interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Board, error)
	Get(ctx context.Context, id uuid.UUID) (model.Board, error)
	Insert(ctx context.Context, board model.Board) (model.Board, error)
	Update(ctx context.Context, id uuid.UUID, patch model.Patch) (model.Board, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type BoardHandler struct {
	boards BoardRepository
	access Access
}

func NewBoardHandler(boards BoardRepository, access Access) *BoardHandler {
	return &BoardHandler{boards: boards, access: access}
}

type CreateBoardRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
}

// Create creates a new board owned by the authenticated user
func (h *BoardHandler) Create(c *gin.Context) {
	ownerID, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	board, err := h.boards.Insert(c.Request.Context(), model.Board{
		Title:       req.Title,
		Description: req.Description,
		OwnerID:     ownerID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, board)
}

// GetAll returns the boards the user owns or is a member of, newest first
func (h *BoardHandler) GetAll(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	boards, err := h.boards.ListForUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if boards == nil {
		boards = []model.Board{}
	}
	c.JSON(http.StatusOK, boards)
}

func (h *BoardHandler) GetByID(c *gin.Context) {
	h.withBoard(c, model.RoleViewer, func(boardID uuid.UUID) {
		board, err := h.boards.Get(c.Request.Context(), boardID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, board)
	})
}

func (h *BoardHandler) Update(c *gin.Context) {
	h.withBoard(c, model.RoleAdmin, func(boardID uuid.UUID) {
		var patch model.Patch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if err := patch.Check(model.BoardColumns); err != nil {
			writeError(c, err)
			return
		}

		board, err := h.boards.Update(c.Request.Context(), boardID, patch)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, board)
	})
}

// Delete removes the board with its lists, cards and comments. Owner only.
func (h *BoardHandler) Delete(c *gin.Context) {
	h.withBoard(c, model.RoleOwner, func(boardID uuid.UUID) {
		if err := h.boards.Delete(c.Request.Context(), boardID); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func (h *BoardHandler) withBoard(c *gin.Context, required model.Role, fn func(boardID uuid.UUID)) {
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
