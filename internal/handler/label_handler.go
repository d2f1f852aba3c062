package handler

import (
	"context"
	"net/http"

	"kanban/internal/model"
	"kanban/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type LabelRepository interface {
	store.RowBackend[model.Label]
	Get(ctx context.Context, id uuid.UUID) (model.Label, error)
	OfCard(ctx context.Context, cardID uuid.UUID) ([]model.Label, error)
	Attach(ctx context.Context, cardID, labelID uuid.UUID) error
	Detach(ctx context.Context, cardID, labelID uuid.UUID) error
}

type LabelHandler struct {
	labels LabelRepository
	cards  CardBoards
	access Access
}

func NewLabelHandler(labels LabelRepository, cards CardBoards, access Access) *LabelHandler {
	return &LabelHandler{labels: labels, cards: cards, access: access}
}

type CreateLabelRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color" binding:"required"`
}

// GetAll returns the labels defined on a board
func (h *LabelHandler) GetAll(c *gin.Context) {
	h.withBoard(c, model.RoleViewer, func(boardID uuid.UUID) {
		labels, err := h.labels.Query(c.Request.Context(), boardID)
		if err != nil {
			writeError(c, err)
			return
		}
		if labels == nil {
			labels = []model.Label{}
		}
		c.JSON(http.StatusOK, labels)
	})
}

func (h *LabelHandler) Create(c *gin.Context) {
	h.withBoard(c, model.RoleMember, func(boardID uuid.UUID) {
		var req CreateLabelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if err := (model.Patch{"name": req.Name, "color": req.Color}).Check(model.LabelColumns); err != nil {
			writeError(c, err)
			return
		}

		label, err := store.NewLabelStore(h.labels).Create(c.Request.Context(), boardID, req.Name, req.Color)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, label)
	})
}

func (h *LabelHandler) Update(c *gin.Context) {
	h.withLabel(c, func(label model.Label) {
		var patch model.Patch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		updated, err := store.NewLabelStore(h.labels).Update(c.Request.Context(), label.ID, patch)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	})
}

// Delete removes a label from the board and from every card carrying it
func (h *LabelHandler) Delete(c *gin.Context) {
	h.withLabel(c, func(label model.Label) {
		if err := store.NewLabelStore(h.labels).Delete(c.Request.Context(), label.ID); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

// GetForCard returns the labels attached to a card
func (h *LabelHandler) GetForCard(c *gin.Context) {
	h.withCard(c, model.RoleViewer, func(cardID, _ uuid.UUID) {
		labels, err := h.labels.OfCard(c.Request.Context(), cardID)
		if err != nil {
			writeError(c, err)
			return
		}
		if labels == nil {
			labels = []model.Label{}
		}
		c.JSON(http.StatusOK, labels)
	})
}

// Attach puts a label of the card's board on the card
func (h *LabelHandler) Attach(c *gin.Context) {
	h.withCardLabel(c, func(cardID, labelID uuid.UUID) error {
		return h.labels.Attach(c.Request.Context(), cardID, labelID)
	})
}

func (h *LabelHandler) Detach(c *gin.Context) {
	h.withCardLabel(c, func(cardID, labelID uuid.UUID) error {
		return h.labels.Detach(c.Request.Context(), cardID, labelID)
	})
}

func (h *LabelHandler) withBoard(c *gin.Context, required model.Role, fn func(boardID uuid.UUID)) {
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

// withLabel loads the label named by :id and requires member access to its board.
func (h *LabelHandler) withLabel(c *gin.Context, fn func(label model.Label)) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	labelID, ok := paramID(c, "id", "label")
	if !ok {
		return
	}
	label, err := h.labels.Get(c.Request.Context(), labelID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !authorize(c, h.access, label.BoardID, userID, model.RoleMember) {
		return
	}
	fn(label)
}

func (h *LabelHandler) withCard(c *gin.Context, required model.Role, fn func(cardID, boardID uuid.UUID)) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	cardID, ok := paramID(c, "id", "card")
	if !ok {
		return
	}
	boardID, err := h.cards.BoardID(c.Request.Context(), cardID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !authorize(c, h.access, boardID, userID, required) {
		return
	}
	fn(cardID, boardID)
}

// withCardLabel resolves :id and :labelId, checks both live on the same
// board and answers 204 when write succeeds.
func (h *LabelHandler) withCardLabel(c *gin.Context, write func(cardID, labelID uuid.UUID) error) {
	h.withCard(c, model.RoleMember, func(cardID, boardID uuid.UUID) {
		labelID, ok := paramID(c, "labelId", "label")
		if !ok {
			return
		}
		label, err := h.labels.Get(c.Request.Context(), labelID)
		if err != nil {
			writeError(c, err)
			return
		}
		if label.BoardID != boardID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Label belongs to another board"})
			return
		}
		if err := write(cardID, labelID); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}
