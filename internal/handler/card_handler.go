package handler

import (
	"context"
	"net/http"

	"kanban/internal/model"
	"kanban/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CardRepository interface {
	store.Backend[model.Card]
	Get(ctx context.Context, id uuid.UUID) (model.Card, error)
	BoardID(ctx context.Context, cardID uuid.UUID) (uuid.UUID, error)
}

type ListGetter interface {
	Get(ctx context.Context, id uuid.UUID) (model.List, error)
}

type CardHandler struct {
	cards  CardRepository
	lists  ListGetter
	access Access
	opts   store.Options
}

func NewCardHandler(cards CardRepository, lists ListGetter, access Access, opts store.Options) *CardHandler {
	return &CardHandler{cards: cards, lists: lists, access: access, opts: opts}
}

type CreateCardRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
}

type MoveCardRequest struct {
	ListID uuid.UUID `json:"list_id" binding:"required"`
	Index  int       `json:"index" binding:"gte=0"`
}

func (h *CardHandler) GetAll(c *gin.Context) {
	h.withList(c, model.RoleViewer, func(list model.List) {
		cards, err := h.cards.Query(c.Request.Context(), list.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		if cards == nil {
			cards = []model.Card{}
		}
		c.JSON(http.StatusOK, cards)
	})
}

// Create appends a card to the end of the list
func (h *CardHandler) Create(c *gin.Context) {
	h.withList(c, model.RoleMember, func(list model.List) {
		var req CreateCardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		s := store.NewCardStore(h.cards, h.opts)
		if err := s.Fetch(c.Request.Context(), list.ID); err != nil {
			writeError(c, err)
			return
		}
		card, err := s.Create(c.Request.Context(), list.ID, model.Card{Title: req.Title, Description: req.Description})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, card)
	})
}

func (h *CardHandler) Reorder(c *gin.Context) {
	h.withList(c, model.RoleMember, func(list model.List) {
		var req reorderRequest
		if err := c.ShouldBindJSON(&req); err != nil || !req.valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		s := store.NewCardStore(h.cards, h.opts)
		if !reorder(c, s, list.ID, req) {
			return
		}
		c.JSON(http.StatusOK, s.Snapshot(list.ID))
	})
}

func (h *CardHandler) GetByID(c *gin.Context) {
	h.withCard(c, model.RoleViewer, func(cardID, _ uuid.UUID) {
		card, err := h.cards.Get(c.Request.Context(), cardID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, card)
	})
}

func (h *CardHandler) Update(c *gin.Context) {
	h.withCard(c, model.RoleMember, func(cardID, _ uuid.UUID) {
		var patch model.Patch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if err := patch.Check(model.CardColumns); err != nil {
			writeError(c, err)
			return
		}

		card, err := h.cards.Update(c.Request.Context(), cardID, patch)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, card)
	})
}

func (h *CardHandler) Delete(c *gin.Context) {
	h.withCard(c, model.RoleMember, func(cardID, _ uuid.UUID) {
		if err := h.cards.Delete(c.Request.Context(), cardID); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

// Move puts the card at index in another list of the same board, or
// reorders it when the list is its own.
func (h *CardHandler) Move(c *gin.Context) {
	h.withCard(c, model.RoleMember, func(cardID, boardID uuid.UUID) {
		var req MoveCardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		ctx := c.Request.Context()
		target, err := h.lists.Get(ctx, req.ListID)
		if err != nil {
			writeError(c, err)
			return
		}
		if target.BoardID != boardID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Target list belongs to another board"})
			return
		}
		card, err := h.cards.Get(ctx, cardID)
		if err != nil {
			writeError(c, err)
			return
		}

		s := store.NewCardStore(h.cards, h.opts)
		for _, listID := range []uuid.UUID{card.ListID, target.ID} {
			if err := s.Fetch(ctx, listID); err != nil {
				writeError(c, err)
				return
			}
		}
		if err := s.Move(ctx, cardID, target.ID, req.Index); err != nil {
			writeError(c, err)
			return
		}
		moved, _ := s.Get(cardID)
		c.JSON(http.StatusOK, moved)
	})
}

func (h *CardHandler) withList(c *gin.Context, required model.Role, fn func(list model.List)) {
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
	if !authorize(c, h.access, list.BoardID, userID, required) {
		return
	}
	fn(list)
}

func (h *CardHandler) withCard(c *gin.Context, required model.Role, fn func(cardID, boardID uuid.UUID)) {
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
