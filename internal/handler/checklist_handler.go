package handler

import (
	"context"
	"net/http"
	"time"

	"kanban/internal/model"
	"kanban/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ChecklistRepository interface {
	store.Backend[model.Checklist]
	Get(ctx context.Context, id uuid.UUID) (model.Checklist, error)
	BoardID(ctx context.Context, checklistID uuid.UUID) (uuid.UUID, error)
}

type ChecklistItemRepository interface {
	store.Backend[model.ChecklistItem]
	Get(ctx context.Context, id uuid.UUID) (model.ChecklistItem, error)
}

// ChecklistHandler serves the checklists of a card and their items.
type ChecklistHandler struct {
	checklists ChecklistRepository
	items      ChecklistItemRepository
	cards      CardBoards
	access     Access
	opts       store.Options
}

func NewChecklistHandler(checklists ChecklistRepository, items ChecklistItemRepository, cards CardBoards, access Access, opts store.Options) *ChecklistHandler {
	return &ChecklistHandler{checklists: checklists, items: items, cards: cards, access: access, opts: opts}
}

// ChecklistResponse is a checklist with its items in position order.
type ChecklistResponse struct {
	model.Checklist
	Items []model.ChecklistItem `json:"items"`
}

type CreateChecklistRequest struct {
	Title string `json:"title" binding:"required"`
}

type CreateItemRequest struct {
	Title      string     `json:"title" binding:"required"`
	DueDate    *time.Time `json:"due_date"`
	AssigneeID *uuid.UUID `json:"assignee_id"`
}

type MoveItemRequest struct {
	ChecklistID uuid.UUID `json:"checklist_id" binding:"required"`
	Index       int       `json:"index" binding:"gte=0"`
}

func (h *ChecklistHandler) GetAll(c *gin.Context) {
	h.withCard(c, model.RoleViewer, func(cardID uuid.UUID) {
		ctx := c.Request.Context()
		checklists, err := h.checklists.Query(ctx, cardID)
		if err != nil {
			writeError(c, err)
			return
		}
		resp := make([]ChecklistResponse, len(checklists))
		for i, cl := range checklists {
			items, err := h.items.Query(ctx, cl.ID)
			if err != nil {
				writeError(c, err)
				return
			}
			if items == nil {
				items = []model.ChecklistItem{}
			}
			resp[i] = ChecklistResponse{Checklist: cl, Items: items}
		}
		c.JSON(http.StatusOK, resp)
	})
}

// Create appends a checklist to the card
func (h *ChecklistHandler) Create(c *gin.Context) {
	h.withCard(c, model.RoleMember, func(cardID uuid.UUID) {
		var req CreateChecklistRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if err := (model.Patch{"title": req.Title}).Check(model.ChecklistColumns); err != nil {
			writeError(c, err)
			return
		}

		s := store.NewChecklistStore(h.checklists, h.opts)
		ctx := c.Request.Context()
		if err := s.Fetch(ctx, cardID); err != nil {
			writeError(c, err)
			return
		}
		checklist, err := s.Create(ctx, cardID, model.Checklist{Title: req.Title})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, checklist)
	})
}

func (h *ChecklistHandler) Reorder(c *gin.Context) {
	h.withCard(c, model.RoleMember, func(cardID uuid.UUID) {
		var req reorderRequest
		if err := c.ShouldBindJSON(&req); err != nil || !req.valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		s := store.NewChecklistStore(h.checklists, h.opts)
		if !reorder(c, s, cardID, req) {
			return
		}
		c.JSON(http.StatusOK, s.Snapshot(cardID))
	})
}

func (h *ChecklistHandler) Update(c *gin.Context) {
	h.withChecklist(c, model.RoleMember, func(checklist model.Checklist) {
		var patch model.Patch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if err := patch.Check(model.ChecklistColumns); err != nil {
			writeError(c, err)
			return
		}

		updated, err := h.checklists.Update(c.Request.Context(), checklist.ID, patch)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	})
}

func (h *ChecklistHandler) Delete(c *gin.Context) {
	h.withChecklist(c, model.RoleMember, func(checklist model.Checklist) {
		if err := h.checklists.Delete(c.Request.Context(), checklist.ID); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func (h *ChecklistHandler) GetItems(c *gin.Context) {
	h.withChecklist(c, model.RoleViewer, func(checklist model.Checklist) {
		items, err := h.items.Query(c.Request.Context(), checklist.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		if items == nil {
			items = []model.ChecklistItem{}
		}
		c.JSON(http.StatusOK, items)
	})
}

// CreateItem appends an item to the checklist
func (h *ChecklistHandler) CreateItem(c *gin.Context) {
	h.withChecklist(c, model.RoleMember, func(checklist model.Checklist) {
		var req CreateItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if err := (model.Patch{"title": req.Title}).Check(model.ChecklistItemColumns); err != nil {
			writeError(c, err)
			return
		}

		s := store.NewChecklistItemStore(h.items, h.opts)
		ctx := c.Request.Context()
		if err := s.Fetch(ctx, checklist.ID); err != nil {
			writeError(c, err)
			return
		}
		item, err := s.Create(ctx, checklist.ID, model.ChecklistItem{
			Title:      req.Title,
			DueDate:    req.DueDate,
			AssigneeID: req.AssigneeID,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	})
}

func (h *ChecklistHandler) ReorderItems(c *gin.Context) {
	h.withChecklist(c, model.RoleMember, func(checklist model.Checklist) {
		var req reorderRequest
		if err := c.ShouldBindJSON(&req); err != nil || !req.valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		s := store.NewChecklistItemStore(h.items, h.opts)
		if !reorder(c, s, checklist.ID, req) {
			return
		}
		c.JSON(http.StatusOK, s.Snapshot(checklist.ID))
	})
}

func (h *ChecklistHandler) UpdateItem(c *gin.Context) {
	h.withItem(c, func(item model.ChecklistItem, _ model.Checklist) {
		var patch model.Patch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if err := patch.Check(model.ChecklistItemColumns); err != nil {
			writeError(c, err)
			return
		}

		updated, err := h.items.Update(c.Request.Context(), item.ID, patch)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	})
}

// ToggleItem flips the completion flag of an item
func (h *ChecklistHandler) ToggleItem(c *gin.Context) {
	h.withItem(c, func(item model.ChecklistItem, _ model.Checklist) {
		updated, err := h.items.Update(c.Request.Context(), item.ID, model.Patch{"is_complete": !item.IsComplete})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	})
}

func (h *ChecklistHandler) DeleteItem(c *gin.Context) {
	h.withItem(c, func(item model.ChecklistItem, _ model.Checklist) {
		if err := h.items.Delete(c.Request.Context(), item.ID); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

// MoveItem puts the item at index in another checklist of the same card, or
// reorders it when the checklist is its own.
func (h *ChecklistHandler) MoveItem(c *gin.Context) {
	h.withItem(c, func(item model.ChecklistItem, checklist model.Checklist) {
		var req MoveItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		ctx := c.Request.Context()
		target, err := h.checklists.Get(ctx, req.ChecklistID)
		if err != nil {
			writeError(c, err)
			return
		}
		if target.CardID != checklist.CardID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Target checklist belongs to another card"})
			return
		}

		s := store.NewChecklistItemStore(h.items, h.opts)
		for _, checklistID := range []uuid.UUID{checklist.ID, target.ID} {
			if err := s.Fetch(ctx, checklistID); err != nil {
				writeError(c, err)
				return
			}
		}
		if err := s.Move(ctx, item.ID, target.ID, req.Index); err != nil {
			writeError(c, err)
			return
		}
		moved, _ := s.Get(item.ID)
		c.JSON(http.StatusOK, moved)
	})
}

func (h *ChecklistHandler) withCard(c *gin.Context, required model.Role, fn func(cardID uuid.UUID)) {
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
	fn(cardID)
}

func (h *ChecklistHandler) withChecklist(c *gin.Context, required model.Role, fn func(checklist model.Checklist)) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	checklistID, ok := paramID(c, "id", "checklist")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	boardID, err := h.checklists.BoardID(ctx, checklistID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !authorize(c, h.access, boardID, userID, required) {
		return
	}
	checklist, err := h.checklists.Get(ctx, checklistID)
	if err != nil {
		writeError(c, err)
		return
	}
	fn(checklist)
}

// withItem loads the item named by :id with its checklist and requires member access to the board.
func (h *ChecklistHandler) withItem(c *gin.Context, fn func(item model.ChecklistItem, checklist model.Checklist)) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	itemID, ok := paramID(c, "id", "item")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	item, err := h.items.Get(ctx, itemID)
	if err != nil {
		writeError(c, err)
		return
	}
	boardID, err := h.checklists.BoardID(ctx, item.ChecklistID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !authorize(c, h.access, boardID, userID, model.RoleMember) {
		return
	}
	checklist, err := h.checklists.Get(ctx, item.ChecklistID)
	if err != nil {
		writeError(c, err)
		return
	}
	fn(item, checklist)
}
