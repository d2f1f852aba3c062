package handler

import (
	"context"
	"net/http"

	"kanban/internal/model"
	"kanban/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CommentRepository interface {
	store.RowBackend[model.Comment]
	Get(ctx context.Context, id uuid.UUID) (model.Comment, error)
}

type CardBoards interface {
	BoardID(ctx context.Context, cardID uuid.UUID) (uuid.UUID, error)
}

type CommentHandler struct {
	comments CommentRepository
	cards    CardBoards
	users    UserLookup
	access   Access
}

func NewCommentHandler(comments CommentRepository, cards CardBoards, users UserLookup, access Access) *CommentHandler {
	return &CommentHandler{comments: comments, cards: cards, users: users, access: access}
}

// CommentResponse is a comment with its author's profile.
type CommentResponse struct {
	model.Comment
	Author *UserSummary `json:"author,omitempty"`
}

type CommentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *CommentHandler) GetAll(c *gin.Context) {
	h.withCard(c, model.RoleViewer, func(cardID, _ uuid.UUID) {
		ctx := c.Request.Context()
		comments, err := h.comments.Query(ctx, cardID)
		if err != nil {
			writeError(c, err)
			return
		}

		ids := make([]uuid.UUID, len(comments))
		for i, cm := range comments {
			ids[i] = cm.AuthorID
		}
		authors, err := summaries(ctx, h.users, ids)
		if err != nil {
			writeError(c, err)
			return
		}

		resp := make([]CommentResponse, len(comments))
		for i, cm := range comments {
			resp[i] = CommentResponse{Comment: cm, Author: authors[cm.AuthorID]}
		}
		c.JSON(http.StatusOK, resp)
	})
}

func (h *CommentHandler) Create(c *gin.Context) {
	h.withCard(c, model.RoleMember, func(cardID, userID uuid.UUID) {
		var req CommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		comment, err := h.comments.Insert(c.Request.Context(), model.Comment{
			CardID:   cardID,
			AuthorID: userID,
			Content:  req.Content,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, comment)
	})
}

// Update edits a comment. Only its author may do so.
func (h *CommentHandler) Update(c *gin.Context) {
	h.withComment(c, func(comment model.Comment, userID, _ uuid.UUID) {
		if comment.AuthorID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the author can edit a comment"})
			return
		}
		var req CommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		updated, err := h.comments.Update(c.Request.Context(), comment.ID, model.Patch{"content": req.Content})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	})
}

// Delete removes a comment. Authors delete their own, admins any.
func (h *CommentHandler) Delete(c *gin.Context) {
	h.withComment(c, func(comment model.Comment, userID, boardID uuid.UUID) {
		if comment.AuthorID != userID && !authorize(c, h.access, boardID, userID, model.RoleAdmin) {
			return
		}
		if err := h.comments.Delete(c.Request.Context(), comment.ID); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func (h *CommentHandler) withCard(c *gin.Context, required model.Role, fn func(cardID, userID uuid.UUID)) {
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
	fn(cardID, userID)
}

// withComment loads the comment named by :id and requires member access to its board.
func (h *CommentHandler) withComment(c *gin.Context, fn func(comment model.Comment, userID, boardID uuid.UUID)) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	commentID, ok := paramID(c, "id", "comment")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	comment, err := h.comments.Get(ctx, commentID)
	if err != nil {
		writeError(c, err)
		return
	}
	boardID, err := h.cards.BoardID(ctx, comment.CardID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !authorize(c, h.access, boardID, userID, model.RoleMember) {
		return
	}
	fn(comment, userID, boardID)
}
