package handler

import (
	"context"
	"net/http"
	"strings"

	"kanban/internal/model"
	"kanban/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MemberRepository interface {
	store.RowBackend[model.BoardMember]
	Get(ctx context.Context, id uuid.UUID) (model.BoardMember, error)
}

type UserFinder interface {
	UserLookup
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

type MemberHandler struct {
	members MemberRepository
	users   UserFinder
	access  Access
}

func NewMemberHandler(members MemberRepository, users UserFinder, access Access) *MemberHandler {
	return &MemberHandler{members: members, users: users, access: access}
}

type AddMemberRequest struct {
	Email string     `json:"email" binding:"required,email"`
	Role  model.Role `json:"role" binding:"required,oneof=admin member viewer"`
}

// MemberResponse is a membership with the member's profile.
type MemberResponse struct {
	model.BoardMember
	User *UserSummary `json:"user,omitempty"`
}

type UpdateMemberRequest struct {
	Role model.Role `json:"role" binding:"required,oneof=admin member viewer"`
}

func (h *MemberHandler) GetAll(c *gin.Context) {
	h.withBoard(c, model.RoleViewer, func(boardID, _ uuid.UUID) {
		ctx := c.Request.Context()
		members, err := h.members.Query(ctx, boardID)
		if err != nil {
			writeError(c, err)
			return
		}

		ids := make([]uuid.UUID, len(members))
		for i, m := range members {
			ids[i] = m.UserID
		}
		users, err := summaries(ctx, h.users, ids)
		if err != nil {
			writeError(c, err)
			return
		}

		resp := make([]MemberResponse, len(members))
		for i, m := range members {
			resp[i] = MemberResponse{BoardMember: m, User: users[m.UserID]}
		}
		c.JSON(http.StatusOK, resp)
	})
}

// Add shares the board with a registered user. Adding an existing member
// changes their role.
func (h *MemberHandler) Add(c *gin.Context) {
	h.withBoard(c, model.RoleAdmin, func(boardID, userID uuid.UUID) {
		var req AddMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		ctx := c.Request.Context()
		user, err := h.users.FindByEmail(ctx, strings.ToLower(req.Email))
		if err != nil {
			writeError(c, err)
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		addedBy := userID
		member, err := h.members.Insert(ctx, model.BoardMember{
			BoardID: boardID,
			UserID:  user.ID,
			Role:    req.Role,
			AddedBy: &addedBy,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, member)
	})
}

func (h *MemberHandler) Update(c *gin.Context) {
	h.withMember(c, func(member model.BoardMember, userID uuid.UUID) {
		if !authorize(c, h.access, member.BoardID, userID, model.RoleAdmin) {
			return
		}
		var req UpdateMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		updated, err := h.members.Update(c.Request.Context(), member.ID, model.Patch{"role": req.Role})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	})
}

// Remove takes a user off the board. Admins remove anyone but the owner;
// members may remove themselves.
func (h *MemberHandler) Remove(c *gin.Context) {
	h.withMember(c, func(member model.BoardMember, userID uuid.UUID) {
		if member.UserID != userID && !authorize(c, h.access, member.BoardID, userID, model.RoleAdmin) {
			return
		}
		if err := h.members.Delete(c.Request.Context(), member.ID); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func (h *MemberHandler) withBoard(c *gin.Context, required model.Role, fn func(boardID, userID uuid.UUID)) {
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
	fn(boardID, userID)
}

func (h *MemberHandler) withMember(c *gin.Context, fn func(member model.BoardMember, userID uuid.UUID)) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	memberID, ok := paramID(c, "id", "member")
	if !ok {
		return
	}
	member, err := h.members.Get(c.Request.Context(), memberID)
	if err != nil {
		writeError(c, err)
		return
	}
	fn(member, userID)
}
