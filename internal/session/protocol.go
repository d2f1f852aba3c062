package session

import (
	"github.com/google/uuid"

	"kanban/internal/model"
)

// Client commands.
const (
	OpReorderLists  = "reorder_lists"
	OpReorderCards  = "reorder_cards"
	OpMoveCard      = "move_card"
	OpCreateList    = "create_list"
	OpCreateCard    = "create_card"
	OpUpdateList    = "update_list"
	OpUpdateCard    = "update_card"
	OpDeleteList    = "delete_list"
	OpDeleteCard    = "delete_card"
	OpCreateLabel   = "create_label"
	OpUpdateLabel   = "update_label"
	OpDeleteLabel   = "delete_label"
	OpOpenCard      = "open_card"
	OpCloseCard     = "close_card"
	OpAddComment    = "add_comment"
	OpDeleteComment = "delete_comment"
	OpRefresh       = "refresh"
	OpResubscribe   = "resubscribe"
)

// Command is one client message. Which fields matter depends on Op.
type Command struct {
	Op          string      `json:"op"`
	ListID      uuid.UUID   `json:"list_id,omitempty"`
	CardID      uuid.UUID   `json:"card_id,omitempty"`
	CommentID   uuid.UUID   `json:"comment_id,omitempty"`
	LabelID     uuid.UUID   `json:"label_id,omitempty"`
	From        int         `json:"from,omitempty"`
	To          int         `json:"to,omitempty"`
	Index       int         `json:"index,omitempty"`
	Order       []uuid.UUID `json:"order,omitempty"`
	Title       string      `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Content     string      `json:"content,omitempty"`
	Name        string      `json:"name,omitempty"`
	Color       string      `json:"color,omitempty"`
	Patch       model.Patch `json:"patch,omitempty"`
}

// Frame types.
const (
	FrameBoard   = "board"
	FrameCard    = "card"
	FrameMembers = "members"
	FrameError   = "error"
)

// Frame is one server message.
type Frame struct {
	Type     string              `json:"type"`
	Board    *model.Board        `json:"board,omitempty"`
	Lists    []ListFrame         `json:"lists,omitempty"`
	Labels   []model.Label       `json:"labels,omitempty"`
	Card     *model.Card         `json:"card,omitempty"`
	Deleted  bool                `json:"deleted,omitempty"`
	Comments []model.Comment     `json:"comments,omitempty"`
	Members  []model.BoardMember `json:"members,omitempty"`
	Error    *ErrorFrame         `json:"error,omitempty"`
}

type ListFrame struct {
	model.List
	Cards []model.Card `json:"cards"`
}

// ErrorFrame names the action that failed so the client can show it.
type ErrorFrame struct {
	Op      string `json:"op,omitempty"`
	Action  string `json:"action"`
	Message string `json:"message"`
}
