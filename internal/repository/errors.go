package repository

import "errors"

// Common repository errors
var (
	ErrBoardNotFound   = errors.New("board not found")
	ErrListNotFound    = errors.New("list not found")
	ErrCardNotFound    = errors.New("card not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrMemberNotFound  = errors.New("member not found")

	ErrLabelNotFound     = errors.New("label not found")
	ErrLabelNotAttached  = errors.New("label is not attached to card")
	ErrChecklistNotFound = errors.New("checklist not found")
	ErrItemNotFound      = errors.New("checklist item not found")

	// ErrOwnerImmutable is returned when a write would change or remove a board owner's membership.
	ErrOwnerImmutable = errors.New("board owner membership cannot be changed")
)
