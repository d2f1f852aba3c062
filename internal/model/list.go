package model

import (
	"time"

	"github.com/google/uuid"
)

// List is an ordered column of cards. Position is dense and zero-based within its board.
type List struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id" validate:"required"`
	BoardID   uuid.UUID `gorm:"type:uuid;not null;index" json:"board_id" validate:"required"`
	Title     string    `gorm:"not null" json:"title" validate:"required"`
	Position  int       `gorm:"not null" json:"position" validate:"gte=0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l List) Key() uuid.UUID    { return l.ID }
func (l List) Pos() int          { return l.Position }
func (l List) Parent() uuid.UUID { return l.BoardID }

func (l List) WithPos(p int) List {
	l.Position = p
	return l
}

func (l List) WithParent(boardID uuid.UUID) List {
	l.BoardID = boardID
	return l
}

var ListColumns = Columns{"title": "required,text,max=255"}
