package model

import (
	"time"

	"github.com/google/uuid"
)

// Card belongs to exactly one list. Position is dense and zero-based within that list.
type Card struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id" validate:"required"`
	ListID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"list_id" validate:"required"`
	Title       string     `gorm:"not null" json:"title" validate:"required"`
	Description *string    `json:"description"`
	Position    int        `gorm:"not null" json:"position" validate:"gte=0"`
	DueDate     *time.Time `json:"due_date"`
	CoverImage  *string    `json:"cover_image"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (c Card) Key() uuid.UUID    { return c.ID }
func (c Card) Pos() int          { return c.Position }
func (c Card) Parent() uuid.UUID { return c.ListID }

func (c Card) WithPos(p int) Card {
	c.Position = p
	return c
}

func (c Card) WithParent(listID uuid.UUID) Card {
	c.ListID = listID
	return c
}

var CardColumns = Columns{
	"title":       "required,text,max=255",
	"description": "omitempty,text",
	"due_date":    "omitempty,timestamp",
	"cover_image": "omitempty,text",
}
