package model

import (
	"time"

	"github.com/google/uuid"
)

// Checklist is an ordered group of items on a card. Position is dense within the card.
type Checklist struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id" validate:"required"`
	CardID    uuid.UUID `gorm:"type:uuid;not null;index" json:"card_id" validate:"required"`
	Title     string    `gorm:"not null" json:"title" validate:"required"`
	Position  int       `gorm:"not null" json:"position" validate:"gte=0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c Checklist) Key() uuid.UUID    { return c.ID }
func (c Checklist) Pos() int          { return c.Position }
func (c Checklist) Parent() uuid.UUID { return c.CardID }

func (c Checklist) WithPos(p int) Checklist {
	c.Position = p
	return c
}

func (c Checklist) WithParent(cardID uuid.UUID) Checklist {
	c.CardID = cardID
	return c
}

var ChecklistColumns = Columns{"title": "required,text,max=255"}

// ChecklistItem is one step of a checklist. Items can move between the
// checklists of a card like cards move between lists.
type ChecklistItem struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id" validate:"required"`
	ChecklistID uuid.UUID  `gorm:"type:uuid;not null;index" json:"checklist_id" validate:"required"`
	Title       string     `gorm:"not null" json:"title" validate:"required"`
	IsComplete  bool       `gorm:"not null;default:false" json:"is_complete"`
	Position    int        `gorm:"not null" json:"position" validate:"gte=0"`
	DueDate     *time.Time `json:"due_date"`
	AssigneeID  *uuid.UUID `gorm:"type:uuid" json:"assignee_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (i ChecklistItem) Key() uuid.UUID    { return i.ID }
func (i ChecklistItem) Pos() int          { return i.Position }
func (i ChecklistItem) Parent() uuid.UUID { return i.ChecklistID }

func (i ChecklistItem) WithPos(p int) ChecklistItem {
	i.Position = p
	return i
}

func (i ChecklistItem) WithParent(checklistID uuid.UUID) ChecklistItem {
	i.ChecklistID = checklistID
	return i
}

var ChecklistItemColumns = Columns{
	"title":       "required,text,max=255",
	"is_complete": "flag",
	"due_date":    "omitempty,timestamp",
	"assignee_id": "omitempty,uuid",
}
