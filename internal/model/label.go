package model

import (
	"time"

	"github.com/google/uuid"
)

// Label is a board-wide tag. Cards carry labels through CardLabel.
type Label struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id" validate:"required"`
	BoardID   uuid.UUID `gorm:"type:uuid;not null;index" json:"board_id" validate:"required"`
	Name      string    `gorm:"not null" json:"name" validate:"required"`
	Color     string    `gorm:"not null" json:"color" validate:"required,iscolor"`
	CreatedAt time.Time `json:"created_at"`
}

func (l Label) Key() uuid.UUID { return l.ID }

var LabelColumns = Columns{
	"name":  "required,text,max=64",
	"color": "required,iscolor",
}

// CardLabel attaches a label to a card. Both sides belong to the same board.
type CardLabel struct {
	CardID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"card_id" validate:"required"`
	LabelID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"label_id" validate:"required"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
