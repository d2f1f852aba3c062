package model

import (
	"time"

	"github.com/google/uuid"
)

type Board struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id" validate:"required"`
	Title       string    `gorm:"not null" json:"title" validate:"required"`
	Description *string   `json:"description"`
	OwnerID     uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id" validate:"required"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (b Board) Key() uuid.UUID { return b.ID }

// BoardColumns lists the board fields a patch may touch.
var BoardColumns = Columns{
	"title":       "required,text,max=255",
	"description": "omitempty,text",
}
