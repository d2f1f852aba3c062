package model

import (
	"time"

	"github.com/google/uuid"
)

// Comment is append-only within a card and ordered by creation time.
type Comment struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id" validate:"required"`
	CardID    uuid.UUID `gorm:"type:uuid;not null;index" json:"card_id" validate:"required"`
	AuthorID  uuid.UUID `gorm:"type:uuid;not null" json:"author_id" validate:"required"`
	Content   string    `gorm:"not null" json:"content" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c Comment) Key() uuid.UUID { return c.ID }
