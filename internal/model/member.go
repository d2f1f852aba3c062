package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

// Member roles, strongest first. The owner role cannot be changed or removed.
const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleMember: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r grants everything required grants.
func (r Role) AtLeast(required Role) bool {
	return roleRank[r] >= roleRank[required] && roleRank[r] > 0
}

type BoardMember struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id" validate:"required"`
	BoardID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"board_id" validate:"required"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id" validate:"required"`
	Role      Role       `gorm:"not null" json:"role" validate:"required,oneof=owner admin member viewer"`
	AddedBy   *uuid.UUID `gorm:"type:uuid" json:"added_by"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (m BoardMember) Key() uuid.UUID { return m.ID }
