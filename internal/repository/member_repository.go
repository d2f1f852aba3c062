package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"kanban/internal/feed"
	"kanban/internal/model"
)

type MemberRepository struct {
	db       *gorm.DB
	notifier *feed.Notifier
}

func NewMemberRepository(db *gorm.DB, notifier *feed.Notifier) *MemberRepository {
	return &MemberRepository{db: db, notifier: notifier}
}

// Query returns the members of a board
func (r *MemberRepository) Query(ctx context.Context, boardID uuid.UUID) ([]model.BoardMember, error) {
	var members []model.BoardMember
	err := r.db.WithContext(ctx).Where("board_id = ?", boardID).Order("created_at").Find(&members).Error
	return members, err
}

// Insert adds a user to a board. If the user is already a member the
// existing membership takes the new role instead.
func (r *MemberRepository) Insert(ctx context.Context, member model.BoardMember) (model.BoardMember, error) {
	if member.Role == model.RoleOwner {
		return model.BoardMember{}, ErrOwnerImmutable
	}
	var before *model.BoardMember
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.BoardMember
		err := tx.Where("board_id = ? AND user_id = ?", member.BoardID, member.UserID).First(&existing).Error
		if err == nil {
			if existing.Role == model.RoleOwner {
				return ErrOwnerImmutable
			}
			prev := existing
			before = &prev
			existing.Role = member.Role
			member = existing
			return tx.Model(&model.BoardMember{}).Where("id = ?", existing.ID).Update("role", member.Role).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		return model.BoardMember{}, err
	}
	if before != nil {
		r.notifier.Members(ctx, feed.Update, before, &member)
	} else {
		r.notifier.Members(ctx, feed.Insert, nil, &member)
	}
	return member, nil
}

// Update changes a member's role. The owner membership is immutable and no
// one can be promoted to owner.
func (r *MemberRepository) Update(ctx context.Context, id uuid.UUID, patch model.Patch) (model.BoardMember, error) {
	var before, after model.BoardMember
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		if before, err = firstMember(tx, id); err != nil {
			return err
		}
		if before.Role == model.RoleOwner || patch["role"] == model.RoleOwner || patch["role"] == string(model.RoleOwner) {
			return ErrOwnerImmutable
		}
		if err = tx.Model(&model.BoardMember{}).Where("id = ?", id).Updates(map[string]any(patch)).Error; err != nil {
			return err
		}
		after, err = firstMember(tx, id)
		return err
	})
	if err != nil {
		return model.BoardMember{}, err
	}
	r.notifier.Members(ctx, feed.Update, &before, &after)
	return after, nil
}

func (r *MemberRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var before model.BoardMember
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		if before, err = firstMember(tx, id); err != nil {
			return err
		}
		if before.Role == model.RoleOwner {
			return ErrOwnerImmutable
		}
		return tx.Delete(&model.BoardMember{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}
	r.notifier.Members(ctx, feed.Delete, &before, nil)
	return nil
}

// Get returns one membership by id
func (r *MemberRepository) Get(ctx context.Context, id uuid.UUID) (model.BoardMember, error) {
	return firstMember(r.db.WithContext(ctx), id)
}

// Role returns the user's role on a board, or "" without access
func (r *MemberRepository) Role(ctx context.Context, boardID, userID uuid.UUID) (model.Role, error) {
	var member model.BoardMember
	err := r.db.WithContext(ctx).
		Where("board_id = ? AND user_id = ?", boardID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return member.Role, nil
}

// CheckAccess reports whether the user holds at least the required role on a board
func (r *MemberRepository) CheckAccess(ctx context.Context, boardID, userID uuid.UUID, required model.Role) (bool, error) {
	role, err := r.Role(ctx, boardID, userID)
	if err != nil {
		return false, err
	}
	return role.AtLeast(required), nil
}

func firstMember(db *gorm.DB, id uuid.UUID) (model.BoardMember, error) {
	var member model.BoardMember
	if err := db.First(&member, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.BoardMember{}, ErrMemberNotFound
		}
		return model.BoardMember{}, err
	}
	return member, nil
}
