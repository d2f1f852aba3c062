package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"kanban/internal/feed"
	"kanban/internal/model"
)

type BoardRepository struct {
	db       *gorm.DB
	notifier *feed.Notifier
}

func NewBoardRepository(db *gorm.DB, notifier *feed.Notifier) *BoardRepository {
	return &BoardRepository{db: db, notifier: notifier}
}

// ListForUser returns the boards a user owns or is a member of, newest first
func (r *BoardRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Board, error) {
	var boards []model.Board
	memberOf := r.db.Model(&model.BoardMember{}).Select("board_id").Where("user_id = ?", userID)
	err := r.db.WithContext(ctx).
		Where("owner_id = ? OR id IN (?)", userID, memberOf).
		Order("created_at DESC").
		Find(&boards).Error
	return boards, err
}

func (r *BoardRepository) Get(ctx context.Context, id uuid.UUID) (model.Board, error) {
	var board model.Board
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&board).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Board{}, ErrBoardNotFound
		}
		return model.Board{}, err
	}
	return board, nil
}

// Insert creates a board together with its owner membership
func (r *BoardRepository) Insert(ctx context.Context, board model.Board) (model.Board, error) {
	var owner model.BoardMember
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&board).Error; err != nil {
			return err
		}
		owner = model.BoardMember{BoardID: board.ID, UserID: board.OwnerID, Role: model.RoleOwner}
		return tx.Create(&owner).Error
	})
	if err != nil {
		return model.Board{}, err
	}
	r.notifier.Boards(ctx, feed.Insert, nil, &board)
	r.notifier.Members(ctx, feed.Insert, nil, &owner)
	return board, nil
}

func (r *BoardRepository) Update(ctx context.Context, id uuid.UUID, patch model.Patch) (model.Board, error) {
	var before, after model.Board
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&before, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Board{}).Where("id = ?", id).Updates(map[string]any(patch)).Error; err != nil {
			return err
		}
		return tx.First(&after, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Board{}, ErrBoardNotFound
	}
	if err != nil {
		return model.Board{}, err
	}
	r.notifier.Boards(ctx, feed.Update, &before, &after)
	return after, nil
}

// Delete removes a board; lists, cards, comments and members go with it by cascade
func (r *BoardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var before model.Board
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&before, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Board{}, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrBoardNotFound
	}
	if err != nil {
		return err
	}
	r.notifier.Boards(ctx, feed.Delete, &before, nil)
	return nil
}
