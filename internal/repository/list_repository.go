package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"kanban/internal/feed"
	"kanban/internal/model"
	"kanban/internal/position"
)

type ListRepository struct {
	db       *gorm.DB
	notifier *feed.Notifier
}

func NewListRepository(db *gorm.DB, notifier *feed.Notifier) *ListRepository {
	return &ListRepository{db: db, notifier: notifier}
}

// Query returns the lists of a board ordered by position
func (r *ListRepository) Query(ctx context.Context, boardID uuid.UUID) ([]model.List, error) {
	var lists []model.List
	err := r.db.WithContext(ctx).Where("board_id = ?", boardID).Order("position").Find(&lists).Error
	return lists, err
}

func (r *ListRepository) Get(ctx context.Context, id uuid.UUID) (model.List, error) {
	return firstList(r.db.WithContext(ctx), id)
}

func (r *ListRepository) Insert(ctx context.Context, list model.List) (model.List, error) {
	if err := r.db.WithContext(ctx).Create(&list).Error; err != nil {
		return model.List{}, err
	}
	r.notifier.Lists(ctx, feed.Insert, nil, &list)
	return list, nil
}

func (r *ListRepository) Update(ctx context.Context, id uuid.UUID, patch model.Patch) (model.List, error) {
	var before, after model.List
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		if before, err = firstList(tx, id); err != nil {
			return err
		}
		if err = tx.Model(&model.List{}).Where("id = ?", id).Updates(map[string]any(patch)).Error; err != nil {
			return err
		}
		after, err = firstList(tx, id)
		return err
	})
	if err != nil {
		return model.List{}, err
	}
	r.notifier.Lists(ctx, feed.Update, &before, &after)
	return after, nil
}

// Delete removes a list, its cards by cascade, and closes the position gap it leaves
func (r *ListRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var before model.List
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		if before, err = firstList(tx, id); err != nil {
			return err
		}
		if err = tx.Delete(&model.List{}, "id = ?", id).Error; err != nil {
			return err
		}
		return closeGap(tx, &model.List{}, "board_id", before.BoardID, before.Position)
	})
	if err != nil {
		return err
	}
	r.notifier.Lists(ctx, feed.Delete, &before, nil)
	return nil
}

// BatchUpsert writes new positions for lists of one board in a single transaction
func (r *ListRepository) BatchUpsert(ctx context.Context, boardID uuid.UUID, placements []position.Placement) error {
	if len(placements) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return applyPlacements(tx, &model.List{}, "board_id", boardID, placements)
	})
	if err != nil {
		return err
	}
	r.notifier.ListsReordered(ctx, boardID)
	return nil
}

// Move puts a list at pos on boardID, shifting the lists around it
func (r *ListRepository) Move(ctx context.Context, id, boardID uuid.UUID, pos int) (model.List, error) {
	var before, after model.List
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		if before, err = firstList(tx, id); err != nil {
			return err
		}
		if _, err = shiftMove(tx, &model.List{}, "board_id", id, before.BoardID, before.Position, boardID, pos); err != nil {
			return err
		}
		after, err = firstList(tx, id)
		return err
	})
	if err != nil {
		return model.List{}, err
	}
	r.notifier.Lists(ctx, feed.Update, &before, &after)
	return after, nil
}

func firstList(db *gorm.DB, id uuid.UUID) (model.List, error) {
	var list model.List
	if err := db.First(&list, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.List{}, ErrListNotFound
		}
		return model.List{}, err
	}
	return list, nil
}
