package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"kanban/internal/feed"
	"kanban/internal/model"
)

type CommentRepository struct {
	db       *gorm.DB
	notifier *feed.Notifier
}

func NewCommentRepository(db *gorm.DB, notifier *feed.Notifier) *CommentRepository {
	return &CommentRepository{db: db, notifier: notifier}
}

// Query returns the comments of a card, oldest first
func (r *CommentRepository) Query(ctx context.Context, cardID uuid.UUID) ([]model.Comment, error) {
	var comments []model.Comment
	err := r.db.WithContext(ctx).Where("card_id = ?", cardID).Order("created_at").Find(&comments).Error
	return comments, err
}

func (r *CommentRepository) Get(ctx context.Context, id uuid.UUID) (model.Comment, error) {
	var comment model.Comment
	if err := r.db.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Comment{}, ErrCommentNotFound
		}
		return model.Comment{}, err
	}
	return comment, nil
}

func (r *CommentRepository) Insert(ctx context.Context, comment model.Comment) (model.Comment, error) {
	if err := r.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return model.Comment{}, err
	}
	r.notifier.Comments(ctx, feed.Insert, nil, &comment)
	return comment, nil
}

func (r *CommentRepository) Update(ctx context.Context, id uuid.UUID, patch model.Patch) (model.Comment, error) {
	var before, after model.Comment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&before, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Comment{}).Where("id = ?", id).Updates(map[string]any(patch)).Error; err != nil {
			return err
		}
		return tx.First(&after, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Comment{}, ErrCommentNotFound
	}
	if err != nil {
		return model.Comment{}, err
	}
	r.notifier.Comments(ctx, feed.Update, &before, &after)
	return after, nil
}

func (r *CommentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var before model.Comment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&before, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Comment{}, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrCommentNotFound
	}
	if err != nil {
		return err
	}
	r.notifier.Comments(ctx, feed.Delete, &before, nil)
	return nil
}
