package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"kanban/internal/feed"
	"kanban/internal/model"
)

type LabelRepository struct {
	db       *gorm.DB
	notifier *feed.Notifier
}

func NewLabelRepository(db *gorm.DB, notifier *feed.Notifier) *LabelRepository {
	return &LabelRepository{db: db, notifier: notifier}
}

// Query retrieves all labels of a board, oldest first
func (r *LabelRepository) Query(ctx context.Context, boardID uuid.UUID) ([]model.Label, error) {
	var labels []model.Label
	result := r.db.WithContext(ctx).Where("board_id = ?", boardID).Order("created_at, name").Find(&labels)
	if result.Error != nil {
		return nil, result.Error
	}
	return labels, nil
}

// Get retrieves a label by its ID
func (r *LabelRepository) Get(ctx context.Context, id uuid.UUID) (model.Label, error) {
	return firstLabel(r.db.WithContext(ctx), id)
}

// Insert adds a new label to a board
func (r *LabelRepository) Insert(ctx context.Context, label model.Label) (model.Label, error) {
	if err := r.db.WithContext(ctx).Create(&label).Error; err != nil {
		return model.Label{}, err
	}
	r.notifier.Labels(ctx, feed.Insert, nil, &label)
	return label, nil
}

// Update applies a column patch to a label
func (r *LabelRepository) Update(ctx context.Context, id uuid.UUID, patch model.Patch) (model.Label, error) {
	var before, after model.Label
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		if before, err = firstLabel(tx, id); err != nil {
			return err
		}
		if err = tx.Model(&model.Label{}).Where("id = ?", id).Updates(map[string]any(patch)).Error; err != nil {
			return err
		}
		after, err = firstLabel(tx, id)
		return err
	})
	if err != nil {
		return model.Label{}, err
	}
	r.notifier.Labels(ctx, feed.Update, &before, &after)
	return after, nil
}

// Delete removes a label; card_labels rows go with it by cascade
func (r *LabelRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var before model.Label
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		if before, err = firstLabel(tx, id); err != nil {
			return err
		}
		return tx.Delete(&model.Label{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}
	r.notifier.Labels(ctx, feed.Delete, &before, nil)
	return nil
}

// OfCard retrieves the labels attached to a card
func (r *LabelRepository) OfCard(ctx context.Context, cardID uuid.UUID) ([]model.Label, error) {
	var labels []model.Label
	result := r.db.WithContext(ctx).
		Joins("JOIN card_labels ON card_labels.label_id = labels.id").
		Where("card_labels.card_id = ?", cardID).
		Order("labels.created_at, labels.name").
		Find(&labels)
	if result.Error != nil {
		return nil, result.Error
	}
	return labels, nil
}

// Attach adds a label to a card. Attaching twice is a no-op and announces nothing.
func (r *LabelRepository) Attach(ctx context.Context, cardID, labelID uuid.UUID) error {
	result := r.db.WithContext(ctx).Exec(
		"INSERT INTO card_labels (card_id, label_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		cardID, labelID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		r.notifier.CardLabels(ctx, feed.Insert, model.CardLabel{CardID: cardID, LabelID: labelID})
	}
	return nil
}

// Detach removes a label from a card
func (r *LabelRepository) Detach(ctx context.Context, cardID, labelID uuid.UUID) error {
	result := r.db.WithContext(ctx).Exec(
		"DELETE FROM card_labels WHERE card_id = ? AND label_id = ?",
		cardID, labelID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLabelNotAttached
	}
	r.notifier.CardLabels(ctx, feed.Delete, model.CardLabel{CardID: cardID, LabelID: labelID})
	return nil
}

func firstLabel(db *gorm.DB, id uuid.UUID) (model.Label, error) {
	var label model.Label
	if err := db.First(&label, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Label{}, ErrLabelNotFound
		}
		return model.Label{}, err
	}
	return label, nil
}
