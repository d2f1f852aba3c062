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

type CardRepository struct {
	db       *gorm.DB
	notifier *feed.Notifier
}

func NewCardRepository(db *gorm.DB, notifier *feed.Notifier) *CardRepository {
	return &CardRepository{db: db, notifier: notifier}
}

// Query retrieves all cards in a list ordered by position
func (r *CardRepository) Query(ctx context.Context, listID uuid.UUID) ([]model.Card, error) {
	var cards []model.Card
	result := r.db.WithContext(ctx).Where("list_id = ?", listID).Order("position").Find(&cards)
	if result.Error != nil {
		return nil, result.Error
	}
	return cards, nil
}

// Get retrieves a card by its ID
func (r *CardRepository) Get(ctx context.Context, id uuid.UUID) (model.Card, error) {
	return firstCard(r.db.WithContext(ctx), id)
}

// Insert adds a new card and returns the stored row
func (r *CardRepository) Insert(ctx context.Context, card model.Card) (model.Card, error) {
	if err := r.db.WithContext(ctx).Create(&card).Error; err != nil {
		return model.Card{}, err
	}
	r.notifier.Cards(ctx, feed.Insert, nil, &card)
	return card, nil
}

// Update applies a column patch to a card
func (r *CardRepository) Update(ctx context.Context, id uuid.UUID, patch model.Patch) (model.Card, error) {
	var before, after model.Card
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		if before, err = firstCard(tx, id); err != nil {
			return err
		}
		if err = tx.Model(&model.Card{}).Where("id = ?", id).Updates(map[string]any(patch)).Error; err != nil {
			return err
		}
		after, err = firstCard(tx, id)
		return err
	})
	if err != nil {
		return model.Card{}, err
	}
	r.notifier.Cards(ctx, feed.Update, &before, &after)
	return after, nil
}

// Delete removes a card and closes the gap in its list
func (r *CardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var before model.Card
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		if before, err = firstCard(tx, id); err != nil {
			return err
		}
		if err = tx.Delete(&model.Card{}, "id = ?", id).Error; err != nil {
			return err
		}
		return closeGap(tx, &model.Card{}, "list_id", before.ListID, before.Position)
	})
	if err != nil {
		return err
	}
	r.notifier.Cards(ctx, feed.Delete, &before, nil)
	return nil
}

// BatchUpsert writes new positions for cards of one list
func (r *CardRepository) BatchUpsert(ctx context.Context, listID uuid.UUID, placements []position.Placement) error {
	if len(placements) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return applyPlacements(tx, &model.Card{}, "list_id", listID, placements)
	})
	if err != nil {
		return err
	}
	r.notifier.CardsReordered(ctx, listID)
	return nil
}

// Move updates the list and/or position of a card, shifting siblings on both sides
func (r *CardRepository) Move(ctx context.Context, id, listID uuid.UUID, pos int) (model.Card, error) {
	var before, after model.Card
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		if before, err = firstCard(tx, id); err != nil {
			return err
		}
		if _, err = shiftMove(tx, &model.Card{}, "list_id", id, before.ListID, before.Position, listID, pos); err != nil {
			return err
		}
		after, err = firstCard(tx, id)
		return err
	})
	if err != nil {
		return model.Card{}, err
	}
	r.notifier.Cards(ctx, feed.Update, &before, &after)
	return after, nil
}

// BoardID returns the board a card belongs to through its list
func (r *CardRepository) BoardID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var row struct{ BoardID uuid.UUID }
	result := r.db.WithContext(ctx).
		Table("cards").
		Select("lists.board_id").
		Joins("JOIN lists ON lists.id = cards.list_id").
		Where("cards.id = ?", id).
		Scan(&row)
	if result.Error != nil {
		return uuid.Nil, result.Error
	}
	if result.RowsAffected == 0 {
		return uuid.Nil, ErrCardNotFound
	}
	return row.BoardID, nil
}

func firstCard(db *gorm.DB, id uuid.UUID) (model.Card, error) {
	var card model.Card
	if err := db.First(&card, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Card{}, ErrCardNotFound
		}
		return model.Card{}, err
	}
	return card, nil
}
