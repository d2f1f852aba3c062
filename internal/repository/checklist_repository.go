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

type ChecklistRepository struct {
	db       *gorm.DB
	notifier *feed.Notifier
}

func NewChecklistRepository(db *gorm.DB, notifier *feed.Notifier) *ChecklistRepository {
	return &ChecklistRepository{db: db, notifier: notifier}
}

// Query returns the checklists of a card ordered by position
func (r *ChecklistRepository) Query(ctx context.Context, cardID uuid.UUID) ([]model.Checklist, error) {
	var checklists []model.Checklist
	err := r.db.WithContext(ctx).Where("card_id = ?", cardID).Order("position").Find(&checklists).Error
	return checklists, err
}

func (r *ChecklistRepository) Get(ctx context.Context, id uuid.UUID) (model.Checklist, error) {
	return firstChecklist(r.db.WithContext(ctx), id)
}

func (r *ChecklistRepository) Insert(ctx context.Context, checklist model.Checklist) (model.Checklist, error) {
	if err := r.db.WithContext(ctx).Create(&checklist).Error; err != nil {
		return model.Checklist{}, err
	}
	r.notifier.Checklists(ctx, feed.Insert, nil, &checklist)
	return checklist, nil
}

func (r *ChecklistRepository) Update(ctx context.Context, id uuid.UUID, patch model.Patch) (model.Checklist, error) {
	var before, after model.Checklist
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		if before, err = firstChecklist(tx, id); err != nil {
			return err
		}
		if err = tx.Model(&model.Checklist{}).Where("id = ?", id).Updates(map[string]any(patch)).Error; err != nil {
			return err
		}
		after, err = firstChecklist(tx, id)
		return err
	})
	if err != nil {
		return model.Checklist{}, err
	}
	r.notifier.Checklists(ctx, feed.Update, &before, &after)
	return after, nil
}

// Delete removes a checklist with its items and closes the gap on the card
func (r *ChecklistRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var before model.Checklist
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		if before, err = firstChecklist(tx, id); err != nil {
			return err
		}
		if err = tx.Delete(&model.Checklist{}, "id = ?", id).Error; err != nil {
			return err
		}
		return closeGap(tx, &model.Checklist{}, "card_id", before.CardID, before.Position)
	})
	if err != nil {
		return err
	}
	r.notifier.Checklists(ctx, feed.Delete, &before, nil)
	return nil
}

func (r *ChecklistRepository) BatchUpsert(ctx context.Context, cardID uuid.UUID, placements []position.Placement) error {
	if len(placements) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return applyPlacements(tx, &model.Checklist{}, "card_id", cardID, placements)
	})
	if err != nil {
		return err
	}
	r.notifier.ChecklistsReordered(ctx, cardID)
	return nil
}

// Move repositions a checklist on its card. Checklists never change cards.
func (r *ChecklistRepository) Move(ctx context.Context, id, cardID uuid.UUID, pos int) (model.Checklist, error) {
	var before, after model.Checklist
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		if before, err = firstChecklist(tx, id); err != nil {
			return err
		}
		if before.CardID != cardID {
			return ErrChecklistNotFound
		}
		if _, err = shiftMove(tx, &model.Checklist{}, "card_id", id, before.CardID, before.Position, cardID, pos); err != nil {
			return err
		}
		after, err = firstChecklist(tx, id)
		return err
	})
	if err != nil {
		return model.Checklist{}, err
	}
	r.notifier.Checklists(ctx, feed.Update, &before, &after)
	return after, nil
}

// BoardID returns the board a checklist belongs to through its card and list
func (r *ChecklistRepository) BoardID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var row struct{ BoardID uuid.UUID }
	result := r.db.WithContext(ctx).
		Table("checklists").
		Select("lists.board_id").
		Joins("JOIN cards ON cards.id = checklists.card_id").
		Joins("JOIN lists ON lists.id = cards.list_id").
		Where("checklists.id = ?", id).
		Scan(&row)
	if result.Error != nil {
		return uuid.Nil, result.Error
	}
	if result.RowsAffected == 0 {
		return uuid.Nil, ErrChecklistNotFound
	}
	return row.BoardID, nil
}

func firstChecklist(db *gorm.DB, id uuid.UUID) (model.Checklist, error) {
	var checklist model.Checklist
	if err := db.First(&checklist, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Checklist{}, ErrChecklistNotFound
		}
		return model.Checklist{}, err
	}
	return checklist, nil
}

type ChecklistItemRepository struct {
	db       *gorm.DB
	notifier *feed.Notifier
}

func NewChecklistItemRepository(db *gorm.DB, notifier *feed.Notifier) *ChecklistItemRepository {
	return &ChecklistItemRepository{db: db, notifier: notifier}
}

// Query returns the items of a checklist ordered by position
func (r *ChecklistItemRepository) Query(ctx context.Context, checklistID uuid.UUID) ([]model.ChecklistItem, error) {
	var items []model.ChecklistItem
	err := r.db.WithContext(ctx).Where("checklist_id = ?", checklistID).Order("position").Find(&items).Error
	return items, err
}

func (r *ChecklistItemRepository) Get(ctx context.Context, id uuid.UUID) (model.ChecklistItem, error) {
	return firstItem(r.db.WithContext(ctx), id)
}

func (r *ChecklistItemRepository) Insert(ctx context.Context, item model.ChecklistItem) (model.ChecklistItem, error) {
	if err := r.db.WithContext(ctx).Create(&item).Error; err != nil {
		return model.ChecklistItem{}, err
	}
	r.notifier.ChecklistItems(ctx, feed.Insert, nil, &item)
	return item, nil
}

func (r *ChecklistItemRepository) Update(ctx context.Context, id uuid.UUID, patch model.Patch) (model.ChecklistItem, error) {
	var before, after model.ChecklistItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		if before, err = firstItem(tx, id); err != nil {
			return err
		}
		if err = tx.Model(&model.ChecklistItem{}).Where("id = ?", id).Updates(map[string]any(patch)).Error; err != nil {
			return err
		}
		after, err = firstItem(tx, id)
		return err
	})
	if err != nil {
		return model.ChecklistItem{}, err
	}
	r.notifier.ChecklistItems(ctx, feed.Update, &before, &after)
	return after, nil
}

func (r *ChecklistItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var before model.ChecklistItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		if before, err = firstItem(tx, id); err != nil {
			return err
		}
		if err = tx.Delete(&model.ChecklistItem{}, "id = ?", id).Error; err != nil {
			return err
		}
		return closeGap(tx, &model.ChecklistItem{}, "checklist_id", before.ChecklistID, before.Position)
	})
	if err != nil {
		return err
	}
	r.notifier.ChecklistItems(ctx, feed.Delete, &before, nil)
	return nil
}

func (r *ChecklistItemRepository) BatchUpsert(ctx context.Context, checklistID uuid.UUID, placements []position.Placement) error {
	if len(placements) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return applyPlacements(tx, &model.ChecklistItem{}, "checklist_id", checklistID, placements)
	})
	if err != nil {
		return err
	}
	r.notifier.ItemsReordered(ctx, checklistID)
	return nil
}

// Move reparents an item under checklistID at pos, shifting siblings on both sides
func (r *ChecklistItemRepository) Move(ctx context.Context, id, checklistID uuid.UUID, pos int) (model.ChecklistItem, error) {
	var before, after model.ChecklistItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		if before, err = firstItem(tx, id); err != nil {
			return err
		}
		if _, err = shiftMove(tx, &model.ChecklistItem{}, "checklist_id", id, before.ChecklistID, before.Position, checklistID, pos); err != nil {
			return err
		}
		after, err = firstItem(tx, id)
		return err
	})
	if err != nil {
		return model.ChecklistItem{}, err
	}
	r.notifier.ChecklistItems(ctx, feed.Update, &before, &after)
	return after, nil
}

func firstItem(db *gorm.DB, id uuid.UUID) (model.ChecklistItem, error) {
	var item model.ChecklistItem
	if err := db.First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ChecklistItem{}, ErrItemNotFound
		}
		return model.ChecklistItem{}, err
	}
	return item, nil
}
