package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"kanban/internal/position"
)

// Helpers shared by the list and card repositories. row is a pointer to the
// model (&model.List{}), parentCol its parent column.

func closeGap(tx *gorm.DB, row any, parentCol string, parentID uuid.UUID, pos int) error {
	return tx.Model(row).
		Where(parentCol+" = ? AND position > ?", parentID, pos).
		Update("position", gorm.Expr("position - 1")).Error
}

func applyPlacements(tx *gorm.DB, row any, parentCol string, parentID uuid.UUID, placements []position.Placement) error {
	for _, p := range placements {
		if err := tx.Model(row).
			Where("id = ? AND "+parentCol+" = ?", p.ID, parentID).
			Update("position", p.Position).Error; err != nil {
			return err
		}
	}
	return nil
}

// shiftMove moves one row to newPos under newParent and shifts its old and
// new siblings so both stay dense. newPos is clamped to the valid range.
func shiftMove(tx *gorm.DB, row any, parentCol string, id, oldParent uuid.UUID, oldPos int, newParent uuid.UUID, newPos int) (int, error) {
	var count int64
	if err := tx.Model(row).
		Where(parentCol+" = ? AND id <> ?", newParent, id).
		Count(&count).Error; err != nil {
		return 0, err
	}
	newPos = max(0, min(newPos, int(count)))

	if oldParent != newParent {
		// Close the gap in the old parent
		if err := closeGap(tx, row, parentCol, oldParent, oldPos); err != nil {
			return 0, err
		}
		// Make room in the new parent
		if err := tx.Model(row).
			Where(parentCol+" = ? AND position >= ?", newParent, newPos).
			Update("position", gorm.Expr("position + 1")).Error; err != nil {
			return 0, err
		}
	} else if oldPos < newPos {
		// Moving down: pull up everything between old and new
		if err := tx.Model(row).
			Where(parentCol+" = ? AND position > ? AND position <= ?", newParent, oldPos, newPos).
			Update("position", gorm.Expr("position - 1")).Error; err != nil {
			return 0, err
		}
	} else if oldPos > newPos {
		// Moving up: push down everything between new and old
		if err := tx.Model(row).
			Where(parentCol+" = ? AND position >= ? AND position < ?", newParent, newPos, oldPos).
			Update("position", gorm.Expr("position + 1")).Error; err != nil {
			return 0, err
		}
	}

	err := tx.Model(row).
		Where("id = ?", id).
		Updates(map[string]any{parentCol: newParent, "position": newPos}).Error
	return newPos, err
}
