package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanban/internal/feed"
	"kanban/internal/model"
	"kanban/internal/repository"
)

var (
	checklistColumns = []string{"id", "card_id", "title", "position", "created_at", "updated_at"}
	itemColumns      = []string{"id", "checklist_id", "title", "is_complete", "position", "due_date", "assignee_id", "created_at", "updated_at"}
)

func TestChecklistRepository_DeleteClosesGap(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	hub := feed.NewHub(0, nil)
	repo := repository.NewChecklistRepository(gormDB, feed.NewNotifier(hub, nil))
	checklistID, cardID := uuid.New(), uuid.New()
	events := watch(t, hub, feed.ChecklistsOfCard(cardID))
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "checklists" WHERE id = \$1`).
		WithArgs(checklistID, 1).
		WillReturnRows(sqlmock.NewRows(checklistColumns).AddRow(checklistID.String(), cardID.String(), "QA", 0, now, now))
	mock.ExpectExec(`DELETE FROM "checklists" WHERE id = \$1`).
		WithArgs(checklistID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "checklists" SET "position"=position - 1`).
		WithArgs(sqlmock.AnyArg(), cardID, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Act
	err := repo.Delete(context.Background(), checklistID)

	// Assert
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	ev := receive(t, events)
	assert.Equal(t, feed.TableChecklists, ev.Table)
	assert.Equal(t, feed.Delete, ev.Kind)
}

func TestChecklistRepository_MoveStaysOnCard(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewChecklistRepository(gormDB, nil)
	checklistID, cardID := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "checklists" WHERE id = \$1`).
		WithArgs(checklistID, 1).
		WillReturnRows(sqlmock.NewRows(checklistColumns).AddRow(checklistID.String(), cardID.String(), "QA", 0, now, now))
	mock.ExpectRollback()

	// другая карточка: перенос чек-листа между карточками не поддерживается
	_, err := repo.Move(context.Background(), checklistID, uuid.New(), 0)

	assert.ErrorIs(t, err, repository.ErrChecklistNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChecklistRepository_BoardID(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewChecklistRepository(gormDB, nil)
	checklistID, boardID := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT lists.board_id FROM "checklists" JOIN cards ON cards.id = checklists.card_id JOIN lists ON lists.id = cards.list_id WHERE checklists.id = \$1`).
		WithArgs(checklistID).
		WillReturnRows(sqlmock.NewRows([]string{"board_id"}).AddRow(boardID.String()))

	got, err := repo.BoardID(context.Background(), checklistID)

	require.NoError(t, err)
	assert.Equal(t, boardID, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChecklistItemRepository_MoveAcrossChecklists(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	hub := feed.NewHub(0, nil)
	repo := repository.NewChecklistItemRepository(gormDB, feed.NewNotifier(hub, nil))
	itemID, from, to := uuid.New(), uuid.New(), uuid.New()
	fromEvents := watch(t, hub, feed.ItemsOfChecklist(from))
	toEvents := watch(t, hub, feed.ItemsOfChecklist(to))
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "checklist_items" WHERE id = \$1`).
		WithArgs(itemID, 1).
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow(itemID.String(), from.String(), "Write tests", false, 2, nil, nil, now, now))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "checklist_items" WHERE checklist_id = \$1 AND id <> \$2`).
		WithArgs(to, itemID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec(`UPDATE "checklist_items" SET "position"=position - 1`).
		WithArgs(sqlmock.AnyArg(), from, 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE "checklist_items" SET "position"=position \+ 1`).
		WithArgs(sqlmock.AnyArg(), to, 0).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`UPDATE "checklist_items" SET "checklist_id"=\$1,"position"=\$2,"updated_at"=\$3 WHERE id = \$4`).
		WithArgs(to, 0, sqlmock.AnyArg(), itemID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "checklist_items" WHERE id = \$1`).
		WithArgs(itemID, 1).
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow(itemID.String(), to.String(), "Write tests", false, 0, nil, nil, now, now))
	mock.ExpectCommit()

	// Act
	moved, err := repo.Move(context.Background(), itemID, to, 0)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, to, moved.ChecklistID)
	assert.NoError(t, mock.ExpectationsWereMet())
	for _, ch := range []<-chan feed.Event{fromEvents, toEvents} {
		ev := receive(t, ch)
		assert.Equal(t, feed.TableChecklistItems, ev.Table)
		before, err := feed.DecodeRow[model.ChecklistItem](ev.Before)
		require.NoError(t, err)
		assert.Equal(t, from, before.ChecklistID)
	}
}

func TestChecklistItemRepository_ToggleComplete(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewChecklistItemRepository(gormDB, nil)
	itemID, checklistID := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "checklist_items" WHERE id = \$1`).
		WithArgs(itemID, 1).
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow(itemID.String(), checklistID.String(), "Ship", false, 0, nil, nil, now, now))
	mock.ExpectExec(`UPDATE "checklist_items" SET "is_complete"=\$1,"updated_at"=\$2 WHERE id = \$3`).
		WithArgs(true, sqlmock.AnyArg(), itemID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "checklist_items" WHERE id = \$1`).
		WithArgs(itemID, 1).
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow(itemID.String(), checklistID.String(), "Ship", true, 0, nil, nil, now, now))
	mock.ExpectCommit()

	item, err := repo.Update(context.Background(), itemID, model.Patch{"is_complete": true})

	require.NoError(t, err)
	assert.True(t, item.IsComplete)
	assert.NoError(t, mock.ExpectationsWereMet())
}
