package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanban/internal/model"
	"kanban/internal/store"
	"kanban/internal/store/storetest"
)

func labelNames(labels []model.Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = l.Name
	}
	return out
}

func TestLabelStore_CreateUpdateDelete(t *testing.T) {
	// Arrange
	boardID := uuid.New()
	backend := storetest.NewLabels(nil)
	s := store.NewLabelStore(backend)
	ctx := context.Background()
	require.NoError(t, s.Fetch(ctx, boardID))

	// Act
	bug, err := s.Create(ctx, boardID, "bug", "#ff0000")
	require.NoError(t, err)
	_, err = s.Create(ctx, boardID, "feature", "#00ff00")
	require.NoError(t, err)
	_, err = s.Update(ctx, bug.ID, model.Patch{"name": "defect"})
	require.NoError(t, err)

	// Assert
	assert.Equal(t, []string{"defect", "feature"}, labelNames(s.Snapshot(boardID)))

	require.NoError(t, s.Delete(ctx, bug.ID))
	assert.Equal(t, []string{"feature"}, labelNames(s.Snapshot(boardID)))
}

func TestLabelStore_RejectsInvalidPatchBeforeWriting(t *testing.T) {
	boardID := uuid.New()
	label := model.Label{ID: uuid.New(), BoardID: boardID, Name: "bug", Color: "#ff0000"}
	backend := storetest.NewLabels(nil)
	backend.Seed(label)
	s := store.NewLabelStore(backend)
	ctx := context.Background()
	require.NoError(t, s.Fetch(ctx, boardID))

	for name, patch := range map[string]model.Patch{
		"empty name":    {"name": ""},
		"not a color":   {"color": "red-ish"},
		"board changed": {"board_id": uuid.New().String()},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Update(ctx, label.ID, patch)

			var werr *store.WriteError
			require.ErrorAs(t, err, &werr)
			assert.ErrorIs(t, err, model.ErrInvalidPatch)
		})
	}
	assert.Zero(t, backend.Writes())
	assert.Equal(t, []string{"bug"}, labelNames(s.Snapshot(boardID)))
}

func TestLabelStore_CreateRejectsBadColor(t *testing.T) {
	backend := storetest.NewLabels(nil)
	s := store.NewLabelStore(backend)

	_, err := s.Create(context.Background(), uuid.New(), "bug", "not-a-color")

	// бэкенд вернул строку, которая не проходит валидацию модели
	assert.ErrorIs(t, err, model.ErrInvalidRow)
}
