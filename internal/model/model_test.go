package model_test

import (
	"strings"
	"testing"

	"kanban/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRole_AtLeast(t *testing.T) {
	assert.True(t, model.RoleOwner.AtLeast(model.RoleAdmin))
	assert.True(t, model.RoleMember.AtLeast(model.RoleMember))
	assert.False(t, model.RoleViewer.AtLeast(model.RoleMember))
	assert.False(t, model.Role("guest").AtLeast(model.RoleViewer))
	assert.False(t, model.Role("guest").Valid())
}

func TestPatch_Check(t *testing.T) {
	assert.NoError(t, model.Patch{"title": "Doing"}.Check(model.ListColumns))
	assert.ErrorIs(t, model.Patch{"position": 3}.Check(model.ListColumns), model.ErrPositionalPatch)
	assert.ErrorIs(t, model.Patch{"list_id": uuid.New()}.Check(model.CardColumns), model.ErrPositionalPatch)
	assert.ErrorIs(t, model.Patch{"color": "red"}.Check(model.ListColumns), model.ErrInvalidPatch)
	assert.Error(t, model.Patch{}.Check(model.ListColumns))
}

func TestPatch_CheckValues(t *testing.T) {
	tests := []struct {
		name    string
		patch   model.Patch
		columns model.Columns
		wantErr bool
	}{
		{"empty title", model.Patch{"title": ""}, model.ListColumns, true},
		{"blank title", model.Patch{"title": "   "}, model.CardColumns, true},
		{"null title", model.Patch{"title": nil}, model.CardColumns, true},
		{"numeric title", model.Patch{"title": 42.0}, model.BoardColumns, true},
		{"cleared description", model.Patch{"description": nil}, model.CardColumns, false},
		{"due date", model.Patch{"due_date": "2026-03-01T10:00:00Z"}, model.CardColumns, false},
		{"bad due date", model.Patch{"due_date": "next friday"}, model.CardColumns, true},
		{"cleared due date", model.Patch{"due_date": nil}, model.CardColumns, false},
		{"too long title", model.Patch{"title": strings.Repeat("a", 256)}, model.ListColumns, true},
		{"label color", model.Patch{"color": "#1e90ff"}, model.LabelColumns, false},
		{"label color name", model.Patch{"color": "blue-ish"}, model.LabelColumns, true},
		{"completed item", model.Patch{"is_complete": true}, model.ChecklistItemColumns, false},
		{"completed as string", model.Patch{"is_complete": "true"}, model.ChecklistItemColumns, true},
		{"assignee", model.Patch{"assignee_id": "5f1c0f8e-2b7a-4c53-9d0e-3f8a1b2c4d5e"}, model.ChecklistItemColumns, false},
		{"bad assignee", model.Patch{"assignee_id": "bob"}, model.ChecklistItemColumns, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Check(tt.columns)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrInvalidPatch)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	good := model.List{ID: uuid.New(), BoardID: uuid.New(), Title: "Todo", Position: 0}
	assert.NoError(t, model.Validate(good))

	// Missing id: the row was not produced by the backend.
	assert.ErrorIs(t, model.Validate(model.List{BoardID: uuid.New(), Title: "Todo"}), model.ErrInvalidRow)
	assert.ErrorIs(t, model.Validate(model.Card{ID: uuid.New(), ListID: uuid.New(), Title: "x", Position: -1}), model.ErrInvalidRow)

	member := model.BoardMember{ID: uuid.New(), BoardID: uuid.New(), UserID: uuid.New(), Role: "guest"}
	assert.ErrorIs(t, model.Validate(member), model.ErrInvalidRow)

	assert.ErrorIs(t, model.ValidateAll([]model.List{good, {}}), model.ErrInvalidRow)
}
