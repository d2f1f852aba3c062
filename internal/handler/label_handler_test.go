package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"kanban/internal/handler"
	"kanban/internal/model"
	"kanban/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLabelRepository struct {
	mock.Mock
}

func (m *MockLabelRepository) Query(ctx context.Context, boardID uuid.UUID) ([]model.Label, error) {
	args := m.Called(ctx, boardID)
	labels, _ := args.Get(0).([]model.Label)
	return labels, args.Error(1)
}

func (m *MockLabelRepository) Insert(ctx context.Context, label model.Label) (model.Label, error) {
	args := m.Called(ctx, label)
	return args.Get(0).(model.Label), args.Error(1)
}

func (m *MockLabelRepository) Update(ctx context.Context, id uuid.UUID, patch model.Patch) (model.Label, error) {
	args := m.Called(ctx, id, patch)
	return args.Get(0).(model.Label), args.Error(1)
}

func (m *MockLabelRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockLabelRepository) Get(ctx context.Context, id uuid.UUID) (model.Label, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Label), args.Error(1)
}

func (m *MockLabelRepository) OfCard(ctx context.Context, cardID uuid.UUID) ([]model.Label, error) {
	args := m.Called(ctx, cardID)
	labels, _ := args.Get(0).([]model.Label)
	return labels, args.Error(1)
}

func (m *MockLabelRepository) Attach(ctx context.Context, cardID, labelID uuid.UUID) error {
	return m.Called(ctx, cardID, labelID).Error(0)
}

func (m *MockLabelRepository) Detach(ctx context.Context, cardID, labelID uuid.UUID) error {
	return m.Called(ctx, cardID, labelID).Error(0)
}

func setupLabels(userID, boardID uuid.UUID) (*gin.Engine, *MockLabelRepository, *MockAccess) {
	labels := new(MockLabelRepository)
	access := new(MockAccess)
	h := handler.NewLabelHandler(labels, fixedBoard(boardID), access)

	r := newRouter(userID)
	r.GET("/boards/:id/labels", h.GetAll)
	r.POST("/boards/:id/labels", h.Create)
	r.PUT("/labels/:id", h.Update)
	r.DELETE("/labels/:id", h.Delete)
	r.GET("/cards/:id/labels", h.GetForCard)
	r.POST("/cards/:id/labels/:labelId", h.Attach)
	r.DELETE("/cards/:id/labels/:labelId", h.Detach)
	return r, labels, access
}

func TestLabelHandler_Create(t *testing.T) {
	// Arrange
	userID, boardID := uuid.New(), uuid.New()
	router, labels, access := setupLabels(userID, boardID)
	access.On("CheckAccess", mock.Anything, boardID, userID, model.RoleMember).Return(true, nil)
	labels.On("Insert", mock.Anything, model.Label{BoardID: boardID, Name: "bug", Color: "#ff0000"}).
		Return(model.Label{ID: uuid.New(), BoardID: boardID, Name: "bug", Color: "#ff0000"}, nil)

	// Act
	resp := doJSON(router, "POST", "/boards/"+boardID.String()+"/labels", handler.CreateLabelRequest{Name: "bug", Color: "#ff0000"})

	// Assert
	require.Equal(t, http.StatusCreated, resp.Code)
	var label model.Label
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &label))
	assert.Equal(t, "bug", label.Name)
	labels.AssertExpectations(t)
}

func TestLabelHandler_CreateRejectsInvalidValues(t *testing.T) {
	userID, boardID := uuid.New(), uuid.New()
	router, labels, access := setupLabels(userID, boardID)
	access.On("CheckAccess", mock.Anything, boardID, userID, model.RoleMember).Return(true, nil)

	for _, req := range []handler.CreateLabelRequest{
		{Name: "   ", Color: "#ff0000"},
		{Name: "bug", Color: "reddish"},
	} {
		resp := doJSON(router, "POST", "/boards/"+boardID.String()+"/labels", req)
		assert.Equal(t, http.StatusBadRequest, resp.Code, req)
	}
	labels.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestLabelHandler_UpdateRejectsBadColor(t *testing.T) {
	userID, boardID := uuid.New(), uuid.New()
	router, labels, access := setupLabels(userID, boardID)
	label := model.Label{ID: uuid.New(), BoardID: boardID, Name: "bug", Color: "#ff0000"}
	labels.On("Get", mock.Anything, label.ID).Return(label, nil)
	access.On("CheckAccess", mock.Anything, boardID, userID, model.RoleMember).Return(true, nil)

	resp := doJSON(router, "PUT", "/labels/"+label.ID.String(), map[string]any{"color": ""})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	labels.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestLabelHandler_AttachToCard(t *testing.T) {
	// Arrange
	userID, boardID, cardID := uuid.New(), uuid.New(), uuid.New()
	router, labels, access := setupLabels(userID, boardID)
	label := model.Label{ID: uuid.New(), BoardID: boardID, Name: "bug", Color: "#ff0000"}
	access.On("CheckAccess", mock.Anything, boardID, userID, model.RoleMember).Return(true, nil)
	labels.On("Get", mock.Anything, label.ID).Return(label, nil)
	labels.On("Attach", mock.Anything, cardID, label.ID).Return(nil)

	// Act
	resp := doJSON(router, "POST", "/cards/"+cardID.String()+"/labels/"+label.ID.String(), nil)

	// Assert
	assert.Equal(t, http.StatusNoContent, resp.Code)
	labels.AssertExpectations(t)
}

func TestLabelHandler_AttachForeignLabel(t *testing.T) {
	userID, boardID, cardID := uuid.New(), uuid.New(), uuid.New()
	router, labels, access := setupLabels(userID, boardID)
	// метка с другой доски
	foreign := model.Label{ID: uuid.New(), BoardID: uuid.New(), Name: "bug", Color: "#ff0000"}
	access.On("CheckAccess", mock.Anything, boardID, userID, model.RoleMember).Return(true, nil)
	labels.On("Get", mock.Anything, foreign.ID).Return(foreign, nil)

	resp := doJSON(router, "POST", "/cards/"+cardID.String()+"/labels/"+foreign.ID.String(), nil)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	labels.AssertNotCalled(t, "Attach", mock.Anything, mock.Anything, mock.Anything)
}

func TestLabelHandler_DetachMissing(t *testing.T) {
	userID, boardID, cardID := uuid.New(), uuid.New(), uuid.New()
	router, labels, access := setupLabels(userID, boardID)
	label := model.Label{ID: uuid.New(), BoardID: boardID, Name: "bug", Color: "#ff0000"}
	access.On("CheckAccess", mock.Anything, boardID, userID, model.RoleMember).Return(true, nil)
	labels.On("Get", mock.Anything, label.ID).Return(label, nil)
	labels.On("Detach", mock.Anything, cardID, label.ID).Return(repository.ErrLabelNotAttached)

	resp := doJSON(router, "DELETE", "/cards/"+cardID.String()+"/labels/"+label.ID.String(), nil)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestLabelHandler_GetForCardNeedsViewer(t *testing.T) {
	userID, boardID, cardID := uuid.New(), uuid.New(), uuid.New()
	router, labels, access := setupLabels(userID, boardID)
	access.On("CheckAccess", mock.Anything, boardID, userID, model.RoleViewer).Return(false, nil)

	resp := doJSON(router, "GET", "/cards/"+cardID.String()+"/labels", nil)

	assert.Equal(t, http.StatusForbidden, resp.Code)
	labels.AssertNotCalled(t, "OfCard", mock.Anything, mock.Anything)
}
