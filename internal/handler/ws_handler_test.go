package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kanban/internal/feed"
	"kanban/internal/handler"
	"kanban/internal/model"
	"kanban/internal/session"
	"kanban/internal/store/storetest"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roleTable map[uuid.UUID]model.Role

func (r roleTable) Role(_ context.Context, _ uuid.UUID, userID uuid.UUID) (model.Role, error) {
	return r[userID], nil
}

func newWSServer(t *testing.T, userID uuid.UUID, role model.Role) (*httptest.Server, model.List) {
	t.Helper()
	hub := feed.NewHub(0, nil)
	t.Cleanup(hub.Close)
	n := feed.NewNotifier(hub, nil)

	boardID := uuid.New()
	boards := storetest.NewBoards(n)
	boards.Seed(model.Board{ID: boardID, Title: "Roadmap", OwnerID: uuid.New()})
	todo := model.List{ID: uuid.New(), BoardID: boardID, Title: "Todo", Position: 0}
	lists := storetest.NewLists(n)
	lists.Seed(todo)
	cards := storetest.NewCards(n)
	cards.Seed(
		model.Card{ID: uuid.New(), ListID: todo.ID, Title: "X", Position: 0},
		model.Card{ID: uuid.New(), ListID: todo.ID, Title: "Y", Position: 1},
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := handler.NewWSHandler(ctx, session.Deps{
		Feed:     hub,
		Access:   roleTable{userID: role},
		Boards:   boards,
		Lists:    lists,
		Cards:    cards,
		Comments: storetest.NewComments(n),
		Members:  storetest.NewMembers(n),
		Labels:   storetest.NewLabels(n),
	}, session.DefaultSettings())

	r := newRouter(userID)
	r.GET("/ws/boards/:id", h.Serve)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, todo
}

func wsURL(srv *httptest.Server, boardID uuid.UUID) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/boards/" + boardID.String()
}

func readBoard(t *testing.T, conn *websocket.Conn, listID uuid.UUID, want []string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var f session.Frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type != session.FrameBoard {
			continue
		}
		for _, l := range f.Lists {
			if l.ID == listID && assert.ObjectsAreEqual(want, titles(l.Cards)) {
				return
			}
		}
	}
}

func TestWSHandler_LiveSession(t *testing.T) {
	// Arrange
	userID := uuid.New()
	srv, todo := newWSServer(t, userID, model.RoleMember)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, todo.BoardID), nil)
	require.NoError(t, err)
	defer conn.Close()
	readBoard(t, conn, todo.ID, []string{"X", "Y"})

	// Act
	require.NoError(t, conn.WriteJSON(session.Command{Op: session.OpReorderCards, ListID: todo.ID, From: 1, To: 0}))

	// Assert
	readBoard(t, conn, todo.ID, []string{"Y", "X"})
}

func TestWSHandler_Forbidden(t *testing.T) {
	userID := uuid.New()
	srv, todo := newWSServer(t, userID, "")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, todo.BoardID), nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
