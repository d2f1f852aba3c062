package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanban/internal/feed"
	"kanban/internal/model"
	"kanban/internal/session"
	"kanban/internal/store/storetest"
)

type roles map[uuid.UUID]model.Role

func (r roles) Role(_ context.Context, _ uuid.UUID, userID uuid.UUID) (model.Role, error) {
	return r[userID], nil
}

type fixture struct {
	hub      *feed.Hub
	boardID  uuid.UUID
	todo     model.List
	done     model.List
	x, y     model.Card
	lists    *storetest.Positional[model.List]
	cards    *storetest.Positional[model.Card]
	comments *storetest.Rows[model.Comment]
	members  *storetest.Rows[model.BoardMember]
	labels   *storetest.Rows[model.Label]
	deps     session.Deps
	roles    roles
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hub := feed.NewHub(0, nil)
	t.Cleanup(hub.Close)
	n := feed.NewNotifier(hub, nil)

	f := &fixture{hub: hub, boardID: uuid.New(), roles: roles{}}
	f.todo = model.List{ID: uuid.New(), BoardID: f.boardID, Title: "Todo", Position: 0}
	f.done = model.List{ID: uuid.New(), BoardID: f.boardID, Title: "Done", Position: 1}
	f.x = model.Card{ID: uuid.New(), ListID: f.todo.ID, Title: "X", Position: 0}
	f.y = model.Card{ID: uuid.New(), ListID: f.todo.ID, Title: "Y", Position: 1}

	boards := storetest.NewBoards(n)
	boards.Seed(model.Board{ID: f.boardID, Title: "Roadmap", OwnerID: uuid.New(), CreatedAt: time.Now()})
	f.lists = storetest.NewLists(n)
	f.lists.Seed(f.todo, f.done)
	f.cards = storetest.NewCards(n)
	f.cards.Seed(f.x, f.y)
	f.comments = storetest.NewComments(n)
	f.members = storetest.NewMembers(n)
	f.labels = storetest.NewLabels(n)

	f.deps = session.Deps{
		Feed:     hub,
		Access:   f.roles,
		Boards:   boards,
		Lists:    f.lists,
		Cards:    f.cards,
		Comments: f.comments,
		Members:  f.members,
		Labels:   f.labels,
	}
	return f
}

func (f *fixture) open(t *testing.T, role model.Role) *session.Session {
	t.Helper()
	return f.openAs(t, uuid.New(), role)
}

func (f *fixture) openAs(t *testing.T, userID uuid.UUID, role model.Role) *session.Session {
	t.Helper()
	f.roles[userID] = role
	s := session.New(context.Background(), userID, f.boardID, f.deps, session.DefaultSettings())
	t.Cleanup(s.Close)
	require.NoError(t, s.Open(context.Background()))
	return s
}

// waitFrame drains frames until one satisfies match.
func waitFrame(t *testing.T, s *session.Session, match func(session.Frame) bool) session.Frame {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case f := <-s.Frames():
			if match(f) {
				return f
			}
		case <-timeout:
			require.FailNow(t, "timed out waiting for frame")
		}
	}
}

func cardsOf(f session.Frame, listID uuid.UUID) []string {
	for _, l := range f.Lists {
		if l.ID == listID {
			out := make([]string, len(l.Cards))
			for i, c := range l.Cards {
				out[i] = c.Title
			}
			return out
		}
	}
	return nil
}

func isBoard(f session.Frame) bool { return f.Type == session.FrameBoard }

func TestSession_OpenPushesBoard(t *testing.T) {
	f := newFixture(t)

	s := f.open(t, model.RoleViewer)

	frame := waitFrame(t, s, func(fr session.Frame) bool { return isBoard(fr) && len(fr.Lists) == 2 })
	require.NotNil(t, frame.Board)
	assert.Equal(t, "Roadmap", frame.Board.Title)
	assert.Equal(t, []string{"X", "Y"}, cardsOf(frame, f.todo.ID))
	assert.Empty(t, cardsOf(frame, f.done.ID))
}

func TestSession_OpenWithoutAccess(t *testing.T) {
	f := newFixture(t)
	s := session.New(context.Background(), uuid.New(), f.boardID, f.deps, session.DefaultSettings())
	defer s.Close()

	err := s.Open(context.Background())

	assert.ErrorIs(t, err, session.ErrForbidden)
}

func TestSession_ViewerCannotWrite(t *testing.T) {
	// Arrange
	f := newFixture(t)
	s := f.open(t, model.RoleViewer)

	// Act
	err := s.Handle(context.Background(), session.Command{Op: session.OpReorderCards, ListID: f.todo.ID, From: 0, To: 1})

	// Assert
	assert.ErrorIs(t, err, session.ErrForbidden)
	assert.Equal(t, 0, f.cards.Writes())
	frame := waitFrame(t, s, func(fr session.Frame) bool { return fr.Type == session.FrameError })
	assert.Equal(t, session.OpReorderCards, frame.Error.Op)
	assert.Equal(t, session.ErrForbidden.Error(), frame.Error.Message)
}

func TestSession_ReorderCards(t *testing.T) {
	// Arrange
	f := newFixture(t)
	s := f.open(t, model.RoleMember)

	// Act
	err := s.Handle(context.Background(), session.Command{Op: session.OpReorderCards, ListID: f.todo.ID, From: 0, To: 1})

	// Assert
	require.NoError(t, err)
	waitFrame(t, s, func(fr session.Frame) bool {
		return isBoard(fr) && assert.ObjectsAreEqual([]string{"Y", "X"}, cardsOf(fr, f.todo.ID))
	})
	assert.Equal(t, 1, f.cards.Count("BatchUpsert"))
}

func TestSession_PeerMoveReachesOtherSession(t *testing.T) {
	// Arrange
	f := newFixture(t)
	mover := f.open(t, model.RoleMember)
	watcher := f.open(t, model.RoleViewer)

	// Act
	err := mover.Handle(context.Background(), session.Command{Op: session.OpMoveCard, CardID: f.x.ID, ListID: f.done.ID, Index: 0})

	// Assert
	require.NoError(t, err)
	frame := waitFrame(t, watcher, func(fr session.Frame) bool {
		return isBoard(fr) && assert.ObjectsAreEqual([]string{"X"}, cardsOf(fr, f.done.ID))
	})
	assert.Equal(t, []string{"Y"}, cardsOf(frame, f.todo.ID))
}

func TestSession_RejectsForeignList(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, model.RoleMember)

	err := s.Handle(context.Background(), session.Command{Op: session.OpCreateCard, ListID: uuid.New(), Title: "Z"})

	assert.ErrorIs(t, err, session.ErrWrongBoard)
	assert.Equal(t, 0, f.cards.Writes())
}

func TestSession_UnknownOp(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, model.RoleMember)

	err := s.Handle(context.Background(), session.Command{Op: "juggle"})

	assert.ErrorIs(t, err, session.ErrUnknownOp)
}

func TestSession_FailedWriteReportsAction(t *testing.T) {
	// Arrange
	f := newFixture(t)
	s := f.open(t, model.RoleMember)
	f.lists.Fail("Insert", errors.New("db down"))

	// Act
	err := s.Handle(context.Background(), session.Command{Op: session.OpCreateList, Title: "Later"})

	// Assert
	require.Error(t, err)
	frame := waitFrame(t, s, func(fr session.Frame) bool { return fr.Type == session.FrameError })
	assert.Equal(t, "create list", frame.Error.Action)
	assert.Contains(t, frame.Error.Message, "db down")
}

func labelNames(f session.Frame) []string {
	out := make([]string, len(f.Labels))
	for i, l := range f.Labels {
		out[i] = l.Name
	}
	return out
}

func TestSession_LabelsReachBoardFrames(t *testing.T) {
	// Arrange
	f := newFixture(t)
	editor := f.open(t, model.RoleMember)
	watcher := f.open(t, model.RoleViewer)

	// Act
	err := editor.Handle(context.Background(), session.Command{Op: session.OpCreateLabel, Name: "bug", Color: "#ff0000"})

	// Assert
	require.NoError(t, err)
	waitFrame(t, watcher, func(fr session.Frame) bool {
		return isBoard(fr) && assert.ObjectsAreEqual([]string{"bug"}, labelNames(fr))
	})

	label, err := f.labels.Query(context.Background(), f.boardID)
	require.NoError(t, err)
	require.Len(t, label, 1)
	err = editor.Handle(context.Background(), session.Command{Op: session.OpUpdateLabel, LabelID: label[0].ID, Patch: model.Patch{"name": "defect"}})
	require.NoError(t, err)
	waitFrame(t, watcher, func(fr session.Frame) bool {
		return isBoard(fr) && assert.ObjectsAreEqual([]string{"defect"}, labelNames(fr))
	})
}

func TestSession_RejectsForeignLabel(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, model.RoleMember)

	err := s.Handle(context.Background(), session.Command{Op: session.OpDeleteLabel, LabelID: uuid.New()})

	assert.ErrorIs(t, err, session.ErrWrongBoard)
	assert.Zero(t, f.labels.Writes())
}

func TestSession_CardComments(t *testing.T) {
	// Arrange
	f := newFixture(t)
	s := f.open(t, model.RoleMember)

	// Act
	err := s.Handle(context.Background(), session.Command{Op: session.OpAddComment, Content: "hi"})
	require.ErrorIs(t, err, session.ErrNoOpenCard)

	require.NoError(t, s.Handle(context.Background(), session.Command{Op: session.OpOpenCard, CardID: f.x.ID}))
	require.NoError(t, s.Handle(context.Background(), session.Command{Op: session.OpAddComment, Content: "looks good"}))

	// Assert
	frame := waitFrame(t, s, func(fr session.Frame) bool {
		return fr.Type == session.FrameCard && len(fr.Comments) == 1
	})
	require.NotNil(t, frame.Card)
	assert.Equal(t, "X", frame.Card.Title)
	assert.Equal(t, "looks good", frame.Comments[0].Content)
	assert.Equal(t, 1, f.hub.Subscribers(feed.CommentsOfCard(f.x.ID)))

	require.NoError(t, s.Handle(context.Background(), session.Command{Op: session.OpCloseCard}))
	assert.Equal(t, 0, f.hub.Subscribers(feed.CommentsOfCard(f.x.ID)))
}

func TestSession_CloseReleasesSubscriptions(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, model.RoleViewer)
	require.Equal(t, 1, f.hub.Subscribers(feed.ListsOfBoard(f.boardID)))

	s.Close()
	s.Close()

	assert.Equal(t, 0, f.hub.Subscribers(feed.ListsOfBoard(f.boardID)))
	assert.Equal(t, 0, f.hub.Subscribers(feed.CardsOfList(f.todo.ID)))
	assert.Equal(t, 0, f.hub.Subscribers(feed.MembersOfBoard(f.boardID)))
	assert.Equal(t, 0, f.hub.Subscribers(feed.LabelsOfBoard(f.boardID)))
	assert.ErrorIs(t, s.Handle(context.Background(), session.Command{Op: session.OpRefresh}), session.ErrSessionDone)
}

func TestSession_DemotedUserCannotWrite(t *testing.T) {
	// Arrange
	f := newFixture(t)
	userID := uuid.New()
	s := f.openAs(t, userID, model.RoleMember)
	f.roles[userID] = model.RoleViewer

	// Act
	err := s.Handle(context.Background(), session.Command{Op: session.OpReorderCards, ListID: f.todo.ID, From: 0, To: 1})

	// Assert
	assert.ErrorIs(t, err, session.ErrForbidden)
	assert.Equal(t, model.RoleViewer, s.Role())
	assert.Equal(t, 0, f.cards.Writes())
	assert.Equal(t, []string{"X", "Y"}, []string{f.cards.Rows(f.todo.ID)[0].Title, f.cards.Rows(f.todo.ID)[1].Title})
}

func TestSession_RevokedUserIsDisconnected(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	s := f.openAs(t, userID, model.RoleMember)
	delete(f.roles, userID)

	err := s.Handle(context.Background(), session.Command{Op: session.OpReorderCards, ListID: f.todo.ID, From: 0, To: 1})

	assert.ErrorIs(t, err, session.ErrRevoked)
	assert.Equal(t, 0, f.cards.Writes())
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		require.FailNow(t, "session still open")
	}
}

func TestSession_MembershipEventsFollowRole(t *testing.T) {
	// Arrange
	f := newFixture(t)
	userID := uuid.New()
	membership := model.BoardMember{ID: uuid.New(), BoardID: f.boardID, UserID: userID, Role: model.RoleMember, CreatedAt: time.Now()}
	f.members.Seed(membership)
	s := f.openAs(t, userID, model.RoleMember)

	// Act: понижение до viewer
	_, err := f.members.Update(context.Background(), membership.ID, model.Patch{"role": model.RoleViewer})
	require.NoError(t, err)

	// Assert
	require.Eventually(t, func() bool { return s.Role() == model.RoleViewer }, 2*time.Second, 5*time.Millisecond)

	// Act: удаление из доски
	require.NoError(t, f.members.Delete(context.Background(), membership.ID))

	// Assert
	frame := waitFrame(t, s, func(fr session.Frame) bool { return fr.Type == session.FrameError })
	assert.Equal(t, session.ErrRevoked.Error(), frame.Error.Message)
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		require.FailNow(t, "session still open")
	}
}

type fakeConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written []session.Frame
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 4), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-c.in:
		return websocket.TextMessage, msg, nil
	case <-c.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return websocket.ErrCloseSent
	default:
	}
	if messageType != websocket.TextMessage {
		return nil
	}
	var f session.Frame
	if err := sonic.ConfigStd.Unmarshal(data, &f); err != nil {
		return err
	}
	c.mu.Lock()
	c.written = append(c.written, f)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) frames() []session.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]session.Frame(nil), c.written...)
}

func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}
func (c *fakeConn) Close() error                      { c.once.Do(func() { close(c.closed) }); return nil }

func TestSession_Serve(t *testing.T) {
	// Arrange
	f := newFixture(t)
	s := f.open(t, model.RoleMember)
	conn := newFakeConn()
	served := make(chan struct{})
	go func() {
		s.Serve(conn)
		close(served)
	}()

	// Act
	conn.in <- []byte(`{"op":"reorder_cards","list_id":"` + f.todo.ID.String() + `","from":1,"to":0}`)
	conn.in <- []byte(`not json`)

	// Assert
	require.Eventually(t, func() bool {
		var reordered, rejected bool
		for _, fr := range conn.frames() {
			if isBoard(fr) && assert.ObjectsAreEqual([]string{"Y", "X"}, cardsOf(fr, f.todo.ID)) {
				reordered = true
			}
			if fr.Type == session.FrameError {
				rejected = true
			}
		}
		return reordered && rejected
	}, 2*time.Second, 5*time.Millisecond)

	conn.Close()
	select {
	case <-served:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "Serve did not return")
	}
	select {
	case <-s.Done():
	default:
		assert.Fail(t, "session still open")
	}
}
