// Package session runs one board session per websocket connection. A
// session owns its entity stores and views, applies the client's commands
// and pushes fresh snapshots whenever its caches change.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"kanban/internal/feed"
	"kanban/internal/model"
	"kanban/internal/reconcile"
	"kanban/internal/store"
)

var (
	ErrForbidden   = errors.New("permission denied")
	ErrUnknownOp   = errors.New("unknown command")
	ErrNoOpenCard  = errors.New("no card is open")
	ErrWrongBoard  = errors.New("entity belongs to another board")
	ErrSessionDone = errors.New("session closed")
	ErrRevoked     = errors.New("board access revoked")
)

// Access resolves a user's role on a board.
type Access interface {
	Role(ctx context.Context, boardID, userID uuid.UUID) (model.Role, error)
}

type CardBackend interface {
	store.Backend[model.Card]
	Get(ctx context.Context, id uuid.UUID) (model.Card, error)
}

// Deps are the collaborators shared by every session of a server.
type Deps struct {
	Feed     feed.Feed
	Access   Access
	Boards   store.BoardBackend
	Lists    store.Backend[model.List]
	Cards    CardBackend
	Comments store.RowBackend[model.Comment]
	Members  store.RowBackend[model.BoardMember]
	Labels   store.RowBackend[model.Label]
	Logger   logrus.FieldLogger
}

type Settings struct {
	OperationTimeout time.Duration
	FetchConcurrency int
	Store            store.Options
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingTimeout      time.Duration
	FrameBuffer      int
}

func DefaultSettings() Settings {
	return Settings{
		OperationTimeout: 10 * time.Second,
		FetchConcurrency: reconcile.DefaultFetchConcurrency,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingTimeout:      30 * time.Second,
		FrameBuffer:      32,
	}
}

type Session struct {
	id       string
	userID   uuid.UUID
	boardID  uuid.UUID
	deps     Deps
	settings Settings
	log      logrus.FieldLogger

	boards   *store.BoardStore
	lists    *store.Store[model.List]
	cards    *store.Store[model.Card]
	comments *store.CommentStore
	members  *store.MemberStore
	labels   *store.LabelStore

	boardView   *reconcile.BoardView
	membersView *reconcile.MembersView
	labelsView  *reconcile.LabelsView

	ctx    context.Context
	cancel context.CancelFunc
	out    chan Frame
	wake   chan struct{}
	once   sync.Once
	done   chan struct{}

	mu          sync.Mutex
	role        model.Role
	cardView    *reconcile.CardView
	dirtyBoard  bool
	dirtyCard   bool
	dirtyMember bool
}

// New builds a session for userID on boardID. Nothing is loaded until Open.
func New(parent context.Context, userID, boardID uuid.UUID, deps Deps, settings Settings) *Session {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if settings.FrameBuffer <= 0 {
		settings.FrameBuffer = DefaultSettings().FrameBuffer
	}
	id := ulid.Make().String()
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		id:       id,
		userID:   userID,
		boardID:  boardID,
		deps:     deps,
		settings: settings,
		log: deps.Logger.WithFields(logrus.Fields{
			"session":  id,
			"board_id": boardID.String(),
			"user_id":  userID.String(),
		}),
		boards:   store.NewBoardStore(deps.Boards),
		lists:    store.NewListStore(deps.Lists, settings.Store),
		cards:    store.NewCardStore(deps.Cards, settings.Store),
		comments: store.NewCommentStore(deps.Comments),
		members:  store.NewMemberStore(deps.Members),
		labels:   store.NewLabelStore(deps.Labels),
		ctx:      ctx,
		cancel:   cancel,
		out:      make(chan Frame, settings.FrameBuffer),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	s.boardView = reconcile.NewBoardView(boardID, deps.Feed, s.lists, s.cards, settings.FetchConcurrency, s.log)
	s.membersView = reconcile.NewMembersView(boardID, deps.Feed, s.members, s.log)
	s.labelsView = reconcile.NewLabelsView(boardID, deps.Feed, s.labels, s.log)

	s.lists.OnDelete(s.cards.DropParent)
	s.lists.OnChange(func(uuid.UUID) { s.mark(&s.dirtyBoard) })
	s.cards.OnChange(func(uuid.UUID) { s.mark(&s.dirtyBoard) })
	s.comments.OnChange(func(uuid.UUID) { s.mark(&s.dirtyCard) })
	s.members.OnChange(func(uuid.UUID) { s.mark(&s.dirtyMember) })
	s.labels.OnChange(func(uuid.UUID) { s.mark(&s.dirtyBoard) })
	s.membersView.OnMember(s.onMembership)
	s.boardView.OnError(func(err error) { s.sendError("", err) })
	return s
}

func (s *Session) ID() string { return s.id }

// Role is the user's role as last seen by a command or a membership event.
func (s *Session) Role() model.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// Frames delivers the frames the session wants written to its client.
func (s *Session) Frames() <-chan Frame { return s.out }

// Done is closed after Close.
func (s *Session) Done() <-chan struct{} { return s.done }

// Open checks access, loads the board with its lists, cards, labels and
// members, then starts pushing snapshots.
func (s *Session) Open(ctx context.Context) error {
	role, err := s.deps.Access.Role(ctx, s.boardID, s.userID)
	if err != nil {
		return err
	}
	if !role.AtLeast(model.RoleViewer) {
		return ErrForbidden
	}
	s.mu.Lock()
	s.role = role
	s.mu.Unlock()

	if _, err := s.boards.Open(ctx, s.boardID); err != nil {
		return err
	}
	go s.push()

	if err := s.boardView.Open(s.ctx); err != nil {
		return err
	}
	if err := s.membersView.Open(s.ctx); err != nil {
		return err
	}
	if err := s.labelsView.Open(s.ctx); err != nil {
		return err
	}
	s.mark(&s.dirtyBoard)
	s.log.Info("board session opened")
	return nil
}

// Close releases every view and stops pushing frames. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		s.cancel()
		s.boardView.Close()
		s.membersView.Close()
		s.labelsView.Close()
		s.mu.Lock()
		cv := s.cardView
		s.cardView = nil
		s.mu.Unlock()
		if cv != nil {
			cv.Close()
		}
		close(s.done)
		s.log.Info("board session closed")
	})
}

// Handle applies one command. Failures are also reported to the client as
// an error frame.
func (s *Session) Handle(ctx context.Context, cmd Command) error {
	if s.ctx.Err() != nil {
		return ErrSessionDone
	}
	if s.settings.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.OperationTimeout)
		defer cancel()
	}
	ctx = feed.WithOrigin(ctx, s.id)

	err := s.dispatch(ctx, cmd)
	if err != nil {
		s.log.WithError(err).WithField("op", cmd.Op).Warn("command failed")
		s.sendError(cmd.Op, err)
	}
	return err
}

func (s *Session) dispatch(ctx context.Context, cmd Command) error {
	if err := s.requireRole(ctx, model.RoleViewer); err != nil {
		return err
	}

	switch cmd.Op {
	case OpRefresh:
		return s.boardView.Refresh(ctx)
	case OpResubscribe:
		if err := s.boardView.Resubscribe(ctx); err != nil {
			return err
		}
		if err := s.membersView.Open(s.ctx); err != nil {
			return err
		}
		return s.labelsView.Open(s.ctx)
	case OpOpenCard:
		return s.openCard(cmd.CardID)
	case OpCloseCard:
		s.closeCard()
		return nil
	}

	if err := s.requireRole(ctx, model.RoleMember); err != nil {
		return err
	}

	switch cmd.Op {
	case OpReorderLists:
		if len(cmd.Order) > 0 {
			return s.lists.ReorderTo(ctx, s.boardID, cmd.Order)
		}
		return s.lists.Reorder(ctx, s.boardID, cmd.From, cmd.To)
	case OpReorderCards:
		if err := s.ownList(cmd.ListID); err != nil {
			return err
		}
		if len(cmd.Order) > 0 {
			return s.cards.ReorderTo(ctx, cmd.ListID, cmd.Order)
		}
		return s.cards.Reorder(ctx, cmd.ListID, cmd.From, cmd.To)
	case OpMoveCard:
		if err := s.ownList(cmd.ListID); err != nil {
			return err
		}
		return s.cards.Move(ctx, cmd.CardID, cmd.ListID, cmd.Index)
	case OpCreateList:
		_, err := s.lists.Create(ctx, s.boardID, model.List{Title: cmd.Title})
		return err
	case OpCreateCard:
		if err := s.ownList(cmd.ListID); err != nil {
			return err
		}
		_, err := s.cards.Create(ctx, cmd.ListID, model.Card{Title: cmd.Title, Description: cmd.Description})
		return err
	case OpUpdateList:
		if err := s.ownList(cmd.ListID); err != nil {
			return err
		}
		_, err := s.lists.Update(ctx, cmd.ListID, cmd.Patch)
		return err
	case OpUpdateCard:
		if _, ok := s.cards.Get(cmd.CardID); !ok {
			return fmt.Errorf("%w: %s", ErrWrongBoard, cmd.CardID)
		}
		_, err := s.cards.Update(ctx, cmd.CardID, cmd.Patch)
		return err
	case OpDeleteList:
		if err := s.ownList(cmd.ListID); err != nil {
			return err
		}
		return s.lists.Delete(ctx, cmd.ListID)
	case OpDeleteCard:
		if _, ok := s.cards.Get(cmd.CardID); !ok {
			return fmt.Errorf("%w: %s", ErrWrongBoard, cmd.CardID)
		}
		return s.cards.Delete(ctx, cmd.CardID)
	case OpCreateLabel:
		_, err := s.labels.Create(ctx, s.boardID, cmd.Name, cmd.Color)
		return err
	case OpUpdateLabel:
		if err := s.ownLabel(cmd.LabelID); err != nil {
			return err
		}
		_, err := s.labels.Update(ctx, cmd.LabelID, cmd.Patch)
		return err
	case OpDeleteLabel:
		if err := s.ownLabel(cmd.LabelID); err != nil {
			return err
		}
		return s.labels.Delete(ctx, cmd.LabelID)
	case OpAddComment:
		cv := s.openCardView()
		if cv == nil {
			return ErrNoOpenCard
		}
		_, err := s.comments.Create(ctx, cv.ID(), s.userID, cmd.Content)
		return err
	case OpDeleteComment:
		cv := s.openCardView()
		if cv == nil {
			return ErrNoOpenCard
		}
		return s.deleteComment(ctx, cv, cmd.CommentID)
	}
	return fmt.Errorf("%w: %q", ErrUnknownOp, cmd.Op)
}

// requireRole resolves the user's current role on every call so a demotion
// takes effect on the next command. A user without any role is revoked.
func (s *Session) requireRole(ctx context.Context, required model.Role) error {
	role, err := s.deps.Access.Role(ctx, s.boardID, s.userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.role = role
	s.mu.Unlock()

	if !role.AtLeast(model.RoleViewer) {
		go s.revoke()
		return ErrRevoked
	}
	if !role.AtLeast(required) {
		return ErrForbidden
	}
	return nil
}

// onMembership follows membership events of the session's own user.
func (s *Session) onMembership(kind feed.Kind, m model.BoardMember) {
	if m.UserID != s.userID {
		return
	}
	if kind == feed.Delete || !m.Role.AtLeast(model.RoleViewer) {
		// Close releases the subscription this runs on
		go s.revoke()
		return
	}
	s.mu.Lock()
	s.role = m.Role
	s.mu.Unlock()
}

// revoke tells the client its access is gone and ends the session.
func (s *Session) revoke() {
	if s.ctx.Err() != nil {
		return
	}
	s.log.Warn("board access revoked, closing session")
	s.sendError("", ErrRevoked)
	s.Close()
}

// ownList rejects list ids that are not lists of this session's board.
func (s *Session) ownList(listID uuid.UUID) error {
	if _, ok := s.lists.Get(listID); !ok {
		return fmt.Errorf("%w: %s", ErrWrongBoard, listID)
	}
	return nil
}

func (s *Session) ownLabel(labelID uuid.UUID) error {
	for _, l := range s.labelsView.Labels() {
		if l.ID == labelID {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrWrongBoard, labelID)
}

func (s *Session) openCard(cardID uuid.UUID) error {
	if _, ok := s.cards.Get(cardID); !ok {
		return fmt.Errorf("%w: %s", ErrWrongBoard, cardID)
	}
	s.closeCard()

	cv := reconcile.NewCardView(cardID, s.deps.Feed, s.deps.Cards, s.comments, s.log)
	cv.OnChange(func() { s.mark(&s.dirtyCard) })
	s.mu.Lock()
	s.cardView = cv
	s.mu.Unlock()
	if err := cv.Open(s.ctx); err != nil {
		return err
	}
	s.mark(&s.dirtyCard)
	return nil
}

func (s *Session) closeCard() {
	s.mu.Lock()
	cv := s.cardView
	s.cardView = nil
	s.mu.Unlock()
	if cv != nil {
		cv.Close()
	}
}

func (s *Session) openCardView() *reconcile.CardView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cardView
}

// deleteComment allows authors to delete their own comments and admins to
// delete any.
func (s *Session) deleteComment(ctx context.Context, cv *reconcile.CardView, commentID uuid.UUID) error {
	for _, c := range cv.Comments() {
		if c.ID != commentID {
			continue
		}
		if c.AuthorID != s.userID {
			if err := s.requireRole(ctx, model.RoleAdmin); err != nil {
				return err
			}
		}
		return s.comments.Delete(ctx, commentID)
	}
	return fmt.Errorf("%w: %s", ErrWrongBoard, commentID)
}

func (s *Session) mark(flag *bool) {
	s.mu.Lock()
	*flag = true
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// push turns dirty flags into snapshot frames, one per kind per wakeup.
func (s *Session) push() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}

		s.mu.Lock()
		board, card, members := s.dirtyBoard, s.dirtyCard, s.dirtyMember
		s.dirtyBoard, s.dirtyCard, s.dirtyMember = false, false, false
		cv := s.cardView
		s.mu.Unlock()

		if board {
			s.send(s.boardFrame())
		}
		if card && cv != nil {
			s.send(cardFrame(cv))
		}
		if members {
			s.send(Frame{Type: FrameMembers, Members: s.membersView.Members()})
		}
	}
}

func (s *Session) boardFrame() Frame {
	f := Frame{Type: FrameBoard, Labels: s.labelsView.Labels()}
	if b, ok := s.boards.Current(); ok {
		f.Board = &b
	}
	lists := s.lists.Snapshot(s.boardID)
	f.Lists = make([]ListFrame, len(lists))
	for i, l := range lists {
		cards := s.cards.Snapshot(l.ID)
		if cards == nil {
			cards = []model.Card{}
		}
		f.Lists[i] = ListFrame{List: l, Cards: cards}
	}
	return f
}

func cardFrame(cv *reconcile.CardView) Frame {
	card, ok := cv.Card()
	f := Frame{Type: FrameCard, Comments: cv.Comments(), Deleted: !ok}
	if ok {
		f.Card = &card
	}
	return f
}

func (s *Session) sendError(op string, err error) {
	action := store.Action(err)
	if action == "" {
		action = op
	}
	s.send(Frame{Type: FrameError, Error: &ErrorFrame{Op: op, Action: action, Message: err.Error()}})
}

func (s *Session) send(f Frame) {
	select {
	case s.out <- f:
	case <-s.ctx.Done():
	}
}
