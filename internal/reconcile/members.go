package reconcile

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kanban/internal/feed"
	"kanban/internal/model"
	"kanban/internal/store"
)

// MembersView keeps a board's memberships current by merging feed events.
type MembersView struct {
	boardID uuid.UUID
	feed    feed.Feed
	members *store.MemberStore
	log     logrus.FieldLogger

	mu       sync.Mutex
	sub      *feed.Subscription
	closed   bool
	onMember []func(kind feed.Kind, m model.BoardMember)
}

func NewMembersView(boardID uuid.UUID, f feed.Feed, members *store.MemberStore, logger logrus.FieldLogger) *MembersView {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &MembersView{
		boardID: boardID,
		feed:    f,
		members: members,
		log:     logger.WithField("board_id", boardID.String()),
	}
}

// Open subscribes and loads the members. ctx bounds the subscription.
func (v *MembersView) Open(ctx context.Context) error {
	sub, err := v.feed.Subscribe(ctx, feed.MembersOfBoard(v.boardID), v.onEvent)
	if err != nil {
		return err
	}
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		sub.Release()
		return ErrClosed
	}
	old := v.sub
	v.sub = sub
	v.mu.Unlock()
	if old != nil {
		old.Release()
	}
	return v.members.Fetch(ctx, v.boardID)
}

// OnMember registers fn to run after a membership event was merged. fn runs
// on the feed's delivery goroutine.
func (v *MembersView) OnMember(fn func(kind feed.Kind, m model.BoardMember)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onMember = append(v.onMember, fn)
}

func (v *MembersView) Members() []model.BoardMember {
	return v.members.Snapshot(v.boardID)
}

func (v *MembersView) Close() {
	v.mu.Lock()
	v.closed = true
	sub := v.sub
	v.sub = nil
	v.mu.Unlock()
	if sub != nil {
		sub.Release()
	}
}

func (v *MembersView) onEvent(ev feed.Event) {
	var (
		m   model.BoardMember
		err error
	)
	switch ev.Kind {
	case feed.Insert, feed.Update:
		if m, err = feed.DecodeRow[model.BoardMember](ev.After); err != nil {
			v.log.WithError(err).Warn("dropping member event")
			return
		}
		if ev.Kind == feed.Insert {
			v.members.MergeInsert(m)
		} else {
			v.members.MergeUpdate(m)
		}
	case feed.Delete:
		if m, err = feed.DecodeRow[model.BoardMember](ev.Before); err != nil {
			v.log.WithError(err).Warn("dropping member event")
			return
		}
		v.members.MergeDelete(m.ID)
	default:
		return
	}

	v.mu.Lock()
	fns := slices.Clone(v.onMember)
	v.mu.Unlock()
	for _, fn := range fns {
		fn(ev.Kind, m)
	}
}
