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

// CardSource loads a single card.
type CardSource interface {
	Get(ctx context.Context, id uuid.UUID) (model.Card, error)
}

// CardView is the detail view of one card and its comment thread. Feed
// events are merged into the cache directly; nothing is refetched.
type CardView struct {
	cardID   uuid.UUID
	feed     feed.Feed
	source   CardSource
	comments *store.CommentStore
	log      logrus.FieldLogger

	mu       sync.Mutex
	card     model.Card
	loaded   bool
	deleted  bool
	closed   bool
	subs     []*feed.Subscription
	onChange []func()
}

func NewCardView(cardID uuid.UUID, f feed.Feed, source CardSource, comments *store.CommentStore, logger logrus.FieldLogger) *CardView {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CardView{
		cardID:   cardID,
		feed:     f,
		source:   source,
		comments: comments,
		log:      logger.WithField("card_id", cardID.String()),
	}
}

func (v *CardView) ID() uuid.UUID { return v.cardID }

// OnChange registers fn to run after the card fields change. Comment changes
// are reported by the comment store.
func (v *CardView) OnChange(fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onChange = append(v.onChange, fn)
}

// Card returns the cached card and whether it still exists.
func (v *CardView) Card() (model.Card, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.card, v.loaded && !v.deleted
}

func (v *CardView) Comments() []model.Comment {
	return v.comments.Snapshot(v.cardID)
}

// Open subscribes first, then loads, so no event between the two is lost.
// ctx bounds the lifetime of the subscriptions.
func (v *CardView) Open(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.mu.Unlock()

	cardSub, err := v.feed.Subscribe(ctx, feed.CardScope(v.cardID), v.onCardEvent)
	if err != nil {
		return err
	}
	commentSub, err := v.feed.Subscribe(ctx, feed.CommentsOfCard(v.cardID), v.onCommentEvent)
	if err != nil {
		cardSub.Release()
		return err
	}
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		cardSub.Release()
		commentSub.Release()
		return ErrClosed
	}
	v.subs = append(v.subs, cardSub, commentSub)
	v.mu.Unlock()

	card, err := v.source.Get(ctx, v.cardID)
	if err == nil {
		err = model.Validate(card)
	}
	if err != nil {
		return &store.FetchError{Op: "fetch card", Parent: v.cardID, Err: err}
	}
	v.mu.Lock()
	v.card, v.loaded = card, true
	v.mu.Unlock()
	v.changed()

	return v.comments.Fetch(ctx, v.cardID)
}

// Close releases the view's subscriptions. Safe to call more than once.
func (v *CardView) Close() {
	v.mu.Lock()
	v.closed = true
	subs := v.subs
	v.subs = nil
	v.mu.Unlock()
	for _, s := range subs {
		s.Release()
	}
	v.comments.DropParent(v.cardID)
}

func (v *CardView) onCardEvent(ev feed.Event) {
	switch ev.Kind {
	case feed.Update:
		card, err := feed.DecodeRow[model.Card](ev.After)
		if err != nil {
			v.log.WithError(err).Warn("dropping card event")
			return
		}
		v.mu.Lock()
		v.card, v.loaded = card, true
		v.mu.Unlock()
	case feed.Delete:
		v.mu.Lock()
		v.deleted = true
		v.mu.Unlock()
	default:
		return
	}
	v.changed()
}

func (v *CardView) onCommentEvent(ev feed.Event) {
	switch ev.Kind {
	case feed.Insert, feed.Update:
		comment, err := feed.DecodeRow[model.Comment](ev.After)
		if err != nil {
			v.log.WithError(err).Warn("dropping comment event")
			return
		}
		if ev.Kind == feed.Insert {
			v.comments.MergeInsert(comment)
		} else {
			v.comments.MergeUpdate(comment)
		}
	case feed.Delete:
		comment, err := feed.DecodeRow[model.Comment](ev.Before)
		if err != nil {
			v.log.WithError(err).Warn("dropping comment event")
			return
		}
		v.comments.MergeDelete(comment.ID)
	}
}

func (v *CardView) changed() {
	v.mu.Lock()
	fns := slices.Clone(v.onChange)
	v.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
