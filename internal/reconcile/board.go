// Package reconcile keeps session caches converged with the database by
// reacting to change feed events. Board views refetch; card and member views
// merge rows in place.
package reconcile

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"kanban/internal/feed"
	"kanban/internal/model"
	"kanban/internal/store"
)

const DefaultFetchConcurrency = 4

var ErrClosed = errors.New("view closed")

// BoardView keeps the lists of one board and the cards of each list
// refetched whenever the feed reports a change to them, including changes
// this session made itself.
type BoardView struct {
	boardID     uuid.UUID
	feed        feed.Feed
	lists       *store.Store[model.List]
	cards       *store.Store[model.Card]
	log         logrus.FieldLogger
	concurrency int

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once

	mu        sync.Mutex
	closed    bool
	started   bool
	listSub   *feed.Subscription
	cardSubs  map[uuid.UUID]*feed.Subscription
	dirtyList bool
	dirty     map[uuid.UUID]bool
	onError   []func(error)
}

func NewBoardView(boardID uuid.UUID, f feed.Feed, lists *store.Store[model.List], cards *store.Store[model.Card], concurrency int, logger logrus.FieldLogger) *BoardView {
	if concurrency <= 0 {
		concurrency = DefaultFetchConcurrency
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BoardView{
		boardID:     boardID,
		feed:        f,
		lists:       lists,
		cards:       cards,
		log:         logger.WithField("board_id", boardID.String()),
		concurrency: concurrency,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
		cardSubs:    make(map[uuid.UUID]*feed.Subscription),
		dirty:       make(map[uuid.UUID]bool),
	}
}

// OnError registers fn for refetch failures that happen in the background.
func (v *BoardView) OnError(fn func(error)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onError = append(v.onError, fn)
}

// Open subscribes to the board's lists, loads lists and cards, and starts
// the refetch worker. ctx bounds the view's lifetime.
func (v *BoardView) Open(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if v.started {
		v.mu.Unlock()
		return nil
	}
	v.started = true
	v.ctx, v.cancel = context.WithCancel(ctx)
	v.mu.Unlock()

	sub, err := v.feed.Subscribe(v.ctx, feed.ListsOfBoard(v.boardID), v.onListEvent)
	if err != nil {
		v.cancel()
		close(v.done)
		return err
	}
	v.mu.Lock()
	v.listSub = sub
	v.mu.Unlock()

	err = v.refetchBoard(v.ctx)
	go v.run()
	return err
}

// Resubscribe replaces subscriptions whose transport failed and refetches
// everything, catching up on whatever was missed while delivery was down.
func (v *BoardView) Resubscribe(ctx context.Context) error {
	v.mu.Lock()
	if v.closed || !v.started {
		v.mu.Unlock()
		return ErrClosed
	}
	stale := v.listSub
	v.listSub = nil
	cards := v.cardSubs
	v.cardSubs = make(map[uuid.UUID]*feed.Subscription)
	v.mu.Unlock()

	if stale != nil {
		stale.Release()
	}
	for _, s := range cards {
		s.Release()
	}

	sub, err := v.feed.Subscribe(v.ctx, feed.ListsOfBoard(v.boardID), v.onListEvent)
	if err != nil {
		return err
	}
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		sub.Release()
		return ErrClosed
	}
	v.listSub = sub
	v.mu.Unlock()
	return v.refetchBoard(ctx)
}

// Refresh refetches lists and cards now.
func (v *BoardView) Refresh(ctx context.Context) error {
	return v.refetchBoard(ctx)
}

// Close releases every subscription and stops the worker. Safe to call more than once.
func (v *BoardView) Close() {
	v.once.Do(func() {
		v.mu.Lock()
		v.closed = true
		started := v.started
		subs := make([]*feed.Subscription, 0, len(v.cardSubs)+1)
		if v.listSub != nil {
			subs = append(subs, v.listSub)
		}
		for _, s := range v.cardSubs {
			subs = append(subs, s)
		}
		v.listSub = nil
		v.cardSubs = map[uuid.UUID]*feed.Subscription{}
		v.mu.Unlock()

		for _, s := range subs {
			s.Release()
		}
		if started {
			v.cancel()
			<-v.done
		}
	})
}

// Subscribed returns the lists whose cards are currently subscribed to.
func (v *BoardView) Subscribed() []uuid.UUID {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(v.cardSubs))
	for id := range v.cardSubs {
		ids = append(ids, id)
	}
	return ids
}

func (v *BoardView) onListEvent(feed.Event) {
	v.mu.Lock()
	v.dirtyList = true
	v.mu.Unlock()
	v.signal()
}

func (v *BoardView) cardHandler(listID uuid.UUID) feed.Handler {
	return func(feed.Event) {
		v.mu.Lock()
		v.dirty[listID] = true
		v.mu.Unlock()
		v.signal()
	}
}

func (v *BoardView) signal() {
	select {
	case v.wake <- struct{}{}:
	default:
	}
}

// run performs refetches off the feed's delivery goroutines. Events that
// arrive while a refetch is running mark their target dirty again and cause
// exactly one follow-up refetch.
func (v *BoardView) run() {
	defer close(v.done)
	for {
		select {
		case <-v.ctx.Done():
			return
		case <-v.wake:
		}

		v.mu.Lock()
		if v.closed {
			v.mu.Unlock()
			return
		}
		board := v.dirtyList
		lists := make([]uuid.UUID, 0, len(v.dirty))
		for id := range v.dirty {
			lists = append(lists, id)
		}
		v.dirtyList = false
		v.dirty = make(map[uuid.UUID]bool)
		v.mu.Unlock()

		var err error
		if board {
			err = v.refetchBoard(v.ctx)
		} else {
			err = v.fetchCards(v.ctx, lists)
		}
		if err != nil && v.ctx.Err() == nil {
			v.report(err)
		}
	}
}

// refetchBoard reloads the lists, resyncs card subscriptions to the new
// list set and reloads the cards of every list.
func (v *BoardView) refetchBoard(ctx context.Context) error {
	if err := v.lists.Fetch(ctx, v.boardID); err != nil {
		return err
	}
	ids := listIDs(v.lists.Snapshot(v.boardID))
	if err := v.syncCardSubscriptions(ids); err != nil {
		return err
	}
	return v.fetchCards(ctx, ids)
}

func (v *BoardView) fetchCards(ctx context.Context, listIDs []uuid.UUID) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for _, id := range listIDs {
		g.Go(func() error {
			return v.cards.Fetch(gctx, id)
		})
	}
	return g.Wait()
}

func (v *BoardView) syncCardSubscriptions(ids []uuid.UUID) error {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	var stale []*feed.Subscription
	var gone []uuid.UUID
	for id, sub := range v.cardSubs {
		if !want[id] {
			stale = append(stale, sub)
			gone = append(gone, id)
			delete(v.cardSubs, id)
		}
	}
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := v.cardSubs[id]; !ok {
			missing = append(missing, id)
		}
	}
	v.mu.Unlock()

	for _, s := range stale {
		s.Release()
	}
	for _, id := range gone {
		v.cards.DropParent(id)
	}

	for _, id := range missing {
		sub, err := v.feed.Subscribe(v.ctx, feed.CardsOfList(id), v.cardHandler(id))
		if err != nil {
			return err
		}
		v.mu.Lock()
		if v.closed {
			v.mu.Unlock()
			sub.Release()
			return ErrClosed
		}
		if _, dup := v.cardSubs[id]; dup {
			v.mu.Unlock()
			sub.Release()
			continue
		}
		v.cardSubs[id] = sub
		v.mu.Unlock()
	}
	return nil
}

func (v *BoardView) report(err error) {
	v.log.WithError(err).Warn("board refetch failed")
	v.mu.Lock()
	fns := append([]func(error){}, v.onError...)
	v.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func listIDs(lists []model.List) []uuid.UUID {
	ids := make([]uuid.UUID, len(lists))
	for i, l := range lists {
		ids[i] = l.ID
	}
	return ids
}
