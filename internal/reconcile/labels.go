package reconcile

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kanban/internal/feed"
	"kanban/internal/model"
	"kanban/internal/store"
)

// LabelsView keeps a board's label set current by merging feed events.
type LabelsView struct {
	boardID uuid.UUID
	feed    feed.Feed
	labels  *store.LabelStore
	log     logrus.FieldLogger

	mu     sync.Mutex
	sub    *feed.Subscription
	closed bool
}

func NewLabelsView(boardID uuid.UUID, f feed.Feed, labels *store.LabelStore, logger logrus.FieldLogger) *LabelsView {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LabelsView{
		boardID: boardID,
		feed:    f,
		labels:  labels,
		log:     logger.WithField("board_id", boardID.String()),
	}
}

// Open subscribes and loads the labels. ctx bounds the subscription.
func (v *LabelsView) Open(ctx context.Context) error {
	sub, err := v.feed.Subscribe(ctx, feed.LabelsOfBoard(v.boardID), v.onEvent)
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
	return v.labels.Fetch(ctx, v.boardID)
}

func (v *LabelsView) Labels() []model.Label {
	return v.labels.Snapshot(v.boardID)
}

func (v *LabelsView) Close() {
	v.mu.Lock()
	v.closed = true
	sub := v.sub
	v.sub = nil
	v.mu.Unlock()
	if sub != nil {
		sub.Release()
	}
}

func (v *LabelsView) onEvent(ev feed.Event) {
	switch ev.Kind {
	case feed.Insert, feed.Update:
		l, err := feed.DecodeRow[model.Label](ev.After)
		if err != nil {
			v.log.WithError(err).Warn("dropping label event")
			return
		}
		if ev.Kind == feed.Insert {
			v.labels.MergeInsert(l)
		} else {
			v.labels.MergeUpdate(l)
		}
	case feed.Delete:
		l, err := feed.DecodeRow[model.Label](ev.Before)
		if err != nil {
			v.log.WithError(err).Warn("dropping label event")
			return
		}
		v.labels.MergeDelete(l.ID)
	}
}
