package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"kanban/internal/model"
)

// Notifier turns committed row changes into events on every scope the row
// belongs to. A card moved between lists is announced on both lists.
// Publish failures are logged; the write they describe has already committed.
type Notifier struct {
	pub Publisher
	log logrus.FieldLogger
	now func() time.Time
}

func NewNotifier(pub Publisher, logger logrus.FieldLogger) *Notifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Notifier{pub: pub, log: logger, now: time.Now}
}

func (n *Notifier) Boards(ctx context.Context, kind Kind, before, after *model.Board) {
	var scopes []Scope
	for _, b := range []*model.Board{before, after} {
		if b != nil {
			scopes = append(scopes, BoardScope(b.ID), BoardsOfOwner(b.OwnerID))
		}
	}
	n.publish(ctx, TableBoards, kind, raw(before), raw(after), scopes)
}

func (n *Notifier) Lists(ctx context.Context, kind Kind, before, after *model.List) {
	var scopes []Scope
	for _, l := range []*model.List{before, after} {
		if l != nil {
			scopes = append(scopes, ListsOfBoard(l.BoardID))
		}
	}
	n.publish(ctx, TableLists, kind, raw(before), raw(after), scopes)
}

func (n *Notifier) Cards(ctx context.Context, kind Kind, before, after *model.Card) {
	var scopes []Scope
	for _, c := range []*model.Card{before, after} {
		if c != nil {
			scopes = append(scopes, CardsOfList(c.ListID), CardScope(c.ID))
		}
	}
	n.publish(ctx, TableCards, kind, raw(before), raw(after), scopes)
}

func (n *Notifier) Comments(ctx context.Context, kind Kind, before, after *model.Comment) {
	var scopes []Scope
	for _, c := range []*model.Comment{before, after} {
		if c != nil {
			scopes = append(scopes, CommentsOfCard(c.CardID))
		}
	}
	n.publish(ctx, TableComments, kind, raw(before), raw(after), scopes)
}

func (n *Notifier) Members(ctx context.Context, kind Kind, before, after *model.BoardMember) {
	var scopes []Scope
	for _, m := range []*model.BoardMember{before, after} {
		if m != nil {
			scopes = append(scopes, MembersOfBoard(m.BoardID))
		}
	}
	n.publish(ctx, TableMembers, kind, raw(before), raw(after), scopes)
}

func (n *Notifier) Labels(ctx context.Context, kind Kind, before, after *model.Label) {
	var scopes []Scope
	for _, l := range []*model.Label{before, after} {
		if l != nil {
			scopes = append(scopes, LabelsOfBoard(l.BoardID))
		}
	}
	n.publish(ctx, TableLabels, kind, raw(before), raw(after), scopes)
}

// CardLabels announces a label being attached to (Insert) or detached from
// (Delete) a card.
func (n *Notifier) CardLabels(ctx context.Context, kind Kind, link model.CardLabel) {
	var before, after *model.CardLabel
	if kind == Delete {
		before = &link
	} else {
		after = &link
	}
	n.publish(ctx, TableCardLabels, kind, raw(before), raw(after), []Scope{LabelsOfCard(link.CardID)})
}

func (n *Notifier) Checklists(ctx context.Context, kind Kind, before, after *model.Checklist) {
	var scopes []Scope
	for _, c := range []*model.Checklist{before, after} {
		if c != nil {
			scopes = append(scopes, ChecklistsOfCard(c.CardID))
		}
	}
	n.publish(ctx, TableChecklists, kind, raw(before), raw(after), scopes)
}

func (n *Notifier) ChecklistItems(ctx context.Context, kind Kind, before, after *model.ChecklistItem) {
	var scopes []Scope
	for _, it := range []*model.ChecklistItem{before, after} {
		if it != nil {
			scopes = append(scopes, ItemsOfChecklist(it.ChecklistID))
		}
	}
	n.publish(ctx, TableChecklistItems, kind, raw(before), raw(after), scopes)
}

// ListsReordered announces a batch renumbering of one board's lists as a
// single update event.
func (n *Notifier) ListsReordered(ctx context.Context, boardID uuid.UUID) {
	n.publish(ctx, TableLists, Update, nil, nil, []Scope{ListsOfBoard(boardID)})
}

// CardsReordered announces a batch renumbering of one list's cards.
func (n *Notifier) CardsReordered(ctx context.Context, listID uuid.UUID) {
	n.publish(ctx, TableCards, Update, nil, nil, []Scope{CardsOfList(listID)})
}

func (n *Notifier) ChecklistsReordered(ctx context.Context, cardID uuid.UUID) {
	n.publish(ctx, TableChecklists, Update, nil, nil, []Scope{ChecklistsOfCard(cardID)})
}

func (n *Notifier) ItemsReordered(ctx context.Context, checklistID uuid.UUID) {
	n.publish(ctx, TableChecklistItems, Update, nil, nil, []Scope{ItemsOfChecklist(checklistID)})
}

func (n *Notifier) publish(ctx context.Context, table string, kind Kind, before, after json.RawMessage, scopes []Scope) {
	if n == nil || n.pub == nil {
		return
	}
	ev := Event{
		ID:          ulid.Make().String(),
		Table:       table,
		Kind:        kind,
		Before:      before,
		After:       after,
		Origin:      OriginFrom(ctx),
		CommittedAt: n.now().UTC(),
	}
	seen := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		if seen[s.String()] {
			continue
		}
		seen[s.String()] = true
		if err := n.pub.Publish(ctx, s, ev); err != nil {
			n.log.WithError(err).WithField("scope", s.String()).Warn("failed to publish change event")
		}
	}
}

func raw[T any](v *T) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
