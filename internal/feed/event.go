// Package feed carries row-change notifications from writers to the views
// that cache those rows. Events are scoped to a filter ("cards where
// list_id = X") and delivered in publish order per scope.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"kanban/internal/model"
)

type Kind string

const (
	Insert Kind = "INSERT"
	Update Kind = "UPDATE"
	Delete Kind = "DELETE"
)

const (
	TableBoards   = "boards"
	TableLists    = "lists"
	TableCards    = "cards"
	TableComments = "comments"
	TableMembers  = "board_members"

	TableLabels         = "labels"
	TableCardLabels     = "card_labels"
	TableChecklists     = "checklists"
	TableChecklistItems = "checklist_items"
)

// Event is one committed row change. Before is empty for inserts, After for deletes.
type Event struct {
	ID          string          `json:"id"`
	Table       string          `json:"table"`
	Kind        Kind            `json:"kind"`
	Before      json.RawMessage `json:"before,omitempty"`
	After       json.RawMessage `json:"after,omitempty"`
	Origin      string          `json:"origin,omitempty"`
	CommittedAt time.Time       `json:"committed_at"`
}

// Scope is an equality filter on one column of one table.
type Scope struct {
	Table  string
	Column string
	Value  string
}

func (s Scope) String() string {
	return s.Table + ":" + s.Column + "=" + s.Value
}

// Channel is the transport channel name for the scope.
func (s Scope) Channel(prefix string) string {
	if prefix == "" {
		return s.String()
	}
	return prefix + ":" + s.String()
}

func BoardScope(id uuid.UUID) Scope         { return Scope{TableBoards, "id", id.String()} }
func BoardsOfOwner(owner uuid.UUID) Scope   { return Scope{TableBoards, "owner_id", owner.String()} }
func ListsOfBoard(boardID uuid.UUID) Scope  { return Scope{TableLists, "board_id", boardID.String()} }
func CardsOfList(listID uuid.UUID) Scope    { return Scope{TableCards, "list_id", listID.String()} }
func CardScope(id uuid.UUID) Scope          { return Scope{TableCards, "id", id.String()} }
func CommentsOfCard(cardID uuid.UUID) Scope { return Scope{TableComments, "card_id", cardID.String()} }
func MembersOfBoard(boardID uuid.UUID) Scope {
	return Scope{TableMembers, "board_id", boardID.String()}
}

func LabelsOfBoard(boardID uuid.UUID) Scope {
	return Scope{TableLabels, "board_id", boardID.String()}
}
func LabelsOfCard(cardID uuid.UUID) Scope { return Scope{TableCardLabels, "card_id", cardID.String()} }
func ChecklistsOfCard(cardID uuid.UUID) Scope {
	return Scope{TableChecklists, "card_id", cardID.String()}
}
func ItemsOfChecklist(checklistID uuid.UUID) Scope {
	return Scope{TableChecklistItems, "checklist_id", checklistID.String()}
}

// Handler receives events for one subscription, one at a time.
type Handler func(Event)

type Feed interface {
	// Subscribe starts delivery of events for scope to handler. Delivery
	// continues until the returned Subscription is released, ctx is done or
	// the transport fails.
	Subscribe(ctx context.Context, scope Scope, handler Handler) (*Subscription, error)
}

type Publisher interface {
	Publish(ctx context.Context, scope Scope, ev Event) error
}

type originKey struct{}

// WithOrigin tags writes made with ctx so their events name the session that caused them.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

func OriginFrom(ctx context.Context) string {
	origin, _ := ctx.Value(originKey{}).(string)
	return origin
}

// DecodeRow decodes and validates an event row payload.
func DecodeRow[T any](raw json.RawMessage) (T, error) {
	var row T
	if len(raw) == 0 {
		return row, fmt.Errorf("%w: empty payload", model.ErrInvalidRow)
	}
	if err := sonic.ConfigStd.Unmarshal(raw, &row); err != nil {
		return row, fmt.Errorf("%w: %v", model.ErrInvalidRow, err)
	}
	if err := model.Validate(row); err != nil {
		return row, err
	}
	return row, nil
}

func encodeEvent(ev Event) ([]byte, error) {
	return sonic.ConfigStd.Marshal(ev)
}

func decodeEvent(payload string) (Event, error) {
	var ev Event
	if err := sonic.ConfigStd.UnmarshalFromString(payload, &ev); err != nil {
		return ev, err
	}
	if ev.Kind != Insert && ev.Kind != Update && ev.Kind != Delete {
		return ev, errors.New("unknown event kind " + string(ev.Kind))
	}
	return ev, nil
}
