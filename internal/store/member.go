package store

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"kanban/internal/model"
)

var memberColumns = model.Columns{"role": "required,oneof=owner admin member viewer"}

// MemberStore caches board memberships, strongest role first.
type MemberStore struct {
	rowStore[model.BoardMember]
}

func NewMemberStore(backend RowBackend[model.BoardMember]) *MemberStore {
	s := &MemberStore{rowStore[model.BoardMember]{
		noun:     "member",
		plural:   "members",
		editable: memberColumns,
		parentOf: func(m model.BoardMember) uuid.UUID { return m.BoardID },
		less: func(a, b model.BoardMember) int {
			if a.Role != b.Role {
				if a.Role.AtLeast(b.Role) {
					return -1
				}
				return 1
			}
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
			return strings.Compare(a.ID.String(), b.ID.String())
		},
		backend: backend,
	}}
	s.init()
	return s
}

func (s *MemberStore) Add(ctx context.Context, boardID, userID uuid.UUID, role model.Role, addedBy uuid.UUID) (model.BoardMember, error) {
	return s.create(ctx, model.BoardMember{BoardID: boardID, UserID: userID, Role: role, AddedBy: &addedBy})
}

func (s *MemberStore) ChangeRole(ctx context.Context, id uuid.UUID, role model.Role) (model.BoardMember, error) {
	return s.update(ctx, "change member role", id, model.Patch{"role": role})
}

func (s *MemberStore) Remove(ctx context.Context, id uuid.UUID) error {
	return s.remove(ctx, "remove member", id)
}
