package model

import (
	"errors"
	"fmt"
	"slices"
)

// ErrPositionalPatch is returned for patches that try to change ordering or
// ownership fields. Those go through reorder and move instead.
var ErrPositionalPatch = errors.New("position and parent fields cannot be patched")

// ErrInvalidPatch marks a patch with unknown columns or values that would
// leave the row outside its schema.
var ErrInvalidPatch = errors.New("invalid patch")

// Columns maps each column a Patch may touch to the validator tag its new
// value has to pass.
type Columns map[string]string

// Patch is a partial update keyed by column name.
type Patch map[string]any

var positional = []string{"id", "position", "board_id", "list_id", "card_id", "checklist_id", "owner_id", "created_at", "updated_at"}

// Check rejects positional keys, keys outside allowed and values failing the
// column's rule. It runs before any write so a patch can never persist a row
// that later fails Validate.
func (p Patch) Check(allowed Columns) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty patch", ErrInvalidPatch)
	}
	for _, k := range p.Keys() {
		if slices.Contains(positional, k) {
			return fmt.Errorf("%w: %q", ErrPositionalPatch, k)
		}
		rule, ok := allowed[k]
		if !ok {
			return fmt.Errorf("%w: unknown column %q", ErrInvalidPatch, k)
		}
		if err := validate.Var(p[k], rule); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidPatch, k, err)
		}
	}
	return nil
}

// Keys returns the patch columns in sorted order.
func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
