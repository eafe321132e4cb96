package chore

import (
	"context"
	"time"
)

// =============================================================================
// CHORE OVERVIEW - Read-only projection for legacy consumers
// =============================================================================

// ChoreOverview is the flattened view older clients expect: the chore
// plus, for single-mode chores, the one assignee's state lifted onto the
// top level. It is a projection over Assignment rows, never a second
// source of truth; assignment state is written only through lifecycle.go.
type ChoreOverview struct {
	Chore       Chore
	Assignments []Assignment

	// Legacy single-assignment fields. Populated only for ModeSingle.
	AssigneeID     *PersonID
	IsCompleted    bool
	CompletionDate *time.Time
}

// GetChoreOverview loads a chore with its assignments in one snapshot.
func (s *Service) GetChoreOverview(ctx context.Context, choreID ChoreID) (*ChoreOverview, error) {
	var out *ChoreOverview
	err := s.Store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetChore(ctx, choreID)
		if err != nil {
			return err
		}
		rows, err := tx.ListAssignmentsByChore(ctx, choreID)
		if err != nil {
			return err
		}
		out = projectOverview(c, rows)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func projectOverview(c *Chore, rows []Assignment) *ChoreOverview {
	ov := &ChoreOverview{Chore: *c, Assignments: rows}
	if c.Mode != ModeSingle || len(rows) != 1 {
		return ov
	}

	a := rows[0]
	ov.AssigneeID = &a.AssigneeID
	ov.IsCompleted = a.State != StateAvailable
	ov.CompletionDate = a.CompletedAt
	return ov
}
