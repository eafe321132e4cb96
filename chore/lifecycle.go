/*
lifecycle.go - Assignment state machine and engine operations

PURPOSE:
  Owns the per-assignment lifecycle and every mutation of persisted
  state. An external caller (the HTTP layer) creates chores through the
  provisioner, then drives complete/approve/reject; nothing else writes
  assignment state.

STATE MACHINE:
  ┌───────────┐  Complete   ┌──────────────────┐  Approve  ┌──────────┐
  │ Available │ ──────────▶ │ PendingApproval  │ ────────▶ │ Approved │
  └───────────┘             └──────────────────┘           └──────────┘
        ▲                            │                          │
        │          Reject            │        Complete          │
        └────────────────────────────┘   (recurring, cooldown   │
        ▲                                 elapsed)              │
        └───────────────────────────────────────────────────────┘

  Rejection folds back to Available with the reason recorded and the
  approval fields cleared; no cooldown applies, the assignee may redo
  the chore immediately. Approved is terminal for non-recurring chores.

CONCURRENCY:
  Every transition runs inside one store transaction and writes through
  a version-guarded compare-and-swap. A concurrent double approval loses
  the race and observes ErrConflict instead of double-crediting; the
  reward is credited to the ledger exactly once, at approval.

SEE ALSO:
  - provision.go: Row creation rules per assignment mode
  - cooldown.go: Re-availability gating for recurring chores
  - balance.go: The derived ledger view
*/
package chore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SERVICE - The engine facade handed to the HTTP layer
// =============================================================================

type Service struct {
	Store TxStore
	Auth  Authorizer

	// Now is swappable for tests.
	Now func() time.Time
}

func NewService(store TxStore, auth Authorizer) *Service {
	return &Service{Store: store, Auth: auth, Now: time.Now}
}

// =============================================================================
// CHORE OPERATIONS
// =============================================================================

// CreateChore validates the spec and creates the chore together with its
// eager assignment rows in one transaction.
func (s *Service) CreateChore(ctx context.Context, creator PersonID, spec ChoreSpec) (*Chore, error) {
	if creator == "" {
		return nil, &ValidationError{Field: "creator_id", Message: "must not be empty"}
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	now := s.Now()
	c := newChore(creator, &spec, now)
	rows := provisionAssignments(c, spec.AssigneeIDs, now)

	err := s.Store.WithTx(ctx, func(tx Store) error {
		if err := tx.CreateChore(ctx, c); err != nil {
			return err
		}
		for _, a := range rows {
			if err := tx.CreateAssignment(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ChorePatch carries optional chore edits. Nil fields are left unchanged.
// The assignment mode is immutable and deliberately absent.
type ChorePatch struct {
	Title        *string
	Description  *string
	Reward       *Money
	Range        *RewardRange
	ClearRange   bool
	Recurring    *bool
	CooldownDays *int
}

// UpdateChore edits the definition. Refused while any assignment is
// pending approval, so an in-flight submission is never judged against
// rules it wasn't completed under.
func (s *Service) UpdateChore(ctx context.Context, choreID ChoreID, actor PersonID, patch ChorePatch) (*Chore, error) {
	var updated *Chore
	err := s.Store.WithTx(ctx, func(tx Store) error {
		c, err := s.ownedChore(ctx, tx, choreID, actor)
		if err != nil {
			return err
		}

		rows, err := tx.ListAssignmentsByChore(ctx, choreID)
		if err != nil {
			return err
		}
		for _, a := range rows {
			if a.State == StatePendingApproval {
				return ErrNotCompleted
			}
		}

		if patch.Title != nil {
			if *patch.Title == "" {
				return &ValidationError{Field: "title", Message: "must not be empty"}
			}
			c.Title = *patch.Title
		}
		if patch.Description != nil {
			c.Description = *patch.Description
		}
		if patch.Reward != nil {
			c.Reward = *patch.Reward
		}
		if patch.ClearRange {
			c.Range = nil
		} else if patch.Range != nil {
			r := *patch.Range
			c.Range = &r
		}
		if err := validateRewardConfig(c.Reward, c.Range); err != nil {
			return err
		}
		if patch.Recurring != nil {
			c.Recurring = *patch.Recurring
		}
		if patch.CooldownDays != nil {
			if *patch.CooldownDays < 0 {
				return &ValidationError{Field: "cooldown_days", Message: "must be non-negative"}
			}
			c.CooldownDays = *patch.CooldownDays
		}
		c.UpdatedAt = s.Now()

		if err := tx.UpdateChore(ctx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetAssignees replaces the assignee set of a single or multi chore.
// Refused while any assignment is pending or approved, so audit history
// is never silently discarded.
func (s *Service) SetAssignees(ctx context.Context, choreID ChoreID, actor PersonID, ids []PersonID) error {
	return s.Store.WithTx(ctx, func(tx Store) error {
		c, err := s.ownedChore(ctx, tx, choreID, actor)
		if err != nil {
			return err
		}
		if c.Mode == ModeUnassigned {
			return &ValidationError{Field: "assignment_mode", Message: "unassigned chores have no fixed assignee set"}
		}
		if err := validateAssignees(c.Mode, ids); err != nil {
			return err
		}

		rows, err := tx.ListAssignmentsByChore(ctx, choreID)
		if err != nil {
			return err
		}
		for _, a := range rows {
			if a.State == StatePendingApproval || a.State == StateApproved {
				return ErrConflict
			}
		}

		want := make(map[PersonID]bool, len(ids))
		for _, id := range ids {
			want[id] = true
		}
		have := make(map[PersonID]bool, len(rows))
		now := s.Now()

		for _, a := range rows {
			have[a.AssigneeID] = true
			if !want[a.AssigneeID] {
				if err := tx.DeleteAssignment(ctx, a.ID); err != nil {
					return err
				}
			}
		}
		for _, id := range ids {
			if !have[id] {
				if err := tx.CreateAssignment(ctx, newAssignment(choreID, id, now)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// DisableChore soft-deletes: assignments stop being actionable but all
// history stays queryable.
func (s *Service) DisableChore(ctx context.Context, choreID ChoreID, actor PersonID) error {
	return s.setDisabled(ctx, choreID, actor, true)
}

// EnableChore reverses a soft delete.
func (s *Service) EnableChore(ctx context.Context, choreID ChoreID, actor PersonID) error {
	return s.setDisabled(ctx, choreID, actor, false)
}

func (s *Service) setDisabled(ctx context.Context, choreID ChoreID, actor PersonID, disabled bool) error {
	return s.Store.WithTx(ctx, func(tx Store) error {
		c, err := s.ownedChore(ctx, tx, choreID, actor)
		if err != nil {
			return err
		}
		if c.Disabled == disabled {
			return nil
		}
		c.Disabled = disabled
		c.UpdatedAt = s.Now()
		return tx.UpdateChore(ctx, c)
	})
}

// DeleteChore hard-deletes the chore and cascades its assignments.
// Credits and adjustments are ledger history and remain.
func (s *Service) DeleteChore(ctx context.Context, choreID ChoreID, actor PersonID) error {
	return s.Store.WithTx(ctx, func(tx Store) error {
		if _, err := s.ownedChore(ctx, tx, choreID, actor); err != nil {
			return err
		}
		return tx.DeleteChore(ctx, choreID)
	})
}

// =============================================================================
// COMPLETE
// =============================================================================

// CompleteAssignment marks the actor's own assignment as done, moving it
// to PendingApproval. Recurring assignments with a prior approval must be
// past their cooldown.
func (s *Service) CompleteAssignment(ctx context.Context, id AssignmentID, actor PersonID) (*Assignment, error) {
	var out *Assignment
	err := s.Store.WithTx(ctx, func(tx Store) error {
		a, err := tx.GetAssignment(ctx, id)
		if err != nil {
			return err
		}
		c, err := tx.GetChore(ctx, a.ChoreID)
		if err != nil {
			return err
		}
		if err := s.complete(ctx, tx, c, a, actor); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimChore is the pool-chore entry point: claim-and-complete in one
// transaction. The first claim creates the actor's row on the fly; later
// calls reuse it, so a recurring pool chore can be redone after cooldown.
// Two children racing on the same chore each get their own row; the
// (chore, assignee) uniqueness constraint makes a duplicate claim by the
// same child fail deterministically.
func (s *Service) ClaimChore(ctx context.Context, choreID ChoreID, actor PersonID) (*Assignment, error) {
	var out *Assignment
	err := s.Store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetChore(ctx, choreID)
		if err != nil {
			return err
		}
		if c.Mode != ModeUnassigned {
			return &ValidationError{Field: "assignment_mode", Message: "only unassigned chores can be claimed"}
		}

		a, err := tx.GetAssignmentForChore(ctx, choreID, actor)
		switch {
		case err == nil:
			// Existing row: treat as a plain complete.
		case errors.Is(err, ErrNotFound):
			a = newAssignment(choreID, actor, s.Now())
			if err := tx.CreateAssignment(ctx, a); err != nil {
				if errors.Is(err, ErrDuplicateAssignment) {
					return ErrConflict
				}
				return err
			}
		default:
			return err
		}

		if err := s.complete(ctx, tx, c, a, actor); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) complete(ctx context.Context, tx Store, c *Chore, a *Assignment, actor PersonID) error {
	if a.AssigneeID != actor {
		return ErrForbidden
	}
	if c.Disabled {
		return ErrChoreDisabled
	}

	switch a.State {
	case StatePendingApproval:
		return ErrAlreadyCompleted
	case StateApproved:
		if !c.Recurring {
			return ErrAlreadyCompleted
		}
		// Recurring chores cycle back through completion once eligible.
	}

	if eligible, remaining := CooldownStatus(c, a, s.Now()); !eligible {
		return &CooldownError{ChoreID: c.ID, RemainingDays: remaining}
	}

	now := s.Now()
	prev := a.Version
	a.State = StatePendingApproval
	a.CompletedAt = &now
	a.UpdatedAt = now
	a.Version++
	return tx.UpdateAssignment(ctx, a, prev)
}

// =============================================================================
// APPROVE / REJECT
// =============================================================================

// ApproveAssignment resolves the final reward and credits it to the
// ledger. This is the only place a reward is ever credited. A second
// concurrent approval observes ErrConflict, never a double credit.
func (s *Service) ApproveAssignment(ctx context.Context, id AssignmentID, actor PersonID, rewardValue *Money) (*Assignment, error) {
	var out *Assignment
	err := s.Store.WithTx(ctx, func(tx Store) error {
		a, err := tx.GetAssignment(ctx, id)
		if err != nil {
			return err
		}
		c, err := tx.GetChore(ctx, a.ChoreID)
		if err != nil {
			return err
		}
		if err := s.authorizeReview(ctx, c, a, actor); err != nil {
			return err
		}

		switch a.State {
		case StateAvailable:
			return ErrNotCompleted
		case StateApproved:
			// Already handled by a concurrent approver.
			return ErrConflict
		}

		amount, err := ResolveReward(c, rewardValue)
		if err != nil {
			return err
		}

		now := s.Now()
		prev := a.Version
		a.State = StateApproved
		a.ApprovedAt = &now
		a.ApprovalReward = &amount
		a.UpdatedAt = now
		a.Version++
		if err := tx.UpdateAssignment(ctx, a, prev); err != nil {
			return err
		}

		if err := tx.AppendCredit(ctx, &RewardCredit{
			ID:           CreditID(uuid.NewString()),
			AssignmentID: a.ID,
			ChoreID:      c.ID,
			ChildID:      a.AssigneeID,
			ApprovedBy:   actor,
			Amount:       amount,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RejectAssignment folds a pending assignment back to Available with the
// reason recorded. Cost-free for the assignee: approval fields are
// cleared, so no cooldown applies and the chore can be redone at once.
func (s *Service) RejectAssignment(ctx context.Context, id AssignmentID, actor PersonID, reason string) (*Assignment, error) {
	if reason == "" {
		return nil, ErrEmptyReason
	}

	var out *Assignment
	err := s.Store.WithTx(ctx, func(tx Store) error {
		a, err := tx.GetAssignment(ctx, id)
		if err != nil {
			return err
		}
		c, err := tx.GetChore(ctx, a.ChoreID)
		if err != nil {
			return err
		}
		if err := s.authorizeReview(ctx, c, a, actor); err != nil {
			return err
		}

		switch a.State {
		case StateAvailable:
			return ErrNotCompleted
		case StateApproved:
			return ErrConflict
		}

		prev := a.Version
		a.State = StateAvailable
		a.CompletedAt = nil
		a.ApprovedAt = nil
		a.ApprovalReward = nil
		a.LastRejectionReason = reason
		a.UpdatedAt = s.Now()
		a.Version++
		if err := tx.UpdateAssignment(ctx, a, prev); err != nil {
			return err
		}

		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

// CreateAdjustment appends a manual signed ledger entry for a child the
// actor has authority over. Immutable once created.
func (s *Service) CreateAdjustment(ctx context.Context, actor, child PersonID, amount Money, reason string) (*RewardAdjustment, error) {
	if amount.IsZero() {
		return nil, &ValidationError{Field: "amount", Message: "must be non-zero"}
	}
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Message: "must not be empty"}
	}
	if err := s.requireAuthority(ctx, actor, child); err != nil {
		return nil, err
	}

	adj := &RewardAdjustment{
		ID:        AdjustmentID(uuid.NewString()),
		ChildID:   child,
		ParentID:  actor,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: s.Now(),
	}
	if err := s.Store.AppendAdjustment(ctx, adj); err != nil {
		return nil, err
	}
	return adj, nil
}

// ListAdjustments returns a child's manual ledger entries.
func (s *Service) ListAdjustments(ctx context.Context, child PersonID) ([]RewardAdjustment, error) {
	return s.Store.ListAdjustments(ctx, child)
}

// ListAssignmentsForPerson returns the person's work queue.
func (s *Service) ListAssignmentsForPerson(ctx context.Context, person PersonID) ([]Assignment, error) {
	return s.Store.ListAssignmentsByAssignee(ctx, person)
}

// =============================================================================
// AUTHORIZATION HELPERS
// =============================================================================

// authorizeReview permits the chore's creator, or any actor the external
// authorizer grants authority over the assignee.
func (s *Service) authorizeReview(ctx context.Context, c *Chore, a *Assignment, actor PersonID) error {
	if actor == c.CreatorID {
		return nil
	}
	return s.requireAuthority(ctx, actor, a.AssigneeID)
}

func (s *Service) requireAuthority(ctx context.Context, actor, assignee PersonID) error {
	ok, err := s.Auth.CanActFor(ctx, actor, assignee)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *Service) ownedChore(ctx context.Context, tx Store, choreID ChoreID, actor PersonID) (*Chore, error) {
	c, err := tx.GetChore(ctx, choreID)
	if err != nil {
		return nil, err
	}
	if c.CreatorID != actor {
		return nil, ErrForbidden
	}
	return c, nil
}
