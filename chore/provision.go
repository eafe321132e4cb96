/*
provision.go - Assignment provisioning per chore mode

PURPOSE:
  Interprets a chore's assignment mode to decide how Assignment rows are
  created and who may act on them:

    single:            exactly 1 assignee, row created eagerly
    multi_independent: 1+ assignees, one eager row each
    unassigned:        no assignees at creation; rows are created lazily
                       when a person claims the chore by completing it

  The mode is immutable after creation. Only the assignee set may be
  edited later, and only while no assignment is pending or approved, so
  audit history is never silently discarded.

SEE ALSO:
  - lifecycle.go: CreateChore / ClaimChore / SetAssignees call into here
*/
package chore

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CHORE SPEC - Creation input
// =============================================================================

// ChoreSpec is the caller-supplied definition for a new chore.
type ChoreSpec struct {
	Title       string
	Description string
	Reward      Money
	Range       *RewardRange
	Recurring   bool
	CooldownDays int
	Mode        AssignmentMode
	AssigneeIDs []PersonID
}

// Validate rejects malformed specs before any state mutation.
func (s *ChoreSpec) Validate() error {
	if s.Title == "" {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if !s.Mode.Valid() {
		return &ValidationError{Field: "assignment_mode", Message: fmt.Sprintf("unknown mode %q", s.Mode)}
	}
	if err := validateRewardConfig(s.Reward, s.Range); err != nil {
		return err
	}
	if s.CooldownDays < 0 {
		return &ValidationError{Field: "cooldown_days", Message: "must be non-negative"}
	}
	return validateAssignees(s.Mode, s.AssigneeIDs)
}

func validateAssignees(mode AssignmentMode, ids []PersonID) error {
	if err := checkDistinct(ids); err != nil {
		return err
	}
	switch mode {
	case ModeSingle:
		if len(ids) != 1 {
			return &ValidationError{Field: "assignee_ids", Message: "single mode requires exactly one assignee"}
		}
	case ModeMultiIndependent:
		if len(ids) == 0 {
			return &ValidationError{Field: "assignee_ids", Message: "multi_independent mode requires at least one assignee"}
		}
	case ModeUnassigned:
		if len(ids) != 0 {
			return &ValidationError{Field: "assignee_ids", Message: "unassigned mode must start with no assignees"}
		}
	}
	return nil
}

func checkDistinct(ids []PersonID) error {
	seen := make(map[PersonID]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			return &ValidationError{Field: "assignee_ids", Message: "empty assignee id"}
		}
		if seen[id] {
			return &ValidationError{Field: "assignee_ids", Message: fmt.Sprintf("duplicate assignee %s", id)}
		}
		seen[id] = true
	}
	return nil
}

// =============================================================================
// ROW CONSTRUCTION
// =============================================================================

// provisionAssignments builds the eager rows for a new chore. Unassigned
// chores start with none; their rows appear on first claim.
func provisionAssignments(c *Chore, ids []PersonID, now time.Time) []*Assignment {
	rows := make([]*Assignment, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, newAssignment(c.ID, id, now))
	}
	return rows
}

func newAssignment(choreID ChoreID, assignee PersonID, now time.Time) *Assignment {
	return &Assignment{
		ID:         AssignmentID(uuid.NewString()),
		ChoreID:    choreID,
		AssigneeID: assignee,
		State:      StateAvailable,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func newChore(creator PersonID, s *ChoreSpec, now time.Time) *Chore {
	c := &Chore{
		ID:           ChoreID(uuid.NewString()),
		Title:        s.Title,
		Description:  s.Description,
		CreatorID:    creator,
		Reward:       s.Reward,
		Recurring:    s.Recurring,
		CooldownDays: s.CooldownDays,
		Mode:         s.Mode,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if s.Range != nil {
		r := *s.Range
		c.Range = &r
	}
	return c
}
