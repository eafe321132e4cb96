/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts travel as decimal strings ("5.00"), never floats, so clients
  can't lose cents to float parsing.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/chore-engine/chore"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateChoreRequest creates a chore. min_reward/max_reward are present
// together iff the reward is a range.
type CreateChoreRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Reward       string   `json:"reward"`
	MinReward    *string  `json:"min_reward,omitempty"`
	MaxReward    *string  `json:"max_reward,omitempty"`
	Recurring    bool     `json:"is_recurring"`
	CooldownDays int      `json:"cooldown_days"`
	Mode         string   `json:"assignment_mode"`
	AssigneeIDs  []string `json:"assignee_ids"`
}

// UpdateChoreRequest carries optional edits; absent fields are unchanged.
type UpdateChoreRequest struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	Reward       *string `json:"reward,omitempty"`
	MinReward    *string `json:"min_reward,omitempty"`
	MaxReward    *string `json:"max_reward,omitempty"`
	ClearRange   bool    `json:"clear_range,omitempty"`
	Recurring    *bool   `json:"is_recurring,omitempty"`
	CooldownDays *int    `json:"cooldown_days,omitempty"`
}

type SetAssigneesRequest struct {
	AssigneeIDs []string `json:"assignee_ids"`
}

type ApproveRequest struct {
	RewardValue *string `json:"reward_value,omitempty"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type CreateAdjustmentRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type ChoreDTO struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	CreatorID     string  `json:"creator_id"`
	Reward        string  `json:"reward"`
	IsRangeReward bool    `json:"is_range_reward"`
	MinReward     *string `json:"min_reward,omitempty"`
	MaxReward     *string `json:"max_reward,omitempty"`
	Recurring     bool    `json:"is_recurring"`
	CooldownDays  int     `json:"cooldown_days"`
	Mode          string  `json:"assignment_mode"`
	Disabled      bool    `json:"is_disabled"`
	CreatedAt     string  `json:"created_at"`
}

type AssignmentDTO struct {
	ID                  string  `json:"id"`
	ChoreID             string  `json:"chore_id"`
	AssigneeID          string  `json:"assignee_id"`
	State               string  `json:"state"`
	CompletedAt         *string `json:"completed_at,omitempty"`
	ApprovedAt          *string `json:"approved_at,omitempty"`
	ApprovalReward      *string `json:"approval_reward,omitempty"`
	LastRejectionReason string  `json:"last_rejection_reason,omitempty"`
}

// ChoreOverviewDTO is the flattened legacy view: for single-mode chores
// the one assignee's state is lifted to the top level.
type ChoreOverviewDTO struct {
	Chore       ChoreDTO        `json:"chore"`
	Assignments []AssignmentDTO `json:"assignments"`

	AssigneeID     *string `json:"assignee_id,omitempty"`
	IsCompleted    bool    `json:"is_completed"`
	CompletionDate *string `json:"completion_date,omitempty"`
}

type BalanceDTO struct {
	ChildID          string `json:"child_id"`
	TotalEarned      string `json:"total_earned"`
	TotalAdjustments string `json:"total_adjustments"`
	PendingValue     string `json:"pending_value"`
	PaidOut          string `json:"paid_out"`
	BalanceDue       string `json:"balance_due"`
}

type AdjustmentDTO struct {
	ID        string `json:"id"`
	ChildID   string `json:"child_id"`
	ParentID  string `json:"parent_id"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toChoreDTO(c *chore.Chore) ChoreDTO {
	dto := ChoreDTO{
		ID:            string(c.ID),
		Title:         c.Title,
		Description:   c.Description,
		CreatorID:     string(c.CreatorID),
		Reward:        c.Reward.String(),
		IsRangeReward: c.IsRangeReward(),
		Recurring:     c.Recurring,
		CooldownDays:  c.CooldownDays,
		Mode:          string(c.Mode),
		Disabled:      c.Disabled,
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
	}
	if c.Range != nil {
		minStr := c.Range.Min.String()
		maxStr := c.Range.Max.String()
		dto.MinReward = &minStr
		dto.MaxReward = &maxStr
	}
	return dto
}

func toAssignmentDTO(a *chore.Assignment) AssignmentDTO {
	dto := AssignmentDTO{
		ID:                  string(a.ID),
		ChoreID:             string(a.ChoreID),
		AssigneeID:          string(a.AssigneeID),
		State:               string(a.State),
		LastRejectionReason: a.LastRejectionReason,
	}
	if a.CompletedAt != nil {
		s := a.CompletedAt.Format(time.RFC3339)
		dto.CompletedAt = &s
	}
	if a.ApprovedAt != nil {
		s := a.ApprovedAt.Format(time.RFC3339)
		dto.ApprovedAt = &s
	}
	if a.ApprovalReward != nil {
		s := a.ApprovalReward.String()
		dto.ApprovalReward = &s
	}
	return dto
}

func toBalanceDTO(b *chore.Balance) BalanceDTO {
	return BalanceDTO{
		ChildID:          string(b.ChildID),
		TotalEarned:      b.TotalEarned.String(),
		TotalAdjustments: b.TotalAdjustments.String(),
		PendingValue:     b.PendingValue.String(),
		PaidOut:          b.PaidOut.String(),
		BalanceDue:       b.BalanceDue.String(),
	}
}

func toAdjustmentDTO(adj *chore.RewardAdjustment) AdjustmentDTO {
	return AdjustmentDTO{
		ID:        string(adj.ID),
		ChildID:   string(adj.ChildID),
		ParentID:  string(adj.ParentID),
		Amount:    adj.Amount.String(),
		Reason:    adj.Reason,
		CreatedAt: adj.CreatedAt.Format(time.RFC3339),
	}
}

func toOverviewDTO(ov *chore.ChoreOverview) ChoreOverviewDTO {
	dto := ChoreOverviewDTO{
		Chore:       toChoreDTO(&ov.Chore),
		Assignments: make([]AssignmentDTO, 0, len(ov.Assignments)),
		IsCompleted: ov.IsCompleted,
	}
	for i := range ov.Assignments {
		dto.Assignments = append(dto.Assignments, toAssignmentDTO(&ov.Assignments[i]))
	}
	if ov.AssigneeID != nil {
		s := string(*ov.AssigneeID)
		dto.AssigneeID = &s
	}
	if ov.CompletionDate != nil {
		s := ov.CompletionDate.Format(time.RFC3339)
		dto.CompletionDate = &s
	}
	return dto
}
