/*
Package chore provides the core chore assignment and reward ledger engine.

PURPOSE:
  This package contains the domain types and algorithms for managing
  household chores: how a task moves from assignable to completed to
  approved or rejected, how rewards are resolved at approval time, how
  recurrence cooldowns gate re-availability, and how a person's running
  balance is derived from approved rewards and manual adjustments.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A currency amount backed by decimal.Decimal
  - Chore: A reusable task definition with reward and recurrence config
  - Assignment: One person's instance of working on a chore
  - RewardAdjustment: An immutable manual ledger entry
  - Balance: The derived ledger view for a person

DESIGN PRINCIPLES:
  1. Explicit states: Assignment lifecycle is a tagged enum, not booleans
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing chore/person IDs
  4. Derived balances: Balance is always computed, never stored

SEE ALSO:
  - lifecycle.go: The state machine operating on these types
  - reward.go: Reward resolution rules
  - balance.go: Balance aggregation
*/
package chore

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amount
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int) Money {
	return Money{Value: decimal.NewFromInt(int64(value))}
}

func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Value: decimal.Zero}
	}
	return Money{Value: d}
}

func Zero() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(b Money) Money          { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money          { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) Neg() Money                 { return Money{Value: m.Value.Neg()} }
func (m Money) Div(d decimal.Decimal) Money { return Money{Value: m.Value.Div(d)} }
func (m Money) IsNegative() bool           { return m.Value.IsNegative() }
func (m Money) IsZero() bool               { return m.Value.IsZero() }
func (m Money) IsPositive() bool           { return m.Value.IsPositive() }
func (m Money) Equal(b Money) bool         { return m.Value.Equal(b.Value) }
func (m Money) LessThan(b Money) bool      { return m.Value.LessThan(b.Value) }
func (m Money) GreaterThan(b Money) bool   { return m.Value.GreaterThan(b.Value) }
func (m Money) String() string             { return m.Value.StringFixed(2) }

// Midpoint returns the value halfway between m and b.
// Used for pending-value estimates on range rewards.
func (m Money) Midpoint(b Money) Money {
	return m.Add(b).Div(decimal.NewFromInt(2))
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ChoreID string
type AssignmentID string
type PersonID string
type AdjustmentID string
type CreditID string

// =============================================================================
// ASSIGNMENT MODE - How assignment rows come into existence
// =============================================================================

type AssignmentMode string

const (
	// ModeSingle: exactly one assignee, row created eagerly.
	ModeSingle AssignmentMode = "single"

	// ModeMultiIndependent: one row per assignee, created eagerly.
	// Each row proceeds through the lifecycle independently.
	ModeMultiIndependent AssignmentMode = "multi_independent"

	// ModeUnassigned: no rows at creation. Any person may claim the
	// chore by completing it, which creates their row on the fly.
	ModeUnassigned AssignmentMode = "unassigned"
)

func (m AssignmentMode) Valid() bool {
	switch m {
	case ModeSingle, ModeMultiIndependent, ModeUnassigned:
		return true
	}
	return false
}

// =============================================================================
// CHORE - Task definition
// =============================================================================

// RewardRange is present only on range-reward chores. The approver picks
// the final amount anywhere in [Min, Max] at approval time.
type RewardRange struct {
	Min Money
	Max Money
}

// Chore is a reusable task definition owned by its creator.
// Lifecycle state lives exclusively on Assignment rows, never here.
type Chore struct {
	ID          ChoreID
	Title       string
	Description string
	CreatorID   PersonID

	// Reward is the fixed payout, and the default display value for
	// range chores. Range != nil means the payout is resolved within
	// the band at approval time and Reward is never paid out.
	Reward Money
	Range  *RewardRange

	// Recurring chores become completable again CooldownDays whole days
	// after their last approval. CooldownDays is meaningful only when
	// Recurring is true.
	Recurring    bool
	CooldownDays int

	Mode     AssignmentMode
	Disabled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRangeReward reports whether the payout is resolved from a band.
func (c *Chore) IsRangeReward() bool { return c.Range != nil }

// =============================================================================
// ASSIGNMENT - One person's instance of a chore
// =============================================================================

type AssignmentState string

const (
	// StateAvailable: not completed; may be completed by the assignee.
	StateAvailable AssignmentState = "available"

	// StatePendingApproval: completed, awaiting parent approval.
	StatePendingApproval AssignmentState = "pending_approval"

	// StateApproved: terminal for this cycle. A recurring chore returns
	// the row to Available once its cooldown elapses.
	StateApproved AssignmentState = "approved"
)

// Assignment carries the per-assignee lifecycle state of a chore.
// (ChoreID, AssigneeID) is unique: a person has at most one row per chore.
type Assignment struct {
	ID         AssignmentID
	ChoreID    ChoreID
	AssigneeID PersonID

	State          AssignmentState
	CompletedAt    *time.Time
	ApprovedAt     *time.Time
	ApprovalReward *Money

	// LastRejectionReason survives the fold back to Available so the
	// assignee can see why their last submission was rejected.
	LastRejectionReason string

	// Version guards compare-and-swap transitions. Every state change
	// increments it; a stale writer gets ErrConflict.
	Version int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// REWARD ADJUSTMENT - Manual ledger entry
// =============================================================================

// RewardAdjustment is an unconditional, signed ledger entry created by a
// parent. Append-only: never updated or deleted.
type RewardAdjustment struct {
	ID       AdjustmentID
	ChildID  PersonID
	ParentID PersonID
	Amount   Money
	Reason   string

	CreatedAt time.Time
}

// =============================================================================
// REWARD CREDIT - Immutable record of a credited approval
// =============================================================================

// RewardCredit is appended exactly once per approval and never mutated.
// Assignment.ApprovalReward only holds the latest resolved amount, so for
// recurring chores the credit history lives here; TotalEarned sums these,
// never the assignment field.
type RewardCredit struct {
	ID           CreditID
	AssignmentID AssignmentID
	ChoreID      ChoreID
	ChildID      PersonID
	ApprovedBy   PersonID
	Amount       Money

	CreatedAt time.Time
}

// =============================================================================
// BALANCE - Derived ledger view (never stored)
// =============================================================================

type Balance struct {
	ChildID PersonID

	// TotalEarned sums resolved approval rewards only, never estimates.
	TotalEarned Money

	// TotalAdjustments sums manual adjustment amounts; may be negative.
	TotalAdjustments Money

	// PendingValue estimates the worth of pending-approval assignments.
	// Informational only, never part of BalanceDue.
	PendingValue Money

	// PaidOut is externally supplied; zero until a payout ledger exists.
	PaidOut Money

	// BalanceDue = TotalEarned + TotalAdjustments - PaidOut.
	BalanceDue Money
}
