package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/chore-engine/chore"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testChore(id string) *chore.Chore {
	now := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	return &chore.Chore{
		ID:           chore.ChoreID(id),
		Title:        "take out trash",
		Description:  "bins to the curb",
		CreatorID:    "parent-1",
		Reward:       chore.MustParseMoney("5.00"),
		Recurring:    true,
		CooldownDays: 7,
		Mode:         chore.ModeSingle,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func testAssignment(id, choreID, assignee string) *chore.Assignment {
	now := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	return &chore.Assignment{
		ID:         chore.AssignmentID(id),
		ChoreID:    chore.ChoreID(choreID),
		AssigneeID: chore.PersonID(assignee),
		State:      chore.StateAvailable,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// =============================================================================
// CHORE ROUNDTRIPS
// =============================================================================

func TestChore_Roundtrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	want := testChore("c1")
	require.NoError(t, st.CreateChore(ctx, want))

	got, err := st.GetChore(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.CreatorID, got.CreatorID)
	assert.True(t, got.Reward.Equal(want.Reward))
	assert.Nil(t, got.Range)
	assert.True(t, got.Recurring)
	assert.Equal(t, 7, got.CooldownDays)
	assert.Equal(t, chore.ModeSingle, got.Mode)
	assert.True(t, got.CreatedAt.Equal(want.CreatedAt))
}

func TestChore_RangeRoundtrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	want := testChore("c1")
	want.Range = &chore.RewardRange{
		Min: chore.MustParseMoney("3.00"),
		Max: chore.MustParseMoney("10.00"),
	}
	require.NoError(t, st.CreateChore(ctx, want))

	got, err := st.GetChore(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got.Range)
	assert.True(t, got.Range.Min.Equal(chore.MustParseMoney("3.00")))
	assert.True(t, got.Range.Max.Equal(chore.MustParseMoney("10.00")))
}

func TestChore_GetMissing_NotFound(t *testing.T) {
	st := openTestStore(t)

	_, err := st.GetChore(context.Background(), "nope")
	assert.ErrorIs(t, err, chore.ErrNotFound)
}

func TestChore_Update_Persists(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	c := testChore("c1")
	require.NoError(t, st.CreateChore(ctx, c))

	c.Title = "take out trash and recycling"
	c.Disabled = true
	require.NoError(t, st.UpdateChore(ctx, c))

	got, err := st.GetChore(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "take out trash and recycling", got.Title)
	assert.True(t, got.Disabled)
}

func TestChore_UpdateMissing_NotFound(t *testing.T) {
	st := openTestStore(t)

	err := st.UpdateChore(context.Background(), testChore("ghost"))
	assert.ErrorIs(t, err, chore.ErrNotFound)
}

func TestChore_Delete_CascadesAssignments(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChore(ctx, testChore("c1")))
	require.NoError(t, st.CreateAssignment(ctx, testAssignment("a1", "c1", "child-a")))

	require.NoError(t, st.DeleteChore(ctx, "c1"))

	_, err := st.GetChore(ctx, "c1")
	assert.ErrorIs(t, err, chore.ErrNotFound)
	_, err = st.GetAssignment(ctx, "a1")
	assert.ErrorIs(t, err, chore.ErrNotFound, "ON DELETE CASCADE should remove the assignment")
}

// =============================================================================
// ASSIGNMENT ROUNDTRIPS AND CONSTRAINTS
// =============================================================================

func TestAssignment_Roundtrip_WithOptionalFields(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChore(ctx, testChore("c1")))

	completedAt := time.Date(2025, time.March, 2, 10, 30, 0, 0, time.UTC)
	approvedAt := completedAt.Add(time.Hour)
	reward := chore.MustParseMoney("5.00")

	a := testAssignment("a1", "c1", "child-a")
	a.State = chore.StateApproved
	a.CompletedAt = &completedAt
	a.ApprovedAt = &approvedAt
	a.ApprovalReward = &reward
	a.LastRejectionReason = "was sloppy last time"
	a.Version = 4
	require.NoError(t, st.CreateAssignment(ctx, a))

	got, err := st.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, chore.StateApproved, got.State)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(completedAt))
	require.NotNil(t, got.ApprovedAt)
	assert.True(t, got.ApprovedAt.Equal(approvedAt))
	require.NotNil(t, got.ApprovalReward)
	assert.True(t, got.ApprovalReward.Equal(reward))
	assert.Equal(t, "was sloppy last time", got.LastRejectionReason)
	assert.Equal(t, 4, got.Version)
}

func TestAssignment_NullOptionalFields(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChore(ctx, testChore("c1")))
	require.NoError(t, st.CreateAssignment(ctx, testAssignment("a1", "c1", "child-a")))

	got, err := st.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, got.CompletedAt)
	assert.Nil(t, got.ApprovedAt)
	assert.Nil(t, got.ApprovalReward)
}

func TestAssignment_DuplicatePair_Rejected(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChore(ctx, testChore("c1")))
	require.NoError(t, st.CreateAssignment(ctx, testAssignment("a1", "c1", "child-a")))

	err := st.CreateAssignment(ctx, testAssignment("a2", "c1", "child-a"))
	assert.ErrorIs(t, err, chore.ErrDuplicateAssignment)

	// A different assignee on the same chore is fine.
	require.NoError(t, st.CreateAssignment(ctx, testAssignment("a3", "c1", "child-b")))
}

func TestAssignment_GetForChore(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChore(ctx, testChore("c1")))
	require.NoError(t, st.CreateAssignment(ctx, testAssignment("a1", "c1", "child-a")))

	got, err := st.GetAssignmentForChore(ctx, "c1", "child-a")
	require.NoError(t, err)
	assert.Equal(t, chore.AssignmentID("a1"), got.ID)

	_, err = st.GetAssignmentForChore(ctx, "c1", "child-b")
	assert.ErrorIs(t, err, chore.ErrNotFound)
}

// =============================================================================
// COMPARE-AND-SWAP
// =============================================================================

func TestAssignment_CAS_StaleVersion_Conflict(t *testing.T) {
	// GIVEN: An assignment at version 1
	// WHEN: Two writers race; the second still holds version 1
	// THEN: The second write gets ErrConflict and changes nothing

	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChore(ctx, testChore("c1")))
	require.NoError(t, st.CreateAssignment(ctx, testAssignment("a1", "c1", "child-a")))

	first, err := st.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	second, err := st.GetAssignment(ctx, "a1")
	require.NoError(t, err)

	now := time.Now().UTC()
	first.State = chore.StatePendingApproval
	first.CompletedAt = &now
	first.Version = 2
	require.NoError(t, st.UpdateAssignment(ctx, first, 1))

	second.State = chore.StatePendingApproval
	second.CompletedAt = &now
	second.Version = 2
	err = st.UpdateAssignment(ctx, second, 1)
	assert.ErrorIs(t, err, chore.ErrConflict)

	got, err := st.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
}

func TestAssignment_CAS_MissingRow_NotFound(t *testing.T) {
	st := openTestStore(t)

	a := testAssignment("ghost", "c1", "child-a")
	a.Version = 2
	err := st.UpdateAssignment(context.Background(), a, 1)
	assert.ErrorIs(t, err, chore.ErrNotFound)
	assert.False(t, errors.Is(err, chore.ErrConflict))
}

// =============================================================================
// LEDGER TABLES
// =============================================================================

func TestCredits_AppendAndList_InOrder(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChore(ctx, testChore("c1")))
	require.NoError(t, st.CreateAssignment(ctx, testAssignment("a1", "c1", "child-a")))

	base := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	for i, amount := range []string{"5.00", "2.50"} {
		require.NoError(t, st.AppendCredit(ctx, &chore.RewardCredit{
			ID:           chore.CreditID([]string{"cr1", "cr2"}[i]),
			AssignmentID: "a1",
			ChoreID:      "c1",
			ChildID:      "child-a",
			ApprovedBy:   "parent-1",
			Amount:       chore.MustParseMoney(amount),
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		}))
	}

	credits, err := st.ListCredits(ctx, "child-a")
	require.NoError(t, err)
	require.Len(t, credits, 2)
	assert.True(t, credits[0].Amount.Equal(chore.MustParseMoney("5.00")))
	assert.True(t, credits[1].Amount.Equal(chore.MustParseMoney("2.50")))
	assert.Equal(t, chore.PersonID("parent-1"), credits[0].ApprovedBy)

	other, err := st.ListCredits(ctx, "child-b")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAdjustments_AppendAndList(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.AppendAdjustment(ctx, &chore.RewardAdjustment{
		ID:        "adj1",
		ChildID:   "child-a",
		ParentID:  "parent-1",
		Amount:    chore.MustParseMoney("-2.00"),
		Reason:    "broken vase",
		CreatedAt: time.Now().UTC(),
	}))

	adjs, err := st.ListAdjustments(ctx, "child-a")
	require.NoError(t, err)
	require.Len(t, adjs, 1)
	assert.True(t, adjs[0].Amount.Equal(chore.MustParseMoney("-2.00")))
	assert.Equal(t, "broken vase", adjs[0].Reason)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_ErrorRollsBackEverything(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := st.WithTx(ctx, func(tx chore.Store) error {
		if err := tx.CreateChore(ctx, testChore("c1")); err != nil {
			return err
		}
		if err := tx.CreateAssignment(ctx, testAssignment("a1", "c1", "child-a")); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	_, err = st.GetChore(ctx, "c1")
	assert.ErrorIs(t, err, chore.ErrNotFound, "chore insert must have rolled back")
	_, err = st.GetAssignment(ctx, "a1")
	assert.ErrorIs(t, err, chore.ErrNotFound, "assignment insert must have rolled back")
}

func TestWithTx_CommitPersists(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx chore.Store) error {
		return tx.CreateChore(ctx, testChore("c1"))
	})
	require.NoError(t, err)

	_, err = st.GetChore(ctx, "c1")
	assert.NoError(t, err)
}

func TestWithTx_Nested_ReusesTransaction(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx chore.Store) error {
		if err := tx.CreateChore(ctx, testChore("c1")); err != nil {
			return err
		}
		// A nested WithTx on the tx-bound store must not try to open a
		// second transaction.
		return tx.(*Store).WithTx(ctx, func(inner chore.Store) error {
			_, err := inner.GetChore(ctx, "c1")
			return err
		})
	})
	assert.NoError(t, err)
}
