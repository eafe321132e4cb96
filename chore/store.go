/*
store.go - Persistence and authorization interfaces

PURPOSE:
  Defines the boundary between the engine and its collaborators. The
  engine never talks to a database directly; it calls Store methods
  inside a unit of work opened with TxStore.WithTx.

KEY INTERFACES:
  Store:      CRUD on chores, assignments, and adjustments
  TxStore:    Opens transactional units of work
  Authorizer: "May this actor act on behalf of this assignee?"

CONCURRENCY CONTRACT:
  - CreateAssignment must enforce (chore_id, assignee_id) uniqueness and
    return ErrDuplicateAssignment on violation. This is what makes pool
    claims race-safe: two children claiming the same chore each insert
    their own row; the same child claiming twice fails deterministically.
  - UpdateAssignment is a compare-and-swap: it matches on the expected
    version and returns ErrConflict when zero rows match. A concurrent
    double approval loses the race instead of double-crediting.
  - Adjustments are append-only. No update or delete exists.

IMPLEMENTATIONS:
  - store/sqlite: Production store with row versioning
  - store/memory: In-memory store for tests and dev

SEE ALSO:
  - lifecycle.go: The only writer of assignment state
  - balance.go: Snapshot-consistent reads via WithTx
*/
package chore

import "context"

// =============================================================================
// STORE - Persistence interface
// =============================================================================

type Store interface {
	// Chores
	CreateChore(ctx context.Context, c *Chore) error
	GetChore(ctx context.Context, id ChoreID) (*Chore, error)
	UpdateChore(ctx context.Context, c *Chore) error
	// DeleteChore removes the chore and cascades to its assignments.
	DeleteChore(ctx context.Context, id ChoreID) error

	// Assignments
	// CreateAssignment returns ErrDuplicateAssignment if a row for the
	// same (chore, assignee) pair exists.
	CreateAssignment(ctx context.Context, a *Assignment) error
	GetAssignment(ctx context.Context, id AssignmentID) (*Assignment, error)
	// GetAssignmentForChore returns the (chore, assignee) row, or
	// ErrNotFound when the person holds no row on that chore.
	GetAssignmentForChore(ctx context.Context, choreID ChoreID, assignee PersonID) (*Assignment, error)
	ListAssignmentsByChore(ctx context.Context, choreID ChoreID) ([]Assignment, error)
	ListAssignmentsByAssignee(ctx context.Context, assigneeID PersonID) ([]Assignment, error)
	// UpdateAssignment writes a only if the stored row still carries
	// expectedVersion; otherwise returns ErrConflict. On success the
	// stored version is a.Version (caller pre-increments).
	UpdateAssignment(ctx context.Context, a *Assignment, expectedVersion int) error
	// DeleteAssignment removes a single row. Used only by assignee-set
	// edits while no audit history exists on the row.
	DeleteAssignment(ctx context.Context, id AssignmentID) error

	// Credits (append-only, written once per approval)
	AppendCredit(ctx context.Context, cr *RewardCredit) error
	ListCredits(ctx context.Context, childID PersonID) ([]RewardCredit, error)

	// Adjustments (append-only)
	AppendAdjustment(ctx context.Context, adj *RewardAdjustment) error
	ListAdjustments(ctx context.Context, childID PersonID) ([]RewardAdjustment, error)
}

// TxStore opens units of work. If fn returns an error the transaction
// rolls back and no mutation is visible; otherwise it commits.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// AUTHORIZER - External authorization collaborator
// =============================================================================

// Authorizer answers whether an actor has parental authority over a
// person. The engine asks this for approve/reject and for adjustments;
// it never inspects family structure itself.
type Authorizer interface {
	CanActFor(ctx context.Context, actor, assignee PersonID) (bool, error)
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, actor, assignee PersonID) (bool, error)

func (f AuthorizerFunc) CanActFor(ctx context.Context, actor, assignee PersonID) (bool, error) {
	return f(ctx, actor, assignee)
}

// CreatorOnly authorizes exactly the given set of parent IDs over
// everyone. Suitable for single-family deployments and tests.
func CreatorOnly(parents ...PersonID) Authorizer {
	set := make(map[PersonID]bool, len(parents))
	for _, p := range parents {
		set[p] = true
	}
	return AuthorizerFunc(func(_ context.Context, actor, _ PersonID) (bool, error) {
		return set[actor], nil
	})
}
