/*
Package sqlite provides the SQLite-backed implementation of chore.TxStore.

PURPOSE:
  Production persistence for the chore engine. The same patterns apply
  to PostgreSQL - only minor SQL dialect differences.

CONCURRENCY:
  - (chore_id, assignee_id) uniqueness is enforced by a unique index;
    violations surface as chore.ErrDuplicateAssignment.
  - Assignment updates are version-guarded: UPDATE ... WHERE id = ? AND
    version = ?. Zero rows affected means a concurrent writer won and
    the caller gets chore.ErrConflict. No read-then-write races.
  - reward_credits and reward_adjustments are append-only tables; no
    UPDATE or DELETE statement exists for them in this package.

WAL MODE:
  The database is opened with WAL so balance reads don't block approval
  writes. Foreign keys are on; deleting a chore cascades its assignments.

MIGRATIONS:
  Schema is managed with goose from the embedded migrations directory
  and applied on Open().

SEE ALSO:
  - chore/store.go: Interface definitions and the CAS contract
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/warp/chore-engine/chore"
)

//go:embed migrations/*.sql
var migrations embed.FS

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements chore.TxStore on SQLite.
type Store struct {
	db *sql.DB
	q  dbtx
}

// Open opens (or creates) the database at dbPath and applies migrations.
// Use ":memory:" for an in-memory database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db, q: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(chore.Store) error) error {
	if s.db == nil {
		// Already inside a transaction; reuse it.
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &chore.StorageError{Op: "begin tx", Err: err}
	}

	if err := fn(&Store{q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &chore.StorageError{Op: "commit tx", Err: err}
	}
	return nil
}

// =============================================================================
// CHORES
// =============================================================================

func (s *Store) CreateChore(ctx context.Context, c *chore.Chore) error {
	var minReward, maxReward sql.NullString
	if c.Range != nil {
		minReward = sql.NullString{String: c.Range.Min.String(), Valid: true}
		maxReward = sql.NullString{String: c.Range.Max.String(), Valid: true}
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO chores (id, title, description, creator_id, reward,
			min_reward, max_reward, recurring, cooldown_days,
			assignment_mode, disabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(c.ID), c.Title, c.Description, string(c.CreatorID), c.Reward.String(),
		minReward, maxReward, boolToInt(c.Recurring), c.CooldownDays,
		string(c.Mode), boolToInt(c.Disabled), formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return &chore.StorageError{Op: "create chore", Err: err}
	}
	return nil
}

func (s *Store) GetChore(ctx context.Context, id chore.ChoreID) (*chore.Chore, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, title, description, creator_id, reward, min_reward, max_reward,
			recurring, cooldown_days, assignment_mode, disabled, created_at, updated_at
		FROM chores WHERE id = ?`, string(id))
	return scanChore(row)
}

func (s *Store) UpdateChore(ctx context.Context, c *chore.Chore) error {
	var minReward, maxReward sql.NullString
	if c.Range != nil {
		minReward = sql.NullString{String: c.Range.Min.String(), Valid: true}
		maxReward = sql.NullString{String: c.Range.Max.String(), Valid: true}
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE chores SET title = ?, description = ?, reward = ?,
			min_reward = ?, max_reward = ?, recurring = ?, cooldown_days = ?,
			disabled = ?, updated_at = ?
		WHERE id = ?`,
		c.Title, c.Description, c.Reward.String(),
		minReward, maxReward, boolToInt(c.Recurring), c.CooldownDays,
		boolToInt(c.Disabled), formatTime(c.UpdatedAt), string(c.ID))
	if err != nil {
		return &chore.StorageError{Op: "update chore", Err: err}
	}
	return requireRow(res, "update chore")
}

func (s *Store) DeleteChore(ctx context.Context, id chore.ChoreID) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM chores WHERE id = ?`, string(id))
	if err != nil {
		return &chore.StorageError{Op: "delete chore", Err: err}
	}
	return requireRow(res, "delete chore")
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func (s *Store) CreateAssignment(ctx context.Context, a *chore.Assignment) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO assignments (id, chore_id, assignee_id, state, completed_at,
			approved_at, approval_reward, last_rejection_reason, version,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(a.ID), string(a.ChoreID), string(a.AssigneeID), string(a.State),
		formatTimePtr(a.CompletedAt), formatTimePtr(a.ApprovedAt), moneyPtr(a.ApprovalReward),
		a.LastRejectionReason, a.Version, formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return chore.ErrDuplicateAssignment
		}
		return &chore.StorageError{Op: "create assignment", Err: err}
	}
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, id chore.AssignmentID) (*chore.Assignment, error) {
	row := s.q.QueryRowContext(ctx, assignmentSelect+` WHERE id = ?`, string(id))
	return scanAssignment(row)
}

func (s *Store) GetAssignmentForChore(ctx context.Context, choreID chore.ChoreID, assignee chore.PersonID) (*chore.Assignment, error) {
	row := s.q.QueryRowContext(ctx, assignmentSelect+` WHERE chore_id = ? AND assignee_id = ?`,
		string(choreID), string(assignee))
	return scanAssignment(row)
}

func (s *Store) ListAssignmentsByChore(ctx context.Context, choreID chore.ChoreID) ([]chore.Assignment, error) {
	rows, err := s.q.QueryContext(ctx, assignmentSelect+` WHERE chore_id = ? ORDER BY created_at`, string(choreID))
	if err != nil {
		return nil, &chore.StorageError{Op: "list assignments by chore", Err: err}
	}
	return collectAssignments(rows)
}

func (s *Store) ListAssignmentsByAssignee(ctx context.Context, assignee chore.PersonID) ([]chore.Assignment, error) {
	rows, err := s.q.QueryContext(ctx, assignmentSelect+` WHERE assignee_id = ? ORDER BY created_at`, string(assignee))
	if err != nil {
		return nil, &chore.StorageError{Op: "list assignments by assignee", Err: err}
	}
	return collectAssignments(rows)
}

// UpdateAssignment is the CAS write. The version guard in the WHERE
// clause is what serializes concurrent transitions on the same row.
func (s *Store) UpdateAssignment(ctx context.Context, a *chore.Assignment, expectedVersion int) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE assignments SET state = ?, completed_at = ?, approved_at = ?,
			approval_reward = ?, last_rejection_reason = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		string(a.State), formatTimePtr(a.CompletedAt), formatTimePtr(a.ApprovedAt),
		moneyPtr(a.ApprovalReward), a.LastRejectionReason, a.Version, formatTime(a.UpdatedAt),
		string(a.ID), expectedVersion)
	if err != nil {
		return &chore.StorageError{Op: "update assignment", Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return &chore.StorageError{Op: "update assignment", Err: err}
	}
	if n == 0 {
		// Distinguish a stale version from a missing row.
		if _, err := s.GetAssignment(ctx, a.ID); errors.Is(err, chore.ErrNotFound) {
			return chore.ErrNotFound
		}
		return chore.ErrConflict
	}
	return nil
}

func (s *Store) DeleteAssignment(ctx context.Context, id chore.AssignmentID) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM assignments WHERE id = ?`, string(id))
	if err != nil {
		return &chore.StorageError{Op: "delete assignment", Err: err}
	}
	return requireRow(res, "delete assignment")
}

// =============================================================================
// CREDITS & ADJUSTMENTS (append-only)
// =============================================================================

func (s *Store) AppendCredit(ctx context.Context, cr *chore.RewardCredit) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO reward_credits (id, assignment_id, chore_id, child_id, approved_by, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(cr.ID), string(cr.AssignmentID), string(cr.ChoreID), string(cr.ChildID),
		string(cr.ApprovedBy), cr.Amount.String(), formatTime(cr.CreatedAt))
	if err != nil {
		return &chore.StorageError{Op: "append credit", Err: err}
	}
	return nil
}

func (s *Store) ListCredits(ctx context.Context, child chore.PersonID) ([]chore.RewardCredit, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, assignment_id, chore_id, child_id, approved_by, amount, created_at
		FROM reward_credits WHERE child_id = ? ORDER BY created_at`, string(child))
	if err != nil {
		return nil, &chore.StorageError{Op: "list credits", Err: err}
	}
	defer rows.Close()

	var out []chore.RewardCredit
	for rows.Next() {
		var id, assignmentID, choreID, childID, approvedBy, amount, createdAt string
		if err := rows.Scan(&id, &assignmentID, &choreID, &childID, &approvedBy, &amount, &createdAt); err != nil {
			return nil, &chore.StorageError{Op: "scan credit", Err: err}
		}
		out = append(out, chore.RewardCredit{
			ID:           chore.CreditID(id),
			AssignmentID: chore.AssignmentID(assignmentID),
			ChoreID:      chore.ChoreID(choreID),
			ChildID:      chore.PersonID(childID),
			ApprovedBy:   chore.PersonID(approvedBy),
			Amount:       chore.MustParseMoney(amount),
			CreatedAt:    parseTime(createdAt),
		})
	}
	return out, rows.Err()
}

func (s *Store) AppendAdjustment(ctx context.Context, adj *chore.RewardAdjustment) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO reward_adjustments (id, child_id, parent_id, amount, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(adj.ID), string(adj.ChildID), string(adj.ParentID),
		adj.Amount.String(), adj.Reason, formatTime(adj.CreatedAt))
	if err != nil {
		return &chore.StorageError{Op: "append adjustment", Err: err}
	}
	return nil
}

func (s *Store) ListAdjustments(ctx context.Context, child chore.PersonID) ([]chore.RewardAdjustment, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, child_id, parent_id, amount, reason, created_at
		FROM reward_adjustments WHERE child_id = ? ORDER BY created_at`, string(child))
	if err != nil {
		return nil, &chore.StorageError{Op: "list adjustments", Err: err}
	}
	defer rows.Close()

	var out []chore.RewardAdjustment
	for rows.Next() {
		var id, childID, parentID, amount, reason, createdAt string
		if err := rows.Scan(&id, &childID, &parentID, &amount, &reason, &createdAt); err != nil {
			return nil, &chore.StorageError{Op: "scan adjustment", Err: err}
		}
		out = append(out, chore.RewardAdjustment{
			ID:        chore.AdjustmentID(id),
			ChildID:   chore.PersonID(childID),
			ParentID:  chore.PersonID(parentID),
			Amount:    chore.MustParseMoney(amount),
			Reason:    reason,
			CreatedAt: parseTime(createdAt),
		})
	}
	return out, rows.Err()
}

// =============================================================================
// SCANNING HELPERS
// =============================================================================

const assignmentSelect = `
	SELECT id, chore_id, assignee_id, state, completed_at, approved_at,
		approval_reward, last_rejection_reason, version, created_at, updated_at
	FROM assignments`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChore(row rowScanner) (*chore.Chore, error) {
	var c chore.Chore
	var id, creatorID, reward, mode, createdAt, updatedAt string
	var minReward, maxReward sql.NullString
	var recurring, disabled int

	err := row.Scan(&id, &c.Title, &c.Description, &creatorID, &reward,
		&minReward, &maxReward, &recurring, &c.CooldownDays, &mode, &disabled,
		&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chore.ErrNotFound
	}
	if err != nil {
		return nil, &chore.StorageError{Op: "scan chore", Err: err}
	}

	c.ID = chore.ChoreID(id)
	c.CreatorID = chore.PersonID(creatorID)
	c.Reward = chore.MustParseMoney(reward)
	if minReward.Valid && maxReward.Valid {
		c.Range = &chore.RewardRange{
			Min: chore.MustParseMoney(minReward.String),
			Max: chore.MustParseMoney(maxReward.String),
		}
	}
	c.Recurring = recurring != 0
	c.Mode = chore.AssignmentMode(mode)
	c.Disabled = disabled != 0
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

func scanAssignment(row rowScanner) (*chore.Assignment, error) {
	var a chore.Assignment
	var id, choreID, assigneeID, state, createdAt, updatedAt string
	var completedAt, approvedAt, approvalReward sql.NullString

	err := row.Scan(&id, &choreID, &assigneeID, &state, &completedAt, &approvedAt,
		&approvalReward, &a.LastRejectionReason, &a.Version, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chore.ErrNotFound
	}
	if err != nil {
		return nil, &chore.StorageError{Op: "scan assignment", Err: err}
	}

	a.ID = chore.AssignmentID(id)
	a.ChoreID = chore.ChoreID(choreID)
	a.AssigneeID = chore.PersonID(assigneeID)
	a.State = chore.AssignmentState(state)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		a.CompletedAt = &t
	}
	if approvedAt.Valid {
		t := parseTime(approvedAt.String)
		a.ApprovedAt = &t
	}
	if approvalReward.Valid {
		m := chore.MustParseMoney(approvalReward.String)
		a.ApprovalReward = &m
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

func collectAssignments(rows *sql.Rows) ([]chore.Assignment, error) {
	defer rows.Close()
	var out []chore.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &chore.StorageError{Op: op, Err: err}
	}
	if n == 0 {
		return chore.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func moneyPtr(m *chore.Money) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: m.String(), Valid: true}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
