// Package memory provides an in-memory chore.TxStore for tests and dev.
package memory

import (
	"context"
	"sync"

	"github.com/warp/chore-engine/chore"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu          sync.RWMutex
	chores      map[chore.ChoreID]chore.Chore
	assignments map[chore.AssignmentID]chore.Assignment
	byPair      map[pairKey]chore.AssignmentID
	credits     map[chore.PersonID][]chore.RewardCredit
	adjustments map[chore.PersonID][]chore.RewardAdjustment
}

type pairKey struct {
	ChoreID    chore.ChoreID
	AssigneeID chore.PersonID
}

func New() *Store {
	return &Store{
		chores:      make(map[chore.ChoreID]chore.Chore),
		assignments: make(map[chore.AssignmentID]chore.Assignment),
		byPair:      make(map[pairKey]chore.AssignmentID),
		credits:     make(map[chore.PersonID][]chore.RewardCredit),
		adjustments: make(map[chore.PersonID][]chore.RewardAdjustment),
	}
}

// =============================================================================
// CHORES
// =============================================================================

func (s *Store) CreateChore(_ context.Context, c *chore.Chore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createChoreLocked(c)
}

func (s *Store) createChoreLocked(c *chore.Chore) error {
	s.chores[c.ID] = cloneChore(c)
	return nil
}

func (s *Store) GetChore(_ context.Context, id chore.ChoreID) (*chore.Chore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getChoreLocked(id)
}

func (s *Store) getChoreLocked(id chore.ChoreID) (*chore.Chore, error) {
	c, ok := s.chores[id]
	if !ok {
		return nil, chore.ErrNotFound
	}
	out := cloneChore(&c)
	return &out, nil
}

func (s *Store) UpdateChore(_ context.Context, c *chore.Chore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateChoreLocked(c)
}

func (s *Store) updateChoreLocked(c *chore.Chore) error {
	if _, ok := s.chores[c.ID]; !ok {
		return chore.ErrNotFound
	}
	s.chores[c.ID] = cloneChore(c)
	return nil
}

func (s *Store) DeleteChore(_ context.Context, id chore.ChoreID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteChoreLocked(id)
}

func (s *Store) deleteChoreLocked(id chore.ChoreID) error {
	if _, ok := s.chores[id]; !ok {
		return chore.ErrNotFound
	}
	delete(s.chores, id)
	for aid, a := range s.assignments {
		if a.ChoreID == id {
			delete(s.assignments, aid)
			delete(s.byPair, pairKey{ChoreID: id, AssigneeID: a.AssigneeID})
		}
	}
	return nil
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func (s *Store) CreateAssignment(_ context.Context, a *chore.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createAssignmentLocked(a)
}

func (s *Store) createAssignmentLocked(a *chore.Assignment) error {
	k := pairKey{ChoreID: a.ChoreID, AssigneeID: a.AssigneeID}
	if _, exists := s.byPair[k]; exists {
		return chore.ErrDuplicateAssignment
	}
	s.assignments[a.ID] = cloneAssignment(a)
	s.byPair[k] = a.ID
	return nil
}

func (s *Store) GetAssignment(_ context.Context, id chore.AssignmentID) (*chore.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAssignmentLocked(id)
}

func (s *Store) getAssignmentLocked(id chore.AssignmentID) (*chore.Assignment, error) {
	a, ok := s.assignments[id]
	if !ok {
		return nil, chore.ErrNotFound
	}
	out := cloneAssignment(&a)
	return &out, nil
}

func (s *Store) GetAssignmentForChore(_ context.Context, choreID chore.ChoreID, assignee chore.PersonID) (*chore.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getForChoreLocked(choreID, assignee)
}

func (s *Store) getForChoreLocked(choreID chore.ChoreID, assignee chore.PersonID) (*chore.Assignment, error) {
	id, ok := s.byPair[pairKey{ChoreID: choreID, AssigneeID: assignee}]
	if !ok {
		return nil, chore.ErrNotFound
	}
	return s.getAssignmentLocked(id)
}

func (s *Store) ListAssignmentsByChore(_ context.Context, choreID chore.ChoreID) ([]chore.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listByChoreLocked(choreID), nil
}

func (s *Store) listByChoreLocked(choreID chore.ChoreID) []chore.Assignment {
	var out []chore.Assignment
	for _, a := range s.assignments {
		if a.ChoreID == choreID {
			out = append(out, cloneAssignment(&a))
		}
	}
	return out
}

func (s *Store) ListAssignmentsByAssignee(_ context.Context, assignee chore.PersonID) ([]chore.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listByAssigneeLocked(assignee), nil
}

func (s *Store) listByAssigneeLocked(assignee chore.PersonID) []chore.Assignment {
	var out []chore.Assignment
	for _, a := range s.assignments {
		if a.AssigneeID == assignee {
			out = append(out, cloneAssignment(&a))
		}
	}
	return out
}

// UpdateAssignment is the CAS write: it matches on the expected version
// and rejects stale writers with ErrConflict.
func (s *Store) UpdateAssignment(_ context.Context, a *chore.Assignment, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateAssignmentLocked(a, expectedVersion)
}

func (s *Store) updateAssignmentLocked(a *chore.Assignment, expectedVersion int) error {
	cur, ok := s.assignments[a.ID]
	if !ok {
		return chore.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return chore.ErrConflict
	}
	s.assignments[a.ID] = cloneAssignment(a)
	return nil
}

func (s *Store) DeleteAssignment(_ context.Context, id chore.AssignmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteAssignmentLocked(id)
}

func (s *Store) deleteAssignmentLocked(id chore.AssignmentID) error {
	a, ok := s.assignments[id]
	if !ok {
		return chore.ErrNotFound
	}
	delete(s.assignments, id)
	delete(s.byPair, pairKey{ChoreID: a.ChoreID, AssigneeID: a.AssigneeID})
	return nil
}

// =============================================================================
// CREDITS & ADJUSTMENTS (append-only)
// =============================================================================

func (s *Store) AppendCredit(_ context.Context, cr *chore.RewardCredit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendCreditLocked(cr)
	return nil
}

func (s *Store) appendCreditLocked(cr *chore.RewardCredit) {
	s.credits[cr.ChildID] = append(s.credits[cr.ChildID], *cr)
}

func (s *Store) ListCredits(_ context.Context, child chore.PersonID) ([]chore.RewardCredit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chore.RewardCredit, len(s.credits[child]))
	copy(out, s.credits[child])
	return out, nil
}

func (s *Store) AppendAdjustment(_ context.Context, adj *chore.RewardAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendAdjustmentLocked(adj)
	return nil
}

func (s *Store) appendAdjustmentLocked(adj *chore.RewardAdjustment) {
	s.adjustments[adj.ChildID] = append(s.adjustments[adj.ChildID], *adj)
}

func (s *Store) ListAdjustments(_ context.Context, child chore.PersonID) ([]chore.RewardAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chore.RewardAdjustment, len(s.adjustments[child]))
	copy(out, s.adjustments[child])
	return out, nil
}

// =============================================================================
// TRANSACTIONS - Snapshot and restore under one lock
// =============================================================================

// WithTx executes fn atomically. The memory store holds its write lock
// for the whole unit of work and restores a snapshot if fn fails, which
// mirrors the all-or-nothing contract of the SQL store.
func (s *Store) WithTx(_ context.Context, fn func(chore.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&txView{parent: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshotState struct {
	chores      map[chore.ChoreID]chore.Chore
	assignments map[chore.AssignmentID]chore.Assignment
	byPair      map[pairKey]chore.AssignmentID
	credits     map[chore.PersonID][]chore.RewardCredit
	adjustments map[chore.PersonID][]chore.RewardAdjustment
}

func (s *Store) snapshot() snapshotState {
	snap := snapshotState{
		chores:      make(map[chore.ChoreID]chore.Chore, len(s.chores)),
		assignments: make(map[chore.AssignmentID]chore.Assignment, len(s.assignments)),
		byPair:      make(map[pairKey]chore.AssignmentID, len(s.byPair)),
		credits:     make(map[chore.PersonID][]chore.RewardCredit, len(s.credits)),
		adjustments: make(map[chore.PersonID][]chore.RewardAdjustment, len(s.adjustments)),
	}
	for k, v := range s.chores {
		snap.chores[k] = v
	}
	for k, v := range s.assignments {
		snap.assignments[k] = v
	}
	for k, v := range s.byPair {
		snap.byPair[k] = v
	}
	for k, v := range s.credits {
		snap.credits[k] = append([]chore.RewardCredit{}, v...)
	}
	for k, v := range s.adjustments {
		snap.adjustments[k] = append([]chore.RewardAdjustment{}, v...)
	}
	return snap
}

func (s *Store) restore(snap snapshotState) {
	s.chores = snap.chores
	s.assignments = snap.assignments
	s.byPair = snap.byPair
	s.credits = snap.credits
	s.adjustments = snap.adjustments
}

// txView routes Store calls back to the parent, which already holds the
// write lock for the duration of WithTx.
type txView struct {
	parent *Store
}

func (tv *txView) CreateChore(_ context.Context, c *chore.Chore) error {
	return tv.parent.createChoreLocked(c)
}

func (tv *txView) GetChore(_ context.Context, id chore.ChoreID) (*chore.Chore, error) {
	return tv.parent.getChoreLocked(id)
}

func (tv *txView) UpdateChore(_ context.Context, c *chore.Chore) error {
	return tv.parent.updateChoreLocked(c)
}

func (tv *txView) DeleteChore(_ context.Context, id chore.ChoreID) error {
	return tv.parent.deleteChoreLocked(id)
}

func (tv *txView) CreateAssignment(_ context.Context, a *chore.Assignment) error {
	return tv.parent.createAssignmentLocked(a)
}

func (tv *txView) GetAssignment(_ context.Context, id chore.AssignmentID) (*chore.Assignment, error) {
	return tv.parent.getAssignmentLocked(id)
}

func (tv *txView) GetAssignmentForChore(_ context.Context, choreID chore.ChoreID, assignee chore.PersonID) (*chore.Assignment, error) {
	return tv.parent.getForChoreLocked(choreID, assignee)
}

func (tv *txView) ListAssignmentsByChore(_ context.Context, choreID chore.ChoreID) ([]chore.Assignment, error) {
	return tv.parent.listByChoreLocked(choreID), nil
}

func (tv *txView) ListAssignmentsByAssignee(_ context.Context, assignee chore.PersonID) ([]chore.Assignment, error) {
	return tv.parent.listByAssigneeLocked(assignee), nil
}

func (tv *txView) UpdateAssignment(_ context.Context, a *chore.Assignment, expectedVersion int) error {
	return tv.parent.updateAssignmentLocked(a, expectedVersion)
}

func (tv *txView) DeleteAssignment(_ context.Context, id chore.AssignmentID) error {
	return tv.parent.deleteAssignmentLocked(id)
}

func (tv *txView) AppendCredit(_ context.Context, cr *chore.RewardCredit) error {
	tv.parent.appendCreditLocked(cr)
	return nil
}

func (tv *txView) ListCredits(_ context.Context, child chore.PersonID) ([]chore.RewardCredit, error) {
	out := make([]chore.RewardCredit, len(tv.parent.credits[child]))
	copy(out, tv.parent.credits[child])
	return out, nil
}

func (tv *txView) AppendAdjustment(_ context.Context, adj *chore.RewardAdjustment) error {
	tv.parent.appendAdjustmentLocked(adj)
	return nil
}

func (tv *txView) ListAdjustments(_ context.Context, child chore.PersonID) ([]chore.RewardAdjustment, error) {
	out := make([]chore.RewardAdjustment, len(tv.parent.adjustments[child]))
	copy(out, tv.parent.adjustments[child])
	return out, nil
}

// =============================================================================
// CLONING - Keep callers from aliasing stored rows
// =============================================================================

func cloneChore(c *chore.Chore) chore.Chore {
	out := *c
	if c.Range != nil {
		r := *c.Range
		out.Range = &r
	}
	return out
}

func cloneAssignment(a *chore.Assignment) chore.Assignment {
	out := *a
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		out.CompletedAt = &t
	}
	if a.ApprovedAt != nil {
		t := *a.ApprovedAt
		out.ApprovedAt = &t
	}
	if a.ApprovalReward != nil {
		m := *a.ApprovalReward
		out.ApprovalReward = &m
	}
	return out
}
