/*
balance.go - Derived balance ledger

PURPOSE:
  Computes a person's balance from their credit and adjustment records
  plus an estimate for work awaiting approval. The balance is never
  stored; it is replayed from the ledger on every query, so it can't
  drift out of sync with the records it derives from.

READ CONSISTENCY:
  The whole computation runs inside one store transaction. A concurrent
  approval is either fully visible (credit and assignment state both) or
  not at all; TotalEarned and PendingValue never tear.

THE LAW:
  BalanceDue = TotalEarned + TotalAdjustments - PaidOut
  TotalEarned sums resolved credits only. PendingValue is informational,
  estimated per reward.go, and never part of BalanceDue.
*/
package chore

import "context"

// GetBalance computes a child's balance over a single store snapshot.
func (s *Service) GetBalance(ctx context.Context, child PersonID) (*Balance, error) {
	var b *Balance
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var err error
		b, err = computeBalance(ctx, tx, child)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func computeBalance(ctx context.Context, tx Store, child PersonID) (*Balance, error) {
	credits, err := tx.ListCredits(ctx, child)
	if err != nil {
		return nil, err
	}
	adjustments, err := tx.ListAdjustments(ctx, child)
	if err != nil {
		return nil, err
	}
	assignments, err := tx.ListAssignmentsByAssignee(ctx, child)
	if err != nil {
		return nil, err
	}

	earned := Zero()
	for _, cr := range credits {
		earned = earned.Add(cr.Amount)
	}

	adjusted := Zero()
	for _, adj := range adjustments {
		adjusted = adjusted.Add(adj.Amount)
	}

	pending := Zero()
	for _, a := range assignments {
		if a.State != StatePendingApproval {
			continue
		}
		c, err := tx.GetChore(ctx, a.ChoreID)
		if err != nil {
			return nil, err
		}
		pending = pending.Add(EstimatePending(c))
	}

	paidOut := Zero() // externally supplied once a payout ledger exists
	return &Balance{
		ChildID:          child,
		TotalEarned:      earned,
		TotalAdjustments: adjusted,
		PendingValue:     pending,
		PaidOut:          paidOut,
		BalanceDue:       earned.Add(adjusted).Sub(paidOut),
	}, nil
}
