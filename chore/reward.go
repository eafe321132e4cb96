package chore

// =============================================================================
// REWARD RESOLUTION - The only place a payout amount is decided
// =============================================================================

// ResolveReward computes the authoritative payout for an approval.
//
// Fixed chores always pay Chore.Reward; a supplied value is accepted but
// has no effect, which keeps simple approval calls backward compatible.
// Range chores require a supplied value within [Min, Max] inclusive; the
// approver has full discretion inside the band.
func ResolveReward(c *Chore, supplied *Money) (Money, error) {
	if !c.IsRangeReward() {
		return c.Reward, nil
	}

	if supplied == nil {
		return Money{}, &RewardValueError{Min: c.Range.Min, Max: c.Range.Max}
	}
	if supplied.LessThan(c.Range.Min) || supplied.GreaterThan(c.Range.Max) {
		return Money{}, &RewardValueError{Supplied: supplied, Min: c.Range.Min, Max: c.Range.Max}
	}
	return *supplied, nil
}

// EstimatePending returns the display value of a not-yet-approved
// assignment: the fixed reward, or the midpoint of the band. Never used
// for actual payout.
func EstimatePending(c *Chore) Money {
	if c.IsRangeReward() {
		return c.Range.Min.Midpoint(c.Range.Max)
	}
	return c.Reward
}

// validateRewardConfig checks a chore's reward shape at creation/update.
func validateRewardConfig(reward Money, r *RewardRange) error {
	if r == nil {
		if reward.IsNegative() {
			return &ValidationError{Field: "reward", Message: "must be non-negative"}
		}
		return nil
	}
	if r.Min.IsNegative() {
		return &ValidationError{Field: "min_reward", Message: "must be non-negative"}
	}
	if r.Max.LessThan(r.Min) {
		return &ValidationError{Field: "max_reward", Message: "must be >= min_reward"}
	}
	return nil
}
