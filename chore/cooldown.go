package chore

import "time"

// =============================================================================
// COOLDOWN - Gates re-completion of recurring assignments
// =============================================================================

// CooldownStatus reports whether an assignment may be completed again and,
// if not, how many whole days remain.
//
// The cooldown is anchored on the last approval, not the last completion:
// a reward that was never credited starts no cooldown, which is also what
// makes rejection cost-free. It is per-assignment, so assignees of the
// same multi or pool chore never share a clock.
func CooldownStatus(c *Chore, a *Assignment, now time.Time) (eligible bool, remainingDays int) {
	if !c.Recurring || a.ApprovedAt == nil {
		return true, 0
	}

	elapsed := wholeDaysBetween(*a.ApprovedAt, now)
	if elapsed >= c.CooldownDays {
		return true, 0
	}

	remaining := c.CooldownDays - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return false, remaining
}

func wholeDaysBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
