package model

import "time"

// UsageSnapshot is a read-only view of the usage ledger.
type UsageSnapshot struct {
	Count       int
	Limit       int
	LastResetAt time.Time
}

// Remaining returns how many more jobs the ledger admits, never negative.
func (s UsageSnapshot) Remaining() int {
	if s.Count >= s.Limit {
		return 0
	}
	return s.Limit - s.Count
}

// PercentUsed returns consumption as a percentage, capped at 100.
func (s UsageSnapshot) PercentUsed() float64 {
	if s.Limit <= 0 {
		return 100
	}
	pct := float64(s.Count) / float64(s.Limit) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// Exhausted reports whether the ledger blocks new admissions.
func (s UsageSnapshot) Exhausted() bool {
	return s.Count >= s.Limit
}
