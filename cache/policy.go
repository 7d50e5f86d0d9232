package cache

import "time"

// DefaultStaleTime is how long a fetched value is served without refetching.
const DefaultStaleTime = 5 * time.Minute

// Policy configures freshness.
type Policy struct {
	// StaleTime is how long after its last write an entry stays fresh.
	// Zero means DefaultStaleTime; negative means always stale.
	StaleTime time.Duration
}

// DefaultPolicy returns the default policy: entries stay fresh for 5 minutes.
func DefaultPolicy() Policy {
	return Policy{StaleTime: DefaultStaleTime}
}

// AlwaysStalePolicy returns a policy under which every Load refetches.
func AlwaysStalePolicy() Policy {
	return Policy{StaleTime: -1}
}

// EffectiveStaleTime returns the stale time after applying the default.
func (p Policy) EffectiveStaleTime() time.Duration {
	if p.StaleTime == 0 {
		return DefaultStaleTime
	}
	return p.StaleTime
}

// Fresh reports whether an entry written at updatedAt is fresh at now.
func (p Policy) Fresh(updatedAt, now time.Time) bool {
	st := p.EffectiveStaleTime()
	if st < 0 {
		return false
	}
	return now.Sub(updatedAt) < st
}
