// Package stats defines the counters accumulated during a refinement or
// saturation run. A Stats value is owned by a single run and returned to
// the caller; there is no process-wide state.
package stats

import "time"

// Stats accumulates work counters for one run.
type Stats struct {
	// Visits counts pair visits of the fixpoint driver.
	Visits int64 `json:"visits"`

	// Refinements counts pairs removed from the relation.
	Refinements int64 `json:"refinements"`

	// Prerefined counts pairs removed by the pre-refiner.
	Prerefined int64 `json:"prerefined"`

	// Passes counts full sweeps over all ordered pairs.
	Passes int64 `json:"passes"`

	// Attacks counts attack calls, including nested levels.
	Attacks int64 `json:"attacks"`

	// Defends counts defend calls.
	Defends int64 `json:"defends"`

	// Combinations counts combinations produced by the enumerator.
	Combinations int64 `json:"combinations"`

	// EarlyExits counts strong failures that ended an attack before the
	// lookahead bound was reached.
	EarlyExits int64 `json:"early_exits"`

	// CacheLookups, CacheHits and CacheInserts aggregate both history caches.
	CacheLookups int64 `json:"cache_lookups"`
	CacheHits    int64 `json:"cache_hits"`
	CacheInserts int64 `json:"cache_inserts"`

	// Added counts transitions inserted by the saturator.
	Added int64 `json:"added"`

	// Elapsed is the wall time of the run.
	Elapsed time.Duration `json:"elapsed"`
}

// Merge adds the counters of o into s.
func (s *Stats) Merge(o Stats) {
	s.Visits += o.Visits
	s.Refinements += o.Refinements
	s.Prerefined += o.Prerefined
	s.Passes += o.Passes
	s.Attacks += o.Attacks
	s.Defends += o.Defends
	s.Combinations += o.Combinations
	s.EarlyExits += o.EarlyExits
	s.CacheLookups += o.CacheLookups
	s.CacheHits += o.CacheHits
	s.CacheInserts += o.CacheInserts
	s.Added += o.Added
	s.Elapsed += o.Elapsed
}

// HitRate returns CacheHits / CacheLookups, or 0 when nothing was looked up.
func (s Stats) HitRate() float64 {
	if s.CacheLookups == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.CacheLookups)
}
