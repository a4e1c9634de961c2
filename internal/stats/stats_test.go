package stats

import (
	"testing"
	"time"
)

func TestStats_Merge(t *testing.T) {
	a := Stats{Visits: 3, Refinements: 1, CacheLookups: 4, CacheHits: 1, Elapsed: time.Second}
	b := Stats{Visits: 2, Prerefined: 5, CacheLookups: 4, CacheHits: 3, Added: 7, Elapsed: time.Second}
	a.Merge(b)

	if a.Visits != 5 || a.Refinements != 1 || a.Prerefined != 5 || a.Added != 7 {
		t.Errorf("Merge() = %+v", a)
	}
	if a.Elapsed != 2*time.Second {
		t.Errorf("Elapsed = %v, want 2s", a.Elapsed)
	}
	if got := a.HitRate(); got != 0.5 {
		t.Errorf("HitRate() = %v, want 0.5", got)
	}
}

func TestStats_HitRateEmpty(t *testing.T) {
	var s Stats
	if got := s.HitRate(); got != 0 {
		t.Errorf("HitRate() = %v, want 0", got)
	}
}
