package stackarena

import (
	"fmt"

	humanize "github.com/dustin/go-humanize"
)

// Utilization returns the ratio of bytes in use to capacity (0.0 to 1.0).
func (al *Allocator) Utilization() float64 {
	capacity := al.Capacity()
	if capacity == 0 {
		return 0
	}
	return float64(al.InUse()) / float64(capacity)
}

// Stats returns a snapshot of the session's allocator state.
func (al *Allocator) Stats() Stats {
	return Stats{
		InUse:          al.InUse(),
		Peak:           al.stats.peak,
		Live:           al.live,
		Budget:         al.budget,
		Capacity:       al.Capacity(),
		Allocs:         al.stats.allocs,
		Frees:          al.stats.frees,
		Reclaims:       al.stats.reclaims,
		BuriedFrees:    al.stats.buried,
		Reallocs:       al.stats.reallocs,
		BudgetFailures: al.stats.budgetFailures,
		SpaceFailures:  al.stats.spaceFailures,
		Utilization:    al.Utilization(),
	}
}

// Stats contains statistical information about an allocator session.
type Stats struct {
	InUse          int     // Bytes consumed from the arena
	Peak           int     // Highest InUse seen this session
	Live           int     // Allocations not yet freed
	Budget         int     // Soft ceiling on InUse, 0 for none
	Capacity       int     // Arena size in bytes
	Allocs         int     // Successful allocations
	Frees          int     // Frees of non-nil pointers
	Reclaims       int     // Frees (and reallocations) that gave space back
	BuriedFrees    int     // Frees of blocks below the top, space stranded
	Reallocs       int     // Successful in-session resizes
	BudgetFailures int     // Requests refused by the budget
	SpaceFailures  int     // Requests refused for lack of arena space
	Utilization    float64 // InUse / Capacity (0.0-1.0)
}

func (s Stats) String() string {
	budget := "none"
	if s.Budget > 0 {
		budget = humanize.IBytes(uint64(s.Budget))
	}
	return fmt.Sprintf(
		"inuse=%s peak=%s budget=%s capacity=%s live=%d allocs=%d frees=%d "+
			"reclaims=%d buried=%d reallocs=%d budget_failures=%d space_failures=%d",
		humanize.IBytes(uint64(s.InUse)), humanize.IBytes(uint64(s.Peak)),
		budget, humanize.IBytes(uint64(s.Capacity)),
		s.Live, s.Allocs, s.Frees, s.Reclaims, s.BuriedFrees, s.Reallocs,
		s.BudgetFailures, s.SpaceFailures)
}

// Thread-safe metrics for SafeAllocator

// InUse thread-safely returns the bytes consumed from the arena.
func (s *SafeAllocator) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.InUse()
}

// Live thread-safely returns the number of allocations not yet freed.
func (s *SafeAllocator) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Live()
}

// Utilization thread-safely returns the ratio of bytes in use to capacity.
func (s *SafeAllocator) Utilization() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Utilization()
}

// Stats thread-safely returns a snapshot of the session statistics.
func (s *SafeAllocator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Stats()
}
