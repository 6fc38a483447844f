// Package allocator converts earned attendance into entitlement: contiguous
// lottery roll ranges and proportional currency splits. Both outputs are
// deterministic so anyone can recompute them from the same inputs.
package allocator

import (
	"fmt"
	"sort"
	"strings"
)

// Entrant is one main entering a roll, with its externally supplied numbers.
type Entrant struct {
	Name string
	// Tickets is the explicit ticket allocation; nil falls back to
	// AttendancePercent
	Tickets *int64
	// AttendancePercent is the recent-attendance percentage computed by the
	// external collaborator, consumed as-is
	AttendancePercent int64
	// BoxCount is the number of boxes the main owns
	BoxCount int
	// TicksSinceLastWin tracks roll droughts for the debug report
	TicksSinceLastWin int
}

// weight is the entrant's share of the roll space: one guaranteed slot plus
// one per ticket
func (e Entrant) weight() int64 {
	tickets := e.AttendancePercent
	if e.Tickets != nil {
		tickets = *e.Tickets
	}
	if tickets < 0 {
		tickets = 0
	}
	return tickets + 1
}

// GenerateRollRanges assigns each entrant a contiguous, non-overlapping
// sub-range of the roll space and renders the "/random" command ranges. The
// entrants are ordered alphabetically by name, case-insensitive, so the output
// is reproducible. In debug mode each segment also reports the entrant's
// attendance percentage, roster size and ticks since their last win.
func GenerateRollRanges(selected []Entrant, debug bool) string {
	if len(selected) == 0 {
		return ""
	}

	sorted := make([]Entrant, len(selected))
	copy(sorted, selected)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})

	segments := make([]string, 0, len(sorted))
	var cumulative int64
	for _, entrant := range sorted {
		weight := entrant.weight()
		lower := cumulative + 1
		upper := cumulative + weight
		cumulative = upper

		segment := fmt.Sprintf("%s %d-%d", entrant.Name, lower, upper)
		if debug {
			segment = fmt.Sprintf("%s (att %d%%, chars %d, slw %d)",
				segment, entrant.AttendancePercent, entrant.BoxCount+1, entrant.TicksSinceLastWin)
		}
		segments = append(segments, segment)
	}

	return strings.Join(segments, " | ")
}
