package allocator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bnc-guild/attendance-engine/internal/domain"
	"github.com/bnc-guild/attendance-engine/internal/store/schema"
)

// Store is the subset of the persistence layer the split allocator reads.
type Store interface {
	ListAttendanceFactsByRaid(ctx context.Context, raidID uint64) ([]schema.AttendanceFact, error)
	MaxTickIndex(ctx context.Context, raidID uint64) (int, bool, error)
	GetCharactersByIDs(ctx context.Context, ids []uint64) ([]schema.Character, error)
}

// Resolver maps characters onto their owning mains.
type Resolver interface {
	MainsOf(ctx context.Context, characterIDs []uint64) (map[uint64]uint64, error)
}

// Splitter computes per-main currency entitlement for a raid.
type Splitter struct {
	store    Store
	resolver Resolver
}

// NewSplitter creates a currency split allocator
func NewSplitter(store Store, resolver Resolver) *Splitter {
	return &Splitter{store: store, resolver: resolver}
}

// SplitMeta is one attending main's entitlement within a raid.
type SplitMeta struct {
	CharacterID           uint64 `json:"characterId"`
	Name                  string `json:"name"`
	Class                 string `json:"class"`
	TotalTicketAllocation int64  `json:"totalTicketAllocation"`
	TotalTicks            int    `json:"totalTicks"`
	AttendedTicks         int    `json:"attendedTicks"`
	// AwardedTickets = floor(TotalTicketAllocation / TotalTicks * AttendedTicks)
	AwardedTickets int64 `json:"awardedTickets"`
}

// ComputeMeta derives the per-main split entitlement for a raid. Boxes'
// attendance counts toward their owning main; a raid with no attendance
// yields no entries.
func (s *Splitter) ComputeMeta(ctx context.Context, raidID uint64) ([]SplitMeta, error) {
	maxTick, ok, err := s.store.MaxTickIndex(ctx, raidID)
	if err != nil {
		return nil, fmt.Errorf("failed to read max tick: %w", err)
	}
	if !ok {
		return nil, nil
	}
	totalTicks := maxTick + 1

	facts, err := s.store.ListAttendanceFactsByRaid(ctx, raidID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance facts: %w", err)
	}

	characterIDs := make([]uint64, 0, len(facts))
	seen := make(map[uint64]bool, len(facts))
	for _, f := range facts {
		if !seen[f.CharacterID] {
			seen[f.CharacterID] = true
			characterIDs = append(characterIDs, f.CharacterID)
		}
	}

	mains, err := s.resolver.MainsOf(ctx, characterIDs)
	if err != nil {
		return nil, err
	}

	// distinct ticks attended per main, across the main and all its boxes
	attended := make(map[uint64]map[int]bool)
	for _, f := range facts {
		mainID := mains[f.CharacterID]
		if attended[mainID] == nil {
			attended[mainID] = make(map[int]bool)
		}
		attended[mainID][f.TickIndex] = true
	}

	mainIDs := make([]uint64, 0, len(attended))
	for mainID := range attended {
		mainIDs = append(mainIDs, mainID)
	}
	characters, err := s.store.GetCharactersByIDs(ctx, mainIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load mains: %w", err)
	}

	meta := make([]SplitMeta, 0, len(characters))
	for _, c := range characters {
		var allocation int64
		if c.BaseTicketAllocation != nil {
			allocation = *c.BaseTicketAllocation
		}
		attendedTicks := len(attended[c.ID])
		meta = append(meta, SplitMeta{
			CharacterID:           c.ID,
			Name:                  c.Name,
			Class:                 c.Class,
			TotalTicketAllocation: allocation,
			TotalTicks:            totalTicks,
			AttendedTicks:         attendedTicks,
			AwardedTickets:        allocation * int64(attendedTicks) / int64(totalTicks),
		})
	}

	sort.Slice(meta, func(i, j int) bool { return meta[i].Name < meta[j].Name })

	return meta, nil
}

// Share is one main's cut of a split amount.
type Share struct {
	Name        string `json:"name"`
	SplitAmount int64  `json:"splitAmount"`
}

// Split distributes amount across the selected entries proportional to their
// awarded tickets. Each share is floored and the remainder is handed out one
// unit at a time to the largest fractional remainders, ties broken by name,
// so the shares always sum exactly to amount.
func Split(amount int64, selected []SplitMeta) ([]Share, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: negative amount", domain.ErrInvalidRequest)
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no entries selected", domain.ErrInvalidRequest)
	}

	var totalAwarded int64
	for _, entry := range selected {
		if entry.AwardedTickets < 0 {
			return nil, fmt.Errorf("%w: negative awarded tickets for %s", domain.ErrInvalidRequest, entry.Name)
		}
		totalAwarded += entry.AwardedTickets
	}
	if totalAwarded == 0 {
		return nil, fmt.Errorf("%w: selected entries hold no awarded tickets", domain.ErrInvalidRequest)
	}

	type slice struct {
		index     int
		remainder int64 // numerator of the fractional part, over totalAwarded
	}

	shares := make([]Share, len(selected))
	remainders := make([]slice, len(selected))
	var distributed int64
	for i, entry := range selected {
		numerator := amount * entry.AwardedTickets
		share := numerator / totalAwarded
		shares[i] = Share{Name: entry.Name, SplitAmount: share}
		remainders[i] = slice{index: i, remainder: numerator % totalAwarded}
		distributed += share
	}

	sort.SliceStable(remainders, func(i, j int) bool {
		if remainders[i].remainder != remainders[j].remainder {
			return remainders[i].remainder > remainders[j].remainder
		}
		ni := strings.ToLower(selected[remainders[i].index].Name)
		nj := strings.ToLower(selected[remainders[j].index].Name)
		return ni < nj
	})

	for i := 0; distributed < amount; i++ {
		shares[remainders[i%len(remainders)].index].SplitAmount++
		distributed++
	}

	return shares, nil
}
