// Package ledger stores confirmed per-tick attendance facts and derives the
// per-raid matrices and totals the allocators consume. Attendance is credited
// at the player level: a box's presence counts toward its owning main.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bnc-guild/attendance-engine/internal/domain"
	"github.com/bnc-guild/attendance-engine/internal/store/schema"
)

// Store is the subset of the persistence layer the ledger needs.
type Store interface {
	CreateAttendanceFacts(ctx context.Context, facts []schema.AttendanceFact) error
	ListAttendanceFactsByRaid(ctx context.Context, raidID uint64) ([]schema.AttendanceFact, error)
	MaxTickIndex(ctx context.Context, raidID uint64) (int, bool, error)
	CountDistinctTicksAttended(ctx context.Context, raidID uint64, characterIDs []uint64) (int, error)
	DeleteAttendanceFacts(ctx context.Context, raidID uint64, characterIDs []uint64, ticks []int, entry *schema.AuditEntry) error
	GetCharactersByIDs(ctx context.Context, ids []uint64) ([]schema.Character, error)
}

// Resolver maps characters onto their owning mains.
type Resolver interface {
	MainsOf(ctx context.Context, characterIDs []uint64) (map[uint64]uint64, error)
	Unit(ctx context.Context, characterID uint64) ([]uint64, error)
}

// Service is the attendance ledger.
type Service struct {
	store    Store
	resolver Resolver
}

// NewService creates an attendance ledger
func NewService(store Store, resolver Resolver) *Service {
	return &Service{store: store, resolver: resolver}
}

// RecordAttendance idempotently records one character's presence at a tick
func (s *Service) RecordAttendance(ctx context.Context, characterID, raidID uint64, tick int) error {
	if characterID == 0 || raidID == 0 || tick < 0 {
		return fmt.Errorf("%w: invalid attendance fact", domain.ErrInvalidRequest)
	}

	return s.store.CreateAttendanceFacts(ctx, []schema.AttendanceFact{{
		CharacterID: characterID,
		RaidID:      raidID,
		TickIndex:   tick,
		RecordedAt:  time.Now().UTC(),
	}})
}

// RemoveAttendance deletes the given ticks for a character's whole main-group
// in one atomic call, so an officer removal strips a player's entire roster.
// A non-nil audit entry commits with the delete.
func (s *Service) RemoveAttendance(ctx context.Context, characterID, raidID uint64, ticks []int, entry *schema.AuditEntry) error {
	if characterID == 0 || raidID == 0 || len(ticks) == 0 {
		return fmt.Errorf("%w: invalid removal", domain.ErrInvalidRequest)
	}

	unit, err := s.resolver.Unit(ctx, characterID)
	if err != nil {
		return err
	}

	return s.store.DeleteAttendanceFacts(ctx, raidID, unit, ticks, entry)
}

// Matrix maps main id -> tick index -> the names present at that tick. A main
// can appear at a tick through itself or any of its boxes; the names are
// informational, sorted, and deduplicated.
type Matrix map[uint64]map[int][]string

// AttendanceMatrix builds the per-main attendance matrix of a raid. Every
// fact contributes both the owning main's name and the attending character's
// own name under its tick.
func (s *Service) AttendanceMatrix(ctx context.Context, raidID uint64) (Matrix, error) {
	facts, err := s.store.ListAttendanceFactsByRaid(ctx, raidID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance facts: %w", err)
	}
	if len(facts) == 0 {
		return Matrix{}, nil
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

	// Main ids may not appear among the facts when only boxes attended
	mainIDs := make([]uint64, 0, len(mains))
	mainSeen := make(map[uint64]bool, len(mains))
	for _, mainID := range mains {
		if !mainSeen[mainID] {
			mainSeen[mainID] = true
			mainIDs = append(mainIDs, mainID)
		}
	}
	mainCharacters, err := s.store.GetCharactersByIDs(ctx, mainIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load mains: %w", err)
	}
	mainNames := make(map[uint64]string, len(mainCharacters))
	for _, c := range mainCharacters {
		mainNames[c.ID] = c.Name
	}

	sets := make(map[uint64]map[int]map[string]bool)
	for _, f := range facts {
		mainID := mains[f.CharacterID]
		if sets[mainID] == nil {
			sets[mainID] = make(map[int]map[string]bool)
		}
		if sets[mainID][f.TickIndex] == nil {
			sets[mainID][f.TickIndex] = make(map[string]bool)
		}
		if name := mainNames[mainID]; name != "" {
			sets[mainID][f.TickIndex][name] = true
		}
		if f.Character != nil {
			sets[mainID][f.TickIndex][f.Character.Name] = true
		}
	}

	matrix := make(Matrix, len(sets))
	for mainID, ticks := range sets {
		matrix[mainID] = make(map[int][]string, len(ticks))
		for tick, names := range ticks {
			sorted := make([]string, 0, len(names))
			for name := range names {
				sorted = append(sorted, name)
			}
			sort.Strings(sorted)
			matrix[mainID][tick] = sorted
		}
	}

	return matrix, nil
}

// TotalTicks returns 1 + the maximum tick index observed for the raid. Ticks
// are zero-indexed, so attendance only at tick 0 still means one tick; a raid
// with no facts has zero ticks and allocators must guard the division.
func (s *Service) TotalTicks(ctx context.Context, raidID uint64) (int, error) {
	maxTick, ok, err := s.store.MaxTickIndex(ctx, raidID)
	if err != nil {
		return 0, fmt.Errorf("failed to read max tick: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return maxTick + 1, nil
}

// TicksAttended counts the distinct ticks a player covered in a raid through
// their main or any of their boxes.
func (s *Service) TicksAttended(ctx context.Context, characterID, raidID uint64) (int, error) {
	unit, err := s.resolver.Unit(ctx, characterID)
	if err != nil {
		return 0, err
	}
	return s.store.CountDistinctTicksAttended(ctx, raidID, unit)
}
