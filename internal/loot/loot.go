// Package loot credits loot awards back to the owning main, regardless of
// which of the player's characters looted, and builds the per-main breakdowns
// reporting drills into.
package loot

import (
	"context"
	"fmt"
	"sort"

	"github.com/bnc-guild/attendance-engine/internal/audit"
	"github.com/bnc-guild/attendance-engine/internal/domain"
	"github.com/bnc-guild/attendance-engine/internal/store"
	"github.com/bnc-guild/attendance-engine/internal/store/schema"
)

// Store is the subset of the persistence layer the loot service needs.
type Store interface {
	ListLootAwards(ctx context.Context, filter store.LootFilter) ([]schema.LootAward, error)
	GetLootAwardByID(ctx context.Context, id uint64) (*schema.LootAward, error)
	ReassignLootAward(ctx context.Context, id, toCharacterID uint64, entry schema.AuditEntry) error
	GetCharacterByID(ctx context.Context, id uint64) (*schema.Character, error)
	GetCharactersByIDs(ctx context.Context, ids []uint64) ([]schema.Character, error)
	GetOrCreateItemByName(ctx context.Context, name string) (*schema.Item, error)
	CreateLootAward(ctx context.Context, award *schema.LootAward) error
}

// Resolver maps characters onto their owning mains.
type Resolver interface {
	ResolveMain(ctx context.Context, characterID uint64) (uint64, error)
	MainsOf(ctx context.Context, characterIDs []uint64) (map[uint64]uint64, error)
}

// Service attributes and manages loot for one guild.
type Service struct {
	store    Store
	resolver Resolver
	guildID  uint64
	// passTokenItemID marks the designated non-loot "pass" item excluded from
	// totals unless explicitly included; zero disables the exclusion
	passTokenItemID uint64
}

// NewService creates a loot service
func NewService(store Store, resolver Resolver, guildID, passTokenItemID uint64) *Service {
	return &Service{
		store:           store,
		resolver:        resolver,
		guildID:         guildID,
		passTokenItemID: passTokenItemID,
	}
}

// Attribution is one award credited at the player level.
type Attribution struct {
	CreditedMainID   uint64 `json:"creditedMainId"`
	CreditedMainName string `json:"creditedMainName"`
	IsBoxWin         bool   `json:"isBoxWin"`
	// BoxCharacterName is the looting box's own name, kept for drilldown;
	// empty when the main looted directly
	BoxCharacterName string `json:"boxCharacterName,omitempty"`
}

// Attribute resolves who a loot award counts for. A box win is credited to
// the owning main with the box's name retained.
func (s *Service) Attribute(ctx context.Context, award schema.LootAward) (Attribution, error) {
	mainID, err := s.resolver.ResolveMain(ctx, award.CharacterID)
	if err != nil {
		return Attribution{}, err
	}

	main, err := s.store.GetCharacterByID(ctx, mainID)
	if err != nil {
		return Attribution{}, fmt.Errorf("failed to load main: %w", err)
	}

	attribution := Attribution{CreditedMainID: mainID}
	if main != nil {
		attribution.CreditedMainName = main.Name
	}
	if mainID != award.CharacterID {
		attribution.IsBoxWin = true
		if award.Character != nil {
			attribution.BoxCharacterName = award.Character.Name
		}
	}

	return attribution, nil
}

// BoxSummary is one box's share of a main's loot.
type BoxSummary struct {
	BoxID    uint64 `json:"boxId"`
	BoxName  string `json:"boxName"`
	Quantity int64  `json:"quantity"`
}

// MainSummary is one main's loot total with the per-box breakdown.
type MainSummary struct {
	MainID   uint64       `json:"mainId"`
	MainName string       `json:"mainName"`
	Quantity int64        `json:"quantity"`
	Boxes    []BoxSummary `json:"boxes,omitempty"`
}

// SummarizeByMain aggregates loot quantity per main over the filtered awards,
// keeping per-box sub-totals for drilldown. The pass token is skipped unless
// includePassToken is set.
func (s *Service) SummarizeByMain(ctx context.Context, filter store.LootFilter, includePassToken bool) ([]MainSummary, error) {
	awards, err := s.store.ListLootAwards(ctx, filter)
	if err != nil {
		return nil, err
	}

	looterIDs := make([]uint64, 0, len(awards))
	seen := make(map[uint64]bool, len(awards))
	for _, award := range awards {
		if !seen[award.CharacterID] {
			seen[award.CharacterID] = true
			looterIDs = append(looterIDs, award.CharacterID)
		}
	}

	mains, err := s.resolver.MainsOf(ctx, looterIDs)
	if err != nil {
		return nil, err
	}

	summaries := make(map[uint64]*MainSummary)
	boxTotals := make(map[uint64]map[uint64]*BoxSummary)
	for _, award := range awards {
		if !includePassToken && s.passTokenItemID != 0 && award.ItemID == s.passTokenItemID {
			continue
		}

		mainID := mains[award.CharacterID]
		summary := summaries[mainID]
		if summary == nil {
			summary = &MainSummary{MainID: mainID}
			summaries[mainID] = summary
			boxTotals[mainID] = make(map[uint64]*BoxSummary)
		}
		summary.Quantity += award.Quantity

		if award.CharacterID != mainID {
			box := boxTotals[mainID][award.CharacterID]
			if box == nil {
				box = &BoxSummary{BoxID: award.CharacterID}
				if award.Character != nil {
					box.BoxName = award.Character.Name
				}
				boxTotals[mainID][award.CharacterID] = box
			}
			box.Quantity += award.Quantity
		}
	}

	mainIDs := make([]uint64, 0, len(summaries))
	for mainID := range summaries {
		mainIDs = append(mainIDs, mainID)
	}
	mainCharacters, err := s.store.GetCharactersByIDs(ctx, mainIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load mains: %w", err)
	}
	for _, c := range mainCharacters {
		if summary := summaries[c.ID]; summary != nil {
			summary.MainName = c.Name
		}
	}

	out := make([]MainSummary, 0, len(summaries))
	for mainID, summary := range summaries {
		for _, box := range boxTotals[mainID] {
			summary.Boxes = append(summary.Boxes, *box)
		}
		sort.Slice(summary.Boxes, func(i, j int) bool {
			return summary.Boxes[i].BoxName < summary.Boxes[j].BoxName
		})
		out = append(out, *summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MainName < out[j].MainName })

	return out, nil
}

// Award records an item looted by a character during a raid, creating the
// item on first sight.
func (s *Service) Award(ctx context.Context, raidID, characterID uint64, itemName string, quantity int64, wasAssigned bool) (*schema.LootAward, error) {
	if raidID == 0 || characterID == 0 || itemName == "" || quantity < 1 {
		return nil, fmt.Errorf("%w: raid, character, item and quantity are required", domain.ErrInvalidRequest)
	}

	item, err := s.store.GetOrCreateItemByName(ctx, itemName)
	if err != nil {
		return nil, err
	}

	award := &schema.LootAward{
		RaidID:      raidID,
		CharacterID: characterID,
		ItemID:      item.ID,
		Quantity:    quantity,
		WasAssigned: wasAssigned,
	}
	if err := s.store.CreateLootAward(ctx, award); err != nil {
		return nil, err
	}
	award.Item = item

	return award, nil
}

// List lists loot awards with their associations
func (s *Service) List(ctx context.Context, filter store.LootFilter) ([]schema.LootAward, error) {
	return s.store.ListLootAwards(ctx, filter)
}

// Reassign moves an award to another character, officer-only, recording a
// LOOT_REASSIGNED audit entry in the same transaction.
func (s *Service) Reassign(ctx context.Context, lootID, toCharacterID, actorID uint64, role domain.Role) error {
	if !role.CanDecide() {
		return domain.ErrUnauthorized
	}

	award, err := s.store.GetLootAwardByID(ctx, lootID)
	if err != nil {
		return err
	}
	if award == nil {
		return domain.ErrLootNotFound
	}

	actor, err := s.store.GetCharacterByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("failed to load actor: %w", err)
	}
	target, err := s.store.GetCharacterByID(ctx, toCharacterID)
	if err != nil {
		return fmt.Errorf("failed to load target: %w", err)
	}
	if actor == nil || target == nil {
		return domain.ErrCharacterNotFound
	}

	event := audit.Event{
		Type:  schema.AuditLootReassigned,
		Actor: audit.Ref{ID: actor.ID, Name: actor.Name},
		To:    audit.Ref{ID: target.ID, Name: target.Name},
	}
	if award.Character != nil {
		event.From = audit.Ref{ID: award.Character.ID, Name: award.Character.Name}
	}
	if award.Item != nil {
		event.Item = audit.Ref{ID: award.Item.ID, Name: award.Item.Name}
	}

	return s.store.ReassignLootAward(ctx, lootID, toCharacterID, audit.Entry(s.guildID, event))
}
