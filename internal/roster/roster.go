// Package roster manages the guild's characters and the main/box ownership
// graph, and resolves any character to the main that entitlement is credited
// to.
package roster

import (
	"context"
	"fmt"
	"strings"

	"github.com/bnc-guild/attendance-engine/internal/domain"
	"github.com/bnc-guild/attendance-engine/internal/store/schema"
)

// Store is the subset of the persistence layer the roster needs.
type Store interface {
	GetCharacterByID(ctx context.Context, id uint64) (*schema.Character, error)
	GetCharactersByIDs(ctx context.Context, ids []uint64) ([]schema.Character, error)
	ListMains(ctx context.Context, guildID uint64) ([]schema.Character, error)
	CreateCharacter(ctx context.Context, character *schema.Character) error
	CreateOwnershipLink(ctx context.Context, link *schema.OwnershipLink) error
	GetOwnershipLinkByBoxID(ctx context.Context, boxID uint64) (*schema.OwnershipLink, error)
	ListOwnershipLinksByBoxIDs(ctx context.Context, boxIDs []uint64) ([]schema.OwnershipLink, error)
	ListBoxes(ctx context.Context, mainID uint64) ([]schema.Character, error)
}

// Service exposes roster reads and writes for one guild.
type Service struct {
	store   Store
	guildID uint64
}

// NewService creates a roster service scoped to a guild
func NewService(store Store, guildID uint64) *Service {
	return &Service{store: store, guildID: guildID}
}

// CreateCharacterInput is the validated payload for registering a character.
type CreateCharacterInput struct {
	Name  string
	Class string
	Level int
	Rank  string
	// BaseTicketAllocation is the externally supplied ticket total; nil leaves
	// the allocators on the attendance-percentage fallback
	BaseTicketAllocation *int64
}

const (
	minNameLength = 3
	minLevel      = 1
	maxLevel      = 150
)

// validateCharacter normalizes and checks a registration payload
func validateCharacter(input *CreateCharacterInput) error {
	input.Name = strings.ToLower(strings.TrimSpace(input.Name))
	if len(input.Name) < minNameLength {
		return fmt.Errorf("%w: name must be at least %d characters", domain.ErrInvalidRequest, minNameLength)
	}
	if input.Level < minLevel || input.Level > maxLevel {
		return fmt.Errorf("%w: level must be between %d and %d", domain.ErrInvalidRequest, minLevel, maxLevel)
	}
	input.Class = strings.ToLower(strings.TrimSpace(input.Class))
	if !domain.ValidClass(input.Class) {
		return fmt.Errorf("%w: unknown class %q", domain.ErrInvalidRequest, input.Class)
	}
	return nil
}

// Register validates and creates a character. Names are stored lowercased and
// must be unique among the guild's non-deleted characters.
func (s *Service) Register(ctx context.Context, input CreateCharacterInput) (*schema.Character, error) {
	if err := validateCharacter(&input); err != nil {
		return nil, err
	}

	character := &schema.Character{
		GuildID:              s.guildID,
		Name:                 input.Name,
		Class:                input.Class,
		Level:                input.Level,
		Rank:                 input.Rank,
		BaseTicketAllocation: input.BaseTicketAllocation,
	}
	if err := s.store.CreateCharacter(ctx, character); err != nil {
		return nil, err
	}

	return character, nil
}

// LinkBox records boxID as owned by mainID. The graph is strictly one level:
// a main that is itself a box cannot own boxes, and a box cannot be linked
// twice.
func (s *Service) LinkBox(ctx context.Context, boxID, mainID uint64) error {
	if boxID == 0 || mainID == 0 || boxID == mainID {
		return fmt.Errorf("%w: invalid ownership link", domain.ErrInvalidRequest)
	}

	box, err := s.store.GetCharacterByID(ctx, boxID)
	if err != nil {
		return fmt.Errorf("failed to load box character: %w", err)
	}
	main, err := s.store.GetCharacterByID(ctx, mainID)
	if err != nil {
		return fmt.Errorf("failed to load main character: %w", err)
	}
	if box == nil || main == nil {
		return domain.ErrCharacterNotFound
	}

	mainLink, err := s.store.GetOwnershipLinkByBoxID(ctx, mainID)
	if err != nil {
		return fmt.Errorf("failed to check main ownership: %w", err)
	}
	if mainLink != nil {
		return fmt.Errorf("%w: %s is a box and cannot own boxes", domain.ErrInvalidRequest, main.Name)
	}

	existing, err := s.store.GetOwnershipLinkByBoxID(ctx, boxID)
	if err != nil {
		return fmt.Errorf("failed to check box ownership: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: %s already has an owner", domain.ErrInvalidRequest, box.Name)
	}

	return s.store.CreateOwnershipLink(ctx, &schema.OwnershipLink{
		BoxID:  boxID,
		MainID: mainID,
	})
}

// Mains lists the guild's main characters ordered by name
func (s *Service) Mains(ctx context.Context) ([]schema.Character, error) {
	return s.store.ListMains(ctx, s.guildID)
}

// Boxes lists the characters owned by mainID ordered by name
func (s *Service) Boxes(ctx context.Context, mainID uint64) ([]schema.Character, error) {
	return s.store.ListBoxes(ctx, mainID)
}

// Character retrieves one character; ErrCharacterNotFound when missing
func (s *Service) Character(ctx context.Context, id uint64) (*schema.Character, error) {
	character, err := s.store.GetCharacterByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if character == nil {
		return nil, domain.ErrCharacterNotFound
	}
	return character, nil
}
