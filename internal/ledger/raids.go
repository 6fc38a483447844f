package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/bnc-guild/attendance-engine/internal/audit"
	"github.com/bnc-guild/attendance-engine/internal/domain"
	"github.com/bnc-guild/attendance-engine/internal/store"
	"github.com/bnc-guild/attendance-engine/internal/store/schema"
)

// RaidStore is the subset of the persistence layer raid management needs.
type RaidStore interface {
	CreateRaid(ctx context.Context, raid *schema.Raid) error
	GetRaid(ctx context.Context, id uint64) (*schema.Raid, error)
	ListRaids(ctx context.Context, guildID uint64, page, pageSize int) ([]store.RaidWithTotals, int64, error)
	DeleteRaid(ctx context.Context, id uint64, entry schema.AuditEntry) error
	GetCharacterByID(ctx context.Context, id uint64) (*schema.Character, error)
}

// RaidService manages the raids the ledger hangs off of.
type RaidService struct {
	store   RaidStore
	guildID uint64
}

// NewRaidService creates a raid management service scoped to a guild
func NewRaidService(store RaidStore, guildID uint64) *RaidService {
	return &RaidService{store: store, guildID: guildID}
}

// Create registers a raid
func (s *RaidService) Create(ctx context.Context, name string, isOfficial bool) (*schema.Raid, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: raid name is required", domain.ErrInvalidRequest)
	}

	raid := &schema.Raid{
		GuildID:    s.guildID,
		Name:       name,
		IsOfficial: isOfficial,
	}
	if err := s.store.CreateRaid(ctx, raid); err != nil {
		return nil, err
	}

	return raid, nil
}

// Get retrieves one raid; ErrRaidNotFound when missing
func (s *RaidService) Get(ctx context.Context, id uint64) (*schema.Raid, error) {
	raid, err := s.store.GetRaid(ctx, id)
	if err != nil {
		return nil, err
	}
	if raid == nil {
		return nil, domain.ErrRaidNotFound
	}
	return raid, nil
}

// List lists the guild's raids newest first with attendance totals
func (s *RaidService) List(ctx context.Context, page, pageSize int) ([]store.RaidWithTotals, int64, error) {
	return s.store.ListRaids(ctx, s.guildID, page, pageSize)
}

// Delete removes a raid and everything recorded under it, officer-only. The
// audit entry commits with the delete.
func (s *RaidService) Delete(ctx context.Context, raidID, actorID uint64, role domain.Role) error {
	if !role.CanDecide() {
		return domain.ErrUnauthorized
	}

	actor, err := s.store.GetCharacterByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("failed to load actor: %w", err)
	}
	if actor == nil {
		return domain.ErrCharacterNotFound
	}

	raid, err := s.Get(ctx, raidID)
	if err != nil {
		return err
	}

	entry := audit.Entry(s.guildID, audit.Event{
		Type:  schema.AuditRaidDeleted,
		Actor: audit.Ref{ID: actor.ID, Name: actor.Name},
		Raid:  audit.Ref{ID: raid.ID, Name: raid.Name},
	})

	return s.store.DeleteRaid(ctx, raidID, entry)
}
