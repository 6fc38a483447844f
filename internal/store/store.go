package store

import (
	"context"
	"time"

	"github.com/bnc-guild/attendance-engine/internal/store/schema"
)

// CreateTickRequestInput carries one request call's claims plus its audit
// entry; everything commits in a single transaction.
type CreateTickRequestInput struct {
	CharacterID uint64
	RaidID      uint64
	Ticks       []int
	RequestedBy uint64
	Audit       schema.AuditEntry
}

// DecideTickClaimInput identifies one pending claim and the decision applied
// to it. The decision, the ledger change and the audit entry commit together.
type DecideTickClaimInput struct {
	CharacterID uint64
	RaidID      uint64
	Tick        int
	DecidedBy   uint64
	DecidedAt   time.Time
	Audit       schema.AuditEntry
}

// RaidWithTotals is a raid row augmented with attendance aggregates for
// listing pages.
type RaidWithTotals struct {
	schema.Raid
	TotalTicks int `gorm:"column:total_ticks"`
	TotalMains int `gorm:"column:total_mains"`
}

// LootFilter narrows loot listings.
type LootFilter struct {
	RaidIDs     []uint64
	CharacterID *uint64
}

// Store defines the interface for database operations
type Store interface {
	// GetCharacterByID retrieves a character by id; nil when missing
	GetCharacterByID(ctx context.Context, id uint64) (*schema.Character, error)
	// GetCharactersByIDs retrieves multiple characters by id
	GetCharactersByIDs(ctx context.Context, ids []uint64) ([]schema.Character, error)
	// ListMains lists a guild's non-deleted characters that are not boxes,
	// ordered by name
	ListMains(ctx context.Context, guildID uint64) ([]schema.Character, error)
	// CreateCharacter inserts a character, enforcing name uniqueness among the
	// guild's non-deleted characters
	CreateCharacter(ctx context.Context, character *schema.Character) error
	// CreateOwnershipLink marks one character as a box of another; a box can
	// only have one owner
	CreateOwnershipLink(ctx context.Context, link *schema.OwnershipLink) error
	// GetOwnershipLinkByBoxID retrieves the link owning boxID; nil when boxID
	// is not a box
	GetOwnershipLinkByBoxID(ctx context.Context, boxID uint64) (*schema.OwnershipLink, error)
	// ListOwnershipLinksByBoxIDs retrieves links for any of the given boxes
	ListOwnershipLinksByBoxIDs(ctx context.Context, boxIDs []uint64) ([]schema.OwnershipLink, error)
	// ListBoxes lists the characters owned by mainID, ordered by name
	ListBoxes(ctx context.Context, mainID uint64) ([]schema.Character, error)

	// CreateRaid inserts a raid
	CreateRaid(ctx context.Context, raid *schema.Raid) error
	// GetRaid retrieves a raid by id; nil when missing
	GetRaid(ctx context.Context, id uint64) (*schema.Raid, error)
	// ListRaids lists a guild's raids newest first with attendance totals
	ListRaids(ctx context.Context, guildID uint64, page, pageSize int) ([]RaidWithTotals, int64, error)
	// DeleteRaid removes a raid and its dependent rows, recording the audit
	// entry in the same transaction
	DeleteRaid(ctx context.Context, id uint64, entry schema.AuditEntry) error

	// CreateAttendanceFacts bulk-inserts facts, silently skipping keys that
	// already exist
	CreateAttendanceFacts(ctx context.Context, facts []schema.AttendanceFact) error
	// ListAttendanceFactsByRaid retrieves all facts of a raid with characters
	// preloaded
	ListAttendanceFactsByRaid(ctx context.Context, raidID uint64) ([]schema.AttendanceFact, error)
	// MaxTickIndex returns the highest tick index of a raid; ok is false when
	// the raid has no attendance facts
	MaxTickIndex(ctx context.Context, raidID uint64) (maxTick int, ok bool, err error)
	// CountDistinctTicksAttended counts the distinct tick indexes attended by
	// any of the given characters in a raid
	CountDistinctTicksAttended(ctx context.Context, raidID uint64, characterIDs []uint64) (int, error)
	// DeleteAttendanceFacts removes the facts matching (characterIDs x ticks)
	// for a raid in one statement; a non-nil audit entry commits with the
	// delete
	DeleteAttendanceFacts(ctx context.Context, raidID uint64, characterIDs []uint64, ticks []int, entry *schema.AuditEntry) error
	// NormalizeFactTimestamps snaps recorded_at to the group minimum for every
	// (raid, tick) group whose spread exceeds maxSkew
	NormalizeFactTimestamps(ctx context.Context, raidID uint64, maxSkew time.Duration) error

	// CreateTickRequest upserts one pending claim per tick, resetting any
	// prior decision, and appends the audit entry
	CreateTickRequest(ctx context.Context, input CreateTickRequestInput) error
	// ApproveTickClaim transitions a pending claim to approved, records the
	// attendance fact and appends the audit entry in one transaction; returns
	// domain.ErrClaimNotFound when no pending claim matches
	ApproveTickClaim(ctx context.Context, input DecideTickClaimInput) error
	// RejectTickClaim transitions a pending claim to rejected, removes any
	// attendance fact for the key and appends the audit entry in one
	// transaction; returns domain.ErrClaimNotFound when no pending claim
	// matches
	RejectTickClaim(ctx context.Context, input DecideTickClaimInput) error
	// ListPendingClaims lists claims of a guild still awaiting a decision,
	// oldest first
	ListPendingClaims(ctx context.Context, guildID uint64) ([]schema.TickClaim, error)
	// ListDecidedClaims lists decided claims of a guild, most recent decision
	// first
	ListDecidedClaims(ctx context.Context, guildID uint64, page, pageSize int) ([]schema.TickClaim, int64, error)

	// GetOrCreateItemByName retrieves an item by name, creating it as
	// uncategorized when unseen
	GetOrCreateItemByName(ctx context.Context, name string) (*schema.Item, error)
	// CreateLootAward inserts one loot award
	CreateLootAward(ctx context.Context, award *schema.LootAward) error
	// ListLootAwards lists loot with character, item and raid preloaded,
	// ordered by item category then recency
	ListLootAwards(ctx context.Context, filter LootFilter) ([]schema.LootAward, error)
	// GetLootAwardByID retrieves one loot award; nil when missing
	GetLootAwardByID(ctx context.Context, id uint64) (*schema.LootAward, error)
	// ReassignLootAward moves an award to another character, recording the
	// audit entry in the same transaction
	ReassignLootAward(ctx context.Context, id, toCharacterID uint64, entry schema.AuditEntry) error

	// CreateAuditEntry appends a standalone audit entry
	CreateAuditEntry(ctx context.Context, entry *schema.AuditEntry) error
	// ListAuditEntries lists a guild's audit entries newest first
	ListAuditEntries(ctx context.Context, guildID uint64, page, pageSize int) ([]schema.AuditEntry, int64, error)
}
