package schema

import "time"

// AuditEntryType enumerates the privileged actions the audit log records.
type AuditEntryType string

const (
	AuditTickRequested  AuditEntryType = "TICK_REQUESTED"
	AuditTickApproved   AuditEntryType = "TICK_APPROVED"
	AuditTickRejected   AuditEntryType = "TICK_REJECTED"
	AuditTicksRemoved   AuditEntryType = "TICKS_REMOVED"
	AuditLootReassigned AuditEntryType = "LOOT_REASSIGNED"
	AuditRaidDeleted    AuditEntryType = "RAID_DELETED"
)

// AuditEntry represents the audit_entries table. Rows are append-only: every
// administrative decision writes exactly one entry in the same transaction as
// the decision itself, and entries are never updated or deleted.
//
// Message is rendered from a per-type template and carries the stable
// bracketed-token micro-format (un[..], fn[..], tn[..], rn[..], in[..]) that
// consumers parse into linked references. Changing the token format requires
// a migration plan for every consumer.
type AuditEntry struct {
	ID      uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	GuildID uint64 `gorm:"column:guild_id;not null;index"`
	// ActorID is the character of the acting user
	ActorID uint64         `gorm:"column:actor_id;not null"`
	Type    AuditEntryType `gorm:"column:type;not null;type:text"`
	// Optional typed references resolved by consumers of the token format
	ItemID          *uint64 `gorm:"column:item_id"`
	FromCharacterID *uint64 `gorm:"column:from_character_id"`
	ToCharacterID   *uint64 `gorm:"column:to_character_id"`
	RaidID          *uint64 `gorm:"column:raid_id"`
	// Message is the rendered human-readable record
	Message   string    `gorm:"column:message;not null;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();index"`
}

// TableName specifies the table name for the AuditEntry model
func (AuditEntry) TableName() string {
	return "audit_entries"
}
