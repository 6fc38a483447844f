package schema

import "time"

// Character represents the characters table. A character is either a guild
// member's main or one of their boxes; the distinction lives entirely in the
// ownership_links table.
type Character struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// GuildID scopes the character to a guild/tenant
	GuildID uint64 `gorm:"column:guild_id;not null;uniqueIndex:uniq_live_character_name,priority:1"`
	// Name is stored lowercased; the partial unique index holds the name only
	// while the character is live, so deleted names stay reusable
	Name string `gorm:"column:name;not null;type:text;uniqueIndex:uniq_live_character_name,priority:2,where:deleted = false"`
	// Class is the character's game class (validated against domain.Classes)
	Class string `gorm:"column:class;not null;type:text"`
	// Level is the character's game level (1-150)
	Level int `gorm:"column:level;not null"`
	// Rank is the guild rank label, informational only
	Rank string `gorm:"column:rank;type:text"`
	// BaseTicketAllocation is the externally supplied ticket total used by the
	// allocators; nil means fall back to the recent-attendance percentage
	BaseTicketAllocation *int64 `gorm:"column:base_ticket_allocation"`
	// Deleted soft-deletes the character; deleted names may be reused
	Deleted   bool      `gorm:"column:deleted;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`
}

// TableName specifies the table name for the Character model
func (Character) TableName() string {
	return "characters"
}
