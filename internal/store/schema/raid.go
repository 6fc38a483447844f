package schema

import "time"

// Raid represents the raids table.
type Raid struct {
	ID      uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	GuildID uint64 `gorm:"column:guild_id;not null;index"`
	Name    string `gorm:"column:name;not null;type:text"`
	// IsOfficial marks raids that count toward attendance percentages
	IsOfficial bool      `gorm:"column:is_official;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;default:now()"`
}

// TableName specifies the table name for the Raid model
func (Raid) TableName() string {
	return "raids"
}
