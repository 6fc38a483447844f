package schema

import "time"

// LootAward represents the loot_awards table: one item awarded to a character
// during a raid. The looter may be a box; attribution back to the owning main
// happens at read time.
type LootAward struct {
	ID          uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	RaidID      uint64 `gorm:"column:raid_id;not null;index"`
	CharacterID uint64 `gorm:"column:character_id;not null;index"`
	ItemID      uint64 `gorm:"column:item_id;not null;index"`
	Quantity    int64  `gorm:"column:quantity;not null;default:1"`
	// WasAssigned marks loot handed out by an officer rather than won by roll
	WasAssigned bool      `gorm:"column:was_assigned;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;default:now()"`

	// Associations
	Raid      *Raid      `gorm:"foreignKey:RaidID;constraint:OnDelete:CASCADE"`
	Character *Character `gorm:"foreignKey:CharacterID;constraint:OnDelete:CASCADE"`
	Item      *Item      `gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the LootAward model
func (LootAward) TableName() string {
	return "loot_awards"
}
