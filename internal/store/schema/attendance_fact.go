package schema

import "time"

// AttendanceFact represents the attendance_facts table: confirmed presence of
// a character at one raid-hour tick. Rows are created only by tick approval
// and deleted only by rejection or explicit officer removal.
type AttendanceFact struct {
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// CharacterID, RaidID and TickIndex form the fact's identity
	CharacterID uint64 `gorm:"column:character_id;not null;uniqueIndex:idx_attendance_facts_key,priority:1"`
	RaidID      uint64 `gorm:"column:raid_id;not null;uniqueIndex:idx_attendance_facts_key,priority:2;index"`
	// TickIndex is the zero-based raid hour
	TickIndex int `gorm:"column:tick_index;not null;uniqueIndex:idx_attendance_facts_key,priority:3"`
	// RecordedAt is when the fact was written; groups with more than an hour of
	// spread are snapped to the group minimum by housekeeping
	RecordedAt time.Time `gorm:"column:recorded_at;not null;default:now()"`

	Character *Character `gorm:"foreignKey:CharacterID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the AttendanceFact model
func (AttendanceFact) TableName() string {
	return "attendance_facts"
}
