package schema

import "time"

// TickClaim represents the tick_claims table: one attendance request awaiting
// an officer decision. The state machine is derived from the nullable
// decision columns:
//
//	Requested: approved_by IS NULL AND rejected_by IS NULL
//	Approved:  approved_by set
//	Rejected:  rejected_by set
//
// A fresh request for the same (character, raid, tick) key resets all four
// decision columns, reopening the claim.
type TickClaim struct {
	ID          uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	CharacterID uint64 `gorm:"column:character_id;not null;uniqueIndex:idx_tick_claims_key,priority:1"`
	RaidID      uint64 `gorm:"column:raid_id;not null;uniqueIndex:idx_tick_claims_key,priority:2;index"`
	TickIndex   int    `gorm:"column:tick_index;not null;uniqueIndex:idx_tick_claims_key,priority:3"`
	// RequestedBy is the character of the actor who submitted the request;
	// differs from CharacterID for on-behalf requests
	RequestedBy uint64     `gorm:"column:requested_by;not null"`
	ApprovedBy  *uint64    `gorm:"column:approved_by"`
	ApprovedAt  *time.Time `gorm:"column:approved_at"`
	RejectedBy  *uint64    `gorm:"column:rejected_by"`
	RejectedAt  *time.Time `gorm:"column:rejected_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null;default:now()"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null;default:now()"`

	Character *Character `gorm:"foreignKey:CharacterID;constraint:OnDelete:CASCADE"`
	Raid      *Raid      `gorm:"foreignKey:RaidID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the TickClaim model
func (TickClaim) TableName() string {
	return "tick_claims"
}

// Pending reports whether the claim is still awaiting a decision.
func (c *TickClaim) Pending() bool {
	return c.ApprovedBy == nil && c.RejectedBy == nil
}
