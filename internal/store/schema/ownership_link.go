package schema

// OwnershipLink represents the ownership_links table: a "box is owned by
// main" edge. A box has at most one main (box_id is unique) and a main is
// never itself a box, so the graph is a flat one-level map.
type OwnershipLink struct {
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// BoxID is the owned box character; unique across all links
	BoxID uint64 `gorm:"column:box_id;not null;uniqueIndex"`
	// MainID is the owning main character
	MainID uint64 `gorm:"column:main_id;not null;index"`

	// Associations
	Box  *Character `gorm:"foreignKey:BoxID;constraint:OnDelete:CASCADE"`
	Main *Character `gorm:"foreignKey:MainID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the OwnershipLink model
func (OwnershipLink) TableName() string {
	return "ownership_links"
}
