package schema

// ItemCategory classifies loot for reporting.
type ItemCategory string

const (
	// ItemCategoryBiS is "best in slot", the highest-value loot category
	ItemCategoryBiS ItemCategory = "bis"
	// ItemCategoryRolled covers items distributed by roll
	ItemCategoryRolled ItemCategory = "rolled"
	// ItemCategoryTrash covers vendor fodder
	ItemCategoryTrash ItemCategory = "trash"
	// ItemCategoryUncategorized is the default for newly seen items
	ItemCategoryUncategorized ItemCategory = "uncategorized"
)

// Item represents the items table.
type Item struct {
	ID       uint64       `gorm:"column:id;primaryKey;autoIncrement"`
	Name     string       `gorm:"column:name;not null;type:text;index"`
	Category ItemCategory `gorm:"column:category;not null;type:text;default:uncategorized"`
}

// TableName specifies the table name for the Item model
func (Item) TableName() string {
	return "items"
}
