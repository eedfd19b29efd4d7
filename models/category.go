package models

// Category represents a product category.
// It includes a unique slug used as the stable external key and an
// ordering hint used when listing.
type Category struct {
	ID    uint   `gorm:"primaryKey"`
	Name  string `gorm:"size:100;not null"`
	Slug  string `gorm:"size:50;uniqueIndex;not null"`
	Order int    `gorm:"column:sort_order;not null;default:0"`
}

func (c *Category) TableName() string {
	return "categories"
}
