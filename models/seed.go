package models

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// CategorySeed is a fixed lookup row. Its position in the seed list
// becomes the category order.
type CategorySeed struct {
	Name string
	Slug string
}

// DefaultCategorySeeds are the storefront's menu sections.
var DefaultCategorySeeds = []CategorySeed{
	{"Cakes", "cakes"},
	{"Burgers", "burgers"},
	{"Sandwich", "sandwich"},
	{"Sweets", "sweets"},
	{"Fryed and Fries", "fryed-and-fries"},
	{"Loaded Fries", "loaded-fries"},
	{"Juices", "juices"},
	{"Shakes", "shakes"},
	{"Pasta", "pasta"},
	{"Dumplings", "dumplings"},
	{"Ice Creams", "ice-creams"},
	{"Chips", "chips"},
	{"Bakes", "bakes"},
	{"Moctails", "moctails"},
	{"Falooda", "falooda"},
	{"Shawarma", "shawarma"},
	{"Brosted", "brosted"},
	{"Cool Drinks", "cool-drinks"},
	{"Hot Beverages", "hot-beverages"},
	{"Mojitos", "mojitos"},
	{"Avil Milks", "avil-milks"},
	{"Fruit Salads", "fruit-salads"},
}

type SeedResult struct {
	Created int
	Updated int
}

// SeedCategories upserts seeds in one transaction. A row is matched by slug
// first, then by name; unmatched seeds are inserted. Running it twice leaves
// the table unchanged.
func SeedCategories(ctx context.Context, db *gorm.DB, seeds []CategorySeed) (SeedResult, error) {
	var result SeedResult

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, seed := range seeds {
			var category Category
			err := tx.Where("slug = ?", seed.Slug).First(&category).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = tx.Where("name = ?", seed.Name).First(&category).Error
			}

			switch {
			case err == nil:
				if category.Name == seed.Name && category.Slug == seed.Slug && category.Order == i {
					continue
				}
				category.Name = seed.Name
				category.Slug = seed.Slug
				category.Order = i
				if err := tx.Save(&category).Error; err != nil {
					return err
				}
				result.Updated++
			case errors.Is(err, gorm.ErrRecordNotFound):
				category = Category{Name: seed.Name, Slug: seed.Slug, Order: i}
				if err := tx.Create(&category).Error; err != nil {
					return err
				}
				result.Created++
			default:
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	return result, nil
}
