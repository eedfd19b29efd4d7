package models

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductsRepository struct {
	db *gorm.DB
}

// ErrProductNotFound is returned when a product is not found.
var ErrProductNotFound = errors.New("product not found")

// ProductFilters narrows a product listing. Zero values disable a filter.
type ProductFilters struct {
	CategorySlug string
	Active       *bool
	Search       string
}

func NewProductsRepository(db *gorm.DB) *ProductsRepository {
	return &ProductsRepository{
		db: db,
	}
}

// GetFilteredProducts returns the products matching filters, newest first.
func (r *ProductsRepository) GetFilteredProducts(ctx context.Context, filters ProductFilters) ([]Product, error) {
	products := []Product{}

	query := r.db.WithContext(ctx).Model(&Product{}).
		Joins("JOIN categories ON categories.id = products.category_id").
		Preload("Category")

	if filters.CategorySlug != "" {
		query = query.Where("categories.slug = ?", filters.CategorySlug)
	}
	if filters.Active != nil {
		query = query.Where("products.is_active = ?", *filters.Active)
	}
	for _, term := range SearchTerms(filters.Search) {
		sql, args := containsAny(term, "products.name", "products.description", "categories.name")
		query = query.Where(sql, args...)
	}

	if err := query.Order("products.id DESC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *ProductsRepository) GetByID(ctx context.Context, id uint) (*Product, error) {
	var product Product
	if err := r.db.WithContext(ctx).
		Preload("Category").
		First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts product and reloads it with its category.
func (r *ProductsRepository) CreateProduct(ctx context.Context, product *Product) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(product).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return ErrCategoryNotFound
		}
		return err
	}
	return db.Preload("Category").First(product, product.ID).Error
}

// UpdateProduct writes every column of an existing product and reloads its
// category. A row deleted in the meantime is reported, never re-inserted.
func (r *ProductsRepository) UpdateProduct(ctx context.Context, product *Product) error {
	db := r.db.WithContext(ctx)
	result := db.Model(product).Select("*").Omit(clause.Associations, "CreatedAt").Updates(product)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrForeignKeyViolated) {
			return ErrCategoryNotFound
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	product.Category = Category{}
	return db.Preload("Category").First(product, product.ID).Error
}

func (r *ProductsRepository) DeleteProduct(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&Product{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// SearchTerms splits a free-text search on whitespace and commas.
func SearchTerms(search string) []string {
	return strings.FieldsFunc(search, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\x00'
	})
}

// ContainsPattern builds a lower-cased LIKE pattern matching term anywhere,
// with LIKE wildcards in term escaped by a backslash.
func ContainsPattern(term string) string {
	return likePattern(strings.ToLower(term))
}

func likePattern(term string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
	return "%" + escaped + "%"
}

// containsAny matches term case-insensitively in any of columns. SQLite's
// LOWER folds ASCII only, so the term is also compared as typed: its LIKE
// ignores ASCII case and an exact non-ASCII spelling still matches.
func containsAny(term string, columns ...string) (string, []any) {
	lower, typed := ContainsPattern(term), likePattern(term)

	conds := make([]string, 0, 2*len(columns))
	args := make([]any, 0, 2*len(columns))
	for _, col := range columns {
		conds = append(conds, "LOWER("+col+") LIKE ? ESCAPE '\\'", col+" LIKE ? ESCAPE '\\'")
		args = append(args, lower, typed)
	}
	return "(" + strings.Join(conds, " OR ") + ")", args
}
