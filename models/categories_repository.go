package models

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrCategoryNotFound is returned when a category is not found.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrDuplicateSlug is returned when another category already owns the slug.
	ErrDuplicateSlug = errors.New("category slug already exists")
	// ErrCategoryInUse is returned when deleting a category that products still reference.
	ErrCategoryInUse = errors.New("category has products")
)

type CategoriesRepository struct {
	db *gorm.DB
}

func NewCategoriesRepository(db *gorm.DB) *CategoriesRepository {
	return &CategoriesRepository{db: db}
}

// GetAllCategories lists categories by their ordering hint. Every search
// term must match the name or the slug.
func (r *CategoriesRepository) GetAllCategories(ctx context.Context, search string) ([]Category, error) {
	categories := []Category{}

	query := r.db.WithContext(ctx).Model(&Category{})
	for _, term := range SearchTerms(search) {
		sql, args := containsAny(term, "name", "slug")
		query = query.Where(sql, args...)
	}

	if err := query.Order("sort_order ASC").Order("id ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *CategoriesRepository) GetCategoryByID(ctx context.Context, id uint) (*Category, error) {
	var category Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}

// SlugTaken reports whether a category other than excludeID uses slug.
func (r *CategoriesRepository) SlugTaken(ctx context.Context, slug string, excludeID uint) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&Category{}).Where("slug = ?", slug)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *CategoriesRepository) CreateCategory(ctx context.Context, category *Category) error {
	return translateCategoryErr(r.db.WithContext(ctx).Create(category).Error)
}

// UpdateCategory writes every column of an existing category.
func (r *CategoriesRepository) UpdateCategory(ctx context.Context, category *Category) error {
	result := r.db.WithContext(ctx).Model(category).Select("*").Updates(category)
	if result.Error != nil {
		return translateCategoryErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// DeleteCategory removes a category that no product references.
func (r *CategoriesRepository) DeleteCategory(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var category Category
		if err := tx.First(&category, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCategoryNotFound
			}
			return err
		}

		var products int64
		if err := tx.Model(&Product{}).Where("category_id = ?", id).Count(&products).Error; err != nil {
			return err
		}
		if products > 0 {
			return ErrCategoryInUse
		}

		return translateCategoryErr(tx.Delete(&category).Error)
	})
}

func translateCategoryErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateSlug
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrCategoryInUse
	}
	return err
}
