package catalog

import (
	"net/http"
	"time"

	"github.com/jafsabakes/bakery-api/app/media"
	"github.com/jafsabakes/bakery-api/models"
)

type Category struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Order int    `json:"order"`
}

type Product struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	Image       *string   `json:"image"`
	Category    Category  `json:"category"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// toProduct maps a stored product to its wire form. The image reference is
// turned into an absolute URL for the client of r.
func toProduct(r *http.Request, mediaURL string, p models.Product) Product {
	var image *string
	if p.Image != nil && *p.Image != "" {
		abs := media.ResolveURL(r, mediaURL, *p.Image)
		image = &abs
	}

	return Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Image:       image,
		Category: Category{
			ID:    p.Category.ID,
			Name:  p.Category.Name,
			Slug:  p.Category.Slug,
			Order: p.Category.Order,
		},
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
