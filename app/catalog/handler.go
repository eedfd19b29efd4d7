package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jafsabakes/bakery-api/app/api"
	"github.com/jafsabakes/bakery-api/app/media"
	"github.com/jafsabakes/bakery-api/models"
	"github.com/rs/zerolog"
)

type ProductProvider interface {
	GetFilteredProducts(ctx context.Context, filters models.ProductFilters) ([]models.Product, error)
	GetByID(ctx context.Context, id uint) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id uint) error
}

// CategoryLookup resolves the category_id of a product write.
type CategoryLookup interface {
	GetCategoryByID(ctx context.Context, id uint) (*models.Category, error)
}

type Options struct {
	MediaURL           string
	MaxUploadBytes     int64
	ExposeErrorDetails bool
}

type CatalogHandler struct {
	repo       ProductProvider
	categories CategoryLookup
	store      media.Store
	opts       Options
}

func NewCatalogHandler(r ProductProvider, categories CategoryLookup, store media.Store, opts Options) *CatalogHandler {
	if opts.MediaURL == "" {
		opts.MediaURL = "/media/"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 5 << 20
	}
	return &CatalogHandler{
		repo:       r,
		categories: categories,
		store:      store,
		opts:       opts,
	}
}

func (h *CatalogHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filters := models.ProductFilters{
		CategorySlug: query.Get("category"),
		Search:       query.Get("search"),
	}
	if query.Has("active") {
		active := strings.ToLower(query.Get("active")) == "true"
		filters.Active = &active
	}

	res, err := h.repo.GetFilteredProducts(r.Context(), filters)
	if err != nil {
		api.InternalError(w, r, "failed to get products", err, h.opts.ExposeErrorDetails)
		return
	}

	products := make([]Product, len(res))
	for i, p := range res {
		products[i] = toProduct(r, h.opts.MediaURL, p)
	}

	api.JSONResponse(w, http.StatusOK, products)
}

func (h *CatalogHandler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, ok := h.lookup(w, r, "Failed to retrieve product")
	if !ok {
		return
	}
	api.JSONResponse(w, http.StatusOK, toProduct(r, h.opts.MediaURL, *product))
}

func (h *CatalogHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const failure = "Failed to create product"
	logger := zerolog.Ctx(r.Context())

	form, ok := h.readForm(w, r)
	if !ok {
		return
	}
	logger.Info().
		Interface("data", form.values).
		Strs("files", form.fileNames()).
		Msg("creating product")

	if missing := missingFields(form.values); len(missing) > 0 {
		logger.Info().Strs("missing_fields", missing).Msg("product rejected")
		api.JSONResponse(w, http.StatusBadRequest, map[string]any{
			"error":          "Missing required fields: " + strings.Join(missing, ", "),
			"missing_fields": missing,
		})
		return
	}

	in, fieldErrs, err := decodeProduct(r.Context(), h.categories, form, false, h.opts.MaxUploadBytes)
	if err != nil {
		api.InternalError(w, r, failure, err, h.opts.ExposeErrorDetails)
		return
	}
	if !fieldErrs.Empty() {
		logger.Error().Interface("errors", fieldErrs).Msg("product rejected")
		api.ValidationResponse(w, fieldErrs)
		return
	}

	product := &models.Product{IsActive: true}
	in.applyTo(product)

	stored, err := h.storeImage(r.Context(), product, in)
	if err != nil {
		api.InternalError(w, r, failure, err, h.opts.ExposeErrorDetails)
		return
	}

	if err := h.repo.CreateProduct(r.Context(), product); err != nil {
		h.discardImage(r.Context(), stored)
		if errors.Is(err, models.ErrCategoryNotFound) {
			api.ValidationResponse(w, api.FieldErrors{"category_id": {invalidPK(strconv.FormatUint(uint64(product.CategoryID), 10))}})
			return
		}
		api.InternalError(w, r, failure, err, h.opts.ExposeErrorDetails)
		return
	}

	logger.Info().Uint("product_id", product.ID).Msg("product created")
	api.JSONResponse(w, http.StatusCreated, toProduct(r, h.opts.MediaURL, *product))
}

// HandleUpdate replaces a product. The image is kept unless a new one is sent.
func (h *CatalogHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// HandlePartialUpdate changes only the supplied fields.
func (h *CatalogHandler) HandlePartialUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *CatalogHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	const failure = "Failed to update product"
	logger := zerolog.Ctx(r.Context())

	product, ok := h.lookup(w, r, failure)
	if !ok {
		return
	}

	form, ok := h.readForm(w, r)
	if !ok {
		return
	}
	logger.Info().
		Uint("product_id", product.ID).
		Bool("partial", partial).
		Interface("data", form.values).
		Strs("files", form.fileNames()).
		Msg("updating product")

	in, fieldErrs, err := decodeProduct(r.Context(), h.categories, form, partial, h.opts.MaxUploadBytes)
	if err != nil {
		api.InternalError(w, r, failure, err, h.opts.ExposeErrorDetails)
		return
	}
	if !fieldErrs.Empty() {
		logger.Error().Uint("product_id", product.ID).Interface("errors", fieldErrs).Msg("product update rejected")
		api.ValidationResponse(w, fieldErrs)
		return
	}

	in.applyTo(product)

	stored, err := h.storeImage(r.Context(), product, in)
	if err != nil {
		api.InternalError(w, r, failure, err, h.opts.ExposeErrorDetails)
		return
	}

	if err := h.repo.UpdateProduct(r.Context(), product); err != nil {
		h.discardImage(r.Context(), stored)
		switch {
		case errors.Is(err, models.ErrCategoryNotFound):
			api.ValidationResponse(w, api.FieldErrors{"category_id": {invalidPK(strconv.FormatUint(uint64(product.CategoryID), 10))}})
		case errors.Is(err, models.ErrProductNotFound):
			api.ErrorResponse(w, http.StatusNotFound, "Product not found")
		default:
			api.InternalError(w, r, failure, err, h.opts.ExposeErrorDetails)
		}
		return
	}

	api.JSONResponse(w, http.StatusOK, toProduct(r, h.opts.MediaURL, *product))
}

func (h *CatalogHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.ErrorResponse(w, http.StatusNotFound, "Product not found")
		return
	}

	if err := h.repo.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			api.ErrorResponse(w, http.StatusNotFound, "Product not found")
			return
		}
		api.InternalError(w, r, "Failed to delete product", err, h.opts.ExposeErrorDetails)
		return
	}

	zerolog.Ctx(r.Context()).Info().Uint("product_id", id).Msg("product deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) lookup(w http.ResponseWriter, r *http.Request, failure string) (*models.Product, bool) {
	id, ok := pathID(r)
	if !ok {
		api.ErrorResponse(w, http.StatusNotFound, "Product not found")
		return nil, false
	}

	product, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			api.ErrorResponse(w, http.StatusNotFound, "Product not found")
			return nil, false
		}
		api.InternalError(w, r, failure, err, h.opts.ExposeErrorDetails)
		return nil, false
	}
	return product, true
}

func (h *CatalogHandler) readForm(w http.ResponseWriter, r *http.Request) (*productForm, bool) {
	form, err := readProductForm(w, r, h.opts.MaxUploadBytes)
	if err == nil {
		return form, true
	}

	zerolog.Ctx(r.Context()).Info().Err(err).Msg("unreadable product body")
	switch {
	case errors.Is(err, errUnsupportedMedia):
		api.ErrorResponse(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, errBodyTooLarge):
		api.ErrorResponse(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes", h.opts.MaxUploadBytes))
	default:
		api.ErrorResponse(w, http.StatusBadRequest, err.Error())
	}
	return nil, false
}

// storeImage saves an uploaded image and returns its reference, or "" when
// the request carried none.
func (h *CatalogHandler) storeImage(ctx context.Context, product *models.Product, in productInput) (string, error) {
	if in.Image == nil {
		return "", nil
	}
	ref, err := h.store.Save(ctx, in.Image)
	if err != nil {
		return "", fmt.Errorf("storing image %q: %w", in.Image.Filename, err)
	}
	product.Image = &ref
	return ref, nil
}

// discardImage removes an image saved for a write that was not committed.
func (h *CatalogHandler) discardImage(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := h.store.Delete(context.WithoutCancel(ctx), ref); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("image", ref).Msg("failed to remove orphaned image")
	}
}

func pathID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
