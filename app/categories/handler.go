package categories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
	"github.com/jafsabakes/bakery-api/app/api"
	"github.com/jafsabakes/bakery-api/models"
	"github.com/rs/zerolog"
)

type CategoryResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Order int    `json:"order"`
}

type CategoryProvider interface {
	GetAllCategories(ctx context.Context, search string) ([]models.Category, error)
	GetCategoryByID(ctx context.Context, id uint) (*models.Category, error)
	SlugTaken(ctx context.Context, slug string, excludeID uint) (bool, error)
	CreateCategory(ctx context.Context, category *models.Category) error
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id uint) error
}

type CategoryHandler struct {
	repo         CategoryProvider
	exposeErrors bool
}

func NewCategoryHandler(r CategoryProvider, exposeErrors bool) *CategoryHandler {
	return &CategoryHandler{repo: r, exposeErrors: exposeErrors}
}

// categoryPayload is the decoded body of a create or update. Nil fields
// were absent.
type categoryPayload struct {
	Name  *string      `json:"name"`
	Slug  *string      `json:"slug"`
	Order *json.Number `json:"order"`
}

const (
	msgSlugTaken   = "category with this slug already exists."
	msgSlugMissing = "Name has no letters or numbers to build a slug from; provide a slug."
)

func toResponse(c models.Category) CategoryResponse {
	return CategoryResponse{
		ID:    c.ID,
		Name:  c.Name,
		Slug:  c.Slug,
		Order: c.Order,
	}
}

func (h *CategoryHandler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.GetAllCategories(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		api.InternalError(w, r, "failed to fetch categories", err, h.exposeErrors)
		return
	}

	response := make([]CategoryResponse, len(categories))
	for i, c := range categories {
		response[i] = toResponse(c)
	}

	api.JSONResponse(w, http.StatusOK, response)
}

func (h *CategoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	category, ok := h.lookup(w, r, "Failed to retrieve category")
	if !ok {
		return
	}
	api.JSONResponse(w, http.StatusOK, toResponse(*category))
}

func (h *CategoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	input, err := decodePayload(r)
	if err != nil {
		h.badBody(w, r, err)
		return
	}

	category := &models.Category{}
	fieldErrs, err := h.apply(r.Context(), category, input, false)
	if err != nil {
		api.InternalError(w, r, "Failed to create category", err, h.exposeErrors)
		return
	}
	if !fieldErrs.Empty() {
		zerolog.Ctx(r.Context()).Info().Interface("errors", fieldErrs).Msg("category rejected")
		api.ValidationResponse(w, fieldErrs)
		return
	}

	if err := h.repo.CreateCategory(r.Context(), category); err != nil {
		if errors.Is(err, models.ErrDuplicateSlug) {
			api.ValidationResponse(w, api.FieldErrors{"slug": {msgSlugTaken}})
			return
		}
		api.InternalError(w, r, "Failed to create category", err, h.exposeErrors)
		return
	}

	zerolog.Ctx(r.Context()).Info().Uint("category_id", category.ID).Str("slug", category.Slug).Msg("category created")
	api.JSONResponse(w, http.StatusCreated, toResponse(*category))
}

// HandleUpdate replaces a category; name is required.
func (h *CategoryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// HandlePartialUpdate changes only the supplied fields.
func (h *CategoryHandler) HandlePartialUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *CategoryHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	category, ok := h.lookup(w, r, "Failed to update category")
	if !ok {
		return
	}

	input, err := decodePayload(r)
	if err != nil {
		h.badBody(w, r, err)
		return
	}

	fieldErrs, err := h.apply(r.Context(), category, input, partial)
	if err != nil {
		api.InternalError(w, r, "Failed to update category", err, h.exposeErrors)
		return
	}
	if !fieldErrs.Empty() {
		zerolog.Ctx(r.Context()).Info().Uint("category_id", category.ID).Interface("errors", fieldErrs).Msg("category update rejected")
		api.ValidationResponse(w, fieldErrs)
		return
	}

	if err := h.repo.UpdateCategory(r.Context(), category); err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateSlug):
			api.ValidationResponse(w, api.FieldErrors{"slug": {msgSlugTaken}})
		case errors.Is(err, models.ErrCategoryNotFound):
			api.ErrorResponse(w, http.StatusNotFound, "Category not found")
		default:
			api.InternalError(w, r, "Failed to update category", err, h.exposeErrors)
		}
		return
	}

	api.JSONResponse(w, http.StatusOK, toResponse(*category))
}

func (h *CategoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		api.ErrorResponse(w, http.StatusNotFound, "Category not found")
		return
	}

	err := h.repo.DeleteCategory(r.Context(), id)
	switch {
	case err == nil:
		zerolog.Ctx(r.Context()).Info().Uint("category_id", id).Msg("category deleted")
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, models.ErrCategoryNotFound):
		api.ErrorResponse(w, http.StatusNotFound, "Category not found")
	case errors.Is(err, models.ErrCategoryInUse):
		api.ErrorResponse(w, http.StatusConflict, "Category has products and cannot be deleted")
	default:
		api.InternalError(w, r, "Failed to delete category", err, h.exposeErrors)
	}
}

func (h *CategoryHandler) lookup(w http.ResponseWriter, r *http.Request, failure string) (*models.Category, bool) {
	id, ok := pathID(r)
	if !ok {
		api.ErrorResponse(w, http.StatusNotFound, "Category not found")
		return nil, false
	}

	category, err := h.repo.GetCategoryByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrCategoryNotFound) {
			api.ErrorResponse(w, http.StatusNotFound, "Category not found")
			return nil, false
		}
		api.InternalError(w, r, failure, err, h.exposeErrors)
		return nil, false
	}
	return category, true
}

// apply validates input and copies it onto category. category is left
// untouched when any field error is returned.
func (h *CategoryHandler) apply(ctx context.Context, category *models.Category, input categoryPayload, partial bool) (api.FieldErrors, error) {
	fieldErrs := api.FieldErrors{}

	name := category.Name
	if input.Name != nil {
		name = strings.TrimSpace(*input.Name)
		fieldErrs.Check("name", name, "required,max=100")
	} else if !partial {
		fieldErrs.Add("name", api.MsgRequired)
	}

	newSlug := category.Slug
	switch {
	case input.Slug != nil && strings.TrimSpace(*input.Slug) != "":
		newSlug = strings.TrimSpace(*input.Slug)
		fieldErrs.Check("slug", newSlug, "max=50,slug")
	case input.Slug != nil && partial:
		fieldErrs.Add("slug", api.MsgBlank)
	case newSlug == "" || (input.Slug != nil && !partial):
		newSlug = slug.Make(name)
		if len(newSlug) > 50 {
			newSlug = strings.Trim(newSlug[:50], "-")
		}
		if newSlug == "" && name != "" {
			fieldErrs.Add("slug", msgSlugMissing)
		}
	}

	order := category.Order
	if input.Order != nil {
		n, err := strconv.Atoi(input.Order.String())
		if err != nil {
			fieldErrs.Add("order", "A valid integer is required.")
		} else {
			order = n
		}
	}

	if _, bad := fieldErrs["slug"]; !bad && newSlug != "" {
		taken, err := h.repo.SlugTaken(ctx, newSlug, category.ID)
		if err != nil {
			return nil, fmt.Errorf("checking slug %q: %w", newSlug, err)
		}
		if taken {
			fieldErrs.Add("slug", msgSlugTaken)
		}
	}

	if !fieldErrs.Empty() {
		return fieldErrs, nil
	}

	category.Name = name
	category.Slug = newSlug
	category.Order = order
	return fieldErrs, nil
}

func (h *CategoryHandler) badBody(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Info().Err(err).Msg("invalid category body")
	if errors.Is(err, errUnsupportedMedia) {
		api.ErrorResponse(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}
	api.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
}

var errUnsupportedMedia = errors.New("unsupported media type")

// decodePayload reads a JSON, urlencoded or multipart body.
func decodePayload(r *http.Request) (categoryPayload, error) {
	var input categoryPayload

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json", "":
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			return input, err
		}
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return input, err
		}
		if v, ok := formValue(r, "name"); ok {
			input.Name = &v
		}
		if v, ok := formValue(r, "slug"); ok {
			input.Slug = &v
		}
		if v, ok := formValue(r, "order"); ok && v != "" {
			n := json.Number(strings.TrimSpace(v))
			input.Order = &n
		}
	default:
		return input, fmt.Errorf("%w %q in request", errUnsupportedMedia, mediaType)
	}
	return input, nil
}

func formValue(r *http.Request, key string) (string, bool) {
	values, ok := r.PostForm[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func pathID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
