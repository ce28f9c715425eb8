package resources

import (
	"net/http"
	"strings"
	"time"

	"github.com/artpar/skybite/internal/core/auth"
	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/shell/store"
	"github.com/manyminds/api2go"
)

// =============================================================================
// Category JSON:API Model
// =============================================================================

// Category wraps domain.Category for JSON:API.
type Category struct {
	ID        string    `json:"-"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

func (c Category) GetID() string { return c.ID }

func (c *Category) SetID(id string) error {
	c.ID = id
	return nil
}

// GetName returns the JSON:API resource type name.
func (c Category) GetName() string { return "categories" }

// CategoryFromDomain converts a domain.Category.
func CategoryFromDomain(c *domain.Category) Category {
	return Category{ID: c.ID, Name: c.Name, Slug: c.Slug, CreatedAt: c.CreatedAt}
}

// =============================================================================
// CategoryResource - CRUD Operations
// =============================================================================

// CategoryResource serves /api/v1/categories. Anyone may browse; only admins
// write.
type CategoryResource struct {
	Store store.Store
}

// NewCategoryResource creates a new category resource handler.
func NewCategoryResource(s store.Store) *CategoryResource {
	return &CategoryResource{Store: s}
}

func (r CategoryResource) FindAll(req api2go.Request) (api2go.Responder, error) {
	opts := ListOptionsFrom(req)
	categories, err := r.Store.ListCategories(req.PlainRequest.Context(), opts)
	if err != nil {
		return fail(err)
	}

	result := make([]Category, 0, len(categories))
	for i := range categories {
		result = append(result, CategoryFromDomain(&categories[i]))
	}
	return &Response{Code: http.StatusOK, Res: result, Meta: listMeta(len(result), opts)}, nil
}

func (r CategoryResource) FindOne(id string, req api2go.Request) (api2go.Responder, error) {
	c, err := r.Store.GetCategory(req.PlainRequest.Context(), id)
	if err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusOK, Res: CategoryFromDomain(c)}, nil
}

func (r CategoryResource) Create(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	if !auth.CanManageCategories(auth.FromContext(ctx)) {
		return fail(forbidden("only admins manage categories"))
	}

	in, ok := obj.(Category)
	if !ok {
		return invalidBody()
	}
	c, err := domain.NewCategory(in.Name)
	if err != nil {
		return fail(err)
	}
	if err := r.Store.CreateCategory(ctx, c); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusCreated, Res: CategoryFromDomain(c)}, nil
}

func (r CategoryResource) Update(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	if !auth.CanManageCategories(auth.FromContext(ctx)) {
		return fail(forbidden("only admins manage categories"))
	}

	in, ok := obj.(Category)
	if !ok {
		return invalidBody()
	}
	existing, err := r.Store.GetCategory(ctx, in.ID)
	if err != nil {
		return fail(err)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fail(domain.NewValidationError("name", "name is required"))
	}
	existing.Name = name
	existing.Slug = domain.Slugify(name)
	if err := r.Store.UpdateCategory(ctx, existing); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusOK, Res: CategoryFromDomain(existing)}, nil
}

func (r CategoryResource) Delete(id string, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	if !auth.CanManageCategories(auth.FromContext(ctx)) {
		return fail(forbidden("only admins manage categories"))
	}
	if err := r.Store.DeleteCategory(ctx, id); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusNoContent}, nil
}
