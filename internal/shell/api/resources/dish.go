package resources

import (
	"net/http"
	"strings"
	"time"

	"github.com/artpar/skybite/internal/core/auth"
	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/shell/store"
	"github.com/manyminds/api2go"
	"github.com/manyminds/api2go/jsonapi"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Dish JSON:API Model
// =============================================================================

// Dish wraps domain.Dish to implement JSON:API interfaces.
type Dish struct {
	ID           string               `json:"-"`
	RestaurantID string               `json:"restaurant_id"`
	Name         string               `json:"name"`
	Description  string               `json:"description,omitempty"`
	Price        decimal.Decimal      `json:"price"`
	ImageURL     string               `json:"image_url,omitempty"`
	Available    bool                 `json:"available"`
	OptionGroups []domain.OptionGroup `json:"option_groups,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// GetID returns the dish ID for JSON:API.
func (d Dish) GetID() string {
	return d.ID
}

// SetID sets the dish ID for JSON:API.
func (d *Dish) SetID(id string) error {
	d.ID = id
	return nil
}

// GetName returns the JSON:API resource type name.
func (d Dish) GetName() string {
	return "dishes"
}

// GetReferences returns the relationships this resource has.
func (d Dish) GetReferences() []jsonapi.Reference {
	return []jsonapi.Reference{{Type: "restaurants", Name: "restaurant"}}
}

// GetReferencedIDs returns the owning restaurant.
func (d Dish) GetReferencedIDs() []jsonapi.ReferenceID {
	if d.RestaurantID == "" {
		return nil
	}
	return []jsonapi.ReferenceID{{ID: d.RestaurantID, Type: "restaurants", Name: "restaurant"}}
}

// DishFromDomain converts a domain.Dish to a JSON:API Dish.
func DishFromDomain(d *domain.Dish) Dish {
	return Dish{
		ID:           d.ID,
		RestaurantID: d.RestaurantID,
		Name:         d.Name,
		Description:  d.Description,
		Price:        d.Price,
		ImageURL:     d.ImageURL,
		Available:    d.Available,
		OptionGroups: d.OptionGroups,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// =============================================================================
// DishResource - CRUD Operations
// =============================================================================

// DishResource implements the api2go resource interface for menu items.
type DishResource struct {
	Store store.Store
}

// NewDishResource creates a new dish resource handler.
func NewDishResource(s store.Store) *DishResource {
	return &DishResource{Store: s}
}

// FindAll lists dishes.
// GET /api/v1/dishes?filter[restaurant_id]=&filter[available]=true
func (r DishResource) FindAll(req api2go.Request) (api2go.Responder, error) {
	opts := ListOptionsFrom(req)
	dishes, err := r.Store.ListDishes(req.PlainRequest.Context(), store.DishFilter{
		RestaurantID:  queryParam(req, "filter[restaurant_id]"),
		AvailableOnly: queryParam(req, "filter[available]") == "true",
		ListOptions:   opts,
	})
	if err != nil {
		return fail(err)
	}

	result := make([]Dish, 0, len(dishes))
	for i := range dishes {
		result = append(result, DishFromDomain(&dishes[i]))
	}
	return &Response{Code: http.StatusOK, Res: result, Meta: listMeta(len(result), opts)}, nil
}

// FindOne returns a single dish.
func (r DishResource) FindOne(id string, req api2go.Request) (api2go.Responder, error) {
	dish, err := r.Store.GetDish(req.PlainRequest.Context(), id)
	if err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusOK, Res: DishFromDomain(dish)}, nil
}

// Create adds a dish to a menu.
// POST /api/v1/dishes
// Auth: admin or the restaurant's merchant
func (r DishResource) Create(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	in, ok := obj.(Dish)
	if !ok {
		return invalidBody()
	}
	if !auth.CanManageRestaurant(auth.FromContext(ctx), in.RestaurantID) {
		return fail(forbidden("not authorized to edit this menu"))
	}

	dish, err := domain.NewDish(in.RestaurantID, in.Name, in.Price, in.OptionGroups)
	if err != nil {
		return fail(err)
	}
	dish.Description = in.Description
	dish.ImageURL = in.ImageURL

	if err := r.Store.CreateDish(ctx, dish); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusCreated, Res: DishFromDomain(dish)}, nil
}

// Update edits a dish. The owning restaurant cannot change.
// PATCH /api/v1/dishes/{id}
func (r DishResource) Update(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	in, ok := obj.(Dish)
	if !ok {
		return invalidBody()
	}
	existing, err := r.Store.GetDish(ctx, in.ID)
	if err != nil {
		return fail(err)
	}
	if !auth.CanManageRestaurant(auth.FromContext(ctx), existing.RestaurantID) {
		return fail(forbidden("not authorized to edit this menu"))
	}

	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return fail(domain.NewValidationError("name", "name is required"))
	case in.Price.IsNegative():
		return fail(domain.NewValidationError("price", "price must not be negative"))
	}
	if err := domain.ValidateOptionGroups(in.OptionGroups); err != nil {
		return fail(err)
	}

	existing.Name = name
	existing.Description = in.Description
	existing.Price = in.Price
	existing.ImageURL = in.ImageURL
	existing.Available = in.Available
	existing.OptionGroups = in.OptionGroups
	existing.UpdatedAt = time.Now().UTC()

	if err := r.Store.UpdateDish(ctx, existing); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusOK, Res: DishFromDomain(existing)}, nil
}

// Delete removes a dish.
func (r DishResource) Delete(id string, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	existing, err := r.Store.GetDish(ctx, id)
	if err != nil {
		return fail(err)
	}
	if !auth.CanManageRestaurant(auth.FromContext(ctx), existing.RestaurantID) {
		return fail(forbidden("not authorized to edit this menu"))
	}
	if err := r.Store.DeleteDish(ctx, id); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusNoContent}, nil
}
