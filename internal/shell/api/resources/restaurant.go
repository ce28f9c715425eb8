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
)

// =============================================================================
// Restaurant JSON:API Model
// =============================================================================

// Restaurant wraps domain.Restaurant to implement JSON:API interfaces.
type Restaurant struct {
	ID          string          `json:"-"`
	OwnerID     string          `json:"owner_id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description,omitempty"`
	Address     string          `json:"address"`
	Location    domain.GeoPoint `json:"location"`
	CategoryID  string          `json:"category_id,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	IsOpen      bool            `json:"is_open"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// GetID returns the restaurant ID for JSON:API.
func (r Restaurant) GetID() string {
	return r.ID
}

// SetID sets the restaurant ID for JSON:API.
func (r *Restaurant) SetID(id string) error {
	r.ID = id
	return nil
}

// GetName returns the JSON:API resource type name.
func (r Restaurant) GetName() string {
	return "restaurants"
}

// GetReferences returns the relationships this resource has.
func (r Restaurant) GetReferences() []jsonapi.Reference {
	return []jsonapi.Reference{
		{Type: "categories", Name: "category"},
		{Type: "dishes", Name: "dishes"},
	}
}

// GetReferencedIDs returns the category link. Dishes are listed through
// /dishes?filter[restaurant_id]=.
func (r Restaurant) GetReferencedIDs() []jsonapi.ReferenceID {
	if r.CategoryID == "" {
		return nil
	}
	return []jsonapi.ReferenceID{{ID: r.CategoryID, Type: "categories", Name: "category"}}
}

// RestaurantFromDomain converts a domain.Restaurant to a JSON:API Restaurant.
func RestaurantFromDomain(r *domain.Restaurant) Restaurant {
	return Restaurant{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		Address:     r.Address,
		Location:    r.Location,
		CategoryID:  r.CategoryID,
		ImageURL:    r.ImageURL,
		IsOpen:      r.IsOpen,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// =============================================================================
// RestaurantResource - CRUD Operations
// =============================================================================

// RestaurantResource implements the api2go resource interface for restaurants.
type RestaurantResource struct {
	Store store.Store
}

// NewRestaurantResource creates a new restaurant resource handler.
func NewRestaurantResource(s store.Store) *RestaurantResource {
	return &RestaurantResource{Store: s}
}

// FindAll lists restaurants.
// GET /api/v1/restaurants?filter[category_id]=&filter[owner_id]=&filter[open]=true
// Auth: public
func (r RestaurantResource) FindAll(req api2go.Request) (api2go.Responder, error) {
	opts := ListOptionsFrom(req)
	filter := store.RestaurantFilter{
		CategoryID:  queryParam(req, "filter[category_id]"),
		OwnerID:     queryParam(req, "filter[owner_id]"),
		OpenOnly:    queryParam(req, "filter[open]") == "true",
		ListOptions: opts,
	}

	restaurants, err := r.Store.ListRestaurants(req.PlainRequest.Context(), filter)
	if err != nil {
		return fail(err)
	}

	result := make([]Restaurant, 0, len(restaurants))
	for i := range restaurants {
		result = append(result, RestaurantFromDomain(&restaurants[i]))
	}
	return &Response{Code: http.StatusOK, Res: result, Meta: listMeta(len(result), opts)}, nil
}

// FindOne returns a single restaurant.
// GET /api/v1/restaurants/{id}
func (r RestaurantResource) FindOne(id string, req api2go.Request) (api2go.Responder, error) {
	restaurant, err := r.Store.GetRestaurant(req.PlainRequest.Context(), id)
	if err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusOK, Res: RestaurantFromDomain(restaurant)}, nil
}

// Create registers a restaurant. New restaurants start closed.
// POST /api/v1/restaurants
// Auth: admin. owner_id defaults to the caller.
func (r RestaurantResource) Create(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	authCtx := auth.FromContext(ctx)
	if !authCtx.Authenticated {
		return fail(auth.ErrUnauthenticated)
	}
	if !auth.CanCreateRestaurant(authCtx) {
		return fail(forbidden("only admins register restaurants"))
	}

	in, ok := obj.(Restaurant)
	if !ok {
		return invalidBody()
	}
	ownerID := in.OwnerID
	if ownerID == "" {
		ownerID = authCtx.UserID
	}

	restaurant, err := domain.NewRestaurant(ownerID, in.Name, in.Address, in.Location)
	if err != nil {
		return fail(err)
	}
	restaurant.Description = in.Description
	restaurant.CategoryID = in.CategoryID
	restaurant.ImageURL = in.ImageURL

	if err := r.Store.CreateRestaurant(ctx, restaurant); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusCreated, Res: RestaurantFromDomain(restaurant)}, nil
}

// Update edits a restaurant, including opening and closing it.
// PATCH /api/v1/restaurants/{id}
// Auth: admin or the restaurant's merchant
func (r RestaurantResource) Update(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	authCtx := auth.FromContext(ctx)

	in, ok := obj.(Restaurant)
	if !ok {
		return invalidBody()
	}
	existing, err := r.Store.GetRestaurant(ctx, in.ID)
	if err != nil {
		return fail(err)
	}
	if !auth.CanManageRestaurant(authCtx, existing.ID) {
		return fail(forbidden("not authorized to modify this restaurant"))
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fail(domain.NewValidationError("name", "name is required"))
	}
	if !in.Location.Valid() {
		return fail(domain.NewValidationError("location", "location is out of range"))
	}
	if name != existing.Name {
		existing.Slug = domain.Slugify(name)
	}
	existing.Name = name
	existing.Description = in.Description
	existing.Address = in.Address
	existing.Location = in.Location
	existing.CategoryID = in.CategoryID
	existing.ImageURL = in.ImageURL
	existing.IsOpen = in.IsOpen
	// Ownership moves only by an admin.
	if authCtx.IsAdmin() && in.OwnerID != "" {
		existing.OwnerID = in.OwnerID
	}
	existing.UpdatedAt = time.Now().UTC()

	if err := r.Store.UpdateRestaurant(ctx, existing); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusOK, Res: RestaurantFromDomain(existing)}, nil
}

// Delete removes a restaurant and its menu.
// DELETE /api/v1/restaurants/{id}
// Auth: admin
func (r RestaurantResource) Delete(id string, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	if !auth.CanCreateRestaurant(auth.FromContext(ctx)) {
		return fail(forbidden("only admins remove restaurants"))
	}
	if err := r.Store.DeleteRestaurant(ctx, id); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusNoContent}, nil
}
