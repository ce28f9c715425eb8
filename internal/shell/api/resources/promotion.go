package resources

import (
	"net/http"
	"time"

	"github.com/artpar/skybite/internal/core/auth"
	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/shell/store"
	"github.com/manyminds/api2go"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Promotion JSON:API Model
// =============================================================================

// Promotion wraps domain.Promotion. usage_count is read-only; redemptions
// only happen at checkout.
type Promotion struct {
	ID                 string                `json:"-"`
	Code               string                `json:"code"`
	Description        string                `json:"description,omitempty"`
	DiscountPercentage int                   `json:"discount_percentage"`
	MinOrderSubtotal   decimal.Decimal       `json:"min_order_subtotal"`
	ExpiryDate         time.Time             `json:"expiry_date"`
	UsageLimit         int                   `json:"usage_limit"`
	UsageCount         int                   `json:"usage_count"`
	IsEnabled          bool                  `json:"is_enabled"`
	Scope              domain.PromotionScope `json:"scope"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// GetID returns the promotion ID for JSON:API.
func (p Promotion) GetID() string {
	return p.ID
}

// SetID sets the promotion ID for JSON:API.
func (p *Promotion) SetID(id string) error {
	p.ID = id
	return nil
}

// GetName returns the JSON:API resource type name.
func (p Promotion) GetName() string {
	return "promotions"
}

// PromotionFromDomain converts a domain.Promotion.
func PromotionFromDomain(p *domain.Promotion) Promotion {
	return Promotion{
		ID:                 p.ID,
		Code:               p.Code,
		Description:        p.Description,
		DiscountPercentage: p.DiscountPercentage,
		MinOrderSubtotal:   p.MinOrderSubtotal,
		ExpiryDate:         p.ExpiryDate,
		UsageLimit:         p.UsageLimit,
		UsageCount:         p.UsageCount,
		IsEnabled:          p.IsEnabled,
		Scope:              p.Scope,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

// =============================================================================
// PromotionResource - CRUD Operations
// =============================================================================

// PromotionResource implements the api2go resource interface for promotions.
type PromotionResource struct {
	Store store.Store
}

// NewPromotionResource creates a new promotion resource handler.
func NewPromotionResource(s store.Store) *PromotionResource {
	return &PromotionResource{Store: s}
}

// FindAll lists promotions the caller manages.
// GET /api/v1/promotions?filter[restaurant_id]=
// Auth: admin (all), merchant (their restaurant's)
func (r PromotionResource) FindAll(req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	authCtx := auth.FromContext(ctx)

	filter := store.PromotionFilter{ListOptions: ListOptionsFrom(req)}
	switch {
	case authCtx.IsAdmin():
		filter.RestaurantID = queryParam(req, "filter[restaurant_id]")
	case authCtx.Role == auth.RoleMerchant && authCtx.RestaurantID != "":
		filter.RestaurantID = authCtx.RestaurantID
	default:
		return fail(forbidden("only admins and merchants list promotions"))
	}

	promotions, err := r.Store.ListPromotions(ctx, filter)
	if err != nil {
		return fail(err)
	}
	result := make([]Promotion, 0, len(promotions))
	for i := range promotions {
		result = append(result, PromotionFromDomain(&promotions[i]))
	}
	return &Response{Code: http.StatusOK, Res: result, Meta: listMeta(len(result), filter.ListOptions)}, nil
}

// FindOne returns a promotion the caller manages.
func (r PromotionResource) FindOne(id string, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	p, err := r.Store.GetPromotion(ctx, id)
	if err != nil {
		return fail(err)
	}
	if !auth.CanManagePromotion(auth.FromContext(ctx), p.Scope) {
		return fail(store.NewStoreError("GetPromotion", "promotion", id, "promotion not found", store.ErrNotFound))
	}
	return &Response{Code: http.StatusOK, Res: PromotionFromDomain(p)}, nil
}

// Create adds a promotion. A merchant's promotion defaults to their
// restaurant's scope.
// POST /api/v1/promotions
func (r PromotionResource) Create(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	authCtx := auth.FromContext(ctx)

	in, ok := obj.(Promotion)
	if !ok {
		return invalidBody()
	}
	scope := in.Scope
	if scope.Kind == "" {
		if authCtx.Role == auth.RoleMerchant {
			scope = domain.RestaurantScope(authCtx.RestaurantID)
		} else {
			scope = domain.GlobalScope()
		}
	}
	if !auth.CanManagePromotion(authCtx, scope) {
		return fail(forbidden("not authorized to manage promotions for this scope"))
	}

	p, err := domain.NewPromotion(in.Code, in.DiscountPercentage, in.MinOrderSubtotal, in.ExpiryDate, in.UsageLimit, scope)
	if err != nil {
		return fail(err)
	}
	p.Description = in.Description

	if err := r.Store.CreatePromotion(ctx, p); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusCreated, Res: PromotionFromDomain(p)}, nil
}

// Update edits a promotion. The code and usage count are kept.
// PATCH /api/v1/promotions/{id}
func (r PromotionResource) Update(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	authCtx := auth.FromContext(ctx)

	in, ok := obj.(Promotion)
	if !ok {
		return invalidBody()
	}
	existing, err := r.Store.GetPromotion(ctx, in.ID)
	if err != nil {
		return fail(err)
	}
	if !auth.CanManagePromotion(authCtx, existing.Scope) || !auth.CanManagePromotion(authCtx, in.Scope) {
		return fail(forbidden("not authorized to manage promotions for this scope"))
	}

	existing.Description = in.Description
	existing.DiscountPercentage = in.DiscountPercentage
	existing.MinOrderSubtotal = in.MinOrderSubtotal
	existing.ExpiryDate = in.ExpiryDate.UTC()
	existing.UsageLimit = in.UsageLimit
	existing.IsEnabled = in.IsEnabled
	existing.Scope = in.Scope
	if err := existing.Validate(); err != nil {
		return fail(err)
	}
	existing.UpdatedAt = time.Now().UTC()

	if err := r.Store.UpdatePromotion(ctx, existing); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusOK, Res: PromotionFromDomain(existing)}, nil
}

// Delete removes a promotion.
func (r PromotionResource) Delete(id string, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	existing, err := r.Store.GetPromotion(ctx, id)
	if err != nil {
		return fail(err)
	}
	if !auth.CanManagePromotion(auth.FromContext(ctx), existing.Scope) {
		return fail(forbidden("not authorized to manage promotions for this scope"))
	}
	if err := r.Store.DeletePromotion(ctx, id); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusNoContent}, nil
}
