// Package checkout owns the customer's cart, price quotes and order placement.
// This is part of the Imperative Shell - it loads state from the store and
// calls the pure pricing, promotion and catalog packages.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/artpar/skybite/internal/core/catalog"
	"github.com/artpar/skybite/internal/core/dispatch"
	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/core/pricing"
	"github.com/artpar/skybite/internal/core/promotion"
	"github.com/artpar/skybite/internal/core/validation"
	"github.com/artpar/skybite/internal/shell/store"
	"github.com/shopspring/decimal"
)

// Geocoder resolves a free-text address to coordinates.
type Geocoder interface {
	Locate(ctx context.Context, address string) (domain.GeoPoint, error)
}

// Config holds the fee schedule.
type Config struct {
	ServiceFee decimal.Decimal
	Delivery   pricing.DeliveryRule
}

// Service provides cart and checkout operations.
type Service struct {
	store    store.Store
	geocoder Geocoder
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a checkout service. geocoder may be nil, in which case
// addresses without coordinates are priced at the base delivery fee.
func NewService(s store.Store, geocoder Geocoder, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    s,
		geocoder: geocoder,
		cfg:      cfg,
		logger:   logger.With("component", "checkout"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// Cart
// =============================================================================

// GetCart returns the customer's cart, empty if none exists yet.
func (s *Service) GetCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	return s.store.GetCart(ctx, customerID)
}

// AddItem prices req from the catalog and adds it to the customer's cart.
func (s *Service) AddItem(ctx context.Context, customerID string, req catalog.ItemRequest) (*domain.Cart, domain.CartItem, error) {
	if field, msg := validation.ValidateQuantity(req.Quantity, false); field != "" {
		return nil, domain.CartItem{}, domain.NewValidationError(field, msg)
	}

	dish, err := s.store.GetDish(ctx, req.DishID)
	if err != nil {
		return nil, domain.CartItem{}, err
	}
	restaurant, err := s.store.GetRestaurant(ctx, dish.RestaurantID)
	if err != nil {
		return nil, domain.CartItem{}, err
	}
	if ok, _ := validation.CanOrderFrom(restaurant.IsOpen); !ok {
		return nil, domain.CartItem{}, domain.ErrRestaurantClosed
	}

	item, err := catalog.ResolveItem(*dish, req)
	if err != nil {
		return nil, domain.CartItem{}, err
	}

	cart, err := s.store.GetCart(ctx, customerID)
	if err != nil {
		return nil, domain.CartItem{}, err
	}
	line, err := cart.Add(dish.RestaurantID, item, s.now())
	if err != nil {
		return nil, domain.CartItem{}, err
	}
	if line.Quantity > validation.MaxLineQuantity {
		return nil, domain.CartItem{}, domain.NewValidationError("quantity",
			fmt.Sprintf("quantity must be at most %d", validation.MaxLineQuantity))
	}

	if err := s.store.SaveCart(ctx, cart); err != nil {
		return nil, domain.CartItem{}, err
	}
	return cart, line, nil
}

// UpdateItem sets a line's quantity. Zero removes the line.
func (s *Service) UpdateItem(ctx context.Context, customerID, lineID string, quantity int) (*domain.Cart, error) {
	if field, msg := validation.ValidateQuantity(quantity, true); field != "" {
		return nil, domain.NewValidationError(field, msg)
	}
	cart, err := s.store.GetCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := cart.SetQuantity(lineID, quantity, s.now()); err != nil {
		return nil, err
	}
	return cart, s.saveOrDrop(ctx, cart)
}

// RemoveItem deletes a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, customerID, lineID string) (*domain.Cart, error) {
	cart, err := s.store.GetCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := cart.Remove(lineID, s.now()); err != nil {
		return nil, err
	}
	return cart, s.saveOrDrop(ctx, cart)
}

// ClearCart empties the customer's cart.
func (s *Service) ClearCart(ctx context.Context, customerID string) error {
	return s.store.DeleteCart(ctx, customerID)
}

// saveOrDrop persists a cart, deleting the row once the last line is gone.
func (s *Service) saveOrDrop(ctx context.Context, cart *domain.Cart) error {
	if cart.IsEmpty() {
		return s.store.DeleteCart(ctx, cart.CustomerID)
	}
	return s.store.SaveCart(ctx, cart)
}

// =============================================================================
// Quote
// =============================================================================

// QuoteRequest is the input shared by Quote and Checkout.
type QuoteRequest struct {
	PromotionCode string                 `json:"promotion_code,omitempty"`
	Address       domain.DeliveryAddress `json:"address"`
}

// QuoteResult is a priced cart.
type QuoteResult struct {
	pricing.Quote
	DistanceKm float64                `json:"distance_km"`
	Promotion  *promotion.Evaluation  `json:"promotion,omitempty"`
	Address    domain.DeliveryAddress `json:"address"`

	promo *domain.Promotion
}

// Quote prices the customer's current cart.
func (s *Service) Quote(ctx context.Context, customerID string, req QuoteRequest) (*QuoteResult, error) {
	cart, err := s.store.GetCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, domain.ErrCartEmpty
	}
	return s.quote(ctx, cart, req)
}

func (s *Service) quote(ctx context.Context, cart *domain.Cart, req QuoteRequest) (*QuoteResult, error) {
	restaurant, err := s.store.GetRestaurant(ctx, cart.RestaurantID)
	if err != nil {
		return nil, err
	}
	if err := s.refreshLines(ctx, cart); err != nil {
		return nil, err
	}

	address, err := s.locate(ctx, req.Address)
	if err != nil {
		return nil, err
	}

	var distance float64
	if !address.Location.IsZero() && !restaurant.Location.IsZero() {
		distance = dispatch.Haversine(restaurant.Location, address.Location)
	}

	subtotal := pricing.Subtotal(cart.Items)
	result := &QuoteResult{DistanceKm: distance, Address: address}

	discount := decimal.Zero
	if req.PromotionCode != "" {
		ev, p, err := s.evaluate(ctx, req.PromotionCode, promotion.Check{
			Subtotal:     subtotal,
			RestaurantID: cart.RestaurantID,
			Now:          s.now(),
		})
		if err != nil {
			return nil, err
		}
		result.Promotion = &ev
		if ev.Applicable {
			discount = ev.Discount
			result.promo = p
		}
	}

	fees := pricing.Fees{
		Service:  s.cfg.ServiceFee,
		Delivery: s.cfg.Delivery.Fee(distance),
	}
	result.Quote = pricing.BuildQuote(cart.Items, fees, discount)
	return result, nil
}

// refreshLines re-prices every cart line from the catalog in place. A dish
// that was deleted or withdrawn since it was added fails the whole cart.
func (s *Service) refreshLines(ctx context.Context, cart *domain.Cart) error {
	for i, item := range cart.Items {
		dish, err := s.store.GetDish(ctx, item.DishID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrDishUnavailable, item.Name)
		}
		if err != nil {
			return err
		}
		fresh, err := catalog.Refresh(*dish, item)
		if err != nil {
			return err
		}
		cart.Items[i] = fresh
	}
	return nil
}

// locate fills in coordinates for an address typed without a pin.
func (s *Service) locate(ctx context.Context, address domain.DeliveryAddress) (domain.DeliveryAddress, error) {
	if !address.Location.IsZero() || address.Line == "" || s.geocoder == nil {
		return address, nil
	}
	point, err := s.geocoder.Locate(ctx, address.Line)
	if err != nil {
		return address, err
	}
	address.Location = point
	return address, nil
}

// CheckPromotion evaluates a code against a hypothetical order.
func (s *Service) CheckPromotion(ctx context.Context, code, restaurantID string, subtotal decimal.Decimal) (promotion.Evaluation, error) {
	ev, _, err := s.evaluate(ctx, code, promotion.Check{
		Subtotal:     subtotal,
		RestaurantID: restaurantID,
		Now:          s.now(),
	})
	return ev, err
}

func (s *Service) evaluate(ctx context.Context, code string, check promotion.Check) (promotion.Evaluation, *domain.Promotion, error) {
	p, err := s.store.GetPromotionByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return promotion.Unknown(domain.NormalizeCode(code)), nil, nil
		}
		return promotion.Evaluation{}, nil, err
	}
	return promotion.Evaluate(*p, check), p, nil
}

// =============================================================================
// Checkout
// =============================================================================

// CheckoutRequest places the customer's cart as an order.
type CheckoutRequest struct {
	QuoteRequest
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	Note          string               `json:"note,omitempty"`
}

// Checkout validates the request, re-prices the cart and places the order.
// The order insert, the promotion redemption, the cart clear and the
// order.placed event commit together or not at all.
func (s *Service) Checkout(ctx context.Context, customerID string, req CheckoutRequest) (*domain.Order, error) {
	if field, msg := validation.ValidateCheckoutFields(string(req.PaymentMethod), req.Address.Line, req.Note); field != "" {
		return nil, domain.NewValidationError(field, msg)
	}

	cart, err := s.store.GetCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, domain.ErrCartEmpty
	}

	restaurant, err := s.store.GetRestaurant(ctx, cart.RestaurantID)
	if err != nil {
		return nil, err
	}
	if ok, _ := validation.CanOrderFrom(restaurant.IsOpen); !ok {
		return nil, domain.ErrRestaurantClosed
	}

	q, err := s.quote(ctx, cart, req.QuoteRequest)
	if err != nil {
		return nil, err
	}
	if q.Promotion != nil && !q.Promotion.Applicable {
		return nil, q.Promotion.Err()
	}

	now := s.now()
	order, err := domain.NewOrder(*cart, req.PaymentMethod, q.Address, now)
	if err != nil {
		return nil, err
	}
	order.Note = req.Note
	q.Quote.ApplyTo(order)
	if q.promo != nil {
		order.PromotionCode = q.promo.Code
	}

	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		if q.promo != nil {
			if err := tx.IncrementPromotionUsage(ctx, q.promo.ID, now); err != nil {
				if errors.Is(err, store.ErrUsageExhausted) {
					return &promotion.NotApplicableError{Code: q.promo.Code, Reason: promotion.ReasonUsageExhausted}
				}
				return err
			}
		}
		if err := tx.DeleteCart(ctx, customerID); err != nil {
			return err
		}

		event, err := domain.NewOrderEvent(order.ID, domain.EventOrderPlaced, placedPayload(order), now)
		if err != nil {
			return err
		}
		return tx.CreateOrderEvent(ctx, &event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		"order_id", order.ID,
		"customer_id", order.CustomerID,
		"restaurant_id", order.RestaurantID,
		"total", order.Total.String(),
		"promotion_code", order.PromotionCode,
	)
	return order, nil
}

type orderPlaced struct {
	CustomerID    string          `json:"customer_id"`
	RestaurantID  string          `json:"restaurant_id"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	PromotionCode string          `json:"promotion_code,omitempty"`
	ItemCount     int             `json:"item_count"`
}

func placedPayload(o *domain.Order) orderPlaced {
	count := 0
	for _, item := range o.Items {
		count += item.Quantity
	}
	return orderPlaced{
		CustomerID:    o.CustomerID,
		RestaurantID:  o.RestaurantID,
		Total:         o.Total,
		PaymentMethod: string(o.PaymentMethod),
		PromotionCode: o.PromotionCode,
		ItemCount:     count,
	}
}
