package store

import (
	"context"
	"time"

	"github.com/artpar/skybite/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for skybite entities.
type Store interface {
	// Category operations
	CreateCategory(ctx context.Context, category *domain.Category) error
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category *domain.Category) error
	DeleteCategory(ctx context.Context, id string) error
	ListCategories(ctx context.Context, opts ListOptions) ([]domain.Category, error)

	// Restaurant operations
	CreateRestaurant(ctx context.Context, restaurant *domain.Restaurant) error
	GetRestaurant(ctx context.Context, id string) (*domain.Restaurant, error)
	UpdateRestaurant(ctx context.Context, restaurant *domain.Restaurant) error
	DeleteRestaurant(ctx context.Context, id string) error
	ListRestaurants(ctx context.Context, filter RestaurantFilter) ([]domain.Restaurant, error)

	// Dish operations
	CreateDish(ctx context.Context, dish *domain.Dish) error
	GetDish(ctx context.Context, id string) (*domain.Dish, error)
	UpdateDish(ctx context.Context, dish *domain.Dish) error
	DeleteDish(ctx context.Context, id string) error
	ListDishes(ctx context.Context, filter DishFilter) ([]domain.Dish, error)

	// Promotion operations
	CreatePromotion(ctx context.Context, promotion *domain.Promotion) error
	GetPromotion(ctx context.Context, id string) (*domain.Promotion, error)
	GetPromotionByCode(ctx context.Context, code string) (*domain.Promotion, error)
	UpdatePromotion(ctx context.Context, promotion *domain.Promotion) error
	DeletePromotion(ctx context.Context, id string) error
	ListPromotions(ctx context.Context, filter PromotionFilter) ([]domain.Promotion, error)
	// IncrementPromotionUsage redeems one use. It fails with
	// ErrUsageExhausted when the limit is already reached or the promotion
	// was disabled in the meantime.
	IncrementPromotionUsage(ctx context.Context, id string, at time.Time) error

	// Cart operations. GetCart returns an empty cart when none is stored.
	GetCart(ctx context.Context, customerID string) (*domain.Cart, error)
	SaveCart(ctx context.Context, cart *domain.Cart) error
	DeleteCart(ctx context.Context, customerID string) error

	// Order operations
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	// UpdateOrderStatus writes the lifecycle fields of order only if the
	// stored status still equals expected. A mismatch is ErrConflict.
	UpdateOrderStatus(ctx context.Context, order *domain.Order, expected domain.OrderStatus) error
	ListOrders(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
	// ListBusyDroneIDs returns drones assigned to an order in shipping.
	ListBusyDroneIDs(ctx context.Context) ([]string, error)

	// Drone operations
	CreateDrone(ctx context.Context, drone *domain.Drone) error
	GetDrone(ctx context.Context, id string) (*domain.Drone, error)
	UpdateDrone(ctx context.Context, drone *domain.Drone) error
	// ChangeDroneStatus is a guarded status write; ErrConflict when the guard fails.
	ChangeDroneStatus(ctx context.Context, change DroneStatusChange) error
	DeleteDrone(ctx context.Context, id string) error
	ListDrones(ctx context.Context, opts ListOptions) ([]domain.Drone, error)

	// Drone station operations
	CreateDroneStation(ctx context.Context, station *domain.DroneStation) error
	GetDroneStation(ctx context.Context, id string) (*domain.DroneStation, error)
	UpdateDroneStation(ctx context.Context, station *domain.DroneStation) error
	DeleteDroneStation(ctx context.Context, id string) error
	ListDroneStations(ctx context.Context, opts ListOptions) ([]domain.DroneStation, error)

	// Address book operations
	CreateAddress(ctx context.Context, address *domain.Address) error
	GetAddress(ctx context.Context, id string) (*domain.Address, error)
	UpdateAddress(ctx context.Context, address *domain.Address) error
	DeleteAddress(ctx context.Context, id string) error
	ListAddressesByCustomer(ctx context.Context, customerID string, opts ListOptions) ([]domain.Address, error)

	// Order event outbox
	CreateOrderEvent(ctx context.Context, event *domain.OrderEvent) error
	GetUnpublishedEvents(ctx context.Context, limit int) ([]domain.OrderEvent, error)
	MarkEventsPublished(ctx context.Context, ids []string, publishedAt time.Time) error
	ListOrderEvents(ctx context.Context, orderID string) ([]domain.OrderEvent, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination and filtering options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// RestaurantFilter narrows ListRestaurants.
type RestaurantFilter struct {
	CategoryID string
	OwnerID    string
	OpenOnly   bool
	ListOptions
}

// DishFilter narrows ListDishes.
type DishFilter struct {
	RestaurantID  string
	AvailableOnly bool
	ListOptions
}

// PromotionFilter narrows ListPromotions. RestaurantID selects promotions
// scoped to that restaurant.
type PromotionFilter struct {
	RestaurantID string
	ListOptions
}

// OrderFilter narrows ListOrders. Empty fields do not filter.
type OrderFilter struct {
	CustomerID   string
	RestaurantID string
	Status       domain.OrderStatus
	ListOptions
}
