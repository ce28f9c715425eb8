package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Catalog Errors
// =============================================================================

var (
	ErrRestaurantClosed = errors.New("restaurant is not accepting orders")
	ErrDishUnavailable  = errors.New("dish is not available")
)

// =============================================================================
// Category
// =============================================================================

// Category groups restaurants for browsing (e.g. "Noodles", "Coffee").
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCategory creates a category with a slug derived from its name.
func NewCategory(name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("name", "name is required")
	}
	return &Category{
		ID:        uuid.New().String(),
		Name:      name,
		Slug:      Slugify(name),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// =============================================================================
// Restaurant
// =============================================================================

// Restaurant is a merchant storefront and the pickup point for its orders.
type Restaurant struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Address     string    `json:"address"`
	Location    GeoPoint  `json:"location"`
	CategoryID  string    `json:"category_id,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	IsOpen      bool      `json:"is_open"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewRestaurant creates a closed restaurant owned by ownerID.
func NewRestaurant(ownerID, name, address string, location GeoPoint) (*Restaurant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("name", "name is required")
	}
	if ownerID == "" {
		return nil, NewValidationError("owner_id", "owner_id is required")
	}
	if !location.Valid() {
		return nil, NewValidationError("location", "location is out of range")
	}

	now := time.Now().UTC()
	return &Restaurant{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      name,
		Slug:      Slugify(name),
		Address:   address,
		Location:  location,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// =============================================================================
// Dish
// =============================================================================

// OptionGroup is a set of choices offered with a dish ("Size", "Toppings").
type OptionGroup struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Multiple   bool     `json:"multiple" yaml:"multiple"`
	Required   bool     `json:"required" yaml:"required"`
	MaxChoices int      `json:"max_choices,omitempty" yaml:"max_choices"`
	Choices    []Choice `json:"choices" yaml:"choices"`
}

// Choice looks up a choice by name.
func (g OptionGroup) Choice(name string) (Choice, bool) {
	for _, c := range g.Choices {
		if c.Name == name {
			return c, true
		}
	}
	return Choice{}, false
}

// Dish is a menu item of a restaurant.
type Dish struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurant_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	ImageURL     string          `json:"image_url,omitempty"`
	Available    bool            `json:"available"`
	OptionGroups []OptionGroup   `json:"option_groups,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewDish creates an available dish.
func NewDish(restaurantID, name string, price decimal.Decimal, groups []OptionGroup) (*Dish, error) {
	name = strings.TrimSpace(name)
	if restaurantID == "" {
		return nil, NewValidationError("restaurant_id", "restaurant_id is required")
	}
	if name == "" {
		return nil, NewValidationError("name", "name is required")
	}
	if price.IsNegative() {
		return nil, NewValidationError("price", "price must not be negative")
	}
	if err := ValidateOptionGroups(groups); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Dish{
		ID:           uuid.New().String(),
		RestaurantID: restaurantID,
		Name:         name,
		Price:        price,
		Available:    true,
		OptionGroups: groups,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Group looks up an option group by ID.
func (d Dish) Group(id string) (OptionGroup, bool) {
	for _, g := range d.OptionGroups {
		if g.ID == id {
			return g, true
		}
	}
	return OptionGroup{}, false
}

// ValidateOptionGroups checks that group IDs are unique and every group has
// choices with unique names.
func ValidateOptionGroups(groups []OptionGroup) error {
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		if g.ID == "" {
			return NewValidationError("option_groups", "option group id is required")
		}
		if seen[g.ID] {
			return NewValidationError("option_groups", "duplicate option group "+g.ID)
		}
		seen[g.ID] = true

		if len(g.Choices) == 0 {
			return NewValidationError("option_groups", "option group "+g.ID+" has no choices")
		}
		names := make(map[string]bool, len(g.Choices))
		for _, c := range g.Choices {
			if c.Name == "" || names[c.Name] {
				return NewValidationError("option_groups", "option group "+g.ID+" has a blank or duplicate choice")
			}
			names[c.Name] = true
		}
		if g.MaxChoices < 0 {
			return NewValidationError("option_groups", "max_choices must not be negative")
		}
	}
	return nil
}
