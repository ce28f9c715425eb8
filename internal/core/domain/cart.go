package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Cart Errors
// =============================================================================

var (
	ErrCartRestaurantMismatch = errors.New("cart already holds items from another restaurant")
	ErrCartLineNotFound       = errors.New("cart line not found")
	ErrCartEmpty              = errors.New("cart is empty")
	ErrInvalidQuantity        = errors.New("quantity must be at least 1")
)

// =============================================================================
// Choices and Selections
// =============================================================================

// Choice is a single option value with its surcharge.
type Choice struct {
	Name  string          `json:"name" yaml:"name"`
	Price decimal.Decimal `json:"price" yaml:"price"`
}

// SelectionKind discriminates the ChoiceSelection variant.
type SelectionKind string

const (
	SelectionSingle   SelectionKind = "single"
	SelectionMultiple SelectionKind = "multiple"
)

// ChoiceSelection is what a customer picked for one option group: exactly one
// choice for single-select groups, zero or more for multi-select groups.
type ChoiceSelection struct {
	Kind    SelectionKind `json:"kind"`
	Choices []Choice      `json:"choices"`
}

// Single builds a single-select selection.
func Single(c Choice) ChoiceSelection {
	return ChoiceSelection{Kind: SelectionSingle, Choices: []Choice{c}}
}

// Multiple builds a multi-select selection.
func Multiple(cs ...Choice) ChoiceSelection {
	out := make([]Choice, len(cs))
	copy(out, cs)
	return ChoiceSelection{Kind: SelectionMultiple, Choices: out}
}

// Flatten returns the chosen values regardless of variant.
func (s ChoiceSelection) Flatten() []Choice {
	if s.Kind == SelectionSingle && len(s.Choices) > 1 {
		return s.Choices[:1]
	}
	return s.Choices
}

// UnmarshalJSON accepts the tagged form and normalizes older shapes:
// a bare choice object is a single selection, while an array or an object
// keyed by "0", "1", ... is a multiple selection.
func (s *ChoiceSelection) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = Multiple()
		return nil
	}

	switch trimmed[0] {
	case '[':
		var choices []Choice
		if err := json.Unmarshal(trimmed, &choices); err != nil {
			return NewValidationError("selected_options", "invalid choice list")
		}
		*s = Multiple(choices...)
		return nil
	case '{':
	default:
		return NewValidationError("selected_options", "selection must be an object or array")
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return NewValidationError("selected_options", "invalid selection object")
	}

	if _, ok := probe["kind"]; ok {
		var tagged struct {
			Kind    SelectionKind `json:"kind"`
			Choices []Choice      `json:"choices"`
		}
		if err := json.Unmarshal(trimmed, &tagged); err != nil {
			return NewValidationError("selected_options", "invalid tagged selection")
		}
		switch tagged.Kind {
		case SelectionSingle:
			if len(tagged.Choices) != 1 {
				return NewValidationError("selected_options", "single selection needs exactly one choice")
			}
			*s = Single(tagged.Choices[0])
		case SelectionMultiple:
			*s = Multiple(tagged.Choices...)
		default:
			return NewValidationError("selected_options", fmt.Sprintf("unknown selection kind %q", tagged.Kind))
		}
		return nil
	}

	if _, ok := probe["name"]; ok {
		var c Choice
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return NewValidationError("selected_options", "invalid choice")
		}
		*s = Single(c)
		return nil
	}

	indexes := make([]int, 0, len(probe))
	byIndex := make(map[int]json.RawMessage, len(probe))
	for k, raw := range probe {
		i, err := strconv.Atoi(k)
		if err != nil {
			return NewValidationError("selected_options", fmt.Sprintf("unexpected key %q in selection", k))
		}
		indexes = append(indexes, i)
		byIndex[i] = raw
	}
	sort.Ints(indexes)

	choices := make([]Choice, 0, len(indexes))
	for _, i := range indexes {
		var c Choice
		if err := json.Unmarshal(byIndex[i], &c); err != nil {
			return NewValidationError("selected_options", "invalid choice")
		}
		choices = append(choices, c)
	}
	*s = Multiple(choices...)
	return nil
}

// =============================================================================
// Cart Item
// =============================================================================

// CartItem is one line in a cart or an order.
type CartItem struct {
	LineID          string                     `json:"line_id"`
	DishID          string                     `json:"dish_id"`
	Name            string                     `json:"name"`
	ImageURL        string                     `json:"image_url,omitempty"`
	UnitPrice       decimal.Decimal            `json:"unit_price"`
	Quantity        int                        `json:"quantity"`
	SelectedOptions map[string]ChoiceSelection `json:"selected_options,omitempty"`
}

// OptionChoices flattens every selected option in a stable group order.
func (i CartItem) OptionChoices() []Choice {
	groups := make([]string, 0, len(i.SelectedOptions))
	for g := range i.SelectedOptions {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	var out []Choice
	for _, g := range groups {
		out = append(out, i.SelectedOptions[g].Flatten()...)
	}
	return out
}

// optionsKey identifies an item configuration so identical lines can merge.
func (i CartItem) optionsKey() string {
	groups := make([]string, 0, len(i.SelectedOptions))
	for g := range i.SelectedOptions {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	var b strings.Builder
	b.WriteString(i.DishID)
	for _, g := range groups {
		names := make([]string, 0)
		for _, c := range i.SelectedOptions[g].Flatten() {
			names = append(names, c.Name)
		}
		sort.Strings(names)
		b.WriteString("|" + g + "=" + strings.Join(names, ","))
	}
	return b.String()
}

// =============================================================================
// Cart
// =============================================================================

// Cart is a customer's pending selection from a single restaurant.
type Cart struct {
	CustomerID   string     `json:"customer_id"`
	RestaurantID string     `json:"restaurant_id,omitempty"`
	Items        []CartItem `json:"items"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewCart returns an empty cart for the customer.
func NewCart(customerID string) *Cart {
	return &Cart{CustomerID: customerID, Items: []CartItem{}}
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Add puts an item in the cart. An item with the same dish and options
// merges into the existing line.
func (c *Cart) Add(restaurantID string, item CartItem, now time.Time) (CartItem, error) {
	if item.Quantity < 1 {
		return CartItem{}, ErrInvalidQuantity
	}
	if !c.IsEmpty() && c.RestaurantID != "" && c.RestaurantID != restaurantID {
		return CartItem{}, ErrCartRestaurantMismatch
	}

	c.RestaurantID = restaurantID
	c.UpdatedAt = now

	key := item.optionsKey()
	for idx := range c.Items {
		if c.Items[idx].optionsKey() == key {
			c.Items[idx].Quantity += item.Quantity
			return c.Items[idx], nil
		}
	}

	if item.LineID == "" {
		item.LineID = uuid.New().String()
	}
	c.Items = append(c.Items, item)
	return item, nil
}

// SetQuantity changes a line's quantity. Zero removes the line.
func (c *Cart) SetQuantity(lineID string, quantity int, now time.Time) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if quantity == 0 {
		return c.Remove(lineID, now)
	}
	for idx := range c.Items {
		if c.Items[idx].LineID == lineID {
			c.Items[idx].Quantity = quantity
			c.UpdatedAt = now
			return nil
		}
	}
	return ErrCartLineNotFound
}

// Remove deletes a line from the cart.
func (c *Cart) Remove(lineID string, now time.Time) error {
	for idx := range c.Items {
		if c.Items[idx].LineID == lineID {
			c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
			if c.IsEmpty() {
				c.RestaurantID = ""
			}
			c.UpdatedAt = now
			return nil
		}
	}
	return ErrCartLineNotFound
}

// Clear empties the cart.
func (c *Cart) Clear(now time.Time) {
	c.Items = []CartItem{}
	c.RestaurantID = ""
	c.UpdatedAt = now
}
