// Package catalog turns client add-to-cart requests into priced cart items.
// This is part of the Functional Core - all functions are pure with no I/O.
package catalog

import (
	"fmt"
	"sort"

	"github.com/artpar/skybite/internal/core/domain"
)

// ItemRequest is what a client sends to add a dish to the cart. Options maps
// an option group ID to the names of the chosen values.
type ItemRequest struct {
	DishID   string              `json:"dish_id"`
	Quantity int                 `json:"quantity"`
	Options  map[string][]string `json:"options,omitempty"`
}

// ResolveItem prices a request from the catalog. Client-supplied prices are
// never trusted; every choice is looked up on the dish.
func ResolveItem(dish domain.Dish, req ItemRequest) (domain.CartItem, error) {
	if req.DishID != "" && req.DishID != dish.ID {
		return domain.CartItem{}, domain.NewValidationError("dish_id", "dish does not match request")
	}
	if !dish.Available {
		return domain.CartItem{}, domain.NewValidationError("dish_id", domain.ErrDishUnavailable.Error())
	}
	if req.Quantity < 1 {
		return domain.CartItem{}, domain.NewValidationError("quantity", domain.ErrInvalidQuantity.Error())
	}

	selected := make(map[string]domain.ChoiceSelection, len(req.Options))

	groupIDs := make([]string, 0, len(req.Options))
	for id := range req.Options {
		groupIDs = append(groupIDs, id)
	}
	sort.Strings(groupIDs)

	for _, groupID := range groupIDs {
		names := req.Options[groupID]
		group, ok := dish.Group(groupID)
		if !ok {
			return domain.CartItem{}, domain.NewValidationError("options", fmt.Sprintf("unknown option group %q", groupID))
		}

		choices, err := resolveChoices(group, names)
		if err != nil {
			return domain.CartItem{}, err
		}
		if len(choices) == 0 {
			continue
		}

		if group.Multiple {
			selected[groupID] = domain.Multiple(choices...)
		} else {
			selected[groupID] = domain.Single(choices[0])
		}
	}

	for _, group := range dish.OptionGroups {
		if !group.Required {
			continue
		}
		if _, ok := selected[group.ID]; !ok {
			return domain.CartItem{}, domain.NewValidationError("options", fmt.Sprintf("option group %q is required", group.ID))
		}
	}

	item := domain.CartItem{
		DishID:    dish.ID,
		Name:      dish.Name,
		ImageURL:  dish.ImageURL,
		UnitPrice: dish.Price,
		Quantity:  req.Quantity,
	}
	if len(selected) > 0 {
		item.SelectedOptions = selected
	}
	return item, nil
}

// Refresh re-resolves a cart line against the dish as it is now. The line
// keeps its ID, quantity and choice names and takes the current prices. A
// dish that was withdrawn, or whose options no longer fit the line, yields
// ErrDishUnavailable.
func Refresh(dish domain.Dish, item domain.CartItem) (domain.CartItem, error) {
	if !dish.Available {
		return domain.CartItem{}, fmt.Errorf("%w: %s", domain.ErrDishUnavailable, dish.Name)
	}

	req := ItemRequest{DishID: item.DishID, Quantity: item.Quantity}
	if len(item.SelectedOptions) > 0 {
		req.Options = make(map[string][]string, len(item.SelectedOptions))
		for groupID, sel := range item.SelectedOptions {
			for _, c := range sel.Choices {
				req.Options[groupID] = append(req.Options[groupID], c.Name)
			}
		}
	}

	fresh, err := ResolveItem(dish, req)
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("%w: %s: %v", domain.ErrDishUnavailable, dish.Name, err)
	}
	fresh.LineID = item.LineID
	return fresh, nil
}

func resolveChoices(group domain.OptionGroup, names []string) ([]domain.Choice, error) {
	if !group.Multiple && len(names) > 1 {
		return nil, domain.NewValidationError("options", fmt.Sprintf("option group %q allows one choice", group.ID))
	}
	if group.Multiple && group.MaxChoices > 0 && len(names) > group.MaxChoices {
		return nil, domain.NewValidationError("options", fmt.Sprintf("option group %q allows at most %d choices", group.ID, group.MaxChoices))
	}

	seen := make(map[string]bool, len(names))
	choices := make([]domain.Choice, 0, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, domain.NewValidationError("options", fmt.Sprintf("choice %q selected twice", name))
		}
		seen[name] = true

		c, ok := group.Choice(name)
		if !ok {
			return nil, domain.NewValidationError("options", fmt.Sprintf("unknown choice %q in group %q", name, group.ID))
		}
		choices = append(choices, c)
	}
	return choices, nil
}
