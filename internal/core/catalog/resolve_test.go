package catalog

import (
	"testing"

	"github.com/artpar/skybite/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDish() domain.Dish {
	return domain.Dish{
		ID:           "dish-1",
		RestaurantID: "rest-1",
		Name:         "Mie Ayam",
		Price:        decimal.NewFromInt(25000),
		Available:    true,
		OptionGroups: []domain.OptionGroup{
			{
				ID:       "size",
				Name:     "Size",
				Required: true,
				Choices: []domain.Choice{
					{Name: "Regular", Price: decimal.Zero},
					{Name: "Large", Price: decimal.NewFromInt(5000)},
				},
			},
			{
				ID:         "toppings",
				Name:       "Toppings",
				Multiple:   true,
				MaxChoices: 2,
				Choices: []domain.Choice{
					{Name: "Egg", Price: decimal.NewFromInt(4000)},
					{Name: "Meatball", Price: decimal.NewFromInt(6000)},
					{Name: "Chili", Price: decimal.NewFromInt(1000)},
				},
			},
		},
	}
}

func TestResolveItem_PricesFromCatalog(t *testing.T) {
	item, err := ResolveItem(testDish(), ItemRequest{
		DishID:   "dish-1",
		Quantity: 2,
		Options: map[string][]string{
			"size":     {"Large"},
			"toppings": {"Egg", "Meatball"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "dish-1", item.DishID)
	assert.Equal(t, "Mie Ayam", item.Name)
	assert.True(t, decimal.NewFromInt(25000).Equal(item.UnitPrice))
	assert.Equal(t, 2, item.Quantity)

	size := item.SelectedOptions["size"]
	assert.Equal(t, domain.SelectionSingle, size.Kind)
	require.Len(t, size.Choices, 1)
	assert.True(t, decimal.NewFromInt(5000).Equal(size.Choices[0].Price))

	toppings := item.SelectedOptions["toppings"]
	assert.Equal(t, domain.SelectionMultiple, toppings.Kind)
	assert.Len(t, toppings.Choices, 2)
}

func TestResolveItem_NoOptionsOnOptionalGroups(t *testing.T) {
	dish := testDish()
	dish.OptionGroups = dish.OptionGroups[1:]

	item, err := ResolveItem(dish, ItemRequest{Quantity: 1})
	require.NoError(t, err)
	assert.Nil(t, item.SelectedOptions)
}

func TestResolveItem_Errors(t *testing.T) {
	tests := []struct {
		name string
		dish func() domain.Dish
		req  ItemRequest
		want string
	}{
		{
			name: "unavailable dish",
			dish: func() domain.Dish { d := testDish(); d.Available = false; return d },
			req:  ItemRequest{Quantity: 1, Options: map[string][]string{"size": {"Regular"}}},
			want: "dish_id",
		},
		{
			name: "zero quantity",
			req:  ItemRequest{Quantity: 0, Options: map[string][]string{"size": {"Regular"}}},
			want: "quantity",
		},
		{
			name: "unknown group",
			req:  ItemRequest{Quantity: 1, Options: map[string][]string{"size": {"Regular"}, "sauce": {"Soy"}}},
			want: "options",
		},
		{
			name: "unknown choice",
			req:  ItemRequest{Quantity: 1, Options: map[string][]string{"size": {"Huge"}}},
			want: "options",
		},
		{
			name: "two choices on single group",
			req:  ItemRequest{Quantity: 1, Options: map[string][]string{"size": {"Regular", "Large"}}},
			want: "options",
		},
		{
			name: "over max choices",
			req:  ItemRequest{Quantity: 1, Options: map[string][]string{"size": {"Regular"}, "toppings": {"Egg", "Meatball", "Chili"}}},
			want: "options",
		},
		{
			name: "missing required group",
			req:  ItemRequest{Quantity: 1, Options: map[string][]string{"toppings": {"Egg"}}},
			want: "options",
		},
		{
			name: "mismatched dish id",
			req:  ItemRequest{DishID: "dish-2", Quantity: 1},
			want: "dish_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dish := testDish()
			if tt.dish != nil {
				dish = tt.dish()
			}

			_, err := ResolveItem(dish, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)

			var vErr *domain.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.want, vErr.Field)
		})
	}
}

func TestRefresh_TakesCurrentPrices(t *testing.T) {
	item, err := ResolveItem(testDish(), ItemRequest{
		DishID:   "dish-1",
		Quantity: 3,
		Options: map[string][]string{
			"size":     {"Large"},
			"toppings": {"Egg"},
		},
	})
	require.NoError(t, err)
	item.LineID = "line-1"

	dish := testDish()
	dish.Price = decimal.NewFromInt(27000)
	dish.OptionGroups[1].Choices[0].Price = decimal.NewFromInt(4500)

	fresh, err := Refresh(dish, item)
	require.NoError(t, err)
	assert.Equal(t, "line-1", fresh.LineID)
	assert.Equal(t, 3, fresh.Quantity)
	assert.True(t, decimal.NewFromInt(27000).Equal(fresh.UnitPrice))
	assert.True(t, decimal.NewFromInt(4500).Equal(fresh.SelectedOptions["toppings"].Choices[0].Price))
}

func TestRefresh_Unavailable(t *testing.T) {
	item, err := ResolveItem(testDish(), ItemRequest{
		DishID:   "dish-1",
		Quantity: 1,
		Options:  map[string][]string{"size": {"Regular"}},
	})
	require.NoError(t, err)

	withdrawn := testDish()
	withdrawn.Available = false
	_, err = Refresh(withdrawn, item)
	assert.ErrorIs(t, err, domain.ErrDishUnavailable)

	// The chosen size was removed from the menu.
	changed := testDish()
	changed.OptionGroups[0].Choices = changed.OptionGroups[0].Choices[1:]
	_, err = Refresh(changed, item)
	assert.ErrorIs(t, err, domain.ErrDishUnavailable)
}
