package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ChoiceSelection Decoding Tests
// =============================================================================

func TestChoiceSelection_UnmarshalTagged(t *testing.T) {
	var s ChoiceSelection
	err := json.Unmarshal([]byte(`{"kind":"single","choices":[{"name":"Large","price":5000}]}`), &s)
	require.NoError(t, err)

	assert.Equal(t, SelectionSingle, s.Kind)
	require.Len(t, s.Flatten(), 1)
	assert.Equal(t, "Large", s.Flatten()[0].Name)
	assert.True(t, decimal.NewFromInt(5000).Equal(s.Flatten()[0].Price))
}

func TestChoiceSelection_UnmarshalTaggedSingleNeedsOneChoice(t *testing.T) {
	var s ChoiceSelection
	err := json.Unmarshal([]byte(`{"kind":"single","choices":[]}`), &s)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestChoiceSelection_UnmarshalBareObjectIsSingle(t *testing.T) {
	var s ChoiceSelection
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Spicy","price":"0"}`), &s))

	assert.Equal(t, SelectionSingle, s.Kind)
	assert.Equal(t, "Spicy", s.Flatten()[0].Name)
}

func TestChoiceSelection_UnmarshalArrayIsMultiple(t *testing.T) {
	var s ChoiceSelection
	require.NoError(t, json.Unmarshal([]byte(`[{"name":"Egg","price":3000},{"name":"Cheese","price":4000}]`), &s))

	assert.Equal(t, SelectionMultiple, s.Kind)
	assert.Len(t, s.Flatten(), 2)
}

func TestChoiceSelection_UnmarshalIndexedMapIsMultipleInKeyOrder(t *testing.T) {
	var s ChoiceSelection
	raw := `{"1":{"name":"Cheese","price":4000},"0":{"name":"Egg","price":3000},"10":{"name":"Ham","price":1}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &s))

	require.Equal(t, SelectionMultiple, s.Kind)
	names := []string{}
	for _, c := range s.Flatten() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Egg", "Cheese", "Ham"}, names)
}

func TestChoiceSelection_UnmarshalMissingPriceIsZero(t *testing.T) {
	var s ChoiceSelection
	require.NoError(t, json.Unmarshal([]byte(`[{"name":"Extra napkins"}]`), &s))

	assert.True(t, s.Flatten()[0].Price.IsZero())
}

func TestChoiceSelection_UnmarshalRejectsUnknownShape(t *testing.T) {
	var s ChoiceSelection
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"foo":{"name":"x"}}`), &s), ErrValidation)
	assert.ErrorIs(t, json.Unmarshal([]byte(`"large"`), &s), ErrValidation)
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"kind":"some","choices":[]}`), &s), ErrValidation)
}

func TestChoiceSelection_RoundTripKeepsVariant(t *testing.T) {
	in := map[string]ChoiceSelection{
		"size":     Single(Choice{Name: "Large", Price: decimal.NewFromInt(5000)}),
		"toppings": Multiple(Choice{Name: "Egg", Price: decimal.NewFromInt(3000)}),
	}
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out map[string]ChoiceSelection
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, SelectionSingle, out["size"].Kind)
	assert.Equal(t, SelectionMultiple, out["toppings"].Kind)
}

// =============================================================================
// Cart Tests
// =============================================================================

func testItem(dishID string, qty int, opts map[string]ChoiceSelection) CartItem {
	return CartItem{
		DishID:          dishID,
		Name:            "Dish " + dishID,
		UnitPrice:       decimal.NewFromInt(25000),
		Quantity:        qty,
		SelectedOptions: opts,
	}
}

func TestCart_AddSetsRestaurantAndLineID(t *testing.T) {
	cart := NewCart("cust-1")
	now := time.Now()

	line, err := cart.Add("rest-1", testItem("d1", 2, nil), now)
	require.NoError(t, err)

	assert.NotEmpty(t, line.LineID)
	assert.Equal(t, "rest-1", cart.RestaurantID)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, now, cart.UpdatedAt)
}

func TestCart_AddMergesIdenticalLines(t *testing.T) {
	cart := NewCart("cust-1")
	opts := map[string]ChoiceSelection{"size": Single(Choice{Name: "Large"})}

	_, err := cart.Add("rest-1", testItem("d1", 1, opts), time.Now())
	require.NoError(t, err)
	line, err := cart.Add("rest-1", testItem("d1", 2, opts), time.Now())
	require.NoError(t, err)

	assert.Len(t, cart.Items, 1)
	assert.Equal(t, 3, line.Quantity)
}

func TestCart_AddKeepsDifferentOptionsApart(t *testing.T) {
	cart := NewCart("cust-1")

	_, err := cart.Add("rest-1", testItem("d1", 1, map[string]ChoiceSelection{"size": Single(Choice{Name: "Large"})}), time.Now())
	require.NoError(t, err)
	_, err = cart.Add("rest-1", testItem("d1", 1, map[string]ChoiceSelection{"size": Single(Choice{Name: "Small"})}), time.Now())
	require.NoError(t, err)

	assert.Len(t, cart.Items, 2)
}

func TestCart_AddRejectsOtherRestaurant(t *testing.T) {
	cart := NewCart("cust-1")
	_, err := cart.Add("rest-1", testItem("d1", 1, nil), time.Now())
	require.NoError(t, err)

	_, err = cart.Add("rest-2", testItem("d2", 1, nil), time.Now())
	assert.ErrorIs(t, err, ErrCartRestaurantMismatch)
}

func TestCart_AddRejectsZeroQuantity(t *testing.T) {
	cart := NewCart("cust-1")
	_, err := cart.Add("rest-1", testItem("d1", 0, nil), time.Now())
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCart_SetQuantity(t *testing.T) {
	cart := NewCart("cust-1")
	line, err := cart.Add("rest-1", testItem("d1", 1, nil), time.Now())
	require.NoError(t, err)

	require.NoError(t, cart.SetQuantity(line.LineID, 4, time.Now()))
	assert.Equal(t, 4, cart.Items[0].Quantity)

	assert.ErrorIs(t, cart.SetQuantity("missing", 1, time.Now()), ErrCartLineNotFound)
	assert.ErrorIs(t, cart.SetQuantity(line.LineID, -1, time.Now()), ErrInvalidQuantity)
}

func TestCart_SetQuantityZeroRemovesAndFreesRestaurant(t *testing.T) {
	cart := NewCart("cust-1")
	line, err := cart.Add("rest-1", testItem("d1", 1, nil), time.Now())
	require.NoError(t, err)

	require.NoError(t, cart.SetQuantity(line.LineID, 0, time.Now()))
	assert.True(t, cart.IsEmpty())
	assert.Empty(t, cart.RestaurantID)

	_, err = cart.Add("rest-2", testItem("d2", 1, nil), time.Now())
	assert.NoError(t, err)
}

func TestCart_Clear(t *testing.T) {
	cart := NewCart("cust-1")
	_, err := cart.Add("rest-1", testItem("d1", 1, nil), time.Now())
	require.NoError(t, err)

	cart.Clear(time.Now())
	assert.True(t, cart.IsEmpty())
	assert.Empty(t, cart.RestaurantID)
}
