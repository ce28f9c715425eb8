// Package pricing computes line, subtotal and order totals.
// This is part of the Functional Core - all functions are pure with no I/O.
package pricing

import (
	"github.com/artpar/skybite/internal/core/domain"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Line and Order Totals
// =============================================================================

// OptionsTotal sums the surcharges of every selected option of an item.
// Single and multi-select groups are flattened first; negative surcharges
// count as zero.
func OptionsTotal(item domain.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, c := range item.OptionChoices() {
		total = total.Add(nonNegative(c.Price))
	}
	return total
}

// LineTotal is (unit price + option surcharges) x quantity.
func LineTotal(item domain.CartItem) decimal.Decimal {
	if item.Quantity <= 0 {
		return decimal.Zero
	}
	unit := nonNegative(item.UnitPrice).Add(OptionsTotal(item))
	return unit.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// Subtotal sums the line totals. An empty cart costs nothing.
func Subtotal(items []domain.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(LineTotal(item))
	}
	return total
}

// Fees are the surcharges added on top of the subtotal.
type Fees struct {
	Service  decimal.Decimal
	Delivery decimal.Decimal
}

// Total is subtotal + fees - discount, never below zero.
func Total(subtotal decimal.Decimal, fees Fees, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Add(fees.Service).Add(fees.Delivery).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// =============================================================================
// Delivery Fee
// =============================================================================

// DeliveryRule prices delivery as a base fee plus a per-kilometre rate.
type DeliveryRule struct {
	Base  decimal.Decimal
	PerKm decimal.Decimal
}

// Fee returns the delivery fee for a flight of distanceKm, rounded to a
// whole currency unit.
func (r DeliveryRule) Fee(distanceKm float64) decimal.Decimal {
	if distanceKm < 0 {
		distanceKm = 0
	}
	fee := nonNegative(r.Base).Add(nonNegative(r.PerKm).Mul(decimal.NewFromFloat(distanceKm)))
	return fee.Round(0)
}

// =============================================================================
// Quote
// =============================================================================

// Line is the priced view of one cart item.
type Line struct {
	LineID       string          `json:"line_id"`
	DishID       string          `json:"dish_id"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	OptionsPrice decimal.Decimal `json:"options_price"`
	Total        decimal.Decimal `json:"total"`
}

// Quote is the full price breakdown shown before checkout.
type Quote struct {
	Lines       []Line          `json:"lines"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	ServiceFee  decimal.Decimal `json:"service_fee"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

// BuildQuote prices items with the given fees and discount.
func BuildQuote(items []domain.CartItem, fees Fees, discount decimal.Decimal) Quote {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{
			LineID:       item.LineID,
			DishID:       item.DishID,
			Name:         item.Name,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			OptionsPrice: OptionsTotal(item),
			Total:        LineTotal(item),
		})
	}

	subtotal := Subtotal(items)
	return Quote{
		Lines:       lines,
		Subtotal:    subtotal,
		ServiceFee:  fees.Service,
		DeliveryFee: fees.Delivery,
		Discount:    discount,
		Total:       Total(subtotal, fees, discount),
	}
}

// ApplyTo copies the quote's amounts onto an order.
func (q Quote) ApplyTo(o *domain.Order) {
	o.Subtotal = q.Subtotal
	o.ServiceFee = q.ServiceFee
	o.DeliveryFee = q.DeliveryFee
	o.Discount = q.Discount
	o.Total = q.Total
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
