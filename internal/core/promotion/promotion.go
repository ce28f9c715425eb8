// Package promotion decides whether a promotion applies to an order and how
// much it takes off. This is part of the Functional Core - no I/O.
package promotion

import (
	"errors"
	"fmt"
	"time"

	"github.com/artpar/skybite/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ErrNotApplicable is wrapped by every NotApplicableError.
var ErrNotApplicable = errors.New("promotion not applicable")

// Reason explains why a promotion does not apply.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonDisabled       Reason = "disabled"
	ReasonExpired        Reason = "expired"
	ReasonUsageExhausted Reason = "usage_exhausted"
	ReasonWrongScope     Reason = "wrong_scope"
	ReasonMinimumNotMet  Reason = "minimum_not_met"
	ReasonUnknownCode    Reason = "unknown_code"
)

// NotApplicableError carries the reason a promotion was refused. For
// ReasonMinimumNotMet, Minimum holds the subtotal the customer must reach.
type NotApplicableError struct {
	Code    string
	Reason  Reason
	Minimum decimal.Decimal
}

func (e *NotApplicableError) Error() string {
	if e.Reason == ReasonMinimumNotMet {
		return fmt.Sprintf("promotion %s not applicable: %s (minimum %s)", e.Code, e.Reason, e.Minimum)
	}
	return fmt.Sprintf("promotion %s not applicable: %s", e.Code, e.Reason)
}

func (e *NotApplicableError) Unwrap() error {
	return ErrNotApplicable
}

// =============================================================================
// Evaluation
// =============================================================================

// Check is the order context a promotion is evaluated against.
type Check struct {
	Subtotal     decimal.Decimal
	RestaurantID string
	Now          time.Time
}

// Evaluation is the outcome of checking one promotion.
type Evaluation struct {
	Code       string          `json:"code"`
	Applicable bool            `json:"applicable"`
	Reason     Reason          `json:"reason,omitempty"`
	Minimum    decimal.Decimal `json:"minimum,omitempty"`
	Discount   decimal.Decimal `json:"discount"`
}

// Err returns nil for an applicable evaluation and a NotApplicableError
// otherwise.
func (e Evaluation) Err() error {
	if e.Applicable {
		return nil
	}
	return &NotApplicableError{Code: e.Code, Reason: e.Reason, Minimum: e.Minimum}
}

// Evaluate checks every applicability condition and reports the first one
// that fails. Conditions are checked in this order: enabled, not expired,
// uses remaining, in scope, minimum subtotal met.
func Evaluate(p domain.Promotion, c Check) Evaluation {
	ev := Evaluation{Code: p.Code, Discount: decimal.Zero}

	switch {
	case !p.IsEnabled:
		ev.Reason = ReasonDisabled
	case !c.Now.Before(p.ExpiryDate):
		ev.Reason = ReasonExpired
	case p.UsageCount >= p.UsageLimit:
		ev.Reason = ReasonUsageExhausted
	case !p.Scope.Covers(c.RestaurantID):
		ev.Reason = ReasonWrongScope
	case c.Subtotal.LessThan(p.MinOrderSubtotal):
		ev.Reason = ReasonMinimumNotMet
		ev.Minimum = p.MinOrderSubtotal
	default:
		ev.Applicable = true
		ev.Discount = percentOf(c.Subtotal, p.DiscountPercentage)
	}
	return ev
}

// Unknown is the evaluation for a code that matches no promotion.
func Unknown(code string) Evaluation {
	return Evaluation{Code: code, Reason: ReasonUnknownCode, Discount: decimal.Zero}
}

// IsApplicable reports whether p can be redeemed for the order in c.
func IsApplicable(p domain.Promotion, c Check) bool {
	return Evaluate(p, c).Applicable
}

// ComputeDiscount returns subtotal x pct / 100 when the promotion applies
// and zero when it is absent or does not apply.
func ComputeDiscount(p *domain.Promotion, c Check) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return Evaluate(*p, c).Discount
}

func percentOf(amount decimal.Decimal, pct int) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100)).Round(2)
}
