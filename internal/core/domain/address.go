package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Address is an entry in a customer's address book.
type Address struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Label      string    `json:"label"`
	Line       string    `json:"line"`
	Location   GeoPoint  `json:"location"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewAddress creates an address book entry.
func NewAddress(customerID, label, line string, location GeoPoint) (*Address, error) {
	if customerID == "" {
		return nil, NewValidationError("customer_id", "customer_id is required")
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, NewValidationError("line", "line is required")
	}
	if !location.Valid() {
		return nil, NewValidationError("location", "location is out of range")
	}
	now := time.Now().UTC()
	return &Address{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Label:      strings.TrimSpace(label),
		Line:       line,
		Location:   location,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Delivery converts the entry into a checkout drop-off.
func (a Address) Delivery() DeliveryAddress {
	return DeliveryAddress{Label: a.Label, Line: a.Line, Location: a.Location}
}
