package store

import (
	"context"

	"github.com/artpar/skybite/internal/core/domain"
)

// =============================================================================
// Address Book Operations
// =============================================================================

const addressColumns = `id, customer_id, label, line, lat, lng, created_at, updated_at`

type addressRow struct {
	ID         string  `db:"id"`
	CustomerID string  `db:"customer_id"`
	Label      string  `db:"label"`
	Line       string  `db:"line"`
	Lat        float64 `db:"lat"`
	Lng        float64 `db:"lng"`
	CreatedAt  string  `db:"created_at"`
	UpdatedAt  string  `db:"updated_at"`
}

func addressParams(a *domain.Address) map[string]any {
	return map[string]any{
		"id":          a.ID,
		"customer_id": a.CustomerID,
		"label":       a.Label,
		"line":        a.Line,
		"lat":         a.Location.Lat,
		"lng":         a.Location.Lng,
		"created_at":  formatTime(a.CreatedAt),
		"updated_at":  formatTime(a.UpdatedAt),
	}
}

func (s *SQLStore) CreateAddress(ctx context.Context, address *domain.Address) error {
	query := `
		INSERT INTO addresses (id, customer_id, label, line, lat, lng, created_at, updated_at)
		VALUES (:id, :customer_id, :label, :line, :lat, :lng, :created_at, :updated_at)`

	if _, err := s.exec.NamedExecContext(ctx, query, addressParams(address)); err != nil {
		if isUniqueViolation(err, "addresses", "id") {
			return NewStoreError("CreateAddress", "address", address.ID, "address with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateAddress", "address", address.ID, err.Error(), err)
	}
	return nil
}

func (s *SQLStore) GetAddress(ctx context.Context, id string) (*domain.Address, error) {
	var row addressRow
	if err := getByID(ctx, s.exec, &row, "GetAddress", "addresses", addressColumns, "address", id); err != nil {
		return nil, err
	}
	return rowToAddress(&row), nil
}

func (s *SQLStore) UpdateAddress(ctx context.Context, address *domain.Address) error {
	query := `
		UPDATE addresses SET
			label = :label,
			line = :line,
			lat = :lat,
			lng = :lng,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := s.exec.NamedExecContext(ctx, query, addressParams(address))
	if err != nil {
		return NewStoreError("UpdateAddress", "address", address.ID, err.Error(), err)
	}
	return rowsAffected(result, "UpdateAddress", "address", address.ID)
}

func (s *SQLStore) DeleteAddress(ctx context.Context, id string) error {
	return deleteByID(ctx, s.exec, "DeleteAddress", "addresses", "address", id)
}

func (s *SQLStore) ListAddressesByCustomer(ctx context.Context, customerID string, opts ListOptions) ([]domain.Address, error) {
	opts = opts.Normalize()
	query := s.exec.Rebind(`SELECT ` + addressColumns + ` FROM addresses WHERE customer_id = ?
		ORDER BY created_at DESC, id LIMIT ? OFFSET ?`)

	var rows []addressRow
	if err := s.exec.SelectContext(ctx, &rows, query, customerID, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListAddressesByCustomer", "address", "", err.Error(), err)
	}

	addresses := make([]domain.Address, 0, len(rows))
	for i := range rows {
		addresses = append(addresses, *rowToAddress(&rows[i]))
	}
	return addresses, nil
}

func rowToAddress(row *addressRow) *domain.Address {
	return &domain.Address{
		ID:         row.ID,
		CustomerID: row.CustomerID,
		Label:      row.Label,
		Line:       row.Line,
		Location:   domain.GeoPoint{Lat: row.Lat, Lng: row.Lng},
		CreatedAt:  parseTime(row.CreatedAt),
		UpdatedAt:  parseTime(row.UpdatedAt),
	}
}
