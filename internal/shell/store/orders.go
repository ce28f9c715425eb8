package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/artpar/skybite/internal/core/domain"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Cart Operations
// =============================================================================

type cartRow struct {
	CustomerID   string `db:"customer_id"`
	RestaurantID string `db:"restaurant_id"`
	Items        string `db:"items"`
	UpdatedAt    string `db:"updated_at"`
}

func (s *SQLStore) GetCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	query := s.exec.Rebind(`SELECT customer_id, restaurant_id, items, updated_at FROM carts WHERE customer_id = ?`)

	var row cartRow
	if err := s.exec.GetContext(ctx, &row, query, customerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewCart(customerID), nil
		}
		return nil, NewStoreError("GetCart", "cart", customerID, err.Error(), err)
	}

	cart := domain.NewCart(row.CustomerID)
	cart.RestaurantID = row.RestaurantID
	cart.UpdatedAt = parseTime(row.UpdatedAt)
	if hasJSON(row.Items) {
		if err := json.Unmarshal([]byte(row.Items), &cart.Items); err != nil {
			return nil, NewStoreError("GetCart", "cart", customerID, "failed to parse items", ErrInvalidData)
		}
	}
	return cart, nil
}

// SaveCart upserts the customer's cart.
func (s *SQLStore) SaveCart(ctx context.Context, cart *domain.Cart) error {
	items := cart.Items
	if items == nil {
		items = []domain.CartItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return NewStoreError("SaveCart", "cart", cart.CustomerID, "failed to serialize items", ErrInvalidData)
	}

	query := `
		INSERT INTO carts (customer_id, restaurant_id, items, updated_at)
		VALUES (:customer_id, :restaurant_id, :items, :updated_at)
		ON CONFLICT (customer_id) DO UPDATE SET
			restaurant_id = excluded.restaurant_id,
			items = excluded.items,
			updated_at = excluded.updated_at`

	row := map[string]any{
		"customer_id":   cart.CustomerID,
		"restaurant_id": cart.RestaurantID,
		"items":         string(itemsJSON),
		"updated_at":    formatTime(cart.UpdatedAt),
	}
	if _, err := s.exec.NamedExecContext(ctx, query, row); err != nil {
		return NewStoreError("SaveCart", "cart", cart.CustomerID, err.Error(), err)
	}
	return nil
}

// DeleteCart removes the customer's cart. Deleting a missing cart is not an
// error.
func (s *SQLStore) DeleteCart(ctx context.Context, customerID string) error {
	query := s.exec.Rebind(`DELETE FROM carts WHERE customer_id = ?`)
	if _, err := s.exec.ExecContext(ctx, query, customerID); err != nil {
		return NewStoreError("DeleteCart", "cart", customerID, err.Error(), err)
	}
	return nil
}

// =============================================================================
// Order Operations
// =============================================================================

const orderColumns = `id, customer_id, restaurant_id, items, subtotal, service_fee, delivery_fee,
	discount, total, promotion_code, payment_method, address, note, status,
	assigned_drone_id, created_at, updated_at, cancelled_at, review_requested_at`

type orderRow struct {
	ID                string          `db:"id"`
	CustomerID        string          `db:"customer_id"`
	RestaurantID      string          `db:"restaurant_id"`
	Items             string          `db:"items"`
	Subtotal          decimal.Decimal `db:"subtotal"`
	ServiceFee        decimal.Decimal `db:"service_fee"`
	DeliveryFee       decimal.Decimal `db:"delivery_fee"`
	Discount          decimal.Decimal `db:"discount"`
	Total             decimal.Decimal `db:"total"`
	PromotionCode     string          `db:"promotion_code"`
	PaymentMethod     string          `db:"payment_method"`
	Address           string          `db:"address"`
	Note              string          `db:"note"`
	Status            string          `db:"status"`
	AssignedDroneID   string          `db:"assigned_drone_id"`
	CreatedAt         string          `db:"created_at"`
	UpdatedAt         string          `db:"updated_at"`
	CancelledAt       *string         `db:"cancelled_at"`
	ReviewRequestedAt *string         `db:"review_requested_at"`
}

func (s *SQLStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return NewStoreError("CreateOrder", "order", order.ID, "failed to serialize items", ErrInvalidData)
	}
	addressJSON, err := json.Marshal(order.Address)
	if err != nil {
		return NewStoreError("CreateOrder", "order", order.ID, "failed to serialize address", ErrInvalidData)
	}

	query := `
		INSERT INTO orders (
			id, customer_id, restaurant_id, items, subtotal, service_fee, delivery_fee,
			discount, total, promotion_code, payment_method, address, note, status,
			assigned_drone_id, created_at, updated_at, cancelled_at, review_requested_at
		) VALUES (
			:id, :customer_id, :restaurant_id, :items, :subtotal, :service_fee, :delivery_fee,
			:discount, :total, :promotion_code, :payment_method, :address, :note, :status,
			:assigned_drone_id, :created_at, :updated_at, :cancelled_at, :review_requested_at
		)`

	row := map[string]any{
		"id":                  order.ID,
		"customer_id":         order.CustomerID,
		"restaurant_id":       order.RestaurantID,
		"items":               string(itemsJSON),
		"subtotal":            order.Subtotal,
		"service_fee":         order.ServiceFee,
		"delivery_fee":        order.DeliveryFee,
		"discount":            order.Discount,
		"total":               order.Total,
		"promotion_code":      order.PromotionCode,
		"payment_method":      string(order.PaymentMethod),
		"address":             string(addressJSON),
		"note":                order.Note,
		"status":              string(order.Status),
		"assigned_drone_id":   order.AssignedDroneID,
		"created_at":          formatTime(order.CreatedAt),
		"updated_at":          formatTime(order.UpdatedAt),
		"cancelled_at":        formatTimePtr(order.CancelledAt),
		"review_requested_at": formatTimePtr(order.ReviewRequestedAt),
	}

	if _, err := s.exec.NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err, "orders", "id") {
			return NewStoreError("CreateOrder", "order", order.ID, "order with this ID already exists", ErrDuplicateID)
		}
		if isForeignKeyViolation(err) {
			return NewStoreError("CreateOrder", "order", order.ID, "restaurant not found", ErrForeignKey)
		}
		return NewStoreError("CreateOrder", "order", order.ID, err.Error(), err)
	}
	return nil
}

func (s *SQLStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var row orderRow
	if err := getByID(ctx, s.exec, &row, "GetOrder", "orders", orderColumns, "order", id); err != nil {
		return nil, err
	}
	return rowToOrder(&row)
}

// UpdateOrderStatus is a compare-and-set on status. Only the lifecycle
// fields are written; amounts and items are frozen at checkout.
func (s *SQLStore) UpdateOrderStatus(ctx context.Context, order *domain.Order, expected domain.OrderStatus) error {
	query := s.exec.Rebind(`
		UPDATE orders SET
			status = ?,
			assigned_drone_id = ?,
			updated_at = ?,
			cancelled_at = ?,
			review_requested_at = ?
		WHERE id = ? AND status = ?`)

	result, err := s.exec.ExecContext(ctx, query,
		string(order.Status),
		order.AssignedDroneID,
		formatTime(order.UpdatedAt),
		formatTimePtr(order.CancelledAt),
		formatTimePtr(order.ReviewRequestedAt),
		order.ID,
		string(expected),
	)
	if err != nil {
		return NewStoreError("UpdateOrderStatus", "order", order.ID, err.Error(), err)
	}

	n, _ := result.RowsAffected()
	if n > 0 {
		return nil
	}

	var current string
	lookup := s.exec.Rebind(`SELECT status FROM orders WHERE id = ?`)
	if err := s.exec.GetContext(ctx, &current, lookup, order.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewStoreError("UpdateOrderStatus", "order", order.ID, "order not found", ErrNotFound)
		}
		return NewStoreError("UpdateOrderStatus", "order", order.ID, err.Error(), err)
	}
	return NewStoreError("UpdateOrderStatus", "order", order.ID,
		"expected status "+string(expected)+", found "+current, ErrConflict)
}

func (s *SQLStore) ListOrders(ctx context.Context, filter OrderFilter) ([]domain.Order, error) {
	opts := filter.ListOptions.Normalize()

	var conds []string
	var args []any
	if filter.CustomerID != "" {
		conds = append(conds, "customer_id = ?")
		args = append(args, filter.CustomerID)
	}
	if filter.RestaurantID != "" {
		conds = append(conds, "restaurant_id = ?")
		args = append(args, filter.RestaurantID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	args = append(args, opts.Limit, opts.Offset)

	query := s.exec.Rebind(`SELECT ` + orderColumns + ` FROM orders` + whereClause(conds) +
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`)

	var rows []orderRow
	if err := s.exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, NewStoreError("ListOrders", "order", "", err.Error(), err)
	}

	orders := make([]domain.Order, 0, len(rows))
	for i := range rows {
		order, err := rowToOrder(&rows[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

func (s *SQLStore) ListBusyDroneIDs(ctx context.Context) ([]string, error) {
	query := s.exec.Rebind(`SELECT DISTINCT assigned_drone_id FROM orders WHERE status = ? AND assigned_drone_id <> ''`)

	var ids []string
	if err := s.exec.SelectContext(ctx, &ids, query, string(domain.OrderShipping)); err != nil {
		return nil, NewStoreError("ListBusyDroneIDs", "order", "", err.Error(), err)
	}
	return ids, nil
}

func rowToOrder(row *orderRow) (*domain.Order, error) {
	items := []domain.CartItem{}
	if hasJSON(row.Items) {
		if err := json.Unmarshal([]byte(row.Items), &items); err != nil {
			return nil, NewStoreError("rowToOrder", "order", row.ID, "failed to parse items", ErrInvalidData)
		}
	}

	var address domain.DeliveryAddress
	if hasJSON(row.Address) {
		if err := json.Unmarshal([]byte(row.Address), &address); err != nil {
			return nil, NewStoreError("rowToOrder", "order", row.ID, "failed to parse address", ErrInvalidData)
		}
	}

	return &domain.Order{
		ID:                row.ID,
		CustomerID:        row.CustomerID,
		RestaurantID:      row.RestaurantID,
		Items:             items,
		Subtotal:          row.Subtotal,
		ServiceFee:        row.ServiceFee,
		DeliveryFee:       row.DeliveryFee,
		Discount:          row.Discount,
		Total:             row.Total,
		PromotionCode:     row.PromotionCode,
		PaymentMethod:     domain.PaymentMethod(row.PaymentMethod),
		Address:           address,
		Note:              row.Note,
		Status:            domain.OrderStatus(row.Status),
		AssignedDroneID:   row.AssignedDroneID,
		CreatedAt:         parseTime(row.CreatedAt),
		UpdatedAt:         parseTime(row.UpdatedAt),
		CancelledAt:       parseTimePtr(row.CancelledAt),
		ReviewRequestedAt: parseTimePtr(row.ReviewRequestedAt),
	}, nil
}
