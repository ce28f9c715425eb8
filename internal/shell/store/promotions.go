package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/artpar/skybite/internal/core/domain"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Promotion Operations
// =============================================================================

const promotionColumns = `id, code, description, discount_percentage, min_order_subtotal,
	expiry_date, usage_limit, usage_count, is_enabled, scope_kind, scope_restaurant_id,
	created_at, updated_at`

type promotionRow struct {
	ID                 string          `db:"id"`
	Code               string          `db:"code"`
	Description        string          `db:"description"`
	DiscountPercentage int             `db:"discount_percentage"`
	MinOrderSubtotal   decimal.Decimal `db:"min_order_subtotal"`
	ExpiryDate         string          `db:"expiry_date"`
	UsageLimit         int             `db:"usage_limit"`
	UsageCount         int             `db:"usage_count"`
	IsEnabled          bool            `db:"is_enabled"`
	ScopeKind          string          `db:"scope_kind"`
	ScopeRestaurantID  string          `db:"scope_restaurant_id"`
	CreatedAt          string          `db:"created_at"`
	UpdatedAt          string          `db:"updated_at"`
}

func promotionParams(p *domain.Promotion) map[string]any {
	return map[string]any{
		"id":                  p.ID,
		"code":                domain.NormalizeCode(p.Code),
		"description":         p.Description,
		"discount_percentage": p.DiscountPercentage,
		"min_order_subtotal":  p.MinOrderSubtotal,
		"expiry_date":         formatTime(p.ExpiryDate),
		"usage_limit":         p.UsageLimit,
		"usage_count":         p.UsageCount,
		"is_enabled":          p.IsEnabled,
		"scope_kind":          string(p.Scope.Kind),
		"scope_restaurant_id": p.Scope.RestaurantID,
		"created_at":          formatTime(p.CreatedAt),
		"updated_at":          formatTime(p.UpdatedAt),
	}
}

func (s *SQLStore) CreatePromotion(ctx context.Context, promotion *domain.Promotion) error {
	query := `
		INSERT INTO promotions (
			id, code, description, discount_percentage, min_order_subtotal,
			expiry_date, usage_limit, usage_count, is_enabled, scope_kind,
			scope_restaurant_id, created_at, updated_at
		) VALUES (
			:id, :code, :description, :discount_percentage, :min_order_subtotal,
			:expiry_date, :usage_limit, :usage_count, :is_enabled, :scope_kind,
			:scope_restaurant_id, :created_at, :updated_at
		)`

	if _, err := s.exec.NamedExecContext(ctx, query, promotionParams(promotion)); err != nil {
		if isUniqueViolation(err, "promotions", "id") {
			return NewStoreError("CreatePromotion", "promotion", promotion.ID, "promotion with this ID already exists", ErrDuplicateID)
		}
		if isUniqueViolation(err, "promotions", "code") {
			return NewStoreError("CreatePromotion", "promotion", promotion.ID, "promotion with this code already exists", ErrDuplicateCode)
		}
		return NewStoreError("CreatePromotion", "promotion", promotion.ID, err.Error(), err)
	}
	return nil
}

func (s *SQLStore) GetPromotion(ctx context.Context, id string) (*domain.Promotion, error) {
	var row promotionRow
	if err := getByID(ctx, s.exec, &row, "GetPromotion", "promotions", promotionColumns, "promotion", id); err != nil {
		return nil, err
	}
	return rowToPromotion(&row), nil
}

func (s *SQLStore) GetPromotionByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	code = domain.NormalizeCode(code)
	query := s.exec.Rebind(`SELECT ` + promotionColumns + ` FROM promotions WHERE code = ?`)

	var row promotionRow
	if err := s.exec.GetContext(ctx, &row, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetPromotionByCode", "promotion", code, "promotion not found", ErrNotFound)
		}
		return nil, NewStoreError("GetPromotionByCode", "promotion", code, err.Error(), err)
	}
	return rowToPromotion(&row), nil
}

// UpdatePromotion writes the editable fields. usage_count is owned by
// IncrementPromotionUsage and is not overwritten here.
func (s *SQLStore) UpdatePromotion(ctx context.Context, promotion *domain.Promotion) error {
	query := `
		UPDATE promotions SET
			code = :code,
			description = :description,
			discount_percentage = :discount_percentage,
			min_order_subtotal = :min_order_subtotal,
			expiry_date = :expiry_date,
			usage_limit = :usage_limit,
			is_enabled = :is_enabled,
			scope_kind = :scope_kind,
			scope_restaurant_id = :scope_restaurant_id,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := s.exec.NamedExecContext(ctx, query, promotionParams(promotion))
	if err != nil {
		if isUniqueViolation(err, "promotions", "code") {
			return NewStoreError("UpdatePromotion", "promotion", promotion.ID, "promotion with this code already exists", ErrDuplicateCode)
		}
		return NewStoreError("UpdatePromotion", "promotion", promotion.ID, err.Error(), err)
	}
	return rowsAffected(result, "UpdatePromotion", "promotion", promotion.ID)
}

func (s *SQLStore) DeletePromotion(ctx context.Context, id string) error {
	return deleteByID(ctx, s.exec, "DeletePromotion", "promotions", "promotion", id)
}

func (s *SQLStore) ListPromotions(ctx context.Context, filter PromotionFilter) ([]domain.Promotion, error) {
	opts := filter.ListOptions.Normalize()

	var conds []string
	var args []any
	if filter.RestaurantID != "" {
		conds = append(conds, "scope_kind = ?", "scope_restaurant_id = ?")
		args = append(args, string(domain.ScopeRestaurant), filter.RestaurantID)
	}
	args = append(args, opts.Limit, opts.Offset)

	query := s.exec.Rebind(`SELECT ` + promotionColumns + ` FROM promotions` + whereClause(conds) +
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`)

	var rows []promotionRow
	if err := s.exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, NewStoreError("ListPromotions", "promotion", "", err.Error(), err)
	}

	promotions := make([]domain.Promotion, 0, len(rows))
	for i := range rows {
		promotions = append(promotions, *rowToPromotion(&rows[i]))
	}
	return promotions, nil
}

func (s *SQLStore) IncrementPromotionUsage(ctx context.Context, id string, at time.Time) error {
	query := s.exec.Rebind(`
		UPDATE promotions
		SET usage_count = usage_count + 1, updated_at = ?
		WHERE id = ? AND usage_count < usage_limit AND is_enabled = ?`)

	result, err := s.exec.ExecContext(ctx, query, formatTime(at), id, true)
	if err != nil {
		return NewStoreError("IncrementPromotionUsage", "promotion", id, err.Error(), err)
	}

	n, _ := result.RowsAffected()
	if n > 0 {
		return nil
	}

	var count int
	exists := s.exec.Rebind(`SELECT COUNT(*) FROM promotions WHERE id = ?`)
	if err := s.exec.GetContext(ctx, &count, exists, id); err != nil {
		return NewStoreError("IncrementPromotionUsage", "promotion", id, err.Error(), err)
	}
	if count == 0 {
		return NewStoreError("IncrementPromotionUsage", "promotion", id, "promotion not found", ErrNotFound)
	}
	return NewStoreError("IncrementPromotionUsage", "promotion", id, "no uses left", ErrUsageExhausted)
}

func rowToPromotion(row *promotionRow) *domain.Promotion {
	return &domain.Promotion{
		ID:                 row.ID,
		Code:               row.Code,
		Description:        row.Description,
		DiscountPercentage: row.DiscountPercentage,
		MinOrderSubtotal:   row.MinOrderSubtotal,
		ExpiryDate:         parseTime(row.ExpiryDate),
		UsageLimit:         row.UsageLimit,
		UsageCount:         row.UsageCount,
		IsEnabled:          row.IsEnabled,
		Scope: domain.PromotionScope{
			Kind:         domain.ScopeKind(row.ScopeKind),
			RestaurantID: row.ScopeRestaurantID,
		},
		CreatedAt: parseTime(row.CreatedAt),
		UpdatedAt: parseTime(row.UpdatedAt),
	}
}
