package store

import (
	"context"
	"encoding/json"

	"github.com/artpar/skybite/internal/core/domain"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Category Operations
// =============================================================================

const categoryColumns = `id, name, slug, created_at`

type categoryRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Slug      string `db:"slug"`
	CreatedAt string `db:"created_at"`
}

func (s *SQLStore) CreateCategory(ctx context.Context, category *domain.Category) error {
	query := `INSERT INTO categories (id, name, slug, created_at) VALUES (:id, :name, :slug, :created_at)`
	row := map[string]any{
		"id":         category.ID,
		"name":       category.Name,
		"slug":       category.Slug,
		"created_at": formatTime(category.CreatedAt),
	}

	if _, err := s.exec.NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err, "categories", "id") {
			return NewStoreError("CreateCategory", "category", category.ID, "category with this ID already exists", ErrDuplicateID)
		}
		if isUniqueViolation(err, "categories", "slug") {
			return NewStoreError("CreateCategory", "category", category.ID, "category with this slug already exists", ErrDuplicateSlug)
		}
		return NewStoreError("CreateCategory", "category", category.ID, err.Error(), err)
	}
	return nil
}

func (s *SQLStore) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	var row categoryRow
	if err := getByID(ctx, s.exec, &row, "GetCategory", "categories", categoryColumns, "category", id); err != nil {
		return nil, err
	}
	return rowToCategory(&row), nil
}

func (s *SQLStore) UpdateCategory(ctx context.Context, category *domain.Category) error {
	query := `UPDATE categories SET name = :name, slug = :slug WHERE id = :id`
	row := map[string]any{"id": category.ID, "name": category.Name, "slug": category.Slug}

	result, err := s.exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if isUniqueViolation(err, "categories", "slug") {
			return NewStoreError("UpdateCategory", "category", category.ID, "category with this slug already exists", ErrDuplicateSlug)
		}
		return NewStoreError("UpdateCategory", "category", category.ID, err.Error(), err)
	}
	return rowsAffected(result, "UpdateCategory", "category", category.ID)
}

func (s *SQLStore) DeleteCategory(ctx context.Context, id string) error {
	return deleteByID(ctx, s.exec, "DeleteCategory", "categories", "category", id)
}

func (s *SQLStore) ListCategories(ctx context.Context, opts ListOptions) ([]domain.Category, error) {
	opts = opts.Normalize()
	query := s.exec.Rebind(`SELECT ` + categoryColumns + ` FROM categories ORDER BY name, id LIMIT ? OFFSET ?`)

	var rows []categoryRow
	if err := s.exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListCategories", "category", "", err.Error(), err)
	}

	categories := make([]domain.Category, 0, len(rows))
	for i := range rows {
		categories = append(categories, *rowToCategory(&rows[i]))
	}
	return categories, nil
}

func rowToCategory(row *categoryRow) *domain.Category {
	return &domain.Category{
		ID:        row.ID,
		Name:      row.Name,
		Slug:      row.Slug,
		CreatedAt: parseTime(row.CreatedAt),
	}
}

// =============================================================================
// Restaurant Operations
// =============================================================================

const restaurantColumns = `id, owner_id, name, slug, description, address, lat, lng,
	category_id, image_url, is_open, created_at, updated_at`

type restaurantRow struct {
	ID          string  `db:"id"`
	OwnerID     string  `db:"owner_id"`
	Name        string  `db:"name"`
	Slug        string  `db:"slug"`
	Description string  `db:"description"`
	Address     string  `db:"address"`
	Lat         float64 `db:"lat"`
	Lng         float64 `db:"lng"`
	CategoryID  *string `db:"category_id"`
	ImageURL    string  `db:"image_url"`
	IsOpen      bool    `db:"is_open"`
	CreatedAt   string  `db:"created_at"`
	UpdatedAt   string  `db:"updated_at"`
}

func restaurantParams(r *domain.Restaurant) map[string]any {
	return map[string]any{
		"id":          r.ID,
		"owner_id":    r.OwnerID,
		"name":        r.Name,
		"slug":        r.Slug,
		"description": r.Description,
		"address":     r.Address,
		"lat":         r.Location.Lat,
		"lng":         r.Location.Lng,
		"category_id": nullableString(r.CategoryID),
		"image_url":   r.ImageURL,
		"is_open":     r.IsOpen,
		"created_at":  formatTime(r.CreatedAt),
		"updated_at":  formatTime(r.UpdatedAt),
	}
}

func (s *SQLStore) CreateRestaurant(ctx context.Context, restaurant *domain.Restaurant) error {
	query := `
		INSERT INTO restaurants (
			id, owner_id, name, slug, description, address, lat, lng,
			category_id, image_url, is_open, created_at, updated_at
		) VALUES (
			:id, :owner_id, :name, :slug, :description, :address, :lat, :lng,
			:category_id, :image_url, :is_open, :created_at, :updated_at
		)`

	if _, err := s.exec.NamedExecContext(ctx, query, restaurantParams(restaurant)); err != nil {
		switch {
		case isUniqueViolation(err, "restaurants", "id"):
			return NewStoreError("CreateRestaurant", "restaurant", restaurant.ID, "restaurant with this ID already exists", ErrDuplicateID)
		case isUniqueViolation(err, "restaurants", "slug"):
			return NewStoreError("CreateRestaurant", "restaurant", restaurant.ID, "restaurant with this slug already exists", ErrDuplicateSlug)
		case isForeignKeyViolation(err):
			return NewStoreError("CreateRestaurant", "restaurant", restaurant.ID, "category not found", ErrForeignKey)
		}
		return NewStoreError("CreateRestaurant", "restaurant", restaurant.ID, err.Error(), err)
	}
	return nil
}

func (s *SQLStore) GetRestaurant(ctx context.Context, id string) (*domain.Restaurant, error) {
	var row restaurantRow
	if err := getByID(ctx, s.exec, &row, "GetRestaurant", "restaurants", restaurantColumns, "restaurant", id); err != nil {
		return nil, err
	}
	return rowToRestaurant(&row), nil
}

func (s *SQLStore) UpdateRestaurant(ctx context.Context, restaurant *domain.Restaurant) error {
	query := `
		UPDATE restaurants SET
			owner_id = :owner_id,
			name = :name,
			slug = :slug,
			description = :description,
			address = :address,
			lat = :lat,
			lng = :lng,
			category_id = :category_id,
			image_url = :image_url,
			is_open = :is_open,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := s.exec.NamedExecContext(ctx, query, restaurantParams(restaurant))
	if err != nil {
		switch {
		case isUniqueViolation(err, "restaurants", "slug"):
			return NewStoreError("UpdateRestaurant", "restaurant", restaurant.ID, "restaurant with this slug already exists", ErrDuplicateSlug)
		case isForeignKeyViolation(err):
			return NewStoreError("UpdateRestaurant", "restaurant", restaurant.ID, "category not found", ErrForeignKey)
		}
		return NewStoreError("UpdateRestaurant", "restaurant", restaurant.ID, err.Error(), err)
	}
	return rowsAffected(result, "UpdateRestaurant", "restaurant", restaurant.ID)
}

func (s *SQLStore) DeleteRestaurant(ctx context.Context, id string) error {
	return deleteByID(ctx, s.exec, "DeleteRestaurant", "restaurants", "restaurant", id)
}

func (s *SQLStore) ListRestaurants(ctx context.Context, filter RestaurantFilter) ([]domain.Restaurant, error) {
	opts := filter.ListOptions.Normalize()

	var conds []string
	var args []any
	if filter.CategoryID != "" {
		conds = append(conds, "category_id = ?")
		args = append(args, filter.CategoryID)
	}
	if filter.OwnerID != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.OpenOnly {
		conds = append(conds, "is_open = ?")
		args = append(args, true)
	}
	args = append(args, opts.Limit, opts.Offset)

	query := s.exec.Rebind(`SELECT ` + restaurantColumns + ` FROM restaurants` + whereClause(conds) +
		` ORDER BY name, id LIMIT ? OFFSET ?`)

	var rows []restaurantRow
	if err := s.exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, NewStoreError("ListRestaurants", "restaurant", "", err.Error(), err)
	}

	restaurants := make([]domain.Restaurant, 0, len(rows))
	for i := range rows {
		restaurants = append(restaurants, *rowToRestaurant(&rows[i]))
	}
	return restaurants, nil
}

func rowToRestaurant(row *restaurantRow) *domain.Restaurant {
	return &domain.Restaurant{
		ID:          row.ID,
		OwnerID:     row.OwnerID,
		Name:        row.Name,
		Slug:        row.Slug,
		Description: row.Description,
		Address:     row.Address,
		Location:    domain.GeoPoint{Lat: row.Lat, Lng: row.Lng},
		CategoryID:  derefString(row.CategoryID),
		ImageURL:    row.ImageURL,
		IsOpen:      row.IsOpen,
		CreatedAt:   parseTime(row.CreatedAt),
		UpdatedAt:   parseTime(row.UpdatedAt),
	}
}

// =============================================================================
// Dish Operations
// =============================================================================

const dishColumns = `id, restaurant_id, name, description, price, image_url, available,
	option_groups, created_at, updated_at`

type dishRow struct {
	ID           string          `db:"id"`
	RestaurantID string          `db:"restaurant_id"`
	Name         string          `db:"name"`
	Description  string          `db:"description"`
	Price        decimal.Decimal `db:"price"`
	ImageURL     string          `db:"image_url"`
	Available    bool            `db:"available"`
	OptionGroups string          `db:"option_groups"`
	CreatedAt    string          `db:"created_at"`
	UpdatedAt    string          `db:"updated_at"`
}

func dishParams(op string, d *domain.Dish) (map[string]any, error) {
	groups := d.OptionGroups
	if groups == nil {
		groups = []domain.OptionGroup{}
	}
	groupsJSON, err := json.Marshal(groups)
	if err != nil {
		return nil, NewStoreError(op, "dish", d.ID, "failed to serialize option groups", ErrInvalidData)
	}
	return map[string]any{
		"id":            d.ID,
		"restaurant_id": d.RestaurantID,
		"name":          d.Name,
		"description":   d.Description,
		"price":         d.Price,
		"image_url":     d.ImageURL,
		"available":     d.Available,
		"option_groups": string(groupsJSON),
		"created_at":    formatTime(d.CreatedAt),
		"updated_at":    formatTime(d.UpdatedAt),
	}, nil
}

func (s *SQLStore) CreateDish(ctx context.Context, dish *domain.Dish) error {
	params, err := dishParams("CreateDish", dish)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO dishes (
			id, restaurant_id, name, description, price, image_url, available,
			option_groups, created_at, updated_at
		) VALUES (
			:id, :restaurant_id, :name, :description, :price, :image_url, :available,
			:option_groups, :created_at, :updated_at
		)`

	if _, err := s.exec.NamedExecContext(ctx, query, params); err != nil {
		if isUniqueViolation(err, "dishes", "id") {
			return NewStoreError("CreateDish", "dish", dish.ID, "dish with this ID already exists", ErrDuplicateID)
		}
		if isForeignKeyViolation(err) {
			return NewStoreError("CreateDish", "dish", dish.ID, "restaurant not found", ErrForeignKey)
		}
		return NewStoreError("CreateDish", "dish", dish.ID, err.Error(), err)
	}
	return nil
}

func (s *SQLStore) GetDish(ctx context.Context, id string) (*domain.Dish, error) {
	var row dishRow
	if err := getByID(ctx, s.exec, &row, "GetDish", "dishes", dishColumns, "dish", id); err != nil {
		return nil, err
	}
	return rowToDish(&row)
}

func (s *SQLStore) UpdateDish(ctx context.Context, dish *domain.Dish) error {
	params, err := dishParams("UpdateDish", dish)
	if err != nil {
		return err
	}

	query := `
		UPDATE dishes SET
			name = :name,
			description = :description,
			price = :price,
			image_url = :image_url,
			available = :available,
			option_groups = :option_groups,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := s.exec.NamedExecContext(ctx, query, params)
	if err != nil {
		return NewStoreError("UpdateDish", "dish", dish.ID, err.Error(), err)
	}
	return rowsAffected(result, "UpdateDish", "dish", dish.ID)
}

func (s *SQLStore) DeleteDish(ctx context.Context, id string) error {
	return deleteByID(ctx, s.exec, "DeleteDish", "dishes", "dish", id)
}

func (s *SQLStore) ListDishes(ctx context.Context, filter DishFilter) ([]domain.Dish, error) {
	opts := filter.ListOptions.Normalize()

	var conds []string
	var args []any
	if filter.RestaurantID != "" {
		conds = append(conds, "restaurant_id = ?")
		args = append(args, filter.RestaurantID)
	}
	if filter.AvailableOnly {
		conds = append(conds, "available = ?")
		args = append(args, true)
	}
	args = append(args, opts.Limit, opts.Offset)

	query := s.exec.Rebind(`SELECT ` + dishColumns + ` FROM dishes` + whereClause(conds) +
		` ORDER BY name, id LIMIT ? OFFSET ?`)

	var rows []dishRow
	if err := s.exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, NewStoreError("ListDishes", "dish", "", err.Error(), err)
	}

	dishes := make([]domain.Dish, 0, len(rows))
	for i := range rows {
		dish, err := rowToDish(&rows[i])
		if err != nil {
			return nil, err
		}
		dishes = append(dishes, *dish)
	}
	return dishes, nil
}

func rowToDish(row *dishRow) (*domain.Dish, error) {
	var groups []domain.OptionGroup
	if hasJSON(row.OptionGroups) {
		if err := json.Unmarshal([]byte(row.OptionGroups), &groups); err != nil {
			return nil, NewStoreError("rowToDish", "dish", row.ID, "failed to parse option groups", ErrInvalidData)
		}
	}

	return &domain.Dish{
		ID:           row.ID,
		RestaurantID: row.RestaurantID,
		Name:         row.Name,
		Description:  row.Description,
		Price:        row.Price,
		ImageURL:     row.ImageURL,
		Available:    row.Available,
		OptionGroups: groups,
		CreatedAt:    parseTime(row.CreatedAt),
		UpdatedAt:    parseTime(row.UpdatedAt),
	}, nil
}
