package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/shell/store"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Fixture Format
// =============================================================================

// Fixture is the YAML document loaded by -seed. Restaurants refer to
// categories by name; promotions and stations refer to nothing or to a
// restaurant by name.
type Fixture struct {
	Categories  []string           `yaml:"categories"`
	Restaurants []RestaurantSeed   `yaml:"restaurants"`
	Promotions  []PromotionSeed    `yaml:"promotions"`
	Stations    []DroneStationSeed `yaml:"stations"`
}

type RestaurantSeed struct {
	Name        string          `yaml:"name"`
	OwnerID     string          `yaml:"owner_id"`
	Description string          `yaml:"description"`
	Address     string          `yaml:"address"`
	Location    domain.GeoPoint `yaml:"location"`
	Category    string          `yaml:"category"`
	ImageURL    string          `yaml:"image_url"`
	Open        bool            `yaml:"open"`
	Dishes      []DishSeed      `yaml:"dishes"`
}

type DishSeed struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	Price        string            `yaml:"price"`
	ImageURL     string            `yaml:"image_url"`
	Unavailable  bool              `yaml:"unavailable"`
	OptionGroups []OptionGroupSeed `yaml:"option_groups"`
}

type OptionGroupSeed struct {
	ID         string       `yaml:"id"`
	Name       string       `yaml:"name"`
	Multiple   bool         `yaml:"multiple"`
	Required   bool         `yaml:"required"`
	MaxChoices int          `yaml:"max_choices"`
	Choices    []ChoiceSeed `yaml:"choices"`
}

type ChoiceSeed struct {
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
}

type PromotionSeed struct {
	Code               string `yaml:"code"`
	Description        string `yaml:"description"`
	DiscountPercentage int    `yaml:"discount_percentage"`
	MinOrderSubtotal   string `yaml:"min_order_subtotal"`
	ValidDays          int    `yaml:"valid_days"`
	UsageLimit         int    `yaml:"usage_limit"`
	Restaurant         string `yaml:"restaurant"`
}

type DroneStationSeed struct {
	Name     string          `yaml:"name"`
	Location domain.GeoPoint `yaml:"location"`
	Capacity int             `yaml:"capacity"`
	Drones   []DroneSeed     `yaml:"drones"`
}

type DroneSeed struct {
	Name           string             `yaml:"name"`
	MaxPayloadKg   float64            `yaml:"max_payload_kg"`
	BatteryPercent float64            `yaml:"battery_percent"`
	Status         domain.DroneStatus `yaml:"status"`
}

// SeedSummary counts what was inserted.
type SeedSummary struct {
	Categories  int
	Restaurants int
	Dishes      int
	Promotions  int
	Stations    int
	Drones      int
}

// LoadFixture reads and parses a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// =============================================================================
// Seeding
// =============================================================================

// Seed inserts the fixture in one transaction. It is meant for an empty
// database; duplicates abort the whole load.
func Seed(ctx context.Context, s store.Store, f *Fixture, now time.Time) (SeedSummary, error) {
	var sum SeedSummary
	err := s.WithTx(ctx, func(tx store.Store) error {
		sum = SeedSummary{}
		categories := make(map[string]string, len(f.Categories))
		for _, name := range f.Categories {
			c, err := domain.NewCategory(name)
			if err != nil {
				return fmt.Errorf("category %q: %w", name, err)
			}
			if err := tx.CreateCategory(ctx, c); err != nil {
				return fmt.Errorf("category %q: %w", name, err)
			}
			categories[strings.ToLower(c.Name)] = c.ID
			sum.Categories++
		}

		restaurants := make(map[string]string, len(f.Restaurants))
		for _, rs := range f.Restaurants {
			r, err := domain.NewRestaurant(rs.OwnerID, rs.Name, rs.Address, rs.Location)
			if err != nil {
				return fmt.Errorf("restaurant %q: %w", rs.Name, err)
			}
			if rs.Category != "" {
				id, ok := categories[strings.ToLower(rs.Category)]
				if !ok {
					return fmt.Errorf("restaurant %q: unknown category %q", rs.Name, rs.Category)
				}
				r.CategoryID = id
			}
			r.Description = rs.Description
			r.ImageURL = rs.ImageURL
			r.IsOpen = rs.Open
			if err := tx.CreateRestaurant(ctx, r); err != nil {
				return fmt.Errorf("restaurant %q: %w", rs.Name, err)
			}
			restaurants[strings.ToLower(r.Name)] = r.ID
			sum.Restaurants++

			for _, ds := range rs.Dishes {
				d, err := buildDish(r.ID, ds)
				if err != nil {
					return fmt.Errorf("dish %q of %q: %w", ds.Name, rs.Name, err)
				}
				if err := tx.CreateDish(ctx, d); err != nil {
					return fmt.Errorf("dish %q of %q: %w", ds.Name, rs.Name, err)
				}
				sum.Dishes++
			}
		}

		for _, ps := range f.Promotions {
			p, err := buildPromotion(ps, restaurants, now)
			if err != nil {
				return fmt.Errorf("promotion %q: %w", ps.Code, err)
			}
			if err := tx.CreatePromotion(ctx, p); err != nil {
				return fmt.Errorf("promotion %q: %w", ps.Code, err)
			}
			sum.Promotions++
		}

		for _, ss := range f.Stations {
			st, err := domain.NewDroneStation(ss.Name, ss.Location, ss.Capacity)
			if err != nil {
				return fmt.Errorf("station %q: %w", ss.Name, err)
			}
			if err := tx.CreateDroneStation(ctx, st); err != nil {
				return fmt.Errorf("station %q: %w", ss.Name, err)
			}
			sum.Stations++

			for _, dr := range ss.Drones {
				d, err := domain.NewDrone(dr.Name, st.ID, st.Location, dr.MaxPayloadKg)
				if err != nil {
					return fmt.Errorf("drone %q: %w", dr.Name, err)
				}
				if dr.Status != "" {
					if err := d.ApplyTelemetry(domain.Telemetry{
						Status:         dr.Status,
						BatteryPercent: dr.BatteryPercent,
						Position:       st.Location,
					}, now); err != nil {
						return fmt.Errorf("drone %q: %w", dr.Name, err)
					}
				}
				if err := tx.CreateDrone(ctx, d); err != nil {
					return fmt.Errorf("drone %q: %w", dr.Name, err)
				}
				sum.Drones++
			}
		}
		return nil
	})
	return sum, err
}

func buildDish(restaurantID string, ds DishSeed) (*domain.Dish, error) {
	price, err := parseAmount("price", ds.Price)
	if err != nil {
		return nil, err
	}

	groups := make([]domain.OptionGroup, 0, len(ds.OptionGroups))
	for _, gs := range ds.OptionGroups {
		g := domain.OptionGroup{
			ID:         gs.ID,
			Name:       gs.Name,
			Multiple:   gs.Multiple,
			Required:   gs.Required,
			MaxChoices: gs.MaxChoices,
		}
		for _, cs := range gs.Choices {
			surcharge, err := parseAmount("choice price", cs.Price)
			if err != nil {
				return nil, err
			}
			g.Choices = append(g.Choices, domain.Choice{Name: cs.Name, Price: surcharge})
		}
		groups = append(groups, g)
	}

	d, err := domain.NewDish(restaurantID, ds.Name, price, groups)
	if err != nil {
		return nil, err
	}
	d.Description = ds.Description
	d.ImageURL = ds.ImageURL
	d.Available = !ds.Unavailable
	return d, nil
}

func buildPromotion(ps PromotionSeed, restaurants map[string]string, now time.Time) (*domain.Promotion, error) {
	minimum, err := parseAmount("min_order_subtotal", ps.MinOrderSubtotal)
	if err != nil {
		return nil, err
	}
	scope := domain.GlobalScope()
	if ps.Restaurant != "" {
		id, ok := restaurants[strings.ToLower(ps.Restaurant)]
		if !ok {
			return nil, fmt.Errorf("unknown restaurant %q", ps.Restaurant)
		}
		scope = domain.RestaurantScope(id)
	}
	days := ps.ValidDays
	if days <= 0 {
		days = 30
	}

	p, err := domain.NewPromotion(ps.Code, ps.DiscountPercentage, minimum, now.AddDate(0, 0, days), ps.UsageLimit, scope)
	if err != nil {
		return nil, err
	}
	p.Description = ps.Description
	return p, nil
}

// parseAmount reads a decimal; empty means zero.
func parseAmount(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s %q is not a number", field, raw)
	}
	return d, nil
}
