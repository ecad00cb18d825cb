// Package catalog provides read-only product and category lookups for the
// accounting engine.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jmylchreest/wallet-engine/internal/models"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("product category not found")
)

// Catalog resolves products and categories.
type Catalog interface {
	Product(ctx context.Context, ref models.ProductReference) (*models.Product, error)
	Category(ctx context.Context, id models.ProductCategoryID) (*models.ProductCategory, error)
}

// Document is the serialized catalog, shared by the TOML and JSON sources.
type Document struct {
	Categories []CategoryEntry `toml:"categories" json:"categories"`
}

// CategoryEntry is one category and the products priced in it.
type CategoryEntry struct {
	Name        string         `toml:"name" json:"name"`
	Provider    string         `toml:"provider" json:"provider"`
	ProductType string         `toml:"product_type" json:"product_type"`
	ChargeType  string         `toml:"charge_type" json:"charge_type"`
	Unit        string         `toml:"unit" json:"unit"`
	Products    []ProductEntry `toml:"products" json:"products"`
}

// ProductEntry is one product within a category.
type ProductEntry struct {
	ID           string `toml:"id" json:"id"`
	PricePerUnit int64  `toml:"price_per_unit" json:"price_per_unit"`
	FreeToUse    bool   `toml:"free_to_use" json:"free_to_use"`
	Description  string `toml:"description" json:"description,omitempty"`
}

// Validate checks every category and product entry.
func (d *Document) Validate() error {
	seen := make(map[models.ProductCategoryID]bool, len(d.Categories))
	for i, c := range d.Categories {
		id := models.ProductCategoryID{Name: c.Name, Provider: c.Provider}
		if err := id.Validate(); err != nil {
			return fmt.Errorf("category %d: %w", i, err)
		}
		if seen[id] {
			return fmt.Errorf("category %s: duplicate", id)
		}
		seen[id] = true
		if !models.ProductType(c.ProductType).Valid() {
			return fmt.Errorf("category %s: unknown product type %q", id, c.ProductType)
		}
		if !models.ChargeType(c.ChargeType).Valid() {
			return fmt.Errorf("category %s: unknown charge type %q", id, c.ChargeType)
		}

		products := make(map[string]bool, len(c.Products))
		for _, p := range c.Products {
			if p.ID == "" {
				return fmt.Errorf("category %s: product without id", id)
			}
			if products[p.ID] {
				return fmt.Errorf("category %s: duplicate product %q", id, p.ID)
			}
			products[p.ID] = true
			if p.PricePerUnit < 0 {
				return fmt.Errorf("product %s/%s: negative price", p.ID, id)
			}
		}
	}
	return nil
}

// Static is an in-memory catalog. It is safe for concurrent use and can be
// replaced wholesale by the file and S3 sources.
type Static struct {
	mu         sync.RWMutex
	categories map[models.ProductCategoryID]*models.ProductCategory
	products   map[models.ProductReference]*models.Product
}

// NewStatic creates a catalog from a validated document.
func NewStatic(doc *Document) (*Static, error) {
	s := &Static{}
	if err := s.Replace(doc); err != nil {
		return nil, err
	}
	return s, nil
}

// Replace swaps the catalog contents after validating doc.
func (s *Static) Replace(doc *Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	categories := make(map[models.ProductCategoryID]*models.ProductCategory, len(doc.Categories))
	products := make(map[models.ProductReference]*models.Product)
	for _, c := range doc.Categories {
		id := models.ProductCategoryID{Name: c.Name, Provider: c.Provider}
		categories[id] = &models.ProductCategory{
			ID:          id,
			ProductType: models.ProductType(c.ProductType),
			ChargeType:  models.ChargeType(c.ChargeType),
			Unit:        models.ProductPriceUnit(c.Unit),
		}
		for _, p := range c.Products {
			ref := models.ProductReference{ID: p.ID, Category: c.Name, Provider: c.Provider}
			products[ref] = &models.Product{
				Reference:    ref,
				PricePerUnit: p.PricePerUnit,
				FreeToUse:    p.FreeToUse,
				Description:  p.Description,
			}
		}
	}

	s.mu.Lock()
	s.categories = categories
	s.products = products
	s.mu.Unlock()
	return nil
}

func (s *Static) Product(_ context.Context, ref models.ProductReference) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, ref)
	}
	cp := *p
	return &cp, nil
}

func (s *Static) Category(_ context.Context, id models.ProductCategoryID) (*models.ProductCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, id)
	}
	cp := *c
	return &cp, nil
}

// Len returns the number of categories and products loaded.
func (s *Static) Len() (categories, products int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.categories), len(s.products)
}
