package models

import "fmt"

// ChargeType is fixed per product category and selects the charge semantics.
type ChargeType string

const (
	// ChargeAbsolute treats charges as deltas that consume the balance.
	ChargeAbsolute ChargeType = "ABSOLUTE"
	// ChargeDifferentialQuota treats charges as usage snapshots.
	ChargeDifferentialQuota ChargeType = "DIFFERENTIAL_QUOTA"
)

// Valid reports whether the charge type is known.
func (c ChargeType) Valid() bool {
	switch c {
	case ChargeAbsolute, ChargeDifferentialQuota:
		return true
	}
	return false
}

// ProductType classifies what a product category provides.
type ProductType string

const (
	ProductTypeStorage   ProductType = "STORAGE"
	ProductTypeCompute   ProductType = "COMPUTE"
	ProductTypeIngress   ProductType = "INGRESS"
	ProductTypeLicense   ProductType = "LICENSE"
	ProductTypeNetworkIP ProductType = "NETWORK_IP"
)

// Valid reports whether the product type is known.
func (p ProductType) Valid() bool {
	switch p {
	case ProductTypeStorage, ProductTypeCompute, ProductTypeIngress, ProductTypeLicense, ProductTypeNetworkIP:
		return true
	}
	return false
}

// ProductPriceUnit is the unit of account of a category (e.g. "CREDITS_PER_MINUTE").
type ProductPriceUnit string

// ProductCategoryID identifies a class of products sharing one payment model.
type ProductCategoryID struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// String renders the category as name@provider.
func (c ProductCategoryID) String() string {
	return c.Name + "@" + c.Provider
}

// Validate checks that both parts are present.
func (c ProductCategoryID) Validate() error {
	if c.Name == "" || c.Provider == "" {
		return fmt.Errorf("product category requires name and provider")
	}
	return nil
}

// ProductCategory is the catalog's description of a category.
type ProductCategory struct {
	ID          ProductCategoryID `json:"id"`
	ProductType ProductType       `json:"productType"`
	ChargeType  ChargeType        `json:"chargeType"`
	Unit        ProductPriceUnit  `json:"unit"`
}

// ProductReference points at a single product in the catalog.
type ProductReference struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Provider string `json:"provider"`
}

// CategoryID returns the category the referenced product belongs to.
func (r ProductReference) CategoryID() ProductCategoryID {
	return ProductCategoryID{Name: r.Category, Provider: r.Provider}
}

// String renders the reference as id/category@provider.
func (r ProductReference) String() string {
	return r.ID + "/" + r.Category + "@" + r.Provider
}

// Validate checks that all parts are present.
func (r ProductReference) Validate() error {
	if r.ID == "" || r.Category == "" || r.Provider == "" {
		return fmt.Errorf("product reference requires id, category and provider")
	}
	return nil
}

// Product is a priced item from the catalog.
type Product struct {
	Reference    ProductReference `json:"reference"`
	PricePerUnit int64            `json:"pricePerUnit"`
	FreeToUse    bool             `json:"freeToUse"`
	Description  string           `json:"description,omitempty"`
}
