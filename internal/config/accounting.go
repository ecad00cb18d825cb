package config

import (
	"fmt"

	"github.com/jmylchreest/wallet-engine/internal/models"
)

// AccountingConfig holds engine defaults that are not part of any request.
type AccountingConfig struct {
	// DefaultChargePolicy is assigned to wallets when they are first created.
	DefaultChargePolicy models.AllocationSelectorPolicy

	// SystemActor is recorded as actionPerformedBy when a caller leaves it empty.
	SystemActor string

	// MaxBulkItems bounds the number of items in one bulk request.
	MaxBulkItems int

	BrowseDefaultPageSize int
	BrowseMaxPageSize     int
}

// DefaultAccountingConfig returns the default accounting configuration.
func DefaultAccountingConfig() AccountingConfig {
	return AccountingConfig{
		DefaultChargePolicy:   models.PolicyExpireFirst,
		SystemActor:           "_system",
		MaxBulkItems:          1000,
		BrowseDefaultPageSize: 50,
		BrowseMaxPageSize:     250,
	}
}

// Validate checks the page sizes and bulk limit are usable.
func (c AccountingConfig) Validate() error {
	if c.MaxBulkItems < 1 {
		return fmt.Errorf("MAX_BULK_ITEMS must be positive, got %d", c.MaxBulkItems)
	}
	if c.BrowseDefaultPageSize < 1 || c.BrowseMaxPageSize < c.BrowseDefaultPageSize {
		return fmt.Errorf("invalid browse page sizes: default %d, max %d", c.BrowseDefaultPageSize, c.BrowseMaxPageSize)
	}
	return nil
}

// PageSize clamps a requested page size into the configured bounds.
func (c AccountingConfig) PageSize(requested int) int {
	switch {
	case requested <= 0:
		return c.BrowseDefaultPageSize
	case requested > c.BrowseMaxPageSize:
		return c.BrowseMaxPageSize
	default:
		return requested
	}
}
