package catalog

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jmylchreest/wallet-engine/internal/config"
	"github.com/jmylchreest/wallet-engine/internal/models"
)

// S3Catalog serves lookups from a JSON catalog document in object storage.
// The document is refreshed in the background once the loader's TTL expires;
// lookups always answer from the last good copy.
type S3Catalog struct {
	loader  *config.S3Loader
	current *Static
	logger  *slog.Logger
}

// NewS3Catalog creates an S3-backed catalog. Call Load before serving traffic.
func NewS3Catalog(cfg config.S3LoaderConfig) *S3Catalog {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Catalog{
		loader:  config.NewS3Loader(cfg),
		current: &Static{},
		logger:  logger.With("component", "catalog"),
	}
}

// Load performs a blocking fetch so the first request sees a populated catalog.
func (c *S3Catalog) Load(ctx context.Context) error {
	return c.refresh(ctx)
}

// MaybeRefresh starts a background refresh if the cached copy is stale.
func (c *S3Catalog) MaybeRefresh(ctx context.Context) {
	if !c.loader.Due() {
		return
	}
	go func() { _ = c.refresh(context.WithoutCancel(ctx)) }()
}

func (c *S3Catalog) refresh(ctx context.Context) error {
	result, err := c.loader.Fetch(ctx)
	if err != nil {
		return err
	}
	if result == nil || result.Unchanged {
		return nil
	}

	var doc Document
	if err := json.Unmarshal(result.Data, &doc); err != nil {
		c.logger.Error("failed to parse catalog JSON", "error", err)
		return err
	}
	if err := c.current.Replace(&doc); err != nil {
		c.logger.Error("rejected catalog document", "error", err, "etag", result.ETag)
		return err
	}

	categories, products := c.current.Len()
	c.logger.Info("catalog loaded from S3",
		"etag", result.ETag,
		"categories", categories,
		"products", products,
	)
	return nil
}

func (c *S3Catalog) Product(ctx context.Context, ref models.ProductReference) (*models.Product, error) {
	c.MaybeRefresh(ctx)
	return c.current.Product(ctx, ref)
}

func (c *S3Catalog) Category(ctx context.Context, id models.ProductCategoryID) (*models.ProductCategory, error) {
	c.MaybeRefresh(ctx)
	return c.current.Category(ctx, id)
}
