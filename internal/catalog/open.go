package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/wallet-engine/internal/config"
)

// Open builds the catalog named by cfg: a TOML file, an S3 object, or an
// empty catalog when neither is configured.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Catalog, error) {
	switch {
	case cfg.CatalogFile != "":
		c, err := NewFromFile(cfg.CatalogFile)
		if err != nil {
			return nil, err
		}
		categories, products := c.Len()
		logger.Info("catalog loaded from file",
			"path", cfg.CatalogFile,
			"categories", categories,
			"products", products,
		)
		return c, nil

	case cfg.CatalogFromS3():
		client, err := config.NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c := NewS3Catalog(config.S3LoaderConfig{
			Client:   client,
			Bucket:   cfg.CatalogBucket,
			Key:      cfg.CatalogKey,
			CacheTTL: cfg.CatalogRefresh,
			Logger:   logger,
		})
		if err := c.Load(ctx); err != nil {
			return nil, fmt.Errorf("failed to load catalog from s3://%s/%s: %w", cfg.CatalogBucket, cfg.CatalogKey, err)
		}
		return c, nil

	default:
		logger.Warn("no catalog configured, every product lookup will fail; set CATALOG_FILE or CATALOG_BUCKET")
		return NewStatic(&Document{})
	}
}
