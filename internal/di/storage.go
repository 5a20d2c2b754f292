package di

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/techfy/storefront-api/internal/platform/config"
	pfirestore "github.com/techfy/storefront-api/internal/platform/firestore"
	ppostgres "github.com/techfy/storefront-api/internal/platform/postgres"
	"github.com/techfy/storefront-api/internal/repositories"
	firestorerepo "github.com/techfy/storefront-api/internal/repositories/firestore"
	"github.com/techfy/storefront-api/internal/repositories/memory"
	postgresrepo "github.com/techfy/storefront-api/internal/repositories/postgres"
)

type storage struct {
	registry  repositories.Registry
	firestore *pfirestore.Provider
}

// openStorage builds the registry for the configured driver.
func openStorage(ctx context.Context, cfg config.Config, logger *zap.Logger) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		reg, err := firestorerepo.NewRegistry(provider)
		if err != nil {
			_ = provider.Close(ctx)
			return nil, fmt.Errorf("build firestore registry: %w", err)
		}
		return &storage{registry: reg, firestore: provider}, nil

	case config.StorageDriverPostgres:
		db, err := ppostgres.Open(ctx, cfg.Postgres, logger.Named("postgres"))
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.AutoMigrate {
			if err := postgresrepo.Migrate(ctx, db); err != nil {
				_ = ppostgres.Close(db)
				return nil, err
			}
		}
		reg, err := postgresrepo.NewRegistry(db)
		if err != nil {
			_ = ppostgres.Close(db)
			return nil, fmt.Errorf("build postgres registry: %w", err)
		}
		if cfg.Storage.CatalogSeedFile != "" {
			seed, err := memory.LoadCatalogFile(cfg.Storage.CatalogSeedFile)
			if err != nil {
				_ = reg.Close(ctx)
				return nil, err
			}
			if err := reg.Products().Upsert(ctx, seed.Products()); err != nil {
				_ = reg.Close(ctx)
				return nil, fmt.Errorf("seed catalog: %w", err)
			}
			logger.Info("catalog seeded", zap.Int("products", len(seed.Products())))
		}
		return &storage{registry: reg}, nil

	default:
		catalog := memory.NewCatalog()
		if cfg.Storage.CatalogSeedFile != "" {
			seed, err := memory.LoadCatalogFile(cfg.Storage.CatalogSeedFile)
			if err != nil {
				return nil, err
			}
			catalog = seed
		} else {
			logger.Warn("memory storage without catalog seed; every checkout will fail pricing")
		}
		return &storage{registry: memory.NewRegistry(catalog)}, nil
	}
}
