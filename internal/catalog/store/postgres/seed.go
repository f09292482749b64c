package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"winefeed/internal/catalog/models"
)

// The writers below load catalog snapshots and test fixtures. Matching only reads
// through Get, FindByGTIN and FindByVolumeAndPack; confirmed mappings are written
// by the review tooling that owns the catalog.

func (s *Store) SaveFamily(ctx context.Context, family models.ProductFamily) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO product_families (id, producer, wine_name, country, region)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			producer = EXCLUDED.producer,
			wine_name = EXCLUDED.wine_name,
			country = EXCLUDED.country,
			region = EXCLUDED.region`,
		family.ID, family.Producer, family.WineName, family.Country, family.Region,
	)
	if err != nil {
		return fmt.Errorf("save product family: %w", err)
	}
	return nil
}

func (s *Store) SaveProduct(ctx context.Context, p models.CanonicalProduct) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO canonical_products (id, family_id, vintage, volume_ml, pack_type, units_per_case, abv, grape)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			vintage = EXCLUDED.vintage,
			volume_ml = EXCLUDED.volume_ml,
			pack_type = EXCLUDED.pack_type,
			units_per_case = EXCLUDED.units_per_case,
			abv = EXCLUDED.abv,
			grape = EXCLUDED.grape`,
		p.ID, p.FamilyID, p.Vintage.Ptr(), p.VolumeML, string(p.PackType), p.UnitsPerCase.Ptr(), p.ABV.Ptr(), p.Grape,
	)
	if err != nil {
		return fmt.Errorf("save canonical product: %w", err)
	}
	return nil
}

func (s *Store) RegisterGTIN(ctx context.Context, entry models.RegistryEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO gtin_registry (gtin, product_id)
		VALUES ($1, $2)
		ON CONFLICT (gtin) DO UPDATE SET product_id = EXCLUDED.product_id`,
		entry.GTIN, entry.ProductID,
	)
	if err != nil {
		return fmt.Errorf("register gtin: %w", err)
	}
	return nil
}

// SaveMapping records a confirmed supplier SKU to product mapping.
func (s *Store) SaveMapping(ctx context.Context, supplierID, sku string, productID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO supplier_product_mappings (supplier_id, supplier_sku, canonical_product_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (supplier_id, supplier_sku) DO UPDATE SET
			canonical_product_id = EXCLUDED.canonical_product_id,
			confirmed_at = now()`,
		supplierID, sku, productID,
	)
	if err != nil {
		return fmt.Errorf("save supplier mapping: %w", err)
	}
	return nil
}
