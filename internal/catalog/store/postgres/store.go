// Package postgres reads the catalog and supplier mappings from PostgreSQL through
// a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"winefeed/internal/catalog/models"
	"winefeed/pkg/optional"
	"winefeed/pkg/platform/sentinel"
)

const entryColumns = `
	p.id, p.family_id, p.vintage, p.volume_ml, p.pack_type, p.units_per_case, p.abv::float8, p.grape,
	f.id, f.producer, f.wine_name, f.country, f.region`

// Store is the PostgreSQL catalog store. Rows violating the catalog invariants are
// skipped with a warning and never returned.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// Get returns the product id a supplier SKU is mapped to.
func (s *Store) Get(ctx context.Context, supplierID, sku string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT canonical_product_id
		FROM supplier_product_mappings
		WHERE supplier_id = $1 AND supplier_sku = $2`,
		supplierID, sku,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, sentinel.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("get supplier mapping: %w", err)
	}
	return id, nil
}

func (s *Store) FindByGTIN(ctx context.Context, gtin string) (*models.CatalogEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM gtin_registry g
		JOIN canonical_products p ON p.id = g.product_id
		JOIN product_families f ON f.id = p.family_id
		WHERE g.gtin = $1`,
		gtin,
	)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find by gtin: %w", err)
	}
	if err := entry.Validate(); err != nil {
		s.logger.WarnContext(ctx, "skipping invalid catalog row",
			"product_id", entry.Product.ID,
			"gtin", gtin,
			"error", err,
		)
		return nil, fmt.Errorf("product %s: %w", entry.Product.ID, sentinel.ErrInvalidRecord)
	}
	return &entry, nil
}

func (s *Store) FindByVolumeAndPack(ctx context.Context, volumeML int, pack models.PackType) ([]models.CatalogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM canonical_products p
		JOIN product_families f ON f.id = p.family_id
		WHERE p.volume_ml = $1 AND p.pack_type = $2
		ORDER BY p.id`,
		volumeML, string(pack),
	)
	if err != nil {
		return nil, fmt.Errorf("find by volume and pack: %w", err)
	}
	defer rows.Close()

	var out []models.CatalogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		if err := entry.Validate(); err != nil {
			s.logger.WarnContext(ctx, "skipping invalid catalog row",
				"product_id", entry.Product.ID,
				"error", err,
			)
			continue
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog rows: %w", err)
	}
	return out, nil
}

func scanEntry(row pgx.Row) (models.CatalogEntry, error) {
	var (
		e            models.CatalogEntry
		vintage      *int
		unitsPerCase *int
		abv          *float64
		packType     string
	)
	err := row.Scan(
		&e.Product.ID, &e.Product.FamilyID, &vintage, &e.Product.VolumeML, &packType,
		&unitsPerCase, &abv, &e.Product.Grape,
		&e.Family.ID, &e.Family.Producer, &e.Family.WineName, &e.Family.Country, &e.Family.Region,
	)
	if err != nil {
		return models.CatalogEntry{}, err
	}
	e.Product.PackType = models.PackType(packType)
	e.Product.Vintage = optional.FromPtr(vintage)
	e.Product.UnitsPerCase = optional.FromPtr(unitsPerCase)
	e.Product.ABV = optional.FromPtr(abv)
	return e, nil
}
