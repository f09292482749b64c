// Package memory is an in-process catalog and supplier mapping store for tests
// and local runs.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"winefeed/internal/catalog/models"
	"winefeed/pkg/platform/sentinel"
)

type mappingKey struct {
	supplierID string
	sku        string
}

// Store keeps families, products, GTIN registrations and confirmed supplier
// mappings in maps guarded by one lock.
type Store struct {
	mu       sync.RWMutex
	families map[uuid.UUID]models.ProductFamily
	products map[uuid.UUID]models.CanonicalProduct
	gtins    map[string]uuid.UUID
	mappings map[mappingKey]uuid.UUID
}

func New() *Store {
	return &Store{
		families: make(map[uuid.UUID]models.ProductFamily),
		products: make(map[uuid.UUID]models.CanonicalProduct),
		gtins:    make(map[string]uuid.UUID),
		mappings: make(map[mappingKey]uuid.UUID),
	}
}

func (s *Store) SaveFamily(_ context.Context, family models.ProductFamily) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.families[family.ID] = family
	return nil
}

// SaveProduct stores a product whose family already exists. Products violating
// the catalog invariants are rejected.
func (s *Store) SaveProduct(_ context.Context, product models.CanonicalProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	family, ok := s.families[product.FamilyID]
	if !ok {
		return fmt.Errorf("family %s: %w", product.FamilyID, sentinel.ErrNotFound)
	}
	entry := models.CatalogEntry{Product: product, Family: family}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", sentinel.ErrInvalidRecord, err)
	}
	s.products[product.ID] = product
	return nil
}

func (s *Store) RegisterGTIN(_ context.Context, entry models.RegistryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[entry.ProductID]; !ok {
		return fmt.Errorf("product %s: %w", entry.ProductID, sentinel.ErrNotFound)
	}
	s.gtins[entry.GTIN] = entry.ProductID
	return nil
}

// SaveMapping records a confirmed supplier SKU to product mapping.
func (s *Store) SaveMapping(_ context.Context, supplierID, sku string, productID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[mappingKey{supplierID, sku}] = productID
	return nil
}

// Get returns the product id a supplier SKU is mapped to.
func (s *Store) Get(_ context.Context, supplierID, sku string) (uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.mappings[mappingKey{supplierID, sku}]
	if !ok {
		return uuid.Nil, sentinel.ErrNotFound
	}
	return id, nil
}

func (s *Store) FindByGTIN(_ context.Context, gtin string) (*models.CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	productID, ok := s.gtins[gtin]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	entry, ok := s.entry(productID)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &entry, nil
}

// FindByVolumeAndPack returns every product with exactly this volume and pack
// type, ordered by product id.
func (s *Store) FindByVolumeAndPack(_ context.Context, volumeML int, pack models.PackType) ([]models.CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.CatalogEntry
	for id, p := range s.products {
		if p.VolumeML != volumeML || p.PackType != pack {
			continue
		}
		if entry, ok := s.entry(id); ok {
			out = append(out, entry)
		}
	}
	slices.SortFunc(out, func(a, b models.CatalogEntry) int {
		return strings.Compare(a.Product.ID.String(), b.Product.ID.String())
	})
	return out, nil
}

func (s *Store) entry(productID uuid.UUID) (models.CatalogEntry, bool) {
	p, ok := s.products[productID]
	if !ok {
		return models.CatalogEntry{}, false
	}
	f, ok := s.families[p.FamilyID]
	if !ok {
		return models.CatalogEntry{}, false
	}
	return models.CatalogEntry{Product: p, Family: f}, true
}
