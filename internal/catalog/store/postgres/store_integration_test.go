//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"winefeed/internal/catalog/models"
	"winefeed/internal/catalog/store/postgres"
	"winefeed/pkg/optional"
	"winefeed/pkg/platform/sentinel"
	"winefeed/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	ctx      context.Context
	family   models.ProductFamily
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.Pool, nil)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.ctx = context.Background()
	err := s.postgres.TruncateTables(s.ctx, "supplier_product_mappings", "gtin_registry", "canonical_products", "product_families")
	s.Require().NoError(err)

	s.family = models.ProductFamily{
		ID:       uuid.New(),
		Producer: "Domaine du Vieux Télégraphe",
		WineName: "La Crau",
		Country:  "France",
		Region:   "Châteauneuf-du-Pape",
	}
	s.Require().NoError(s.store.SaveFamily(s.ctx, s.family))
}

func (s *PostgresStoreSuite) saveProduct(volume int, pack models.PackType, abv optional.Value[float64]) models.CanonicalProduct {
	p := models.CanonicalProduct{
		ID:       uuid.New(),
		FamilyID: s.family.ID,
		Vintage:  optional.Of(2019),
		VolumeML: volume,
		PackType: pack,
		ABV:      abv,
		Grape:    "Grenache, Syrah, Mourvèdre",
	}
	s.Require().NoError(s.store.SaveProduct(s.ctx, p))
	return p
}

func (s *PostgresStoreSuite) TestFindByVolumeAndPack() {
	bottle := s.saveProduct(750, models.PackBottle, optional.Of(14.5))
	s.saveProduct(1500, models.PackMagnum, optional.None[float64]())

	entries, err := s.store.FindByVolumeAndPack(s.ctx, 750, models.PackBottle)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)

	got := entries[0]
	s.Equal(bottle.ID, got.Product.ID)
	s.Equal(s.family.Producer, got.Family.Producer)
	s.Equal(optional.Of(2019), got.Product.Vintage)
	s.Equal(optional.Of(14.5), got.Product.ABV)
	s.False(got.Product.UnitsPerCase.IsSet())
}

func (s *PostgresStoreSuite) TestFindByGTIN() {
	p := s.saveProduct(750, models.PackBottle, optional.None[float64]())
	s.Require().NoError(s.store.RegisterGTIN(s.ctx, models.RegistryEntry{GTIN: "03760035400019", ProductID: p.ID}))

	entry, err := s.store.FindByGTIN(s.ctx, "03760035400019")
	s.Require().NoError(err)
	s.Equal(p.ID, entry.Product.ID)

	_, err = s.store.FindByGTIN(s.ctx, "00000000000000")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestMappings() {
	p := s.saveProduct(750, models.PackBottle, optional.None[float64]())
	s.Require().NoError(s.store.SaveMapping(s.ctx, "sup-1", "VT-LACRAU-19", p.ID))

	id, err := s.store.Get(s.ctx, "sup-1", "VT-LACRAU-19")
	s.Require().NoError(err)
	s.Equal(p.ID, id)

	_, err = s.store.Get(s.ctx, "sup-1", "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
