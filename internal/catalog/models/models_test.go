package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winefeed/pkg/optional"
)

func TestParsePackType(t *testing.T) {
	for _, raw := range []string{"bottle", "CASE", " Magnum ", "Other"} {
		t.Run(raw, func(t *testing.T) {
			p, err := ParsePackType(raw)
			require.NoError(t, err)
			assert.True(t, p.IsValid())
		})
	}

	_, err := ParsePackType("keg")
	assert.ErrorIs(t, err, ErrUnknownPackType)
}

func validEntry() CatalogEntry {
	familyID := uuid.New()
	return CatalogEntry{
		Product: CanonicalProduct{
			ID:       uuid.New(),
			FamilyID: familyID,
			Vintage:  optional.Of(2019),
			VolumeML: 750,
			PackType: PackBottle,
		},
		Family: ProductFamily{ID: familyID, Producer: "Château Margaux", WineName: "Grand Vin"},
	}
}

func TestCatalogEntry_Validate(t *testing.T) {
	t.Run("valid entry", func(t *testing.T) {
		assert.NoError(t, validEntry().Validate())
	})

	t.Run("zero volume", func(t *testing.T) {
		e := validEntry()
		e.Product.VolumeML = 0
		assert.ErrorContains(t, e.Validate(), "volume must be positive")
	})

	t.Run("unknown pack type", func(t *testing.T) {
		e := validEntry()
		e.Product.PackType = "keg"
		assert.ErrorIs(t, e.Validate(), ErrUnknownPackType)
	})

	t.Run("non-positive units per case", func(t *testing.T) {
		e := validEntry()
		e.Product.UnitsPerCase = optional.Of(0)
		assert.ErrorContains(t, e.Validate(), "units per case")
	})

	t.Run("product from another family", func(t *testing.T) {
		e := validEntry()
		e.Family.ID = uuid.New()
		assert.ErrorContains(t, e.Validate(), "does not belong to family")
	})

	t.Run("all violations reported", func(t *testing.T) {
		e := validEntry()
		e.Product.VolumeML = -1
		e.Product.PackType = ""
		err := e.Validate()
		assert.ErrorContains(t, err, "volume")
		assert.ErrorIs(t, err, ErrUnknownPackType)
	})
}
