// Package models holds the catalog's canonical product types. They are pure values:
// no I/O, and validation is the only behaviour.
//
// A CanonicalProduct is one sellable item (a vintage of a wine in a specific volume
// and pack). A ProductFamily groups the vintages and sizes of the same wine.
package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"winefeed/pkg/optional"
)

// PackType is the container format of a product.
type PackType string

const (
	PackBottle PackType = "bottle"
	PackCase   PackType = "case"
	PackMagnum PackType = "magnum"
	PackOther  PackType = "other"
)

// ErrUnknownPackType is returned by ParsePackType for values outside the enum.
var ErrUnknownPackType = errors.New("unknown pack type")

// ParsePackType parses a pack type case-insensitively.
func ParsePackType(s string) (PackType, error) {
	p := PackType(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPackType, s)
	}
	return p, nil
}

func (p PackType) IsValid() bool {
	switch p {
	case PackBottle, PackCase, PackMagnum, PackOther:
		return true
	}
	return false
}

func (p PackType) String() string { return string(p) }

// ProductFamily groups the vintages and formats of one wine.
type ProductFamily struct {
	ID       uuid.UUID
	Producer string
	WineName string
	Country  string
	Region   string
}

// CanonicalProduct is the authoritative catalog record for one sellable item.
//
// Invariants:
//   - VolumeML > 0
//   - PackType is a known value
//   - UnitsPerCase, when set, is > 0
type CanonicalProduct struct {
	ID           uuid.UUID
	FamilyID     uuid.UUID
	Vintage      optional.Value[int]
	VolumeML     int
	PackType     PackType
	UnitsPerCase optional.Value[int]
	ABV          optional.Value[float64]
	Grape        string
}

// CatalogEntry is a canonical product joined with its family: the shape the
// matching engine scores against.
type CatalogEntry struct {
	Product CanonicalProduct
	Family  ProductFamily
}

// Validate enforces the catalog invariants at the store boundary.
func (e CatalogEntry) Validate() error {
	var errs []error
	if e.Product.ID == uuid.Nil {
		errs = append(errs, errors.New("product id is required"))
	}
	if e.Product.VolumeML <= 0 {
		errs = append(errs, fmt.Errorf("volume must be positive, got %d", e.Product.VolumeML))
	}
	if !e.Product.PackType.IsValid() {
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownPackType, e.Product.PackType))
	}
	if units, ok := e.Product.UnitsPerCase.Get(); ok && units <= 0 {
		errs = append(errs, fmt.Errorf("units per case must be positive, got %d", units))
	}
	if e.Product.FamilyID != e.Family.ID {
		errs = append(errs, errors.New("product does not belong to family"))
	}
	return errors.Join(errs...)
}

// RegistryEntry maps a 14-digit GTIN to the canonical product it identifies.
type RegistryEntry struct {
	GTIN      string
	ProductID uuid.UUID
}
