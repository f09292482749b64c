package matching

import (
	"winefeed/internal/matching/models"
	"winefeed/pkg/optional"
)

// CheckVintage applies the vintage policy. It returns "" when the vintages agree
// (including both non-vintage) and otherwise the reason the pair needs a human.
func CheckVintage(supplier, catalog optional.Value[int]) models.Reason {
	switch optional.Compare(supplier, catalog) {
	case optional.NeitherSet:
		return ""
	case optional.OnlyLeftSet, optional.OnlyRightSet:
		return models.ReasonVintageMissing
	}
	a, _ := supplier.Get()
	b, _ := catalog.Get()
	if a != b {
		return models.ReasonVintageMismatch
	}
	return ""
}
