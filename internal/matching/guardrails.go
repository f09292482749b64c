package matching

import (
	"fmt"
	"math"

	catalog "winefeed/internal/catalog/models"
	"winefeed/internal/matching/models"
)

// CheckGuardrails returns every hard blocker the input violates against product.
// An empty result means the pair may be matched. Optional attributes are only
// compared when both sides carry them.
//
// Pure: no I/O, and the same arguments always yield the same failures in the
// same order.
func CheckGuardrails(in models.SupplierProductInput, product catalog.CanonicalProduct, abvTolerance float64) []models.GuardrailFailure {
	var failures []models.GuardrailFailure

	if in.VolumeML != product.VolumeML {
		failures = append(failures, models.GuardrailFailure{
			Code:    models.GuardrailVolumeMismatch,
			Message: fmt.Sprintf("volume %dml does not match catalog %dml", in.VolumeML, product.VolumeML),
		})
	}

	if in.PackType != product.PackType {
		failures = append(failures, models.GuardrailFailure{
			Code:    models.GuardrailPackTypeMismatch,
			Message: fmt.Sprintf("pack type %s does not match catalog %s", in.PackType, product.PackType),
		})
	}

	if got, ok := in.UnitsPerCase.Get(); ok {
		if want, ok := product.UnitsPerCase.Get(); ok && got != want {
			failures = append(failures, models.GuardrailFailure{
				Code:    models.GuardrailUnitsPerCaseMismatch,
				Message: fmt.Sprintf("%d units per case does not match catalog %d", got, want),
			})
		}
	}

	if got, ok := in.ABV.Get(); ok {
		if want, ok := product.ABV.Get(); ok && !withinTolerance(got, want, abvTolerance) {
			failures = append(failures, models.GuardrailFailure{
				Code:    models.GuardrailABVOutOfTolerance,
				Message: fmt.Sprintf("abv %.1f%% differs from catalog %.1f%% by more than %.1f", got, want, abvTolerance),
			})
		}
	}

	return failures
}

// withinTolerance absorbs float noise so that 13.0 vs 13.5 passes a 0.5 tolerance.
func withinTolerance(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance+1e-9
}
