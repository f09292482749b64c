package matching

import (
	catalog "winefeed/internal/catalog/models"
	"winefeed/internal/matching/models"
	"winefeed/pkg/optional"
	textnorm "winefeed/pkg/platform/strings"
)

// ScoreCandidate scores a catalog entry reached through the volume/pack pre-filter.
// Each matching attribute adds its weight and a reason; the total is capped at 100.
func ScoreCandidate(in models.SupplierProductInput, entry catalog.CatalogEntry, cfg Config) models.Candidate {
	w := cfg.Weights
	s := &scorer{}

	s.name(in.Producer, entry.Family.Producer, cfg.ProducerSimilarity,
		w.ProducerExact, models.ReasonProducerExact, w.ProducerFuzzy, models.ReasonProducerFuzzy)
	s.name(in.ProductName, entry.Family.WineName, cfg.ProductSimilarity,
		w.ProductExact, models.ReasonProductNameExact, w.ProductFuzzy, models.ReasonProductNameFuzzy)

	if vintagesAgree(in.Vintage, entry.Product.Vintage) {
		s.add(w.Vintage, models.ReasonVintageExact)
	}
	if in.VolumeML == entry.Product.VolumeML {
		s.add(w.Volume, models.ReasonVolumeMatch)
	}
	if in.PackType == entry.Product.PackType {
		s.add(w.Pack, models.ReasonPackMatch)
	}
	if got, ok := in.ABV.Get(); ok {
		if want, ok := entry.Product.ABV.Get(); ok && withinTolerance(got, want, cfg.ABVTolerance) {
			s.add(w.ABV, models.ReasonABVMatch)
		}
	}
	if sameText(in.Country, entry.Family.Country) {
		s.add(w.Country, models.ReasonCountryMatch)
	}
	if sameText(in.Region, entry.Family.Region) {
		s.add(w.Region, models.ReasonRegionMatch)
	}
	if textnorm.SameSet(in.Grape, entry.Product.Grape) {
		s.add(w.Grape, models.ReasonGrapeMatch)
	}

	return s.candidate(entry)
}

// ScoreBarcodeCandidate scores the product linked to a verified GTIN. Volume and
// pack are checked explicitly because the entry did not pass the pre-filter.
func ScoreBarcodeCandidate(in models.SupplierProductInput, entry catalog.CatalogEntry, cfg Config) models.Candidate {
	w := cfg.Weights
	s := &scorer{}

	s.add(w.GTINBase, models.ReasonGTINExact)
	if in.VolumeML == entry.Product.VolumeML {
		s.add(w.BarcodeVolume, models.ReasonVolumeMatch)
	}
	if in.PackType == entry.Product.PackType {
		s.add(w.BarcodePack, models.ReasonPackMatch)
	}
	s.name(in.Producer, entry.Family.Producer, cfg.ProducerSimilarity,
		w.ProducerExact, models.ReasonProducerExact, w.ProducerFuzzy, models.ReasonProducerFuzzy)
	if vintagesAgree(in.Vintage, entry.Product.Vintage) {
		s.add(w.Vintage, models.ReasonVintageExact)
	}

	return s.candidate(entry)
}

type scorer struct {
	score   int
	reasons []models.Reason
}

func (s *scorer) add(points int, reason models.Reason) {
	s.score += points
	s.reasons = append(s.reasons, reason)
}

// name awards exact points for equal normalised text, otherwise fuzzy points when
// the similarity ratio reaches the cut-off.
func (s *scorer) name(supplier, reference string, cutoff float64, exact int, exactReason models.Reason, fuzzy int, fuzzyReason models.Reason) {
	a, b := textnorm.Normalize(supplier), textnorm.Normalize(reference)
	if a == "" || b == "" {
		return
	}
	if a == b {
		s.add(exact, exactReason)
		return
	}
	if textnorm.Similarity(a, b) >= cutoff {
		s.add(fuzzy, fuzzyReason)
	}
}

func (s *scorer) candidate(entry catalog.CatalogEntry) models.Candidate {
	return models.Candidate{
		ProductID: entry.Product.ID,
		Score:     clampConfidence(s.score),
		Reasons:   s.reasons,
		Entry:     entry,
	}
}

// vintagesAgree treats two non-vintage records as an exact match.
func vintagesAgree(a, b optional.Value[int]) bool {
	return CheckVintage(a, b) == ""
}

func sameText(a, b string) bool {
	n := textnorm.Normalize(a)
	return n != "" && n == textnorm.Normalize(b)
}
