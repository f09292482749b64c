package matching

import (
	"errors"
	"fmt"
)

// Weights are the points each attribute contributes to a candidate's score.
type Weights struct {
	ProducerExact int
	ProducerFuzzy int
	ProductExact  int
	ProductFuzzy  int
	Vintage       int
	Volume        int
	Pack          int
	ABV           int
	Country       int
	Region        int
	Grape         int

	// Barcode path
	GTINBase      int
	BarcodeVolume int
	BarcodePack   int
}

// Config holds the scoring weights, similarity cut-offs and decision thresholds.
// They are tuning constants, not derived values.
type Config struct {
	Weights Weights

	ProducerSimilarity float64
	ProductSimilarity  float64
	ABVTolerance       float64

	MinCandidateScore   int
	MappingConfidence   int
	AutoMatchThreshold  int
	SamplingThreshold   int
	ReviewThreshold     int
	MaxReviewCandidates int
	BatchConcurrency    int
}

func DefaultWeights() Weights {
	return Weights{
		ProducerExact: 15,
		ProducerFuzzy: 10,
		ProductExact:  15,
		ProductFuzzy:  10,
		Vintage:       10,
		Volume:        10,
		Pack:          10,
		ABV:           5,
		Country:       3,
		Region:        3,
		Grape:         2,
		GTINBase:      70,
		BarcodeVolume: 5,
		BarcodePack:   5,
	}
}

func DefaultConfig() Config {
	return Config{
		Weights:             DefaultWeights(),
		ProducerSimilarity:  0.90,
		ProductSimilarity:   0.92,
		ABVTolerance:        0.5,
		MinCandidateScore:   50,
		MappingConfidence:   90,
		AutoMatchThreshold:  90,
		SamplingThreshold:   80,
		ReviewThreshold:     60,
		MaxReviewCandidates: 3,
		BatchConcurrency:    4,
	}
}

// Validate rejects configurations that would break the decision ladder.
func (c Config) Validate() error {
	var errs []error
	if !(c.ReviewThreshold < c.SamplingThreshold && c.SamplingThreshold < c.AutoMatchThreshold && c.AutoMatchThreshold <= maxConfidence) {
		errs = append(errs, fmt.Errorf("thresholds must satisfy review < sampling < auto <= %d, got %d/%d/%d",
			maxConfidence, c.ReviewThreshold, c.SamplingThreshold, c.AutoMatchThreshold))
	}
	if c.ReviewThreshold < 0 {
		errs = append(errs, errors.New("review threshold must not be negative"))
	}
	if c.MappingConfidence < 0 || c.MappingConfidence > maxConfidence {
		errs = append(errs, fmt.Errorf("mapping confidence must be in [0,%d]", maxConfidence))
	}
	if c.ProducerSimilarity <= 0 || c.ProducerSimilarity > 1 || c.ProductSimilarity <= 0 || c.ProductSimilarity > 1 {
		errs = append(errs, errors.New("similarity cut-offs must be in (0,1]"))
	}
	if c.ABVTolerance < 0 {
		errs = append(errs, errors.New("abv tolerance must not be negative"))
	}
	if c.MaxReviewCandidates <= 0 {
		errs = append(errs, errors.New("max review candidates must be positive"))
	}
	if c.BatchConcurrency <= 0 {
		errs = append(errs, errors.New("batch concurrency must be positive"))
	}
	return errors.Join(errs...)
}
