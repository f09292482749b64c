// Package models defines the matching engine's input, candidates and results.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	catalog "winefeed/internal/catalog/models"
	"winefeed/pkg/optional"
)

var (
	// ErrInvalidInput wraps validation failures of a supplier record.
	ErrInvalidInput = errors.New("invalid supplier product input")
	// ErrDuplicateSKU marks a repeated SKU within one batch; the first occurrence wins.
	ErrDuplicateSKU = errors.New("duplicate sku in batch")
)

// SupplierProductInput is one row of a supplier feed. It is never persisted.
type SupplierProductInput struct {
	SKU          string
	UnitGTIN     string
	CaseGTIN     string
	Producer     string
	ProductName  string
	Vintage      optional.Value[int]
	VolumeML     int
	ABV          optional.Value[float64]
	PackType     catalog.PackType
	UnitsPerCase optional.Value[int]
	Country      string
	Region       string
	Grape        string
}

func (in SupplierProductInput) Validate() error {
	var errs []error
	if strings.TrimSpace(in.SKU) == "" {
		errs = append(errs, errors.New("sku is required"))
	}
	if in.VolumeML <= 0 {
		errs = append(errs, fmt.Errorf("volume must be positive, got %d", in.VolumeML))
	}
	if !in.PackType.IsValid() {
		errs = append(errs, fmt.Errorf("%w: %q", catalog.ErrUnknownPackType, in.PackType))
	}
	return errors.Join(errs...)
}

// Barcode picks the GTIN to verify: the case GTIN for a case, otherwise the unit
// GTIN, falling back to whichever is present.
func (in SupplierProductInput) Barcode() string {
	unit, kase := strings.TrimSpace(in.UnitGTIN), strings.TrimSpace(in.CaseGTIN)
	if in.PackType == catalog.PackCase && kase != "" {
		return kase
	}
	if unit != "" {
		return unit
	}
	return kase
}

// Decision is the engine's verdict for one input.
type Decision string

const (
	DecisionAutoMatch         Decision = "AUTO_MATCH"
	DecisionAutoMatchSampling Decision = "AUTO_MATCH_WITH_SAMPLING_REVIEW"
	DecisionReviewQueue       Decision = "REVIEW_QUEUE"
	DecisionNoMatch           Decision = "NO_MATCH"
)

// IsAutomatic reports whether the match is accepted without waiting for a human.
func (d Decision) IsAutomatic() bool {
	return d == DecisionAutoMatch || d == DecisionAutoMatchSampling
}

// Reason is a stable code explaining a score contribution or an outcome.
type Reason string

const (
	ReasonSKUMappingFound  Reason = "SKU_MAPPING_FOUND"
	ReasonGTINExact        Reason = "GTIN_EXACT"
	ReasonGTINNotVerified  Reason = "GTIN_NOT_VERIFIED"
	ReasonGTINNotInCatalog Reason = "GTIN_NOT_IN_CATALOG"
	ReasonGTINUnavailable  Reason = "GTIN_VERIFICATION_UNAVAILABLE"
	ReasonProducerExact    Reason = "PRODUCER_EXACT"
	ReasonProducerFuzzy    Reason = "PRODUCER_FUZZY"
	ReasonProductNameExact Reason = "PRODUCT_NAME_EXACT"
	ReasonProductNameFuzzy Reason = "PRODUCT_NAME_FUZZY"
	ReasonVintageExact     Reason = "VINTAGE_EXACT"
	ReasonVintageMissing   Reason = "VINTAGE_MISSING"
	ReasonVintageMismatch  Reason = "VINTAGE_MISMATCH"
	ReasonVolumeMatch      Reason = "VOLUME_MATCH"
	ReasonPackMatch        Reason = "PACK_MATCH"
	ReasonABVMatch         Reason = "ABV_MATCH"
	ReasonCountryMatch     Reason = "COUNTRY_MATCH"
	ReasonRegionMatch      Reason = "REGION_MATCH"
	ReasonGrapeMatch       Reason = "GRAPE_MATCH"
	ReasonNoCandidates     Reason = "NO_CANDIDATES"
	ReasonBelowThreshold   Reason = "BELOW_THRESHOLD"
	ReasonGuardrailFailed  Reason = "GUARDRAIL_FAILED"
)

// GuardrailCode identifies a hard blocker.
type GuardrailCode string

const (
	GuardrailVolumeMismatch       GuardrailCode = "VOLUME_MISMATCH"
	GuardrailPackTypeMismatch     GuardrailCode = "PACK_TYPE_MISMATCH"
	GuardrailUnitsPerCaseMismatch GuardrailCode = "UNITS_PER_CASE_MISMATCH"
	GuardrailABVOutOfTolerance    GuardrailCode = "ABV_OUT_OF_TOLERANCE"
)

// GuardrailFailure is one violated hard blocker with a human-readable message.
type GuardrailFailure struct {
	Code    GuardrailCode
	Message string
}

// Stage records which resolution step produced the result.
type Stage string

const (
	StageMapping Stage = "mapping"
	StageBarcode Stage = "barcode"
	StageFuzzy   Stage = "fuzzy"
	StageNone    Stage = "none"
)

// Candidate is one catalog product considered for an input.
type Candidate struct {
	ProductID         uuid.UUID
	Score             int
	Reasons           []Reason
	GuardrailFailures []GuardrailFailure
	Entry             catalog.CatalogEntry
}

// MatchResult is the engine's output for one input.
//
// Invariants:
//   - Confidence is in [0,100]
//   - non-empty GuardrailFailures implies Decision == DecisionNoMatch
//   - ProductID is set only for automatic decisions
//   - Candidates (at most three) accompany only review and no-match decisions
type MatchResult struct {
	SKU               string
	Decision          Decision
	Confidence        int
	ProductID         uuid.UUID
	Reasons           []Reason
	GuardrailFailures []GuardrailFailure
	Candidates        []Candidate
	Stage             Stage
	DecidedAt         time.Time
}

// HasReason reports whether r is among the result's reasons.
func (r *MatchResult) HasReason(reason Reason) bool {
	for _, got := range r.Reasons {
		if got == reason {
			return true
		}
	}
	return false
}

// BatchResult holds per-SKU outcomes of a batch. A SKU appears in Failures when its
// row could not be matched at all; decisions, including NO_MATCH, go in Results.
type BatchResult struct {
	Results  map[string]*MatchResult
	Failures map[string]error
}
