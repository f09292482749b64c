// Package audit carries match decision events from the matching engine to the
// review-queue consumers. Emission is best-effort: a failed write is logged and
// counted but never changes the decision that produced it.
package audit

import (
	"context"
	"time"
)

// DecisionEvent records one match outcome.
type DecisionEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id,omitempty"`
	BatchID      string    `json:"batch_id,omitempty"`
	SupplierID   string    `json:"supplier_id"`
	SKU          string    `json:"sku"`
	Stage        string    `json:"stage"`
	Decision     string    `json:"decision"`
	Confidence   int       `json:"confidence"`
	ProductID    string    `json:"product_id,omitempty"`
	Reasons      []string  `json:"reasons"`
	CandidateIDs []string  `json:"candidate_ids,omitempty"`
}

// Key is the partitioning key: all decisions for one supplier SKU land in order.
func (e DecisionEvent) Key() string {
	return e.SupplierID + "/" + e.SKU
}

// NeedsReview reports whether a human is expected to look at this decision.
func (e DecisionEvent) NeedsReview() bool {
	return e.Decision == "REVIEW_QUEUE" || e.Decision == "AUTO_MATCH_WITH_SAMPLING_REVIEW"
}

// Store persists or forwards decision events.
type Store interface {
	Append(ctx context.Context, event DecisionEvent) error
}
