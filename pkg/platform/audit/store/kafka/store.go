// Package kafka forwards decision events to a Kafka topic as JSON records keyed by
// supplier SKU.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	audit "winefeed/pkg/platform/audit"
)

// Producer is the narrow slice of a Kafka client the store needs.
type Producer interface {
	Produce(ctx context.Context, key, value []byte) error
}

type Store struct {
	producer Producer
}

func New(producer Producer) *Store {
	return &Store{producer: producer}
}

func (s *Store) Append(ctx context.Context, event audit.DecisionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode decision event: %w", err)
	}
	if err := s.producer.Produce(ctx, []byte(event.Key()), payload); err != nil {
		return fmt.Errorf("produce decision event: %w", err)
	}
	return nil
}
