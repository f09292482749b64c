package memory

import (
	"context"
	"sync"

	audit "winefeed/pkg/platform/audit"
)

// InMemoryStore keeps decision events in emission order.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.DecisionEvent
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.DecisionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListAll returns a copy of every stored event.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.DecisionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.DecisionEvent{}, s.events...), nil
}

// ListBySKU returns the events for one supplier SKU.
func (s *InMemoryStore) ListBySKU(_ context.Context, supplierID, sku string) ([]audit.DecisionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.DecisionEvent
	for _, e := range s.events {
		if e.SupplierID == supplierID && e.SKU == sku {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
