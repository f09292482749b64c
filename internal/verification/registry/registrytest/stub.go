// Package registrytest provides an in-memory registry.Client for tests of
// packages that sit on top of the verification service.
package registrytest

import (
	"context"
	"net/http"
	"sync"

	"winefeed/internal/verification/registry"
)

// Stub answers from a table: registered GTINs are found, everything else is a
// 404. SetFailing switches every lookup to a registry outage.
type Stub struct {
	mu         sync.Mutex
	registered map[string]bool
	failing    bool
	calls      int
}

func NewStub(registered ...string) *Stub {
	s := &Stub{registered: make(map[string]bool)}
	for _, gtin := range registered {
		s.registered[gtin] = true
	}
	return s
}

func (s *Stub) Lookup(_ context.Context, gtin string) (*registry.LookupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failing {
		return nil, &registry.LookupError{
			Category:   registry.ErrorOutage,
			StatusCode: http.StatusServiceUnavailable,
			Message:    "registry outage",
		}
	}
	if !s.registered[gtin] {
		return &registry.LookupResult{GTIN: gtin, StatusCode: http.StatusNotFound}, nil
	}
	return &registry.LookupResult{
		GTIN:       gtin,
		Found:      true,
		StatusCode: http.StatusOK,
		Payload:    []byte(`{"gtin":"` + gtin + `"}`),
	}, nil
}

func (s *Stub) Register(gtin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered[gtin] = true
}

func (s *Stub) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

// Calls returns the number of lookups served so far.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
