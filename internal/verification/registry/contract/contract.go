// Package contract holds reusable checks that any registry.Client implementation,
// fake or real, must satisfy.
package contract

import (
	"context"
	"encoding/json"
	"testing"

	"winefeed/internal/verification/registry"
)

// ContractTest describes one successful lookup.
type ContractTest struct {
	Name         string
	Client       registry.Client
	GTIN         string
	ExpectFound  bool
	ValidateFunc func(result *registry.LookupResult) error
}

// ContractSuite is a collection of lookup expectations for one client.
type ContractSuite struct {
	ClientName string
	Tests      []ContractTest
}

// Run executes every test in the suite.
func (s *ContractSuite) Run(t *testing.T) {
	for _, test := range s.Tests {
		t.Run(s.ClientName+"/"+test.Name, func(t *testing.T) {
			result, err := test.Client.Lookup(context.Background(), test.GTIN)
			if err != nil {
				t.Fatalf("lookup failed: %v", err)
			}

			if result.GTIN != test.GTIN {
				t.Errorf("expected gtin %s, got %s", test.GTIN, result.GTIN)
			}
			if result.Found != test.ExpectFound {
				t.Errorf("expected found=%v, got %v", test.ExpectFound, result.Found)
			}
			if result.Found && !json.Valid(result.Payload) {
				t.Errorf("found result carries non-JSON payload %q", string(result.Payload))
			}
			if !result.Found && len(result.Payload) != 0 {
				t.Errorf("not-found result should have no payload, got %q", string(result.Payload))
			}

			if test.ValidateFunc != nil {
				if err := test.ValidateFunc(result); err != nil {
					t.Errorf("custom validation failed: %v", err)
				}
			}
		})
	}
}

// ErrorContractTest validates that a failing lookup follows the error taxonomy.
type ErrorContractTest struct {
	Name             string
	Client           registry.Client
	GTIN             string
	ExpectedCategory registry.ErrorCategory
	ExpectedStatus   int
}

func (ect *ErrorContractTest) Run(t *testing.T) {
	t.Run(ect.Name, func(t *testing.T) {
		result, err := ect.Client.Lookup(context.Background(), ect.GTIN)
		if err == nil {
			t.Fatalf("expected error but got result %+v", result)
		}

		if category := registry.GetCategory(err); category != ect.ExpectedCategory {
			t.Errorf("expected error category %s, got %s (%v)", ect.ExpectedCategory, category, err)
		}
		if ect.ExpectedStatus != 0 {
			if status := registry.StatusCode(err); status != ect.ExpectedStatus {
				t.Errorf("expected status %d, got %d", ect.ExpectedStatus, status)
			}
		}
	})
}
