// Package optional models fields that may be absent on one or both sides of a
// comparison. Matching rules hinge on "present on both sides", so the zero value
// of a field must never be confused with "not provided".
package optional

import "fmt"

// Value holds an optional T. The zero Value is absent.
type Value[T any] struct {
	value T
	set   bool
}

// Of returns a present Value holding v.
func Of[T any](v T) Value[T] {
	return Value[T]{value: v, set: true}
}

// None returns an absent Value.
func None[T any]() Value[T] {
	return Value[T]{}
}

// FromPtr converts a nullable pointer, typically from a database scan, into a Value.
func FromPtr[T any](p *T) Value[T] {
	if p == nil {
		return None[T]()
	}
	return Of(*p)
}

// IsSet reports whether a value is present.
func (v Value[T]) IsSet() bool {
	return v.set
}

// Get returns the value and whether it is present.
func (v Value[T]) Get() (T, bool) {
	return v.value, v.set
}

// OrElse returns the value when present, otherwise fallback.
func (v Value[T]) OrElse(fallback T) T {
	if v.set {
		return v.value
	}
	return fallback
}

// Ptr returns a pointer to a copy of the value, or nil when absent.
func (v Value[T]) Ptr() *T {
	if !v.set {
		return nil
	}
	out := v.value
	return &out
}

func (v Value[T]) String() string {
	if !v.set {
		return "<none>"
	}
	return fmt.Sprint(v.value)
}

// Presence describes how an optional field is populated across two records.
type Presence int

const (
	NeitherSet Presence = iota
	OnlyLeftSet
	OnlyRightSet
	BothSet
)

// Compare classifies the presence of a and b.
func Compare[T any](a, b Value[T]) Presence {
	switch {
	case a.set && b.set:
		return BothSet
	case a.set:
		return OnlyLeftSet
	case b.set:
		return OnlyRightSet
	default:
		return NeitherSet
	}
}
