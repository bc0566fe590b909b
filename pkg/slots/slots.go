// Package slots holds the structured form of one recognised utterance.
//
// A recogniser reports typed spans ("light" is a thing, "kitchen" a
// location) and numeric values. [Build] groups them into a multi-valued
// [Set] that keeps every occurrence in the order it was spoken. Skills
// usually work on a [Single], the projection that carries at most one value
// per slot type. [Set.SplitBy] produces several Singles when an utterance
// names the same slot type more than once ("turn on the light in kitchen and
// office").
//
// The package has no dependencies outside the standard library and all types
// are plain values; a Set must not be mutated after [Build] returns.
package slots

import (
	"fmt"
	"strings"
)

// SlotType is a named category of recognised information.
type SlotType string

const (
	Thing     SlotType = "thing"
	Attribute SlotType = "attribute"
	Location  SlotType = "location"
	State     SlotType = "state"
	Action    SlotType = "action"
)

// Types lists every slot type in canonical order.
var Types = []SlotType{Thing, Attribute, Location, State, Action}

// IsValid reports whether t is one of the five recognised slot types.
func (t SlotType) IsValid() bool {
	switch t {
	case Thing, Attribute, Location, State, Action:
		return true
	}
	return false
}

// ParseSlotType converts s into a [SlotType]. Plural forms ("things",
// "locations") are accepted because vocabulary directories use them.
func ParseSlotType(s string) (SlotType, error) {
	t := SlotType(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	if !t.IsValid() {
		return "", fmt.Errorf("slots: unknown slot type %q", s)
	}
	return t, nil
}

// Span is one recognised entity in the utterance text.
type Span struct {
	// Type is the slot category of the span.
	Type SlotType

	// Canonical is the vocabulary name the span resolves to (e.g. "light"
	// for the surface text "lamp").
	Canonical string

	// Text is the surface text exactly as it appeared in the utterance.
	Text string
}

// Number is a numeric value extracted from the utterance. Percentages,
// fractions and named presets are reported as fractions of one.
type Number struct {
	Value float64

	// Unit is empty when no unit was spoken. "C" denotes degrees Celsius.
	Unit string
}

// prepositions are dropped from the free-text description.
var prepositions = map[string]struct{}{
	"in": {},
	"on": {},
	"at": {},
}
