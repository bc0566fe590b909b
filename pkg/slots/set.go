package slots

import "strings"

// Set is the multi-valued slot representation of one utterance. Each slot
// type maps to the canonical names recognised for it in order of
// appearance; duplicates are kept. Absent slots are simply empty.
type Set struct {
	values map[SlotType][]string

	// Numbers holds every numeric value in order of appearance.
	Numbers []Number

	// Description is the utterance with recognised spans and prepositions
	// removed. Skills use it as a fallback qualifier when matching entities
	// ("the big one").
	Description string

	// Utterance is the original input text.
	Utterance string
}

// Build groups spans by slot type and derives the free-text description.
//
// The description keeps every whitespace token of utterance that is neither
// part of any span's surface text nor one of the prepositions "in", "on",
// "at". Token comparison is case-insensitive. When the same surface text is
// tagged with two different slot types both spans are kept, each in its own
// slot; no attempt is made to disambiguate.
func Build(utterance string, spans []Span, numbers []Number) *Set {
	s := &Set{
		values:    make(map[SlotType][]string, len(Types)),
		Utterance: utterance,
	}
	for _, sp := range spans {
		if !sp.Type.IsValid() {
			continue
		}
		s.values[sp.Type] = append(s.values[sp.Type], sp.Canonical)
	}
	if len(numbers) > 0 {
		s.Numbers = append([]Number(nil), numbers...)
	}
	s.Description = describe(utterance, spans)
	return s
}

func describe(utterance string, spans []Span) string {
	literals := make(map[string]struct{})
	for _, sp := range spans {
		for _, tok := range strings.Fields(sp.Text) {
			literals[strings.ToLower(tok)] = struct{}{}
		}
	}

	var kept []string
	for _, tok := range strings.Fields(utterance) {
		lower := strings.ToLower(tok)
		if _, ok := literals[lower]; ok {
			continue
		}
		if _, ok := prepositions[lower]; ok {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// Values returns the canonical names recognised for t, in order of
// appearance. The returned slice must not be modified.
func (s *Set) Values(t SlotType) []string {
	return s.values[t]
}

// Has reports whether at least one value was recognised for t.
func (s *Set) Has(t SlotType) bool {
	return len(s.values[t]) > 0
}

// Count returns the number of recognised spans across all slot types.
func (s *Set) Count() int {
	n := 0
	for _, v := range s.values {
		n += len(v)
	}
	return n
}

// Empty reports whether no span was recognised. Numbers and the
// description do not count.
func (s *Set) Empty() bool {
	return s.Count() == 0
}

// ToSingleFirstOccurrence projects the set onto a [Single] by taking the
// first value of every non-empty slot.
func (s *Set) ToSingleFirstOccurrence() Single {
	out := s.emptySingle()
	for _, t := range Types {
		if v := s.values[t]; len(v) > 0 {
			out.values[t] = v[0]
		}
	}
	return out
}

// ToSingleByIndexes projects the set onto a [Single] using the requested
// index for each slot type. Slot types missing from indexes are omitted, and
// an index outside the recognised range silently omits that slot.
func (s *Set) ToSingleByIndexes(indexes map[SlotType]int) Single {
	out := s.emptySingle()
	for t, i := range indexes {
		v := s.values[t]
		if i >= 0 && i < len(v) {
			out.values[t] = v[i]
		}
	}
	return out
}

// SplitBy returns one [Single] per occurrence of slot type t. Every other
// slot type takes its first occurrence, so each element is a complete
// request on its own. SplitBy returns nil when t was not recognised.
func (s *Set) SplitBy(t SlotType) []Single {
	vals := s.values[t]
	if len(vals) == 0 {
		return nil
	}
	base := make(map[SlotType]int, len(Types))
	for _, other := range Types {
		if other != t && len(s.values[other]) > 0 {
			base[other] = 0
		}
	}

	out := make([]Single, 0, len(vals))
	for i := range vals {
		idx := make(map[SlotType]int, len(base)+1)
		for k, v := range base {
			idx[k] = v
		}
		idx[t] = i
		out = append(out, s.ToSingleByIndexes(idx))
	}
	return out
}

func (s *Set) emptySingle() Single {
	return Single{
		values:      make(map[SlotType]string, len(Types)),
		Numbers:     s.Numbers,
		Description: s.Description,
		Utterance:   s.Utterance,
	}
}

// Single is the single-valued projection of a [Set]: each slot type holds at
// most one canonical name. It lives for one dispatch cycle.
type Single struct {
	values map[SlotType]string

	Numbers     []Number
	Description string
	Utterance   string
}

// NewSingle builds a Single directly from slot values. Entries with an
// invalid slot type or an empty value are dropped.
func NewSingle(utterance, description string, values map[SlotType]string, numbers []Number) Single {
	out := Single{
		values:      make(map[SlotType]string, len(values)),
		Numbers:     numbers,
		Description: description,
		Utterance:   utterance,
	}
	for t, v := range values {
		if t.IsValid() && v != "" {
			out.values[t] = v
		}
	}
	return out
}

// Get returns the value of slot t and whether it is set.
func (s Single) Get(t SlotType) (string, bool) {
	v, ok := s.values[t]
	return v, ok
}

// Value returns the value of slot t, or "" when it is unset.
func (s Single) Value(t SlotType) string {
	return s.values[t]
}

// FirstNumber returns the first numeric value of the utterance.
func (s Single) FirstNumber() (Number, bool) {
	if len(s.Numbers) == 0 {
		return Number{}, false
	}
	return s.Numbers[0], true
}
