package slots

import (
	"slices"
	"testing"
)

func kitchenAndOffice() *Set {
	return Build("turn on the light in kitchen and office", []Span{
		{Type: Action, Canonical: "on", Text: "turn on"},
		{Type: Thing, Canonical: "light", Text: "light"},
		{Type: Location, Canonical: "kitchen", Text: "kitchen"},
		{Type: Location, Canonical: "office", Text: "office"},
	}, nil)
}

func TestBuild_GroupsSpansInOrder(t *testing.T) {
	t.Parallel()

	s := kitchenAndOffice()

	if got := s.Values(Location); !slices.Equal(got, []string{"kitchen", "office"}) {
		t.Errorf("Values(location) = %v, want [kitchen office]", got)
	}
	if got := s.Values(Thing); !slices.Equal(got, []string{"light"}) {
		t.Errorf("Values(thing) = %v, want [light]", got)
	}
	if s.Has(Attribute) {
		t.Errorf("Has(attribute) = true, want false")
	}
	if s.Count() != 4 {
		t.Errorf("Count() = %d, want 4", s.Count())
	}
	if s.Empty() {
		t.Error("Empty() = true, want false")
	}
}

func TestBuild_KeepsDuplicates(t *testing.T) {
	t.Parallel()

	s := Build("light and light", []Span{
		{Type: Thing, Canonical: "light", Text: "light"},
		{Type: Thing, Canonical: "light", Text: "light"},
	}, nil)
	if got := s.Values(Thing); len(got) != 2 {
		t.Fatalf("Values(thing) = %v, want two entries", got)
	}
}

func TestBuild_Description(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		utterance string
		spans     []Span
		want      string
	}{
		{
			name:      "removes spans and prepositions",
			utterance: "turn on the big light in kitchen",
			spans: []Span{
				{Type: Action, Canonical: "on", Text: "turn on"},
				{Type: Thing, Canonical: "light", Text: "light"},
				{Type: Location, Canonical: "kitchen", Text: "kitchen"},
			},
			want: "the big",
		},
		{
			name:      "prepositions are case-insensitive",
			utterance: "Light AT desk",
			spans:     []Span{{Type: Thing, Canonical: "light", Text: "light"}},
			want:      "desk",
		},
		{
			name:      "nothing left",
			utterance: "lights on",
			spans: []Span{
				{Type: Thing, Canonical: "light", Text: "lights"},
				{Type: Action, Canonical: "on", Text: "on"},
			},
			want: "",
		},
		{
			name:      "no spans",
			utterance: "hello  there",
			want:      "hello there",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Build(tc.utterance, tc.spans, nil).Description; got != tc.want {
				t.Errorf("Description = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuild_SameTextTwoTypes(t *testing.T) {
	t.Parallel()

	s := Build("warm light", []Span{
		{Type: State, Canonical: "warm", Text: "warm"},
		{Type: Attribute, Canonical: "temperature", Text: "warm"},
		{Type: Thing, Canonical: "light", Text: "light"},
	}, nil)
	if !s.Has(State) || !s.Has(Attribute) {
		t.Fatalf("both spans should be kept, got state=%v attribute=%v", s.Values(State), s.Values(Attribute))
	}
}

func TestBuild_IgnoresInvalidSlotType(t *testing.T) {
	t.Parallel()

	s := Build("x", []Span{{Type: "colour", Canonical: "red", Text: "x"}}, nil)
	if s.Count() != 0 || !s.Empty() {
		t.Fatalf("Count() = %d, Empty() = %v; want an empty set", s.Count(), s.Empty())
	}
}

func TestToSingleFirstOccurrence(t *testing.T) {
	t.Parallel()

	single := kitchenAndOffice().ToSingleFirstOccurrence()
	if got := single.Value(Location); got != "kitchen" {
		t.Errorf("location = %q, want kitchen", got)
	}
	if got := single.Value(Action); got != "on" {
		t.Errorf("action = %q, want on", got)
	}
	if _, ok := single.Get(State); ok {
		t.Errorf("state should be unset")
	}
}

func TestToSingleByIndexes(t *testing.T) {
	t.Parallel()

	s := kitchenAndOffice()

	single := s.ToSingleByIndexes(map[SlotType]int{Location: 1, Thing: 0})
	if got := single.Value(Location); got != "office" {
		t.Errorf("location = %q, want office", got)
	}
	if got := single.Value(Thing); got != "light" {
		t.Errorf("thing = %q, want light", got)
	}
	if _, ok := single.Get(Action); ok {
		t.Errorf("action should be omitted when not requested")
	}

	outOfRange := s.ToSingleByIndexes(map[SlotType]int{Location: 5, Thing: -1})
	if _, ok := outOfRange.Get(Location); ok {
		t.Errorf("out-of-range location should be omitted")
	}
	if _, ok := outOfRange.Get(Thing); ok {
		t.Errorf("negative index should be omitted")
	}
}

func TestSplitBy(t *testing.T) {
	t.Parallel()

	s := kitchenAndOffice()
	parts := s.SplitBy(Location)
	if len(parts) != 2 {
		t.Fatalf("SplitBy(location) returned %d parts, want 2", len(parts))
	}
	for i, want := range []string{"kitchen", "office"} {
		if got := parts[i].Value(Location); got != want {
			t.Errorf("parts[%d].location = %q, want %q", i, got, want)
		}
		if got := parts[i].Value(Thing); got != "light" {
			t.Errorf("parts[%d].thing = %q, want light", i, got)
		}
		if got := parts[i].Description; got != s.Description {
			t.Errorf("parts[%d].Description = %q, want %q", i, got, s.Description)
		}
	}

	if got := s.SplitBy(State); got != nil {
		t.Errorf("SplitBy(state) = %v, want nil", got)
	}
}

func TestSplitBy_OtherSlotsUseFirstOccurrence(t *testing.T) {
	t.Parallel()

	s := Build("turn on lamp in kitchen and ceiling light in office", []Span{
		{Type: Action, Canonical: "turn_on", Text: "turn on"},
		{Type: Thing, Canonical: "light", Text: "lamp"},
		{Type: Location, Canonical: "kitchen", Text: "kitchen"},
		{Type: Thing, Canonical: "ceiling_light", Text: "ceiling light"},
		{Type: Location, Canonical: "office", Text: "office"},
	}, nil)

	parts := s.SplitBy(Location)
	if len(parts) != 2 {
		t.Fatalf("SplitBy(location) returned %d parts, want 2", len(parts))
	}
	for i, part := range parts {
		if got := part.Value(Thing); got != "light" {
			t.Errorf("parts[%d].thing = %q, want first occurrence light", i, got)
		}
		if got := part.Value(Action); got != "turn_on" {
			t.Errorf("parts[%d].action = %q, want turn_on", i, got)
		}
	}
}

func TestFirstOccurrenceMatchesSplitHead(t *testing.T) {
	t.Parallel()

	sets := []*Set{
		kitchenAndOffice(),
		Build("dim lamp and ceiling light", []Span{
			{Type: Action, Canonical: "decrease", Text: "dim"},
			{Type: Thing, Canonical: "light", Text: "lamp"},
			{Type: Thing, Canonical: "ceiling_light", Text: "ceiling light"},
		}, []Number{{Value: 0.5}}),
	}

	for _, s := range sets {
		first := s.ToSingleFirstOccurrence()
		for _, typ := range Types {
			parts := s.SplitBy(typ)
			if len(parts) == 0 {
				continue
			}
			if got, want := parts[0].Value(typ), first.Value(typ); got != want {
				t.Errorf("%q: SplitBy(%s)[0] = %q, first occurrence = %q", s.Utterance, typ, got, want)
			}
		}
	}
}

func TestNumbers(t *testing.T) {
	t.Parallel()

	s := Build("set to 50 percent", nil, []Number{{Value: 0.5, Unit: "%"}, {Value: 20, Unit: "C"}})
	n, ok := s.ToSingleFirstOccurrence().FirstNumber()
	if !ok {
		t.Fatal("FirstNumber reported no value")
	}
	if n.Value != 0.5 || n.Unit != "%" {
		t.Errorf("FirstNumber = %+v, want {0.5 %%}", n)
	}

	if _, ok := (Single{}).FirstNumber(); ok {
		t.Errorf("zero Single should have no numbers")
	}
}

func TestParseSlotType(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]SlotType{
		"thing":     Thing,
		"Things":    Thing,
		"locations": Location,
		"actions":   Action,
		" state ":   State,
	} {
		got, err := ParseSlotType(in)
		if err != nil {
			t.Errorf("ParseSlotType(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseSlotType(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := ParseSlotType("helpers"); err == nil {
		t.Errorf("ParseSlotType(helpers) should fail")
	}
}

func TestNewSingle(t *testing.T) {
	t.Parallel()

	s := NewSingle("u", "d", map[SlotType]string{Thing: "light", Action: "", "bogus": "x"}, nil)
	if got := s.Value(Thing); got != "light" {
		t.Errorf("thing = %q, want light", got)
	}
	if _, ok := s.Get(Action); ok {
		t.Errorf("empty action should be dropped")
	}
	if _, ok := s.Get("bogus"); ok {
		t.Errorf("invalid slot type should be dropped")
	}
}
