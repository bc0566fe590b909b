package gazetteer

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/MrWong99/voicehac/pkg/slots"
)

// UnitCelsius is the unit reported for values followed by "celsius".
const UnitCelsius = "C"

var fractions = map[string]float64{
	"half":    0.5,
	"third":   1.0 / 3,
	"fourth":  0.25,
	"fifth":   0.2,
	"quarter": 0.25,
}

var presets = map[string]float64{
	"eco":     0.3,
	"comfort": 0.7,
	"warm":    0.9,
	"bright":  0.8,
	"dark":    0.2,
}

// extractNumbers scans normalised tokens for numeric values.
func extractNumbers(tokens []string) []slots.Number {
	var out []slots.Number
	for i, tok := range tokens {
		if v, ok := fractions[tok]; ok {
			out = append(out, slots.Number{Value: v})
			continue
		}
		if v, ok := presets[tok]; ok {
			out = append(out, slots.Number{Value: v})
			continue
		}

		v, pct, ok := parseNumeric(tok)
		if !ok {
			continue
		}
		next := ""
		if i+1 < len(tokens) {
			next = tokens[i+1]
		}
		if pct || next == "percent" {
			v /= 100
		}
		n := slots.Number{Value: v}
		if next == "celsius" {
			n.Unit = UnitCelsius
		}
		out = append(out, n)
	}
	return out
}

// parseNumeric parses "50", "1,000", "12.5" or "50%". pct reports a trailing
// percent sign. Words such as "nan" or "inf" are rejected.
func parseNumeric(tok string) (v float64, pct bool, ok bool) {
	if s, found := strings.CutSuffix(tok, "%"); found {
		tok, pct = s, true
	}
	tok = strings.ReplaceAll(tok, ",", "")
	if tok == "" || !strings.ContainsFunc(tok[:1], func(r rune) bool { return unicode.IsDigit(r) || r == '.' || r == '-' }) {
		return 0, false, false
	}
	if !strings.ContainsFunc(tok, unicode.IsDigit) {
		return 0, false, false
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false, false
	}
	return v, pct, true
}
