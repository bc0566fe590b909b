package gazetteer

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// phrase is a vocabulary phrase with its Double Metaphone codes precomputed
// per token.
type phrase struct {
	text   string
	tokens []string
	codes  []map[string]struct{}
}

func preparePhrase(text string) *phrase {
	p := &phrase{text: text, tokens: strings.Fields(text)}
	p.codes = make([]map[string]struct{}, len(p.tokens))
	for i, t := range p.tokens {
		p.codes[i] = codesFor(t)
	}
	return p
}

// matchPhonetic returns the phrase with the same word count as tokens whose
// tokens pairwise share a Double Metaphone code with the window and whose
// Jaro-Winkler similarity is highest and at least the threshold. Ties keep
// the first phrase in vocabulary order.
func (r *Recognizer) matchPhonetic(tokens []string, window string) *phrase {
	inputCodes := make([]map[string]struct{}, len(tokens))
	for i, t := range tokens {
		inputCodes[i] = codesFor(t)
	}

	var best *phrase
	bestScore := 0.0
	for _, p := range r.byWords[len(tokens)] {
		if !alignedCodes(inputCodes, p.codes) {
			continue
		}
		score := similarity(tokens, p.tokens, window, p.text)
		if score >= r.threshold && score > bestScore {
			best, bestScore = p, score
		}
	}
	return best
}

// codesFor returns the Double Metaphone codes of a single word. Empty codes
// (words without consonants) are excluded.
func codesFor(word string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	primary, secondary := matchr.DoubleMetaphone(word)
	if primary != "" {
		codes[primary] = struct{}{}
	}
	if secondary != "" {
		codes[secondary] = struct{}{}
	}
	return codes
}

// alignedCodes reports whether every token position shares at least one
// code.
func alignedCodes(a, b []map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !codesOverlap(a[i], b[i]) {
			return false
		}
	}
	return true
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// similarity is the higher of the full-string and the space-stripped
// Jaro-Winkler scores.
func similarity(inputTokens, phraseTokens []string, input, phrase string) float64 {
	score := matchr.JaroWinkler(input, phrase, false)
	if len(inputTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(phraseTokens, ""), false); s > score {
			score = s
		}
	}
	return score
}
