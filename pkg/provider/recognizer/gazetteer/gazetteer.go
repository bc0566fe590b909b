// Package gazetteer implements [recognizer.Provider] by looking utterance
// phrases up in a vocabulary.
//
// Recognition runs in two passes over the whitespace tokens of the text:
//
//  1. Span pass. At every token position, n-gram windows from the longest
//     vocabulary phrase down to one token are looked up exactly. The longest
//     hit wins and the cursor advances past it, so "turn on" is preferred
//     over "on". When no window matches exactly and phonetic matching is
//     enabled, the same windows are compared against phrases of equal word
//     count using Double Metaphone codes and Jaro-Winkler similarity, which
//     catches transcription slips such as "kitchin".
//  2. Number pass. Digits become numbers; "%" or a following "percent"
//     divides by 100; a following "celsius" sets the unit "C"; fraction
//     words (half, third, fourth, fifth, quarter) and named presets (eco,
//     comfort, warm, bright, dark) map to fixed values.
//
// A phrase listed under several slot types yields one span per type.
package gazetteer

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/MrWong99/voicehac/pkg/provider/recognizer"
	"github.com/MrWong99/voicehac/pkg/slots"
)

const (
	defaultPhoneticThreshold = 0.85

	// minPhoneticLen is the shortest window (in runes) considered for
	// phonetic matching. Shorter words produce too many false positives.
	minPhoneticLen = 4
)

// Lexicon supplies the phrase table. Each span's Text is a lower-case
// phrase; Type and Canonical are what the phrase resolves to.
type Lexicon interface {
	Phrases() []slots.Span
}

// Option is a functional option for configuring a [Recognizer].
type Option func(*Recognizer)

// WithPhonetic enables or disables the phonetic fallback. Default: enabled.
func WithPhonetic(enabled bool) Option {
	return func(r *Recognizer) {
		r.phonetic = enabled
	}
}

// WithPhoneticThreshold sets the minimum Jaro-Winkler score a phonetic
// candidate must reach. Default: 0.85.
func WithPhoneticThreshold(threshold float64) Option {
	return func(r *Recognizer) {
		r.threshold = threshold
	}
}

// Recognizer is a vocabulary-driven recogniser. It is read-only after
// construction and safe for concurrent use.
type Recognizer struct {
	exact     map[string][]slots.Span
	byWords   map[int][]*phrase
	maxWords  int
	phonetic  bool
	threshold float64
}

var _ recognizer.Provider = (*Recognizer)(nil)

// New builds a Recognizer over lex.
func New(lex Lexicon, opts ...Option) (*Recognizer, error) {
	r := &Recognizer{
		exact:     make(map[string][]slots.Span),
		byWords:   make(map[int][]*phrase),
		phonetic:  true,
		threshold: defaultPhoneticThreshold,
	}
	for _, o := range opts {
		o(r)
	}

	for _, sp := range lex.Phrases() {
		text := strings.Join(strings.Fields(strings.ToLower(sp.Text)), " ")
		if text == "" || !sp.Type.IsValid() {
			continue
		}
		sp.Text = text
		if _, seen := r.exact[text]; !seen {
			p := preparePhrase(text)
			r.byWords[len(p.tokens)] = append(r.byWords[len(p.tokens)], p)
			r.maxWords = max(r.maxWords, len(p.tokens))
		}
		r.exact[text] = append(r.exact[text], sp)
	}
	if len(r.exact) == 0 {
		return nil, errors.New("gazetteer: lexicon has no phrases")
	}
	return r, nil
}

// Process implements [recognizer.Provider].
func (r *Recognizer) Process(ctx context.Context, text string) (recognizer.Result, error) {
	if err := ctx.Err(); err != nil {
		return recognizer.Result{}, err
	}

	surface := strings.Fields(text)
	norm := make([]string, len(surface))
	for i, tok := range surface {
		norm[i] = normalize(tok)
	}

	var res recognizer.Result
	for i := 0; i < len(norm); {
		if norm[i] == "" {
			i++
			continue
		}
		n, spans := r.matchAt(norm, i)
		if n == 0 {
			i++
			continue
		}
		surfaceText := strings.Join(surface[i:i+n], " ")
		for _, sp := range spans {
			res.Spans = append(res.Spans, slots.Span{Type: sp.Type, Canonical: sp.Canonical, Text: surfaceText})
		}
		i += n
	}
	res.Numbers = extractNumbers(norm)
	return res, nil
}

// matchAt returns the number of tokens consumed at position i and the spans
// they resolve to, or 0 when nothing matches.
func (r *Recognizer) matchAt(norm []string, i int) (int, []slots.Span) {
	maxN := min(r.maxWords, len(norm)-i)
	for n := maxN; n >= 1; n-- {
		window, ok := join(norm[i : i+n])
		if !ok {
			continue
		}
		if spans, ok := r.exact[window]; ok {
			return n, spans
		}
	}
	if !r.phonetic {
		return 0, nil
	}
	for n := maxN; n >= 1; n-- {
		window, ok := join(norm[i : i+n])
		if !ok || len([]rune(window)) < minPhoneticLen || strings.ContainsFunc(window, unicode.IsDigit) {
			continue
		}
		if p := r.matchPhonetic(norm[i:i+n], window); p != nil {
			return n, r.exact[p.text]
		}
	}
	return 0, nil
}

// join concatenates tokens with single spaces. It reports false when a token
// is empty (pure punctuation), which breaks a phrase.
func join(tokens []string) (string, bool) {
	for _, t := range tokens {
		if t == "" {
			return "", false
		}
	}
	return strings.Join(tokens, " "), true
}

// normalize lower-cases tok and trims surrounding punctuation. A trailing
// percent sign is kept for the number pass, as are a leading sign or
// decimal point of a number.
func normalize(tok string) string {
	tok = strings.TrimRightFunc(strings.ToLower(tok), isTrimmed)
	if strings.ContainsFunc(tok, unicode.IsDigit) {
		return strings.TrimLeftFunc(tok, func(r rune) bool {
			return r != '-' && r != '.' && isTrimmed(r)
		})
	}
	return strings.TrimLeftFunc(tok, isTrimmed)
}

func isTrimmed(r rune) bool {
	return r != '%' && (unicode.IsPunct(r) || unicode.IsSymbol(r))
}
