// Package recognizer defines the entity-recognition contract: free text in,
// typed spans and numeric values out.
//
// A recogniser never fails just because it found nothing; an empty [Result]
// is a valid answer and it is up to the caller to treat "no spans at all" as
// a recognition failure.
//
// Implementations:
//   - [github.com/MrWong99/voicehac/pkg/provider/recognizer/gazetteer]: vocabulary lookup with phonetic fallback.
//   - [github.com/MrWong99/voicehac/pkg/provider/recognizer/mock]: test double.
package recognizer

import (
	"context"

	"github.com/MrWong99/voicehac/pkg/slots"
)

// Result is the outcome of processing one utterance.
type Result struct {
	// Spans are the recognised entities in order of appearance.
	Spans []slots.Span

	// Numbers are the numeric values in order of appearance.
	Numbers []slots.Number
}

// Empty reports whether the result carries neither spans nor numbers.
func (r Result) Empty() bool {
	return len(r.Spans) == 0 && len(r.Numbers) == 0
}

// Provider turns an utterance into a [Result].
//
// Implementations must not modify text and must be safe for concurrent use.
type Provider interface {
	Process(ctx context.Context, text string) (Result, error)
}
