// Package resolve matches a natural-language description to backend
// entities.
//
// A skill builds a query that looks like an entity ID ([BuildQuery]),
// [FindCandidates] scores every entity of a snapshot against it with an
// insertion/deletion ratio, and [ChooseWinner] picks the best one.
// Everything here is a pure function of its inputs.
package resolve

import (
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/voicehac/pkg/provider/backend"
)

// MinSimilarity is the exclusive lower bound for a candidate: only entities
// scoring strictly above it are returned.
const MinSimilarity = 50

// Candidate is an entity together with its similarity to the query.
type Candidate struct {
	Entity backend.Entity

	// Similarity is in 0..100.
	Similarity int
}

// Filter decides whether an entity may be considered at all.
type Filter func(backend.Entity) bool

// FindCandidates returns every entity whose ID has a similarity to query
// strictly greater than [MinSimilarity] and that passes all filters. The
// result is sorted by entity ID, so identical inputs always produce
// identical output. There is no cap on the number of candidates.
func FindCandidates(query string, entities map[string]backend.Entity, filters ...Filter) []Candidate {
	var out []Candidate
	for id, e := range entities {
		if e.ID == "" {
			e.ID = id
		}
		if !passes(e, filters) {
			continue
		}
		if s := Similarity(query, e.ID); s > MinSimilarity {
			out = append(out, Candidate{Entity: e, Similarity: s})
		}
	}
	slices.SortFunc(out, func(a, b Candidate) int {
		return strings.Compare(a.Entity.ID, b.Entity.ID)
	})
	return out
}

func passes(e backend.Entity, filters []Filter) bool {
	for _, f := range filters {
		if f != nil && !f(e) {
			return false
		}
	}
	return true
}

// ChooseWinner returns the first candidate with the maximum similarity. It
// reports false for an empty slice.
func ChooseWinner(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Similarity > best.Similarity {
			best = c
		}
	}
	return best, true
}

// Similarity is the insertion/deletion ratio of a and b on a 0..100 scale:
// round(100 * 2*lcs(a, b) / (len(a) + len(b))), where lcs is the length of
// the longest common subsequence. Comparison is case-insensitive. Two empty strings are identical.
func Similarity(a, b string) int {
	a, b = strings.ToLower(a), strings.ToLower(b)
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 100
	}
	common := matchr.LongestCommonSubsequence(a, b)
	return int(math.Round(100 * float64(2*common) / float64(total)))
}

// BuildQuery assembles an entity-ID-shaped query:
//
//	<domain>.<location>[_<description tokens joined by _>]_<domain>
//
// Location is lower-cased. The description segment is skipped when empty.
func BuildQuery(domain, location, description string) string {
	var b strings.Builder
	b.WriteString(domain)
	b.WriteByte('.')
	b.WriteString(strings.ToLower(location))
	if tokens := strings.Fields(strings.ToLower(description)); len(tokens) > 0 {
		b.WriteByte('_')
		b.WriteString(strings.Join(tokens, "_"))
	}
	b.WriteByte('_')
	b.WriteString(domain)
	return b.String()
}
