package resolve

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/MrWong99/voicehac/pkg/provider/backend"
)

// Filter keys understood by [FiltersFromMap].
const (
	KeyEntityType = "entity_type"
	KeyLocation   = "location"
)

// ByEntityType keeps entities of domain: either the ID starts with
// "<domain>." or the entity_type attribute equals domain.
func ByEntityType(domain string) Filter {
	return func(e backend.Entity) bool {
		if backend.Domain(e.ID) == domain {
			return true
		}
		t, ok := e.StringAttr(backend.AttrEntityType)
		return ok && strings.EqualFold(t, domain)
	}
}

// ByLocation keeps entities whose location or area attribute equals
// location, ignoring case and treating spaces and underscores alike.
func ByLocation(location string) Filter {
	want := normalizeLocation(location)
	return func(e backend.Entity) bool {
		for _, key := range []string{backend.AttrLocation, backend.AttrArea} {
			if v, ok := e.StringAttr(key); ok && normalizeLocation(v) == want {
				return true
			}
		}
		return false
	}
}

func normalizeLocation(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(strings.ToLower(s), "_", " ")), " ")
}

// FiltersFromMap converts the string-map filter form into filters. Unknown
// keys are ignored with a debug log. The result is ordered by key.
func FiltersFromMap(m map[string]string) []Filter {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Filter
	for _, k := range keys {
		switch k {
		case KeyEntityType:
			out = append(out, ByEntityType(m[k]))
		case KeyLocation:
			out = append(out, ByLocation(m[k]))
		default:
			slog.Debug("resolve: ignoring unknown filter key", "key", k)
		}
	}
	return out
}
