// Package backend defines the smart-home backend contract consumed by
// voicehac skills.
//
// A backend exposes an entity directory grouped by domain ("light",
// "switch", ...), live state reads, and service calls. The only failure the
// dispatch pipeline reacts to explicitly is a connectivity failure
// ([ErrTimeout] or [ErrUnavailable], see [IsConnectivity]); implementations
// must wrap their transport errors with these so callers can test with
// [errors.Is].
//
// Implementations:
//   - [github.com/MrWong99/voicehac/pkg/provider/backend/homeassistant]: Home Assistant REST API.
//   - [github.com/MrWong99/voicehac/pkg/provider/backend/mock]: test double.
package backend

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrTimeout is returned when the backend did not answer in time.
	ErrTimeout = errors.New("backend: request timed out")

	// ErrUnavailable is returned when the backend could not be reached or
	// calls are refused locally, for example because a circuit breaker is open.
	ErrUnavailable = errors.New("backend: unavailable")

	// ErrNotFound is returned by State when the entity does not exist.
	ErrNotFound = errors.New("backend: entity not found")
)

// Provider is the abstraction over a smart-home backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Entities returns every entity of domain keyed by entity ID. The result
	// is a snapshot; callers may keep it for the process lifetime.
	Entities(ctx context.Context, domain string) (map[string]Entity, error)

	// State fetches the live state of the entity identified by id.
	State(ctx context.Context, id string) (Entity, error)

	// Trigger calls service on domain for the entity identified by id. params
	// carries additional service data (e.g. "brightness_pct") and may be nil.
	Trigger(ctx context.Context, domain, service, id string, params map[string]any) error

	// Ping verifies that the backend is reachable.
	Ping(ctx context.Context) error
}

// IsConnectivity reports whether err means the backend could not be reached:
// a timeout or a locally refused call.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable)
}

// Domain returns the domain part of an entity ID ("light.kitchen" → "light").
// It returns "" when id has no domain prefix.
func Domain(id string) string {
	d, _, ok := strings.Cut(id, ".")
	if !ok {
		return ""
	}
	return d
}
