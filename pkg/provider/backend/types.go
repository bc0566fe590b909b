package backend

import "math"

// Attribute keys shared across domains.
const (
	AttrFriendlyName      = "friendly_name"
	AttrSupportedFeatures = "supported_features"
	AttrBrightness        = "brightness"
	AttrColorModes        = "supported_color_modes"
	AttrLocation          = "location"
	AttrArea              = "area"
	AttrEntityType        = "entity_type"
)

// Entity is one backend object such as a light or a switch.
type Entity struct {
	// ID is the backend identifier, "<domain>.<object_id>".
	ID string `json:"entity_id"`

	// State is the state object reported by the backend.
	State State `json:"-"`
}

// State is the state object of an [Entity].
type State struct {
	// State is the primary state value, e.g. "on", "off", "unavailable".
	State string `json:"state"`

	// Attributes carries domain-specific attributes such as friendly_name,
	// supported_features or brightness.
	Attributes map[string]any `json:"attributes"`
}

// FriendlyName returns the friendly_name attribute, falling back to the
// entity ID.
func (e Entity) FriendlyName() string {
	if s, ok := e.State.Attributes[AttrFriendlyName].(string); ok && s != "" {
		return s
	}
	return e.ID
}

// StringAttr returns attribute key as a string.
func (e Entity) StringAttr(key string) (string, bool) {
	s, ok := e.State.Attributes[key].(string)
	return s, ok
}

// NumberAttr returns attribute key as a float64. JSON decoding yields
// float64, hand-built entities often use int; both are accepted.
func (e Entity) NumberAttr(key string) (float64, bool) {
	switch v := e.State.Attributes[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint8:
		return float64(v), true
	}
	return 0, false
}

// SupportedFeatures returns the supported_features capability bitmask, or 0
// when the attribute is missing.
func (e Entity) SupportedFeatures() int {
	f, ok := e.NumberAttr(AttrSupportedFeatures)
	if !ok || f < 0 || math.IsNaN(f) {
		return 0
	}
	return int(f)
}

// Strings returns attribute key as a string slice. Slices decoded from JSON
// arrive as []any and are converted element-wise.
func (e Entity) Strings(key string) []string {
	switch v := e.State.Attributes[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
