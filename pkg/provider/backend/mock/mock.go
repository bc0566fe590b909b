// Package mock provides a test double for [backend.Provider].
//
// Provider serves entities from an in-memory map, records every call, and
// returns configurable errors.
//
// Example:
//
//	p := mock.New(mock.Light("light.kitchen_light", "Kitchen Light", 1))
//	p.TriggerErr = backend.ErrTimeout
package mock

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/MrWong99/voicehac/pkg/provider/backend"
)

// TriggerCall records a single invocation of [Provider.Trigger].
type TriggerCall struct {
	Domain  string
	Service string
	ID      string
	Params  map[string]any
}

// Provider is a mock implementation of [backend.Provider].
type Provider struct {
	mu sync.Mutex

	// EntityMap holds every entity served by the mock keyed by ID.
	EntityMap map[string]backend.Entity

	// EntitiesErr, StateErr, TriggerErr and PingErr are returned by the
	// matching methods when non-nil.
	EntitiesErr error
	StateErr    error
	TriggerErr  error
	PingErr     error

	// TriggerCalls records every Trigger invocation, including failed ones.
	TriggerCalls []TriggerCall

	// StateCalls records the IDs passed to State.
	StateCalls []string

	// EntitiesCalls records the domains passed to Entities.
	EntitiesCalls []string
}

var _ backend.Provider = (*Provider)(nil)

// New returns a Provider serving the given entities.
func New(entities ...backend.Entity) *Provider {
	p := &Provider{EntityMap: make(map[string]backend.Entity, len(entities))}
	for _, e := range entities {
		p.EntityMap[e.ID] = e
	}
	return p
}

// Entities returns the entities whose ID starts with "<domain>.".
func (p *Provider) Entities(_ context.Context, domain string) (map[string]backend.Entity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EntitiesCalls = append(p.EntitiesCalls, domain)
	if p.EntitiesErr != nil {
		return nil, p.EntitiesErr
	}
	out := make(map[string]backend.Entity)
	for id, e := range p.EntityMap {
		if backend.Domain(id) == domain {
			out[id] = e
		}
	}
	return out, nil
}

// State returns the stored entity or [backend.ErrNotFound].
func (p *Provider) State(_ context.Context, id string) (backend.Entity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StateCalls = append(p.StateCalls, id)
	if p.StateErr != nil {
		return backend.Entity{}, p.StateErr
	}
	e, ok := p.EntityMap[id]
	if !ok {
		return backend.Entity{}, fmt.Errorf("%w: %s", backend.ErrNotFound, id)
	}
	return e, nil
}

// Trigger records the call and returns TriggerErr.
func (p *Provider) Trigger(_ context.Context, domain, service, id string, params map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TriggerCalls = append(p.TriggerCalls, TriggerCall{
		Domain:  domain,
		Service: service,
		ID:      id,
		Params:  maps.Clone(params),
	})
	return p.TriggerErr
}

// Ping returns PingErr.
func (p *Provider) Ping(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PingErr
}

// Triggers returns a copy of the recorded Trigger calls.
func (p *Provider) Triggers() []TriggerCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TriggerCall, len(p.TriggerCalls))
	copy(out, p.TriggerCalls)
	return out
}

// Light builds a light entity with the given friendly name and
// supported_features bitmask. The light is reported as "on".
func Light(id, friendlyName string, features int) backend.Entity {
	return backend.Entity{
		ID: id,
		State: backend.State{
			State: "on",
			Attributes: map[string]any{
				backend.AttrFriendlyName:      friendlyName,
				backend.AttrSupportedFeatures: features,
			},
		},
	}
}
