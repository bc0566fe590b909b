// Package skill defines the contract between the dispatcher and the
// domain skills that execute a recognised command, plus the [Registry] that
// holds them.
//
// A skill is consulted in two phases. [Skill.Score] is a cheap,
// side-effect-free estimate of how well the skill fits a request; the
// dispatcher scores every registered skill and only the winner's
// [Skill.Handle] runs. Handle never returns an error: every outcome,
// including backend failures, is expressed as a [Result].
package skill

import (
	"context"
	"fmt"

	"github.com/MrWong99/voicehac/pkg/provider/backend"
	"github.com/MrWong99/voicehac/pkg/slots"
)

// MaxScore is the highest score a skill can report.
const MaxScore = 100

// Skill is one domain handler such as lights or switches.
//
// Implementations must be safe for concurrent calls to Score.
type Skill interface {
	// Name returns the unique registry name of the skill.
	Name() string

	// Score rates how well the skill matches req on a 0..MaxScore scale.
	// Zero means the skill does not apply. Score must not perform I/O.
	Score(req slots.Single, utterance string) int

	// Handle executes the request. It may return nil, which the dispatcher
	// treats as a [Result] with status [Unknown].
	Handle(ctx context.Context, env Env, req *slots.Set, utterance string) *Result

	// Init is called exactly once after every skill has been registered. A
	// skill may look up its peers through reg.
	Init(reg *Registry) error
}

// Env is the dispatcher-owned context a skill runs in.
type Env interface {
	// Entities returns the startup snapshot of every entity in domain. The
	// map is shared and must not be modified.
	Entities(domain string) map[string]backend.Entity

	// Backend returns the live backend for state reads and service calls.
	Backend() backend.Provider
}

// StaticEnv is an [Env] over a fixed entity snapshot.
type StaticEnv struct {
	snapshot map[string]map[string]backend.Entity
	backend  backend.Provider
}

var _ Env = (*StaticEnv)(nil)

// NewStaticEnv returns an Env serving snapshot, which maps a domain to its
// entities.
func NewStaticEnv(p backend.Provider, snapshot map[string]map[string]backend.Entity) *StaticEnv {
	if snapshot == nil {
		snapshot = map[string]map[string]backend.Entity{}
	}
	return &StaticEnv{snapshot: snapshot, backend: p}
}

// LoadEnv fetches the entity directory of every domain from p once and
// returns it as a [StaticEnv].
func LoadEnv(ctx context.Context, p backend.Provider, domains ...string) (*StaticEnv, error) {
	snapshot := make(map[string]map[string]backend.Entity, len(domains))
	for _, d := range domains {
		if _, done := snapshot[d]; done {
			continue
		}
		ents, err := p.Entities(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("skill: load %s entities: %w", d, err)
		}
		snapshot[d] = ents
	}
	return NewStaticEnv(p, snapshot), nil
}

// Entities implements [Env].
func (e *StaticEnv) Entities(domain string) map[string]backend.Entity {
	return e.snapshot[domain]
}

// Backend implements [Env].
func (e *StaticEnv) Backend() backend.Provider {
	return e.backend
}

// Domains returns the domains present in the snapshot along with their
// entity counts.
func (e *StaticEnv) Domains() map[string]int {
	out := make(map[string]int, len(e.snapshot))
	for d, ents := range e.snapshot {
		out[d] = len(ents)
	}
	return out
}

// Domainer is implemented by skills that need the entity directory of
// particular backend domains in their [Env].
type Domainer interface {
	Domains() []string
}
