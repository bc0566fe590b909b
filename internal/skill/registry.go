package skill

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicehac/pkg/slots"
)

var (
	// ErrDuplicateSkill is returned by [NewRegistry] when two skills share a
	// name.
	ErrDuplicateSkill = errors.New("skill: duplicate skill name")

	// ErrNoMatch is returned by [Registry.Select] when no skill scored above
	// zero.
	ErrNoMatch = errors.New("skill: no skill matched")
)

// Registry is the ordered set of skills known to the dispatcher.
// Registration order is priority order: when two skills report the same
// score the earlier one wins.
//
// A Registry is immutable after [NewRegistry]; all methods are safe for
// concurrent use.
type Registry struct {
	skills []Skill
	byName map[string]Skill

	initOnce sync.Once
	initErr  error
}

// NewRegistry registers skills in the given order. Nil skills are ignored.
func NewRegistry(skills ...Skill) (*Registry, error) {
	r := &Registry{byName: make(map[string]Skill, len(skills))}
	for _, s := range skills {
		if s == nil {
			continue
		}
		name := s.Name()
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSkill, name)
		}
		r.byName[name] = s
		r.skills = append(r.skills, s)
	}
	return r, nil
}

// Init calls [Skill.Init] on every skill in registration order. Only the
// first call does any work; later calls return the first result.
func (r *Registry) Init() error {
	r.initOnce.Do(func() {
		var errs []error
		for _, s := range r.skills {
			if err := s.Init(r); err != nil {
				errs = append(errs, fmt.Errorf("skill: init %s: %w", s.Name(), err))
			}
		}
		r.initErr = errors.Join(errs...)
	})
	return r.initErr
}

// Get returns the skill registered under name.
func (r *Registry) Get(name string) (Skill, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Skills returns the registered skills in priority order.
func (r *Registry) Skills() []Skill {
	out := make([]Skill, len(r.skills))
	copy(out, r.skills)
	return out
}

// Len returns the number of registered skills.
func (r *Registry) Len() int { return len(r.skills) }

// Domains returns the union of [Domainer.Domains] over all skills, in
// registration order without duplicates.
func (r *Registry) Domains() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range r.skills {
		d, ok := s.(Domainer)
		if !ok {
			continue
		}
		for _, domain := range d.Domains() {
			if _, dup := seen[domain]; dup {
				continue
			}
			seen[domain] = struct{}{}
			out = append(out, domain)
		}
	}
	return out
}

// Selection is the outcome of [Registry.Select].
type Selection struct {
	Skill Skill
	Score int
}

// Select scores every skill against req and returns the one with the
// strictly highest score. Scores are clamped to 0..[MaxScore]; a score of
// zero never wins. Ties go to the skill registered first. Select returns
// [ErrNoMatch] when nothing scored above zero.
func (r *Registry) Select(req slots.Single, utterance string) (Selection, error) {
	scores := make([]int, len(r.skills))
	for i, s := range r.skills {
		scores[i] = clampScore(s.Score(req, utterance))
	}
	return r.pick(scores)
}

// SelectParallel is [Registry.Select] with every Score call running in its
// own goroutine. The winner is identical to the sequential selection.
func (r *Registry) SelectParallel(ctx context.Context, req slots.Single, utterance string) (Selection, error) {
	scores := make([]int, len(r.skills))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range r.skills {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scores[i] = clampScore(s.Score(req, utterance))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Selection{}, fmt.Errorf("skill: score: %w", err)
	}
	return r.pick(scores)
}

func (r *Registry) pick(scores []int) (Selection, error) {
	best := -1
	for i, sc := range scores {
		if sc == 0 {
			continue
		}
		if best < 0 || sc > scores[best] {
			best = i
		}
	}
	if best < 0 {
		return Selection{}, ErrNoMatch
	}
	return Selection{Skill: r.skills[best], Score: scores[best]}, nil
}

func clampScore(s int) int {
	return min(max(s, 0), MaxScore)
}
