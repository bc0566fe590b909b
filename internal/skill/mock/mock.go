// Package mock provides an in-memory [skill.Skill] for unit tests.
//
// The mock is safe for concurrent use, records method calls, and exposes
// exported fields for configuring return values.
//
// Example:
//
//	s := &mock.Skill{NameResult: "lights", ScoreResult: 100}
//	s.HandleResult = &skill.Result{Status: skill.Success}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicehac/internal/skill"
	"github.com/MrWong99/voicehac/pkg/slots"
)

// HandleCall records the arguments of a single [Skill.Handle] invocation.
type HandleCall struct {
	Req       *slots.Set
	Utterance string
}

// Skill is a mock implementation of [skill.Skill].
type Skill struct {
	mu sync.Mutex

	// NameResult is returned by [Skill.Name].
	NameResult string

	// ScoreResult is returned by [Skill.Score] unless ScoreFunc is set.
	ScoreResult int

	// ScoreFunc, when non-nil, computes the score.
	ScoreFunc func(req slots.Single, utterance string) int

	// HandleResult is returned by [Skill.Handle].
	HandleResult *skill.Result

	// InitErr is returned by [Skill.Init].
	InitErr error

	// ScoreCalls records the utterance of every Score invocation.
	ScoreCalls []string

	// HandleCalls records all Handle invocations.
	HandleCalls []HandleCall

	// InitCalls counts Init invocations.
	InitCalls int
}

var _ skill.Skill = (*Skill)(nil)

// Name implements [skill.Skill].
func (s *Skill) Name() string { return s.NameResult }

// Score implements [skill.Skill].
func (s *Skill) Score(req slots.Single, utterance string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ScoreCalls = append(s.ScoreCalls, utterance)
	if s.ScoreFunc != nil {
		return s.ScoreFunc(req, utterance)
	}
	return s.ScoreResult
}

// Handle implements [skill.Skill].
func (s *Skill) Handle(_ context.Context, _ skill.Env, req *slots.Set, utterance string) *skill.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.HandleCalls = append(s.HandleCalls, HandleCall{Req: req, Utterance: utterance})
	if s.HandleResult == nil {
		return nil
	}
	r := *s.HandleResult
	return &r
}

// Init implements [skill.Skill].
func (s *Skill) Init(_ *skill.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InitCalls++
	return s.InitErr
}

// Handled returns the number of Handle invocations.
func (s *Skill) Handled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.HandleCalls)
}

// Scored returns the number of Score invocations.
func (s *Skill) Scored() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ScoreCalls)
}
