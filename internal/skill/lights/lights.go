// Package lights implements the skill that controls light entities.
//
// One invocation resolves the spoken description to a single light and runs
// exactly one sub-action on it: switch on or off, answer whether it is on,
// change its brightness, or report its brightness level.
package lights

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/voicehac/internal/observe"
	"github.com/MrWong99/voicehac/internal/resolve"
	"github.com/MrWong99/voicehac/internal/skill"
	"github.com/MrWong99/voicehac/pkg/provider/backend"
	"github.com/MrWong99/voicehac/pkg/slots"
)

// Domain is the backend domain and thing keyword handled by the skill.
const Domain = "light"

// Name is the registry name of the skill.
const Name = "lights"

// SupportBrightness is the supported_features bit for dimmable lights.
const SupportBrightness = 1

// DefaultBrightnessStep is the relative change in percentage points applied
// by "increase" and "decrease".
const DefaultBrightnessStep = 25

// MsgNoConnection is spoken when the backend cannot be reached.
const MsgNoConnection = "No connection to Home Assistant server"

// Vocabulary names the skill reacts to.
const (
	actionOn         = "on"
	actionOff        = "off"
	actionBinary     = "binary_query"
	actionAdjust     = "adjust"
	actionIncrease   = "increase"
	actionDecrease   = "decrease"
	actionInfo       = "information_query"
	statePowered     = "powered"
	attrBrightness   = "brightness"
	colorModeOnOff   = "onoff"
	maxHABrightness  = 255
	paramBrightness  = "brightness_pct"
	paramStepPercent = "brightness_step_pct"
)

// Option is a functional option for configuring a [Skill].
type Option func(*Skill)

// WithBrightnessStep sets the step used by increase and decrease. Values
// outside 1..100 are ignored. Default: 25.
func WithBrightnessStep(step int) Option {
	return func(s *Skill) {
		if step > 0 && step <= 100 {
			s.step = step
		}
	}
}

// Skill is the lights skill. It holds no per-request state and is safe for
// concurrent use.
type Skill struct {
	step int
}

var (
	_ skill.Skill    = (*Skill)(nil)
	_ skill.Domainer = (*Skill)(nil)
)

// New returns a lights skill.
func New(opts ...Option) *Skill {
	s := &Skill{step: DefaultBrightnessStep}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Name implements [skill.Skill].
func (s *Skill) Name() string { return Name }

// Domains implements [skill.Domainer].
func (s *Skill) Domains() []string { return []string{Domain} }

// Init implements [skill.Skill].
func (s *Skill) Init(*skill.Registry) error { return nil }

// Score implements [skill.Skill]. It is [skill.MaxScore] when the thing slot
// names a light and zero otherwise.
func (s *Skill) Score(req slots.Single, _ string) int {
	if req.Value(slots.Thing) == Domain {
		return skill.MaxScore
	}
	return 0
}

// Handle implements [skill.Skill].
func (s *Skill) Handle(ctx context.Context, env skill.Env, req *slots.Set, _ string) *skill.Result {
	ctx, span := observe.StartSpan(ctx, "lights.handle")
	defer span.End()

	res := &skill.Result{}
	single := req.ToSingleFirstOccurrence()

	query := resolve.BuildQuery(Domain, single.Value(slots.Location), single.Description)
	candidates := resolve.FindCandidates(query, env.Entities(Domain))
	winner, ok := resolve.ChooseWinner(candidates)
	if !ok {
		observe.Logger(ctx).Debug("lights: no matching entity", "query", query)
		res.Set(skill.NeedMoreInfo)
		return res
	}
	span.SetAttributes(
		attribute.String("voicehac.entity_id", winner.Entity.ID),
		attribute.Int("voicehac.similarity", winner.Similarity),
	)
	observe.Logger(ctx).Debug("lights: resolved entity",
		"query", query,
		"entity_id", winner.Entity.ID,
		"similarity", winner.Similarity,
		"candidates", len(candidates),
	)

	var err error
	switch classify(single) {
	case opToggle:
		err = s.toggle(ctx, env.Backend(), winner.Entity, single.Value(slots.Action), res)
	case opBinaryQuery:
		err = s.binaryQuery(ctx, env.Backend(), winner.Entity, res)
	case opBrightness:
		err = s.brightness(ctx, env.Backend(), winner.Entity, single, res)
	case opInfoQuery:
		err = s.infoQuery(ctx, env.Backend(), winner.Entity, res)
	default:
		res.Set(skill.UnknownAction)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		failed(ctx, err, res)
	}
	return res
}

type operation int

const (
	opUnknown operation = iota
	opToggle
	opBinaryQuery
	opBrightness
	opInfoQuery
)

// classify picks the sub-action for req. The first matching rule wins.
func classify(req slots.Single) operation {
	action := req.Value(slots.Action)
	attr := req.Value(slots.Attribute)
	switch {
	case action == actionOn || action == actionOff:
		return opToggle
	case action == actionBinary && req.Value(slots.State) == statePowered:
		return opBinaryQuery
	case (action == actionAdjust || action == actionIncrease || action == actionDecrease) && attr == attrBrightness:
		return opBrightness
	case action == actionInfo && attr == attrBrightness:
		return opInfoQuery
	}
	return opUnknown
}

// failed turns a backend error into the result. Connectivity problems get a
// fixed message; anything else leaves the dialog to the dispatcher.
func failed(ctx context.Context, err error, res *skill.Result) {
	if backend.IsConnectivity(err) {
		observe.Logger(ctx).Warn("lights: backend unreachable", "err", err)
		res.Set(skill.Failure, MsgNoConnection)
		return
	}
	observe.Logger(ctx).Error("lights: backend call failed", "err", err)
	res.Set(skill.Failure)
}

func (s *Skill) toggle(ctx context.Context, b backend.Provider, e backend.Entity, action string, res *skill.Result) error {
	if err := b.Trigger(ctx, Domain, "turn_"+action, e.ID, nil); err != nil {
		return fmt.Errorf("lights: turn %s %s: %w", action, e.ID, err)
	}
	res.Set(skill.Success, fmt.Sprintf("Ok, I will turn %s %s", action, e.FriendlyName()))
	return nil
}

func (s *Skill) binaryQuery(ctx context.Context, b backend.Provider, e backend.Entity, res *skill.Result) error {
	live, err := b.State(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("lights: state of %s: %w", e.ID, err)
	}
	res.Set(skill.Success, fmt.Sprintf("%s is %s", e.FriendlyName(), live.State.State))
	return nil
}

func (s *Skill) brightness(ctx context.Context, b backend.Provider, e backend.Entity, req slots.Single, res *skill.Result) error {
	if !SupportsBrightness(e) {
		res.Set(skill.Failure, fmt.Sprintf("Light %s does not support brightness feature.", e.FriendlyName()))
		return nil
	}

	var params map[string]any
	switch req.Value(slots.Action) {
	case actionAdjust:
		n, ok := req.FirstNumber()
		if !ok {
			res.Set(skill.NeedMoreInfo)
			return nil
		}
		params = map[string]any{paramBrightness: Percent(n.Value)}
	case actionIncrease:
		params = map[string]any{paramStepPercent: s.step}
	case actionDecrease:
		params = map[string]any{paramStepPercent: -s.step}
	}

	if err := b.Trigger(ctx, Domain, "turn_on", e.ID, params); err != nil {
		return fmt.Errorf("lights: change brightness of %s: %w", e.ID, err)
	}
	res.Set(skill.Success, fmt.Sprintf("Ok, I will change brightness of %s", e.FriendlyName()))
	return nil
}

func (s *Skill) infoQuery(ctx context.Context, b backend.Provider, e backend.Entity, res *skill.Result) error {
	live, err := b.State(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("lights: state of %s: %w", e.ID, err)
	}
	raw, ok := live.NumberAttr(backend.AttrBrightness)
	if !ok {
		res.Set(skill.Success, fmt.Sprintf("%s is off", e.FriendlyName()))
		return nil
	}
	pct := int(math.Round(raw * 100 / maxHABrightness))
	res.Set(skill.Success, fmt.Sprintf("%s brightness level is set to %d percent", e.FriendlyName(), pct))
	return nil
}

// SupportsBrightness reports whether e can be dimmed: either the legacy
// supported_features bit is set or a color mode other than "onoff" is
// listed.
func SupportsBrightness(e backend.Entity) bool {
	if e.SupportedFeatures()&SupportBrightness != 0 {
		return true
	}
	for _, m := range e.Strings(backend.AttrColorModes) {
		if m != colorModeOnOff {
			return true
		}
	}
	return false
}

// Percent converts a spoken brightness value to a whole percentage.
// Values up to 1 are fractions ("half", "50 percent"); larger values are
// already percentages. The result is clamped to 0..100.
func Percent(v float64) int {
	if v <= 1 {
		v *= 100
	}
	return int(math.Round(min(max(v, 0), 100)))
}
