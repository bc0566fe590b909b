// Package dispatch drives one utterance through the voicehac pipeline:
// recognition, slot building, skill selection, skill execution and dialog
// mapping.
//
// A [Dispatcher] handles one utterance at a time. Two failures abort an
// utterance before any skill runs: the recogniser found nothing
// ([ErrRecognition]) or no skill scored above zero ([ErrSkillNotFound]).
// Both are returned to the caller, which logs them and keeps going. Unless
// [WithSilentFailures] is set the dispatcher still speaks the generic
// "couldn't understand" line so the user is never left without feedback.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/voicehac/internal/observe"
	"github.com/MrWong99/voicehac/internal/skill"
	"github.com/MrWong99/voicehac/pkg/provider/recognizer"
	"github.com/MrWong99/voicehac/pkg/slots"
)

var (
	// ErrRecognition is returned when the recogniser produced no usable
	// spans for the utterance.
	ErrRecognition = errors.New("dispatch: recognition failed")

	// ErrSkillNotFound is returned when no registered skill scored above
	// zero.
	ErrSkillNotFound = errors.New("dispatch: no skill found")
)

// Utterance outcomes recorded in the voicehac.utterances counter.
const (
	OutcomeOK                = "ok"
	OutcomeRecognitionFailed = "recognition_failed"
	OutcomeSkillNotFound     = "skill_not_found"
	OutcomeError             = "error"
)

// Option is a functional option for configuring a [Dispatcher].
type Option func(*Dispatcher)

// WithSilentFailures suppresses the dialog for recognition and
// skill-selection failures. The error is still returned.
func WithSilentFailures() Option {
	return func(d *Dispatcher) {
		d.silent = true
	}
}

// WithParallelScoring scores skills concurrently. The selected skill is the
// same as with sequential scoring.
func WithParallelScoring() Option {
	return func(d *Dispatcher) {
		d.parallel = true
	}
}

// WithMetrics sets the metrics recorder. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithSpeaker sets where dialog lines go. Default: [LogSpeaker].
func WithSpeaker(s Speaker) Option {
	return func(d *Dispatcher) {
		d.speaker = s
	}
}

// Dispatcher runs the intent-resolution pipeline. It is safe for concurrent
// use; concurrent calls to [Dispatcher.Run] are serialised.
type Dispatcher struct {
	mu sync.Mutex

	rec      recognizer.Provider
	registry *skill.Registry
	env      skill.Env
	speaker  Speaker
	metrics  *observe.Metrics
	silent   bool
	parallel bool
}

// New creates a Dispatcher. The registry must already be initialised with
// [skill.Registry.Init].
func New(rec recognizer.Provider, reg *skill.Registry, env skill.Env, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		rec:      rec,
		registry: reg,
		env:      env,
		speaker:  LogSpeaker{},
	}
	for _, o := range opts {
		o(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	return d
}

// Run processes one utterance and returns the dialog that was spoken.
//
// Recognition and skill-selection failures are returned as errors wrapping
// [ErrRecognition] or [ErrSkillNotFound]; the returned dialog is then either
// the generic unknown line or empty with [WithSilentFailures]. Skill
// outcomes, including backend failures, are never errors: they are mapped
// to dialog.
func (d *Dispatcher) Run(ctx context.Context, utterance string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx = observe.WithRequestID(ctx, uuid.NewString())
	ctx, span := observe.StartSpan(ctx, "dispatch.run")
	defer span.End()

	start := time.Now()
	defer func() {
		d.metrics.DispatchDuration.Record(ctx, time.Since(start).Seconds())
	}()

	log := observe.Logger(ctx)
	log.Debug("dispatch: utterance received", "utterance", utterance)

	out, err := d.recognize(ctx, utterance)
	if err != nil {
		return d.fail(ctx, OutcomeError, fmt.Errorf("%w: %w", ErrRecognition, err))
	}
	if len(out.Spans) == 0 {
		return d.fail(ctx, OutcomeRecognitionFailed, ErrRecognition)
	}

	req := slots.Build(utterance, out.Spans, out.Numbers)
	log.Debug("dispatch: slots built",
		"spans", req.Count(),
		"numbers", len(req.Numbers),
		"description", req.Description,
	)

	sel, err := d.selectSkill(ctx, req.ToSingleFirstOccurrence(), utterance)
	if err != nil {
		if errors.Is(err, skill.ErrNoMatch) {
			return d.fail(ctx, OutcomeSkillNotFound, ErrSkillNotFound)
		}
		return d.fail(ctx, OutcomeError, fmt.Errorf("dispatch: select skill: %w", err))
	}
	name := sel.Skill.Name()
	span.SetAttributes(attribute.String("voicehac.skill", name))
	d.metrics.RecordSkillSelection(ctx, name)
	log.Debug("dispatch: skill selected", "skill", name, "score", sel.Score)

	res := d.handle(ctx, sel.Skill, req, utterance)
	if res == nil {
		res = &skill.Result{Status: skill.Unknown}
	}
	d.metrics.RecordSkillResult(ctx, name, res.Status.String())
	log.Info("dispatch: skill finished", "skill", name, "status", res.Status.String())

	dialog := Dialog(res)
	d.speak(ctx, dialog)
	d.metrics.RecordUtterance(ctx, OutcomeOK)
	return dialog, nil
}

func (d *Dispatcher) recognize(ctx context.Context, utterance string) (recognizer.Result, error) {
	ctx, span := observe.StartSpan(ctx, "dispatch.recognize")
	defer span.End()

	start := time.Now()
	out, err := d.rec.Process(ctx, utterance)
	d.metrics.RecognizeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return recognizer.Result{}, err
	}
	span.SetAttributes(
		attribute.Int("voicehac.spans", len(out.Spans)),
		attribute.Int("voicehac.numbers", len(out.Numbers)),
	)
	return out, nil
}

func (d *Dispatcher) selectSkill(ctx context.Context, req slots.Single, utterance string) (skill.Selection, error) {
	if d.parallel {
		return d.registry.SelectParallel(ctx, req, utterance)
	}
	return d.registry.Select(req, utterance)
}

func (d *Dispatcher) handle(ctx context.Context, s skill.Skill, req *slots.Set, utterance string) *skill.Result {
	ctx, span := observe.StartSpan(ctx, "skill.handle")
	defer span.End()
	span.SetAttributes(attribute.String("voicehac.skill", s.Name()))

	res := s.Handle(ctx, d.env, req, utterance)
	if res != nil {
		span.SetAttributes(attribute.String("voicehac.status", res.Status.String()))
	}
	return res
}

// fail records a fatal utterance error and, unless silenced, speaks the
// unknown dialog.
func (d *Dispatcher) fail(ctx context.Context, outcome string, err error) (string, error) {
	d.metrics.RecordUtterance(ctx, outcome)
	if d.silent {
		return "", err
	}
	dialog := DefaultDialog(skill.Unknown)
	d.speak(ctx, dialog)
	return dialog, err
}

func (d *Dispatcher) speak(ctx context.Context, dialog string) {
	if err := d.speaker.Speak(ctx, dialog); err != nil {
		observe.Logger(ctx).Warn("dispatch: speaker failed", slog.Any("err", err))
	}
}
