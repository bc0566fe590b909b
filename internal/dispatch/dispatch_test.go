package dispatch_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/MrWong99/voicehac/internal/dispatch"
	"github.com/MrWong99/voicehac/internal/observe"
	"github.com/MrWong99/voicehac/internal/skill"
	"github.com/MrWong99/voicehac/internal/skill/lights"
	skillmock "github.com/MrWong99/voicehac/internal/skill/mock"
	"github.com/MrWong99/voicehac/internal/vocab"
	backendmock "github.com/MrWong99/voicehac/pkg/provider/backend/mock"
	"github.com/MrWong99/voicehac/pkg/provider/recognizer"
	"github.com/MrWong99/voicehac/pkg/provider/recognizer/gazetteer"
	recmock "github.com/MrWong99/voicehac/pkg/provider/recognizer/mock"
	"github.com/MrWong99/voicehac/pkg/slots"
)

// ── helpers ──────────────────────────────────────────────────────────────────

type recordingSpeaker struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (s *recordingSpeaker) Speak(_ context.Context, dialog string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, dialog)
	return s.err
}

func (s *recordingSpeaker) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// counter returns the value of the int64 sum name at the data point with
// key=value, or 0 when absent.
func counter(t *testing.T, reader *sdkmetric.ManualReader, name, key, value string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not an int64 sum", name)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
					return dp.Value
				}
			}
		}
	}
	return 0
}

var lightSpans = recognizer.Result{Spans: []slots.Span{
	{Type: slots.Action, Canonical: "on", Text: "turn on"},
	{Type: slots.Thing, Canonical: "light", Text: "light"},
}}

func newRegistry(t *testing.T, skills ...skill.Skill) *skill.Registry {
	t.Helper()
	reg, err := skill.NewRegistry(skills...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := reg.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return reg
}

func emptyEnv() skill.Env { return skill.NewStaticEnv(backendmock.New(), nil) }

// ── Dialog mapping ───────────────────────────────────────────────────────────

func TestDialog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		res  *skill.Result
		want string
	}{
		{"nil result", nil, "I'm sorry, I couldn't understand that."},
		{"skill dialog wins", &skill.Result{Status: skill.Failure, Dialog: "custom"}, "custom"},
		{"unknown", &skill.Result{}, "I'm sorry, I couldn't understand that."},
		{"success", &skill.Result{Status: skill.Success}, "The operation was successful."},
		{"failure", &skill.Result{Status: skill.Failure}, "I'm sorry, there was a problem with the operation."},
		{"not found", &skill.Result{Status: skill.NotFound}, "I'm sorry, I couldn't find what you were looking for."},
		{"no response", &skill.Result{Status: skill.NoResponse}, "I'm sorry, I didn't receive a response."},
		{"unknown entity", &skill.Result{Status: skill.UnknownEntity}, "I'm sorry, I couldn't identify the entity."},
		{"unknown action", &skill.Result{Status: skill.UnknownAction}, "I'm sorry, that action is not supported."},
		{"need more info", &skill.Result{Status: skill.NeedMoreInfo}, "Can you provide more information?"},
		{"out of range", &skill.Result{Status: skill.Status(99)}, dispatch.FallbackDialog},
	}
	for _, tc := range tests {
		if got := dispatch.Dialog(tc.res); got != tc.want {
			t.Errorf("%s: Dialog = %q, want %q", tc.name, got, tc.want)
		}
	}
}

// ── Pipeline ─────────────────────────────────────────────────────────────────

func TestRun_ZeroSpansInvokesNoSkill(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result recognizer.Result
	}{
		{"nothing", recognizer.Result{}},
		{"numbers only", recognizer.Result{Numbers: []slots.Number{{Value: 0.5}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := &skillmock.Skill{NameResult: "lights", ScoreResult: 100}
			spk := &recordingSpeaker{}
			m, reader := newTestMetrics(t)
			d := dispatch.New(&recmock.Provider{Result: tc.result}, newRegistry(t, s), emptyEnv(),
				dispatch.WithSpeaker(spk), dispatch.WithMetrics(m))

			dialog, err := d.Run(context.Background(), "blah")
			if !errors.Is(err, dispatch.ErrRecognition) {
				t.Fatalf("err = %v, want ErrRecognition", err)
			}
			if s.Scored() != 0 || s.Handled() != 0 {
				t.Errorf("skill consulted: scored=%d handled=%d", s.Scored(), s.Handled())
			}
			want := dispatch.DefaultDialog(skill.Unknown)
			if dialog != want {
				t.Errorf("dialog = %q, want %q", dialog, want)
			}
			if lines := spk.Lines(); len(lines) != 1 || lines[0] != want {
				t.Errorf("spoken = %v", lines)
			}
			if n := counter(t, reader, "voicehac.utterances", "outcome", dispatch.OutcomeRecognitionFailed); n != 1 {
				t.Errorf("recognition_failed count = %d, want 1", n)
			}
		})
	}
}

func TestRun_RecognizerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("model unavailable")
	s := &skillmock.Skill{NameResult: "lights", ScoreResult: 100}
	d := dispatch.New(&recmock.Provider{ProcessErr: boom}, newRegistry(t, s), emptyEnv(),
		dispatch.WithSpeaker(&recordingSpeaker{}))

	_, err := d.Run(context.Background(), "turn on the light")
	if !errors.Is(err, dispatch.ErrRecognition) || !errors.Is(err, boom) {
		t.Errorf("err = %v, want ErrRecognition wrapping cause", err)
	}
	if s.Scored() != 0 {
		t.Error("skill scored after recogniser error")
	}
}

func TestRun_SkillNotFound(t *testing.T) {
	t.Parallel()

	a := &skillmock.Skill{NameResult: "a"}
	b := &skillmock.Skill{NameResult: "b"}
	m, reader := newTestMetrics(t)
	d := dispatch.New(&recmock.Provider{Result: lightSpans}, newRegistry(t, a, b), emptyEnv(),
		dispatch.WithSpeaker(&recordingSpeaker{}), dispatch.WithMetrics(m))

	_, err := d.Run(context.Background(), "turn on the light")
	if !errors.Is(err, dispatch.ErrSkillNotFound) {
		t.Fatalf("err = %v, want ErrSkillNotFound", err)
	}
	if a.Handled()+b.Handled() != 0 {
		t.Error("Handle called without a winner")
	}
	if a.Scored() != 1 || b.Scored() != 1 {
		t.Errorf("scored %d/%d, want every skill scored once", a.Scored(), b.Scored())
	}
	if n := counter(t, reader, "voicehac.utterances", "outcome", dispatch.OutcomeSkillNotFound); n != 1 {
		t.Errorf("skill_not_found count = %d, want 1", n)
	}
}

func TestRun_SilentFailures(t *testing.T) {
	t.Parallel()

	spk := &recordingSpeaker{}
	d := dispatch.New(&recmock.Provider{}, newRegistry(t), emptyEnv(),
		dispatch.WithSpeaker(spk), dispatch.WithSilentFailures())

	dialog, err := d.Run(context.Background(), "blah")
	if !errors.Is(err, dispatch.ErrRecognition) {
		t.Fatalf("err = %v", err)
	}
	if dialog != "" || len(spk.Lines()) != 0 {
		t.Errorf("silent failure spoke %q / %v", dialog, spk.Lines())
	}
}

func TestRun_SelectsAndMapsDialog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		result   *skill.Result
		want     string
		wantStat string
	}{
		{"skill dialog", &skill.Result{Status: skill.Success, Dialog: "Ok, done"}, "Ok, done", "success"},
		{"default dialog", &skill.Result{Status: skill.NeedMoreInfo}, "Can you provide more information?", "need_more_info"},
		{"nil result", nil, "I'm sorry, I couldn't understand that.", "unknown"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			low := &skillmock.Skill{NameResult: "low", ScoreResult: 10, HandleResult: &skill.Result{Status: skill.Failure}}
			high := &skillmock.Skill{NameResult: "high", ScoreResult: 90, HandleResult: tc.result}
			spk := &recordingSpeaker{}
			m, reader := newTestMetrics(t)
			d := dispatch.New(&recmock.Provider{Result: lightSpans}, newRegistry(t, low, high), emptyEnv(),
				dispatch.WithSpeaker(spk), dispatch.WithMetrics(m))

			dialog, err := d.Run(context.Background(), "turn on the light")
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if dialog != tc.want {
				t.Errorf("dialog = %q, want %q", dialog, tc.want)
			}
			if lines := spk.Lines(); len(lines) != 1 || lines[0] != tc.want {
				t.Errorf("spoken = %v", lines)
			}
			if low.Handled() != 0 || high.Handled() != 1 {
				t.Errorf("handled low=%d high=%d, want 0/1", low.Handled(), high.Handled())
			}
			if n := counter(t, reader, "voicehac.skill.selections", "skill", "high"); n != 1 {
				t.Errorf("selections[high] = %d, want 1", n)
			}
			if n := counter(t, reader, "voicehac.skill.results", "status", tc.wantStat); n != 1 {
				t.Errorf("results[%s] = %d, want 1", tc.wantStat, n)
			}
			if n := counter(t, reader, "voicehac.utterances", "outcome", dispatch.OutcomeOK); n != 1 {
				t.Errorf("utterances[ok] = %d, want 1", n)
			}
		})
	}
}

func TestRun_HandleReceivesBuiltSet(t *testing.T) {
	t.Parallel()

	s := &skillmock.Skill{NameResult: "lights", ScoreResult: 100, HandleResult: &skill.Result{Status: skill.Success}}
	d := dispatch.New(&recmock.Provider{Result: lightSpans}, newRegistry(t, s), emptyEnv(),
		dispatch.WithSpeaker(&recordingSpeaker{}))

	if _, err := d.Run(context.Background(), "turn on the big light"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	call := s.HandleCalls[0]
	if call.Utterance != "turn on the big light" {
		t.Errorf("utterance = %q", call.Utterance)
	}
	if got := call.Req.Values(slots.Thing); len(got) != 1 || got[0] != "light" {
		t.Errorf("thing slot = %v", got)
	}
	if call.Req.Description != "the big" {
		t.Errorf("description = %q, want %q", call.Req.Description, "the big")
	}
}

func TestRun_TieGoesToEarlierSkill(t *testing.T) {
	t.Parallel()

	for _, parallel := range []bool{false, true} {
		first := &skillmock.Skill{NameResult: "first", ScoreResult: 80, HandleResult: &skill.Result{Status: skill.Success, Dialog: "first"}}
		second := &skillmock.Skill{NameResult: "second", ScoreResult: 80, HandleResult: &skill.Result{Status: skill.Success, Dialog: "second"}}
		opts := []dispatch.Option{dispatch.WithSpeaker(&recordingSpeaker{})}
		if parallel {
			opts = append(opts, dispatch.WithParallelScoring())
		}
		d := dispatch.New(&recmock.Provider{Result: lightSpans}, newRegistry(t, first, second), emptyEnv(), opts...)

		dialog, err := d.Run(context.Background(), "x")
		if err != nil {
			t.Fatalf("parallel=%v: Run: %v", parallel, err)
		}
		if dialog != "first" {
			t.Errorf("parallel=%v: dialog = %q, want first", parallel, dialog)
		}
	}
}

func TestRun_SpeakerErrorIsNotFatal(t *testing.T) {
	t.Parallel()

	s := &skillmock.Skill{NameResult: "lights", ScoreResult: 100, HandleResult: &skill.Result{Status: skill.Success}}
	spk := &recordingSpeaker{err: errors.New("audio device gone")}
	d := dispatch.New(&recmock.Provider{Result: lightSpans}, newRegistry(t, s), emptyEnv(), dispatch.WithSpeaker(spk))

	if _, err := d.Run(context.Background(), "x"); err != nil {
		t.Errorf("Run: %v, want nil", err)
	}
}

func TestRun_Concurrent(t *testing.T) {
	t.Parallel()

	s := &skillmock.Skill{NameResult: "lights", ScoreResult: 100, HandleResult: &skill.Result{Status: skill.Success}}
	d := dispatch.New(&recmock.Provider{Result: lightSpans}, newRegistry(t, s), emptyEnv(),
		dispatch.WithSpeaker(&recordingSpeaker{}))

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			if _, err := d.Run(context.Background(), "x"); err != nil {
				t.Errorf("Run: %v", err)
			}
		})
	}
	wg.Wait()
	if s.Handled() != 16 {
		t.Errorf("handled = %d, want 16", s.Handled())
	}
}

// ── End to end ───────────────────────────────────────────────────────────────

func TestRun_LightsEndToEnd(t *testing.T) {
	t.Parallel()

	rec, err := gazetteer.New(vocab.Default())
	if err != nil {
		t.Fatalf("gazetteer.New: %v", err)
	}
	p := backendmock.New(
		backendmock.Light("light.kitchen_light", "Kitchen Light", 1),
		backendmock.Light("light.office_light", "Office Light", 1),
	)
	reg := newRegistry(t, lights.New())
	env, err := skill.LoadEnv(context.Background(), p, reg.Domains()...)
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	var out bytes.Buffer
	d := dispatch.New(rec, reg, env, dispatch.WithSpeaker(dispatch.NewWriterSpeaker(&out, "> ")))

	tests := []struct {
		utterance string
		want      string
		wantErr   error
	}{
		{"turn on the light in kitchen", "Ok, I will turn on Kitchen Light", nil},
		{"turn off the office light", "Ok, I will turn off Office Light", nil},
		{"hello there", dispatch.DefaultDialog(skill.Unknown), dispatch.ErrRecognition},
		{"turn on the fan", dispatch.DefaultDialog(skill.Unknown), dispatch.ErrSkillNotFound},
	}
	for _, tc := range tests {
		got, err := d.Run(context.Background(), tc.utterance)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("%q: err = %v, want %v", tc.utterance, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("%q: dialog = %q, want %q", tc.utterance, got, tc.want)
		}
	}
	if !strings.Contains(out.String(), "> Ok, I will turn on Kitchen Light\n") {
		t.Errorf("speaker output = %q", out.String())
	}
	if calls := p.Triggers(); len(calls) != 2 {
		t.Errorf("trigger calls = %d, want 2", len(calls))
	}
}

// ── Tracing ──────────────────────────────────────────────────────────────────

func TestRun_RecordsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })

	s := &skillmock.Skill{NameResult: "lights", ScoreResult: 100, HandleResult: &skill.Result{Status: skill.Success}}
	d := dispatch.New(&recmock.Provider{Result: lightSpans}, newRegistry(t, s), emptyEnv(),
		dispatch.WithSpeaker(&recordingSpeaker{}))
	if _, err := d.Run(context.Background(), "x"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	names := map[string]bool{}
	for _, sp := range exp.GetSpans() {
		names[sp.Name] = true
	}
	for _, want := range []string{"dispatch.run", "dispatch.recognize", "skill.handle"} {
		if !names[want] {
			t.Errorf("span %q not recorded; got %v", want, names)
		}
	}
}
