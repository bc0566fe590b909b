package dispatch

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWriterSpeaker(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewWriterSpeaker(&buf, "voicehac> ")
	for _, line := range []string{"first", "second"} {
		if err := s.Speak(context.Background(), line); err != nil {
			t.Fatalf("Speak: %v", err)
		}
	}
	if got, want := buf.String(), "voicehac> first\nvoicehac> second\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}

	if err := NewWriterSpeaker(failingWriter{}, "").Speak(context.Background(), "x"); err == nil {
		t.Error("expected write error")
	}
}

func TestSpeakerFunc(t *testing.T) {
	t.Parallel()

	var got string
	var s Speaker = SpeakerFunc(func(_ context.Context, d string) error {
		got = d
		return nil
	})
	if err := s.Speak(context.Background(), "hi"); err != nil || got != "hi" {
		t.Errorf("got %q, %v", got, err)
	}
	if err := (LogSpeaker{}).Speak(context.Background(), "hi"); err != nil {
		t.Errorf("LogSpeaker: %v", err)
	}
}
