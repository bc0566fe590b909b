package dispatch

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/MrWong99/voicehac/internal/observe"
)

// Speaker delivers a dialog line to the user.
type Speaker interface {
	Speak(ctx context.Context, dialog string) error
}

// SpeakerFunc adapts a function to [Speaker].
type SpeakerFunc func(ctx context.Context, dialog string) error

// Speak implements [Speaker].
func (f SpeakerFunc) Speak(ctx context.Context, dialog string) error { return f(ctx, dialog) }

// LogSpeaker writes every dialog line to the structured log.
type LogSpeaker struct{}

// Speak implements [Speaker].
func (LogSpeaker) Speak(ctx context.Context, dialog string) error {
	observe.Logger(ctx).Info("dispatch: speak", "dialog", dialog)
	return nil
}

// WriterSpeaker prints every dialog line to an [io.Writer], one per line.
// It is safe for concurrent use.
type WriterSpeaker struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

// NewWriterSpeaker returns a speaker writing to w. Each line starts with
// prefix.
func NewWriterSpeaker(w io.Writer, prefix string) *WriterSpeaker {
	return &WriterSpeaker{w: w, prefix: prefix}
}

// Speak implements [Speaker].
func (s *WriterSpeaker) Speak(_ context.Context, dialog string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "%s%s\n", s.prefix, dialog); err != nil {
		return fmt.Errorf("dispatch: speak: %w", err)
	}
	return nil
}
