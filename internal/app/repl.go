package app

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Prompt is written before every line read by the interactive loop.
const Prompt = "Enter an utterance or type 'quit' to exit: "

// Shortcuts maps the predefined test inputs to the utterance they stand for.
var Shortcuts = map[string]string{
	"1": "turn on lights in office",
	"2": "turn off kitchen light",
	"3": "set warm water to eco",
}

// repl reads utterances line by line and dispatches them until the input
// ends, the user types quit or exit, or ctx is cancelled. A failed
// utterance is logged and the loop continues.
func (a *App) repl(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(a.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
		close(lines)
	}()

	for {
		fmt.Fprint(a.out, Prompt)
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("app: read input: %w", err)
				}
				return nil
			}
			text := strings.TrimSpace(line)
			if isQuit(text) {
				return nil
			}
			if expanded, ok := Shortcuts[text]; ok {
				fmt.Fprintln(a.out, expanded)
				text = expanded
			}
			if text == "" {
				continue
			}
			if _, err := a.dispatcher.Run(ctx, text); err != nil {
				slog.Warn("app: utterance not handled", "utterance", text, "err", err)
			}
		}
	}
}

func isQuit(text string) bool {
	return strings.EqualFold(text, "quit") || strings.EqualFold(text, "exit")
}
