// Package activities holds the built-in activity modules. They are small on
// purpose: each one exercises the full lifecycle contract (start, completion
// signal, stop, cursor forwarding) that richer external modules follow.
package activities

import (
	"context"
	"log/slog"
	"sync"

	"github.com/edequartel/BrailleServer/activity"
	"github.com/edequartel/BrailleServer/braille"
	"github.com/edequartel/BrailleServer/device"
)

// LineSender is the slice of the device client the activities need
type LineSender interface {
	SendLine(ctx context.Context, text string, opts device.SendOptions) error
	ClearDisplay(ctx context.Context) error
}

// WordLine lays the record's tokens on the display and completes when the
// user presses a cursor key on the last word.
type WordLine struct {
	sender LineSender
	cells  int
	logger *slog.Logger

	mu       sync.Mutex
	line     *braille.Line
	lastWord string

	done     chan error
	doneOnce sync.Once
}

var (
	_ activity.Handler        = (*WordLine)(nil)
	_ activity.CursorReceiver = (*WordLine)(nil)
)

// NewWordLine returns a factory for wordline runs
func NewWordLine(sender LineSender, cells int, logger *slog.Logger) activity.Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return func() activity.Handler {
		return &WordLine{
			sender: sender,
			cells:  cells,
			logger: logger.With("activity", "wordline"),
			done:   make(chan error, 1),
		}
	}
}

// Start lays the tokens out and shows them
func (w *WordLine) Start(ctx context.Context, actx activity.Context) (<-chan error, error) {
	tokens := actx.Record.Tokens()

	line := braille.NewLine(braille.WithCells(w.cells))
	line.SetTokens(tokens)

	w.mu.Lock()
	w.line = line
	if len(tokens) > 0 {
		w.lastWord = tokens[len(tokens)-1]
	}
	w.mu.Unlock()

	if err := w.sender.SendLine(ctx, line.Text(), device.SendOptions{Pad: true, Cells: w.cells}); err != nil {
		// transport failures degrade, they do not fail the run; the display
		// catches up on the next write
		w.logger.Warn("initial line write failed", "error", err)
	}

	return w.done, nil
}

// OnCursor completes the run when the last word is pressed
func (w *WordLine) OnCursor(ev device.CursorEvent) {
	w.mu.Lock()
	line := w.line
	lastWord := w.lastWord
	w.mu.Unlock()

	if line == nil {
		return
	}
	span, ok := line.WordSpanAt(ev.Index)
	if !ok {
		return
	}

	w.logger.Info("word pressed", "word", span.Word, "index", ev.Index)
	if span.Word == lastWord {
		w.doneOnce.Do(func() { w.done <- nil })
	}
}

// Stop releases the run; the buffer is left as-is for the next activity
func (w *WordLine) Stop(reason string) {
	w.logger.Info("wordline stopped", "reason", reason)
}
