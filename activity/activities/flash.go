package activities

import (
	"context"
	"log/slog"
	"time"

	"github.com/edequartel/BrailleServer/activity"
	"github.com/edequartel/BrailleServer/braille"
	"github.com/edequartel/BrailleServer/device"
)

// Flash shows each word of the record for a fixed interval and completes
// after the last one.
type Flash struct {
	sender   LineSender
	cells    int
	interval time.Duration
	logger   *slog.Logger

	done chan error
}

var _ activity.Handler = (*Flash)(nil)

// NewFlash returns a factory for flash runs
func NewFlash(sender LineSender, cells int, interval time.Duration, logger *slog.Logger) activity.Factory {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return func() activity.Handler {
		return &Flash{
			sender:   sender,
			cells:    cells,
			interval: interval,
			logger:   logger.With("activity", "flash"),
			done:     make(chan error, 1),
		}
	}
}

// Start plays the word sequence in the background. Cancellation of ctx stops
// the sequence without a completion signal; the runner already settled the
// run when it cancelled.
func (f *Flash) Start(ctx context.Context, actx activity.Context) (<-chan error, error) {
	tokens := actx.Record.Tokens()

	go func() {
		line := braille.NewLine(braille.WithCells(f.cells))
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		for _, token := range tokens {
			// an unchanged buffer needs no rewrite, only the dwell time
			if line.SetText(token) {
				if err := f.sender.SendLine(ctx, line.Text(), device.SendOptions{Pad: true, Cells: f.cells}); err != nil {
					f.logger.Warn("flash write failed", "word", token, "error", err)
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}

		if err := f.sender.ClearDisplay(ctx); err != nil {
			f.logger.Warn("clear after flash failed", "error", err)
		}
		f.done <- nil
	}()

	return f.done, nil
}

// Stop ends the sequence; the run context cancellation does the actual work
func (f *Flash) Stop(reason string) {
	f.logger.Info("flash stopped", "reason", reason)
}
