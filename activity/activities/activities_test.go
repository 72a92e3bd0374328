package activities

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edequartel/BrailleServer/activity"
	"github.com/edequartel/BrailleServer/content"
	"github.com/edequartel/BrailleServer/device"
)

// fakeSender records display writes
type fakeSender struct {
	mu      sync.Mutex
	lines   []string
	cleared int
}

func (s *fakeSender) SendLine(_ context.Context, text string, _ device.SendOptions) error {
	s.mu.Lock()
	s.lines = append(s.lines, text)
	s.mu.Unlock()
	return nil
}

func (s *fakeSender) ClearDisplay(_ context.Context) error {
	s.mu.Lock()
	s.cleared++
	s.mu.Unlock()
	return nil
}

func (s *fakeSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func testContext(words ...string) activity.Context {
	return activity.Context{
		Activity: "test",
		Record:   content.Record{Text: "x", Words: words},
	}
}

func TestWordLineShowsTokens(t *testing.T) {
	sender := &fakeSender{}
	handler := NewWordLine(sender, 40, nil)()

	done, err := handler.Start(context.Background(), testContext("de hond", "blaft"))
	require.NoError(t, err)
	require.NotNil(t, done)

	lines := sender.sent()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "de hond blaft")
}

func TestWordLineCompletesOnLastWord(t *testing.T) {
	sender := &fakeSender{}
	handler := NewWordLine(sender, 40, nil)().(*WordLine)

	done, err := handler.Start(context.Background(), testContext("de hond", "blaft"))
	require.NoError(t, err)

	// pressing a non-final word does not complete
	handler.OnCursor(device.CursorEvent{Index: 2, Pressed: true}) // inside "de hond"
	select {
	case <-done:
		t.Fatal("completed on a non-final word")
	case <-time.After(20 * time.Millisecond):
	}

	// a separator press does nothing
	handler.OnCursor(device.CursorEvent{Index: 7, Pressed: true})

	// the last word completes the run exactly once
	handler.OnCursor(device.CursorEvent{Index: 9, Pressed: true}) // inside "blaft"
	handler.OnCursor(device.CursorEvent{Index: 10, Pressed: true})

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("no completion signal")
	}
}

func TestWordLineFreshHandlerPerRun(t *testing.T) {
	factory := NewWordLine(&fakeSender{}, 40, nil)
	a := factory()
	b := factory()
	assert.NotSame(t, a, b)
}

func TestFlashPlaysSequenceAndCompletes(t *testing.T) {
	sender := &fakeSender{}
	handler := NewFlash(sender, 40, 10*time.Millisecond, nil)()

	done, err := handler.Start(context.Background(), testContext("aap", "noot", "mies"))
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("no completion signal")
	}

	lines := sender.sent()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "aap")
	assert.Contains(t, lines[1], "noot")
	assert.Contains(t, lines[2], "mies")
	assert.Equal(t, 1, sender.cleared)
}

func TestFlashStopsOnCancel(t *testing.T) {
	sender := &fakeSender{}
	handler := NewFlash(sender, 40, 50*time.Millisecond, nil)()

	ctx, cancel := context.WithCancel(context.Background())
	done, err := handler.Start(ctx, testContext("aap", "noot", "mies"))
	require.NoError(t, err)

	cancel()

	// cancelled mid-sequence: no completion signal arrives
	select {
	case <-done:
		t.Fatal("completion after cancellation")
	case <-time.After(300 * time.Millisecond):
	}

	assert.Less(t, len(sender.sent()), 3)
}
