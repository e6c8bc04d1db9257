package orchestration

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

var errPlaybackActive = errors.New("capture refused while playback is active")

// turnTaking keeps capture and playback mutually exclusive: capture cannot
// start while a clip plays, and playing a clip stops capture first.
type turnTaking struct {
	input  *audioInput
	output *audioOutput
	logger *slog.Logger

	// mu serializes transitions; the flags can be read without it.
	mu        sync.Mutex
	capturing atomic.Bool
	playing   atomic.Bool
}

func newTurnTaking(input *audioInput, output *audioOutput, logger *slog.Logger) *turnTaking {
	return &turnTaking{input: input, output: output, logger: logger}
}

func (t *turnTaking) startCapture(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.playing.Load() {
		return errPlaybackActive
	}
	if t.capturing.Load() {
		return nil
	}

	if err := t.input.start(ctx); err != nil {
		return err
	}
	t.capturing.Store(true)
	return nil
}

func (t *turnTaking) stopCapture() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.capturing.Load() {
		return nil
	}
	t.capturing.Store(false)
	return t.input.stop()
}

func (t *turnTaking) play(ctx context.Context, item PlaybackItem) error {
	t.mu.Lock()
	if t.capturing.Load() {
		t.logger.Warn("capture still running when playback started, stopping it", "response_id", item.ResponseID)
		t.capturing.Store(false)
		if err := t.input.stop(); err != nil {
			t.logger.Error("failed to stop capture before playback", "error", err)
		}
	}
	t.playing.Store(true)
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.playing.Store(false)
		t.mu.Unlock()
	}()

	return t.output.play(ctx, item)
}

func (t *turnTaking) state() (capturing, playing bool) {
	return t.capturing.Load(), t.playing.Load()
}
