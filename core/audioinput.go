package orchestration

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-edge/core/events"
)

// audioInput bridges the capture device callback into the chunk aggregator.
type audioInput struct {
	client     AudioInput
	aggregator *ChunkAggregator
	onBatch    func(batch []byte)
	emit       eventEmitter
	logger     *slog.Logger

	// mu is held for the whole of each frame callback, so stop returns only
	// after an in-flight frame has been handled.
	mu     sync.Mutex
	active bool

	isCapturing atomic.Bool
}

func newAudioInput(client AudioInput, aggregator *ChunkAggregator, onBatch func([]byte), emit eventEmitter, logger *slog.Logger) *audioInput {
	if onBatch == nil {
		onBatch = func([]byte) {}
	}
	if emit == nil {
		emit = noopEventEmitter
	}
	return &audioInput{
		client:     client,
		aggregator: aggregator,
		onBatch:    onBatch,
		emit:       emit,
		logger:     logger,
	}
}

func (a *audioInput) IsConfigured() bool { return a != nil && a.client != nil }
func (a *audioInput) IsCapturing() bool  { return a != nil && a.isCapturing.Load() }

func (a *audioInput) start(ctx context.Context) error {
	if !a.IsConfigured() {
		return nil
	}

	a.mu.Lock()
	a.aggregator.Reset()
	a.active = true
	a.mu.Unlock()

	if err := a.client.StartCapture(ctx, a.handleFrame); err != nil {
		a.mu.Lock()
		a.active = false
		a.mu.Unlock()
		return err
	}

	a.isCapturing.Store(true)
	a.emit(events.NewUserCaptureStarted())
	return nil
}

// stop guarantees that no batch is produced after it returns.
func (a *audioInput) stop() error {
	if !a.IsConfigured() {
		return nil
	}

	a.mu.Lock()
	a.active = false
	a.aggregator.Reset()
	a.mu.Unlock()

	err := a.client.StopCapture()
	a.isCapturing.Store(false)
	a.emit(events.NewUserCaptureStopped())
	return err
}

func (a *audioInput) handleFrame(frame []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.active {
		return
	}

	batch, err := a.aggregator.OnFrame(frame)
	if err != nil {
		a.logger.Warn("dropping capture frame", "error", err, "size", len(frame))
		a.emit(events.NewUserAudioFrameRejected(err))
		return
	}
	if batch != nil {
		a.onBatch(batch)
	}
}
