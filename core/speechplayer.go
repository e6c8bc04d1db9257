package orchestration

import (
	"context"
	"log/slog"
	"sync"

	"github.com/koscakluka/ema-edge/core/events"
)

// speechPlayer plays queued clips one at a time in completion order.
type speechPlayer struct {
	turns     *turnTaking
	emit      eventEmitter
	logger    *slog.Logger
	onDrained func()

	mu            sync.Mutex
	queue         []PlaybackItem
	active        bool
	cancelCurrent context.CancelFunc
	// generation changes on cancel so a clip interrupted by cancel does not
	// report the queue as drained.
	generation   uint64
	updateSignal chan struct{}
}

func newSpeechPlayer(turns *turnTaking, emit eventEmitter, logger *slog.Logger, onDrained func()) *speechPlayer {
	if emit == nil {
		emit = noopEventEmitter
	}
	if onDrained == nil {
		onDrained = func() {}
	}
	return &speechPlayer{
		turns:        turns,
		emit:         emit,
		logger:       logger,
		onDrained:    onDrained,
		updateSignal: make(chan struct{}, 1),
	}
}

func (p *speechPlayer) Enqueue(item PlaybackItem) {
	p.mu.Lock()
	p.queue = append(p.queue, item)
	p.mu.Unlock()
	p.signalUpdate()
}

// Busy reports whether a clip is playing or waiting.
func (p *speechPlayer) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active || len(p.queue) > 0
}

// Cancel drops queued clips and aborts the one playing.
func (p *speechPlayer) Cancel() {
	p.mu.Lock()
	p.queue = nil
	p.generation++
	cancel := p.cancelCurrent
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Run plays clips until ctx is done.
func (p *speechPlayer) Run(ctx context.Context) {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-p.updateSignal:
			}
			continue
		}

		item := p.queue[0]
		p.queue = p.queue[1:]
		itemCtx, cancel := context.WithCancel(ctx)
		p.cancelCurrent = cancel
		p.active = true
		generation := p.generation
		p.mu.Unlock()

		if err := p.turns.play(itemCtx, item); err != nil && itemCtx.Err() == nil {
			p.logger.Error("playback failed", "error", err, "response_id", item.ResponseID)
		}
		cancel()

		p.mu.Lock()
		p.active = false
		p.cancelCurrent = nil
		drained := len(p.queue) == 0 && generation == p.generation
		p.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if drained {
			p.emit(events.NewAssistantPlaybackDrained())
			p.onDrained()
		}
	}
}

func (p *speechPlayer) signalUpdate() {
	select {
	case p.updateSignal <- struct{}{}:
	default:
	}
}
