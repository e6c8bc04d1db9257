package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/koscakluka/ema-edge/core/realtime"
)

// sendQueue is an unbounded FIFO of outbound envelopes drained by a single
// writer. Pushing never blocks and never drops while the queue is open.
type sendQueue struct {
	logger *slog.Logger

	mu           sync.Mutex
	pending      []realtime.Envelope
	closed       bool
	updateSignal chan struct{}
}

func newSendQueue(logger *slog.Logger) *sendQueue {
	return &sendQueue{logger: logger, updateSignal: make(chan struct{}, 1)}
}

// Push appends an envelope. It reports false once the queue is closed.
func (q *sendQueue) Push(envelope realtime.Envelope) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, envelope)
	q.mu.Unlock()
	q.signalUpdate()
	return true
}

func (q *sendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close rejects further pushes and drops anything not yet sent.
func (q *sendQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.pending = nil
	q.mu.Unlock()
	q.signalUpdate()
}

// Run writes envelopes to conn in push order until ctx is done, the queue
// is closed or a send fails.
func (q *sendQueue) Run(ctx context.Context, conn Connection) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			select {
			case <-ctx.Done():
				return nil
			case <-q.updateSignal:
			}
			continue
		}

		envelope := q.pending[0]
		q.pending[0] = realtime.Envelope{}
		q.pending = q.pending[1:]
		q.mu.Unlock()

		message, err := realtime.Encode(envelope)
		if err != nil {
			q.logger.Error("dropping unencodable envelope", "type", envelope.Type, "error", err)
			continue
		}

		if err := conn.Send(ctx, message); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to send %s: %w", envelope.Type, err)
		}
	}
}

func (q *sendQueue) signalUpdate() {
	select {
	case q.updateSignal <- struct{}{}:
	default:
	}
}
