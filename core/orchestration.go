package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-edge/core/audio"
	"github.com/koscakluka/ema-edge/core/events"
	"github.com/koscakluka/ema-edge/core/realtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAlreadyRunning     = errors.New("orchestrator is already running")
	ErrOrchestratorClosed = errors.New("orchestrator is closed")
)

// Orchestrator owns the collaborators of a voice session and runs one
// connection at a time.
type Orchestrator struct {
	transport   Transport
	uri         string
	audioInput  AudioInput
	audioOutput AudioOutput
	display     Display

	sessionConfig  realtime.SessionConfig
	chunking       ChunkAggregatorConfig
	outputEncoding audio.EncodingInfo

	eventHandlers []EventHandler
	emit          eventEmitter
	logger        *slog.Logger

	running   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	mu        sync.Mutex
	cancel    context.CancelFunc

	current atomic.Pointer[sessionRuntime]
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		sessionConfig:  realtime.DefaultSessionConfig(),
		chunking:       DefaultChunkAggregatorConfig(),
		outputEncoding: audio.GetDefaultEncodingInfo(),
		logger:         logger,
	}

	for _, opt := range opts {
		opt(o)
	}

	o.emit = newEventEmitter(o.eventHandlers)
	return o
}

// sessionRuntime is the state of a single connection.
type sessionRuntime struct {
	machine  *sessionStateMachine
	turns    *turnTaking
	outbound *sendQueue
	emit     eventEmitter
	batches  atomic.Uint64
}

func (o *Orchestrator) newRuntime() (*sessionRuntime, error) {
	aggregator, err := NewChunkAggregator(o.chunking)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	sessionConfig := o.sessionConfig
	o.mu.Unlock()

	rt := &sessionRuntime{outbound: newSendQueue(o.logger), emit: o.emit}
	input := newAudioInput(o.audioInput, aggregator, rt.sendBatch, o.emit, o.logger)
	output := newAudioOutput(o.audioOutput, o.emit)
	rt.turns = newTurnTaking(input, output, o.logger)

	machine := &sessionStateMachine{
		sessionConfig: sessionConfig,
		outbound:      rt.outbound,
		turns:         rt.turns,
		assembler:     NewPlaybackAssembler(o.outputEncoding),
		display:       displayFacade{client: o.display, logger: o.logger},
		emit:          o.emit,
		logger:        o.logger,
	}
	machine.player = newSpeechPlayer(rt.turns, o.emit, o.logger, machine.playbackFinished)
	rt.machine = machine

	return rt, nil
}

func (rt *sessionRuntime) sendBatch(batch []byte) {
	if !rt.outbound.Push(realtime.NewAudioAppend(batch)) {
		return
	}
	rt.emit(events.NewUserAudioBatch(rt.batches.Add(1), len(batch)))
}

// Orchestrate connects, runs the session until the connection ends, ctx is
// cancelled or Close is called, and tears it down before returning. It
// returns nil when the session was stopped on request and the cause
// otherwise; reconnecting is left to the caller.
func (o *Orchestrator) Orchestrate(ctx context.Context) (err error) {
	if o.closed.Load() {
		return ErrOrchestratorClosed
	}
	if o.transport == nil {
		return fmt.Errorf("%w: no transport configured", ErrInvalidConfig)
	}
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer o.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !o.setCancel(cancel) {
		return ErrOrchestratorClosed
	}
	defer o.setCancel(nil)

	ctx, span := tracer.Start(ctx, "orchestrate session", trace.WithAttributes(
		attribute.String("realtime.url", realtime.Redact(o.uri)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	rt, err := o.newRuntime()
	if err != nil {
		return err
	}
	o.current.Store(rt)

	rt.machine.connecting()
	conn, err := o.transport.Connect(ctx, o.uri)
	if err != nil {
		rt.machine.teardown(err)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to connect: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	stopClosing := context.AfterFunc(gctx, func() { _ = conn.Close() })
	defer stopClosing()

	rt.machine.connected(gctx)
	o.emit(events.NewSessionConnected(realtime.Redact(o.uri)))

	g.Go(func() error { return rt.outbound.Run(gctx, conn) })
	g.Go(func() error {
		rt.machine.player.Run(gctx)
		return nil
	})
	g.Go(func() error { return o.receive(gctx, rt, conn) })

	err = g.Wait()
	rt.machine.teardown(err)
	if closeErr := conn.Close(); closeErr != nil {
		o.logger.Warn("failed to close connection", "error", closeErr)
	}

	return err
}

func (o *Orchestrator) receive(ctx context.Context, rt *sessionRuntime, conn Connection) error {
	for message, err := range conn.Messages() {
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}

		event, err := realtime.Decode(message)
		if err != nil {
			o.logger.Warn("discarding malformed message", "error", err, "size", len(message))
			o.emit(events.NewProtocolMessageMalformed(err))
			continue
		}

		o.emit(events.NewProtocolMessageReceived(event.Type))
		rt.machine.handle(event)
	}

	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("connection lost: %w", realtime.ErrClosed)
}

func (o *Orchestrator) setCancel(cancel context.CancelFunc) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if cancel != nil && o.closed.Load() {
		return false
	}
	o.cancel = cancel
	return true
}

// Close stops the running session, if any, and makes later Orchestrate
// calls fail. It does not wait for teardown; Orchestrate returns once that
// is done.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		o.closed.Store(true)
		cancel := o.cancel
		o.mu.Unlock()

		if cancel != nil {
			cancel()
		}
	})
}

// SetSessionConfig replaces the configuration sent on the next connection.
// A running session keeps the configuration it was started with.
func (o *Orchestrator) SetSessionConfig(config realtime.SessionConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessionConfig = config
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	State       SessionState
	SessionID   string
	Capturing   bool
	Playing     bool
	PendingSend int
}

func (o *Orchestrator) Status() Status {
	rt := o.current.Load()
	if rt == nil {
		return Status{State: StateDisconnected}
	}

	capturing, playing := rt.turns.state()
	return Status{
		State:       rt.machine.State(),
		SessionID:   rt.machine.SessionID(),
		Capturing:   capturing,
		Playing:     playing,
		PendingSend: rt.outbound.Len(),
	}
}

func (o *Orchestrator) State() SessionState { return o.Status().State }

// Conversation returns the transcripts of the current exchange.
func (o *Orchestrator) Conversation() ConversationTurn {
	rt := o.current.Load()
	if rt == nil {
		return ConversationTurn{}
	}
	return rt.machine.conversation.Snapshot()
}
