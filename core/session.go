package orchestration

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-edge/core/audio"
	"github.com/koscakluka/ema-edge/core/events"
	"github.com/koscakluka/ema-edge/core/realtime"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateAwaitingHandshakeAck
	StateIdle
	StateUserSpeaking
	StateUserCommitted
	StateAssistantResponding
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateAwaitingHandshakeAck:
		return "AwaitingHandshakeAck"
	case StateIdle:
		return "Idle"
	case StateUserSpeaking:
		return "UserSpeaking"
	case StateUserCommitted:
		return "UserCommitted"
	case StateAssistantResponding:
		return "AssistantResponding"
	}
	return "Unknown"
}

// sessionStateMachine maps server events onto turn-taking actions. All of
// its methods are safe to call from the receive loop and the playback
// worker concurrently.
type sessionStateMachine struct {
	sessionConfig realtime.SessionConfig

	outbound  *sendQueue
	turns     *turnTaking
	assembler *PlaybackAssembler
	player    *speechPlayer
	display   displayFacade
	emit      eventEmitter
	logger    *slog.Logger

	conversation conversation

	mu             sync.Mutex
	ctx            context.Context
	state          SessionState
	captureStarted bool
	torndown       bool
	handshakeSpan  trace.Span

	// Mirrors for readers that must not wait on mu, such as event handlers.
	currentState atomic.Int32
	sessionID    atomic.Value
}

func (m *sessionStateMachine) State() SessionState {
	return SessionState(m.currentState.Load())
}

func (m *sessionStateMachine) SessionID() string {
	id, _ := m.sessionID.Load().(string)
	return id
}

// setState must be called with mu held.
func (m *sessionStateMachine) setState(next SessionState) {
	if m.state == next {
		return
	}
	previous := m.state
	m.state = next
	m.currentState.Store(int32(next))
	m.logger.Debug("session state changed", "from", previous.String(), "to", next.String())
	m.emit(events.NewSessionStateChanged(previous.String(), next.String()))
}

func (m *sessionStateMachine) connecting() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setState(StateConnecting)
	m.display.setStatus(StatusConnecting)
}

// connected queues session.update ahead of any audio and waits for the
// acknowledgement.
func (m *sessionStateMachine) connected(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ctx = ctx
	_, m.handshakeSpan = tracer.Start(ctx, "session handshake")
	m.outbound.Push(realtime.NewSessionUpdate(m.sessionConfig))
	m.setState(StateAwaitingHandshakeAck)
	m.display.setStatus(StatusHandshake)
}

func (m *sessionStateMachine) handle(event *realtime.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.torndown {
		return
	}

	switch event.Type {
	case realtime.EventTypeSessionCreated:
		if event.Session != nil {
			m.sessionID.Store(event.Session.ID)
		}
		m.logger.Info("session created", "session_id", m.SessionID())

	case realtime.EventTypeSessionUpdated:
		if m.state != StateAwaitingHandshakeAck || m.captureStarted {
			m.logger.Debug("session configuration updated")
			return
		}
		m.captureStarted = true
		m.endHandshake(nil)
		m.setState(StateIdle)
		m.startCapture()

	case realtime.EventTypeInputAudioBufferSpeechStarted:
		m.conversation.clearUser()
		m.setState(StateUserSpeaking)
		m.display.setStatus(StatusListening)
		m.emit(events.NewUserSpeechStarted())

	case realtime.EventTypeInputAudioBufferSpeechStopped:
		m.emit(events.NewUserSpeechEnded())

	case realtime.EventTypeInputAudioBufferCommitted:
		m.setState(StateUserCommitted)
		if err := m.turns.stopCapture(); err != nil {
			m.logger.Error("failed to stop capture", "error", err)
		}
		m.display.setStatus(StatusThinking)

	case realtime.EventTypeConversationItemInputAudioTranscriptionCompleted:
		m.conversation.setUser(event.Transcript)
		m.display.setUserText(event.Transcript)
		m.emit(events.NewUserTranscriptFinal(event.ItemID, event.Transcript))

	case realtime.EventTypeConversationItemInputAudioTranscriptionFailed:
		m.logger.Warn("user transcription failed", "item_id", event.ItemID, "error", errorMessage(event))

	case realtime.EventTypeResponseContentPartAdded:
		m.conversation.resetAssistant(event.ResponseID)
		m.display.setAssistantText("")
		m.setState(StateAssistantResponding)
		m.display.setStatus(StatusResponding)
		m.emit(events.NewAssistantResponseStarted(event.ResponseID))

	case realtime.EventTypeResponseAudioTranscriptDelta:
		transcript := m.conversation.appendAssistant(event.Delta)
		m.display.setAssistantText(transcript)
		m.emit(events.NewAssistantTranscriptUpdated(event.ResponseID, transcript))

	case realtime.EventTypeResponseAudioDelta:
		pcm, err := event.AudioPCM()
		if err != nil {
			m.logger.Warn("dropping response audio delta", "response_id", event.ResponseID, "error", err)
			return
		}
		m.assembler.OnDelta(event.ResponseID, pcm)

	case realtime.EventTypeResponseAudioDone:
		item, err := m.assembler.OnDone(event.ResponseID)
		if err != nil {
			m.logger.Warn("no audio to play for response", "response_id", event.ResponseID, "error", err)
			return
		}
		m.emit(events.NewAssistantAudioReady(item.ResponseID, len(item.Audio), audio.Duration(item.Encoding, len(item.PCM()))))
		m.player.Enqueue(item)

	case realtime.EventTypeResponseDone:
		responseID := event.ResponseKey()
		m.emit(events.NewAssistantResponseDone(responseID))
		if m.state != StateUserCommitted && m.state != StateAssistantResponding {
			return
		}
		if m.player.Busy() || m.assembler.Pending() > 0 {
			return
		}
		m.logger.Debug("response finished without audio to play", "response_id", responseID)
		m.resumeListening()

	case realtime.EventTypeError:
		message := errorMessage(event)
		code := ""
		if event.Error != nil {
			code = event.Error.Code
		}
		m.logger.Error("realtime service reported an error", "code", code, "message", message)
		m.display.setStatus("error: " + message)
		m.emit(events.NewProtocolError(code, message))

	case realtime.EventTypeRateLimitsUpdated:
		limits := make([]events.RateLimit, 0, len(event.RateLimits))
		for _, limit := range event.RateLimits {
			m.logger.Debug("rate limit", "name", limit.Name, "remaining", limit.Remaining, "limit", limit.Limit, "reset_seconds", limit.ResetSeconds)
			limits = append(limits, events.RateLimit(limit))
		}
		m.emit(events.NewProtocolRateLimits(limits))

	default:
		if realtime.KindOf(event.Type) != realtime.KindUnknown {
			m.logger.Debug("ignoring event", "type", event.Type)
			return
		}
		m.logger.Warn("unhandled event type", "type", event.Type)
		m.emit(events.NewProtocolMessageUnhandled(event.Type))
	}
}

// playbackFinished is called by the player once its queue has drained.
func (m *sessionStateMachine) playbackFinished() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.torndown {
		return
	}
	if m.state != StateUserCommitted && m.state != StateAssistantResponding {
		return
	}
	// A newer response is still streaming; its own clip resumes capture.
	if m.assembler.Pending() > 0 {
		m.logger.Debug("playback drained while a response is still streaming")
		return
	}
	m.resumeListening()
}

// resumeListening must be called with mu held.
func (m *sessionStateMachine) resumeListening() {
	m.setState(StateIdle)
	m.startCapture()
}

// startCapture must be called with mu held.
func (m *sessionStateMachine) startCapture() {
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	if err := m.turns.startCapture(ctx); err != nil {
		if errors.Is(err, errPlaybackActive) {
			m.logger.Debug("capture deferred until playback ends")
			return
		}
		m.logger.Error("failed to start capture", "error", err)
		m.display.setStatus("microphone unavailable")
		return
	}
	m.display.setStatus(StatusListening)
}

// teardown stops capture, cancels playback and drops pending audio. Only
// the first call has an effect.
func (m *sessionStateMachine) teardown(cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.torndown {
		return
	}
	m.torndown = true
	m.endHandshake(cause)

	if err := m.turns.stopCapture(); err != nil {
		m.logger.Error("failed to stop capture during teardown", "error", err)
	}
	m.player.Cancel()
	m.assembler.Discard()
	m.outbound.Close()

	m.setState(StateDisconnected)
	m.display.setStatus(StatusDisconnected)
	m.emit(events.NewSessionDisconnected(cause))
}

// endHandshake must be called with mu held.
func (m *sessionStateMachine) endHandshake(err error) {
	if m.handshakeSpan == nil {
		return
	}
	if err != nil {
		m.handshakeSpan.RecordError(err)
		m.handshakeSpan.SetStatus(codes.Error, err.Error())
	}
	m.handshakeSpan.End()
	m.handshakeSpan = nil
}

func errorMessage(event *realtime.Event) string {
	if event.Error == nil {
		return "unknown error"
	}
	if event.Error.Message != "" {
		return event.Error.Message
	}
	return event.Error.Type
}
