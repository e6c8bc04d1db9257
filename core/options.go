package orchestration

import (
	"context"
	"log/slog"

	"github.com/koscakluka/ema-edge/core/audio"
	"github.com/koscakluka/ema-edge/core/realtime"
)

type OrchestratorOption func(*Orchestrator)

// Connection is an open transport to the realtime service.
type Connection = realtime.Connection

type Transport interface {
	Connect(ctx context.Context, uri string) (Connection, error)
}

// WithTransport sets the transport and the address it dials.
func WithTransport(transport Transport, uri string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.transport = transport
		o.uri = uri
	}
}

// AudioInput delivers capture frames through onAudio until StopCapture
// returns. The frame slice may be reused after onAudio returns.
type AudioInput interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}

func WithAudioInput(client AudioInput) OrchestratorOption {
	return func(o *Orchestrator) { o.audioInput = client }
}

// AudioOutput plays one complete WAV clip and returns once it finished or
// ctx was cancelled.
type AudioOutput interface {
	Play(ctx context.Context, clip []byte) error
}

func WithAudioOutput(client AudioOutput) OrchestratorOption {
	return func(o *Orchestrator) { o.audioOutput = client }
}

// Display shows transcripts and a short status line.
type Display interface {
	SetUserText(text string) error
	SetAssistantText(text string) error
	SetStatus(status string) error
}

func WithDisplay(display Display) OrchestratorOption {
	return func(o *Orchestrator) { o.display = display }
}

// WithSessionConfig sets the configuration sent in session.update.
func WithSessionConfig(config realtime.SessionConfig) OrchestratorOption {
	return func(o *Orchestrator) { o.sessionConfig = config }
}

func WithChunking(config ChunkAggregatorConfig) OrchestratorOption {
	return func(o *Orchestrator) { o.chunking = config }
}

// WithOutputEncoding describes the PCM the service streams back.
func WithOutputEncoding(encoding audio.EncodingInfo) OrchestratorOption {
	return func(o *Orchestrator) { o.outputEncoding = encoding }
}

// WithEventHandler registers a handler. Every registered handler receives
// every event.
func WithEventHandler(handler EventHandler) OrchestratorOption {
	return func(o *Orchestrator) {
		if handler != nil {
			o.eventHandlers = append(o.eventHandlers, handler)
		}
	}
}

func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}
