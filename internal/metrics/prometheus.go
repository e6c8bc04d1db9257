package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/koscakluka/ema-edge/core/events"
)

const namespace = "ema_edge"

// Metrics holds the Prometheus collectors fed by orchestration events.
type Metrics struct {
	// Session metrics
	Connected       prometheus.Gauge
	Connections     prometheus.Counter
	Disconnects     *prometheus.CounterVec
	StateChanges    *prometheus.CounterVec
	CaptureActive   prometheus.Gauge
	PlaybackActive  prometheus.Gauge
	SpeechSegments  prometheus.Counter
	UserTranscripts prometheus.Counter

	// Outbound audio metrics
	BatchesSent    prometheus.Counter
	BatchSize      prometheus.Histogram
	FramesRejected prometheus.Counter

	// Protocol metrics
	MessagesReceived  *prometheus.CounterVec
	MessagesMalformed prometheus.Counter
	MessagesUnhandled *prometheus.CounterVec
	ServerErrors      *prometheus.CounterVec
	RateLimitRemain   *prometheus.GaugeVec

	// Response metrics
	Responses        prometheus.Counter
	ResponseAudio    prometheus.Histogram
	PlaybackClips    prometheus.Counter
	PlaybackFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while a realtime connection is open",
		}),
		Connections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of realtime connections opened",
		}),
		Disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Total number of session teardowns by reason",
		}, []string{"reason"}),
		StateChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of session state transitions by target state",
		}, []string{"state"}),
		CaptureActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_active",
			Help:      "1 while the microphone is capturing",
		}),
		PlaybackActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playback_active",
			Help:      "1 while a response clip is playing",
		}),
		SpeechSegments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_segments_total",
			Help:      "Total number of user speech segments detected by the server",
		}),
		UserTranscripts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_transcripts_total",
			Help:      "Total number of final user transcripts",
		}),

		BatchesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_batches_sent_total",
			Help:      "Total number of audio batches queued for the service",
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audio_batch_size_bytes",
			Help:      "Size of outbound audio batches",
			Buckets:   prometheus.ExponentialBuckets(960, 2, 8), // 20ms to ~2.5s of 24 kHz PCM16
		}),
		FramesRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_rejected_total",
			Help:      "Total number of capture frames dropped as invalid",
		}),

		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of decoded server messages by type",
		}, []string{"type"}),
		MessagesMalformed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_malformed_total",
			Help:      "Total number of server messages that failed to decode",
		}),
		MessagesUnhandled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_unhandled_total",
			Help:      "Total number of server messages with an unknown type",
		}, []string{"type"}),
		ServerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_errors_total",
			Help:      "Total number of error events reported by the service",
		}, []string{"code"}),
		RateLimitRemain: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limit_remaining",
			Help:      "Remaining quota reported by the service",
		}, []string{"name"}),

		Responses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Total number of completed responses",
		}),
		ResponseAudio: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_audio_seconds",
			Help:      "Duration of assembled response clips",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~32s
		}),
		PlaybackClips: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_clips_total",
			Help:      "Total number of clips handed to the output device",
		}),
		PlaybackFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_failures_total",
			Help:      "Total number of clips that ended with an error",
		}),
	}
}

// Handle records one event. It is meant to be registered as an
// orchestrator event handler.
func (m *Metrics) Handle(event events.Event) {
	switch e := event.(type) {
	case events.SessionConnected:
		m.Connections.Inc()
		m.Connected.Set(1)
	case events.SessionDisconnected:
		m.Connected.Set(0)
		m.CaptureActive.Set(0)
		m.PlaybackActive.Set(0)
		reason := "requested"
		if e.Err != nil {
			reason = "error"
		}
		m.Disconnects.WithLabelValues(reason).Inc()
	case events.SessionStateChanged:
		m.StateChanges.WithLabelValues(e.To).Inc()

	case events.UserCaptureStarted:
		m.CaptureActive.Set(1)
	case events.UserCaptureStopped:
		m.CaptureActive.Set(0)
	case events.UserAudioBatch:
		m.BatchesSent.Inc()
		m.BatchSize.Observe(float64(e.Size))
	case events.UserAudioFrameRejected:
		m.FramesRejected.Inc()
	case events.UserSpeechStarted:
		m.SpeechSegments.Inc()
	case events.UserTranscriptFinal:
		m.UserTranscripts.Inc()

	case events.ProtocolMessageReceived:
		m.MessagesReceived.WithLabelValues(e.Type).Inc()
	case events.ProtocolMessageMalformed:
		m.MessagesMalformed.Inc()
	case events.ProtocolMessageUnhandled:
		m.MessagesUnhandled.WithLabelValues(e.Type).Inc()
	case events.ProtocolError:
		m.ServerErrors.WithLabelValues(e.Code).Inc()
	case events.ProtocolRateLimits:
		for _, limit := range e.Limits {
			m.RateLimitRemain.WithLabelValues(limit.Name).Set(float64(limit.Remaining))
		}

	case events.AssistantAudioReady:
		m.ResponseAudio.Observe(e.Duration.Seconds())
	case events.AssistantResponseDone:
		m.Responses.Inc()
	case events.AssistantPlaybackStarted:
		m.PlaybackClips.Inc()
		m.PlaybackActive.Set(1)
	case events.AssistantPlaybackEnded:
		m.PlaybackActive.Set(0)
		if e.Err != nil {
			m.PlaybackFailures.Inc()
		}
	}
}
