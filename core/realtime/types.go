package realtime

import "github.com/koscakluka/ema-edge/internal/utils"

const (
	AudioFormatPCM16 = "pcm16"

	TurnDetectionServerVAD = "server_vad"

	VoiceAlloy = "alloy"

	TranscriptionModelWhisper1 = "whisper-1"
)

// SessionConfig is sent once per connection in a session.update envelope.
// Nil and empty fields are left out of the payload so the server keeps its
// own defaults for them.
type SessionConfig struct {
	Modalities              []string                 `json:"modalities,omitempty" yaml:"modalities,omitempty"`
	Instructions            string                   `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	Voice                   string                   `json:"voice,omitempty" yaml:"voice,omitempty"`
	InputAudioFormat        string                   `json:"input_audio_format,omitempty" yaml:"input_audio_format,omitempty"`
	OutputAudioFormat       string                   `json:"output_audio_format,omitempty" yaml:"output_audio_format,omitempty"`
	InputAudioTranscription *InputAudioTranscription `json:"input_audio_transcription,omitempty" yaml:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetection           `json:"turn_detection,omitempty" yaml:"turn_detection,omitempty"`
	MaxResponseOutputTokens *int                     `json:"max_response_output_tokens,omitempty" yaml:"max_response_output_tokens,omitempty"`
	Temperature             *float64                 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

type InputAudioTranscription struct {
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
}

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	Type              string   `json:"type,omitempty" yaml:"type,omitempty"`
	Threshold         *float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	PrefixPaddingMs   *int     `json:"prefix_padding_ms,omitempty" yaml:"prefix_padding_ms,omitempty"`
	SilenceDurationMs *int     `json:"silence_duration_ms,omitempty" yaml:"silence_duration_ms,omitempty"`
	CreateResponse    *bool    `json:"create_response,omitempty" yaml:"create_response,omitempty"`
}

// DefaultSessionConfig returns the configuration used when nothing else is
// configured.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Modalities:              []string{"text", "audio"},
		Voice:                   VoiceAlloy,
		InputAudioFormat:        AudioFormatPCM16,
		OutputAudioFormat:       AudioFormatPCM16,
		InputAudioTranscription: &InputAudioTranscription{Model: TranscriptionModelWhisper1},
		TurnDetection: &TurnDetection{
			Type:              TurnDetectionServerVAD,
			Threshold:         utils.Ptr(0.5),
			PrefixPaddingMs:   utils.Ptr(300),
			SilenceDurationMs: utils.Ptr(200),
			CreateResponse:    utils.Ptr(true),
		},
		MaxResponseOutputTokens: utils.Ptr(1000),
		Temperature:             utils.Ptr(0.5),
	}
}

// SessionInfo is the server's view of the session.
type SessionInfo struct {
	ID    string `json:"id,omitempty"`
	Model string `json:"model,omitempty"`
	Voice string `json:"voice,omitempty"`
}

// ErrorInfo is the payload of an error event.
type ErrorInfo struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Param   string `json:"param,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

// RateLimit is one entry of a rate_limits.updated event.
type RateLimit struct {
	Name         string  `json:"name"`
	Limit        int     `json:"limit"`
	Remaining    int     `json:"remaining"`
	ResetSeconds float64 `json:"reset_seconds"`
}

// ResponseInfo is the response object carried by response.created and
// response.done.
type ResponseInfo struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
}
