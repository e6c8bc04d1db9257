package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/koscakluka/ema-edge/core/realtime"
)

// Validate checks every section.
func (c *Config) Validate() error {
	sections := []struct {
		name     string
		validate func() error
	}{
		{"realtime", c.Realtime.Validate},
		{"session", c.validateSession},
		{"audio", c.Audio.Validate},
		{"chunking", func() error { return c.ChunkAggregatorConfig().Validate() }},
		{"display", c.Display.Validate},
		{"logging", c.Logging.Validate},
		{"status", c.Status.Validate},
		{"reconnect", c.Reconnect.Validate},
	}

	for _, section := range sections {
		if err := section.validate(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalid, section.name, err)
		}
	}
	return nil
}

func (r *RealtimeConfig) Validate() error {
	if r.URL != "" {
		if !strings.HasPrefix(r.URL, "ws://") && !strings.HasPrefix(r.URL, "wss://") {
			return fmt.Errorf("url must use ws or wss, got %q", realtime.Redact(r.URL))
		}
		return nil
	}

	switch realtime.Provider(r.Provider) {
	case realtime.ProviderAzure:
		if r.Endpoint == "" {
			return fmt.Errorf("endpoint is required for azure")
		}
		if r.Deployment == "" {
			return fmt.Errorf("deployment is required for azure")
		}
	case realtime.ProviderOpenAI:
		if r.Model == "" {
			return fmt.Errorf("model is required for openai")
		}
	default:
		return fmt.Errorf("unknown provider %q", r.Provider)
	}

	if r.APIKey == "" {
		return fmt.Errorf("api_key is required (or set %s)", EnvAPIKey)
	}
	if r.HandshakeTimeout < 0 || r.WriteTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	return nil
}

func (c *Config) validateSession() error {
	if c.Session.InputAudioFormat != "" && c.Session.InputAudioFormat != realtime.AudioFormatPCM16 {
		return fmt.Errorf("input_audio_format must be %s, got %q", realtime.AudioFormatPCM16, c.Session.InputAudioFormat)
	}
	if c.Session.OutputAudioFormat != "" && c.Session.OutputAudioFormat != realtime.AudioFormatPCM16 {
		return fmt.Errorf("output_audio_format must be %s, got %q", realtime.AudioFormatPCM16, c.Session.OutputAudioFormat)
	}
	if t := c.Session.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", *t)
	}
	return nil
}

func (a *AudioConfig) Validate() error {
	switch a.Backend {
	case BackendMiniaudio, BackendPortaudio:
	default:
		return fmt.Errorf("unknown backend %q", a.Backend)
	}
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000, got %d", a.SampleRate)
	}
	if a.CaptureChannels != 1 && a.CaptureChannels != 2 {
		return fmt.Errorf("capture_channels must be 1 or 2, got %d", a.CaptureChannels)
	}
	if a.PeriodFrames < 1 {
		return fmt.Errorf("period_frames must be positive, got %d", a.PeriodFrames)
	}
	return nil
}

func (d *DisplayConfig) Validate() error {
	if d.MaxTextLength < 1 {
		return fmt.Errorf("max_text_length must be positive, got %d", d.MaxTextLength)
	}
	if d.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive, got %s", d.RefreshInterval)
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown level %q", l.Level)
	}
	switch l.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown format %q", l.Format)
	}
	return nil
}

func (s *StatusConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.Address); err != nil {
		return fmt.Errorf("address: %w", err)
	}
	return nil
}

func (r *ReconnectConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if r.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive, got %s", r.InitialBackoff)
	}
	if r.MaxBackoff < r.InitialBackoff {
		return fmt.Errorf("max_backoff %s is below initial_backoff %s", r.MaxBackoff, r.InitialBackoff)
	}
	if r.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts cannot be negative, got %d", r.MaxAttempts)
	}
	return nil
}
