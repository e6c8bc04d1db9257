package config

import (
	"time"

	orchestration "github.com/koscakluka/ema-edge/core"
	"github.com/koscakluka/ema-edge/core/audio"
	"github.com/koscakluka/ema-edge/core/display/terminal"
	"github.com/koscakluka/ema-edge/core/realtime"
)

const (
	BackendMiniaudio = "miniaudio"
	BackendPortaudio = "portaudio"

	DefaultPeriodFrames  = 480
	DefaultStatusAddress = "127.0.0.1:9464"
	DefaultLogFile       = "ema-edge.log"
)

func Default() *Config {
	return &Config{
		Realtime: RealtimeConfig{
			Provider:         string(realtime.ProviderAzure),
			APIVersion:       realtime.DefaultAzureAPIVersion,
			Model:            realtime.DefaultOpenAIModel,
			HandshakeTimeout: 10 * time.Second,
			WriteTimeout:     5 * time.Second,
		},
		Session: realtime.DefaultSessionConfig(),
		Audio: AudioConfig{
			Backend:         BackendMiniaudio,
			SampleRate:      audio.DefaultSampleRate,
			CaptureChannels: audio.DefaultChannels,
			PeriodFrames:    DefaultPeriodFrames,
		},
		Chunking: ChunkingConfig{
			Mode:            string(orchestration.ChunkModeFixed),
			PacketThreshold: orchestration.DefaultPacketThreshold,
			GrowBy:          4096,
			Priming:         string(orchestration.PrimingDiscardFrame),
			PrimingBytes:    orchestration.DefaultPrimingBytes,
		},
		Display: DisplayConfig{
			Enabled:         true,
			MaxTextLength:   terminal.DefaultMaxTextLength,
			RefreshInterval: terminal.DefaultRefreshInterval,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Status:  StatusConfig{Address: DefaultStatusAddress},
		Reconnect: ReconnectConfig{
			Enabled:        true,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
	}
}
