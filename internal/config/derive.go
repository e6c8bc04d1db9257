package config

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/invopop/jsonschema"
	"github.com/jinzhu/copier"

	orchestration "github.com/koscakluka/ema-edge/core"
	"github.com/koscakluka/ema-edge/core/audio"
	"github.com/koscakluka/ema-edge/core/realtime"
)

// Endpoint returns the realtime endpoint described by the realtime section.
func (c *Config) Endpoint() realtime.Endpoint {
	return realtime.Endpoint{
		Provider:   realtime.Provider(c.Realtime.Provider),
		Host:       c.Realtime.Endpoint,
		APIVersion: c.Realtime.APIVersion,
		Deployment: c.Realtime.Deployment,
		Model:      c.Realtime.Model,
		APIKey:     c.Realtime.APIKey,
		URL:        c.Realtime.URL,
	}
}

// SessionSnapshot deep-copies the session section, so a running
// connection never shares pointers with a reloaded configuration.
func (c *Config) SessionSnapshot() (realtime.SessionConfig, error) {
	var snapshot realtime.SessionConfig
	if err := copier.CopyWithOption(&snapshot, &c.Session, copier.Option{DeepCopy: true}); err != nil {
		return realtime.SessionConfig{}, fmt.Errorf("failed to copy session config: %w", err)
	}
	return snapshot, nil
}

// ChunkAggregatorConfig derives the aggregator settings. Frames are
// measured after downmixing, so a stereo microphone still yields mono
// frames of PeriodFrames samples.
func (c *Config) ChunkAggregatorConfig() orchestration.ChunkAggregatorConfig {
	mono := c.CaptureEncoding().Mono()
	return orchestration.ChunkAggregatorConfig{
		Mode:            orchestration.ChunkMode(c.Chunking.Mode),
		PacketSize:      c.Audio.PeriodFrames * mono.BytesPerFrame(),
		PacketThreshold: c.Chunking.PacketThreshold,
		GrowBy:          c.Chunking.GrowBy,
		Downmix:         c.Audio.CaptureChannels == 2,
		Priming:         orchestration.PrimingPolicy(c.Chunking.Priming),
		PrimingBytes:    c.Chunking.PrimingBytes,
	}
}

func (c *Config) CaptureEncoding() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: c.Audio.SampleRate,
		Channels:   c.Audio.CaptureChannels,
		Format:     audio.EncodingLinear16,
	}
}

// OutputEncoding describes the PCM16 mono audio the service streams back.
func (c *Config) OutputEncoding() audio.EncodingInfo {
	return c.CaptureEncoding().Mono()
}

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{FieldNameTag: "yaml", DoNotReference: true}
	schema := reflector.Reflect(&Config{})
	schema.Title = "ema-edge configuration"

	data, err := sonic.ConfigStd.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
