package miniaudio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-edge/core/audio"
)

var (
	ErrDeviceNotFound = errors.New("audio device not found")
	ErrNotInitialized = errors.New("device not initialized")
)

const defaultPeriodFrames = 480

type Config struct {
	SampleRate       int
	CaptureChannels  int
	PlaybackChannels int
	// PeriodFrames is the number of frames delivered per capture callback.
	PeriodFrames   int
	CaptureDevice  string
	PlaybackDevice string
}

type Option func(*Config)

func WithSampleRate(rate int) Option {
	return func(c *Config) { c.SampleRate = rate }
}

// WithCaptureChannels sets the number of microphone channels. Stereo
// frames have to be downmixed before they are sent.
func WithCaptureChannels(channels int) Option {
	return func(c *Config) { c.CaptureChannels = channels }
}

func WithPeriodFrames(frames int) Option {
	return func(c *Config) { c.PeriodFrames = frames }
}

// WithCaptureDevice selects a capture device by name. An empty name keeps
// the system default.
func WithCaptureDevice(name string) Option {
	return func(c *Config) { c.CaptureDevice = name }
}

func WithPlaybackDevice(name string) Option {
	return func(c *Config) { c.PlaybackDevice = name }
}

// Client drives one capture and one playback device through miniaudio.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	config       Config

	playbackClient
	captureClient
}

func NewClient(opts ...Option) (*Client, error) {
	config := Config{
		SampleRate:       audio.DefaultSampleRate,
		CaptureChannels:  audio.DefaultChannels,
		PlaybackChannels: audio.DefaultChannels,
		PeriodFrames:     defaultPeriodFrames,
	}
	for _, opt := range opts {
		opt(&config)
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{audioContext: audioCtx, config: config}

	if err := client.playbackClient.Init(audioCtx, config); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	if err := client.captureClient.Init(audioCtx, config); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

func (c *Client) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	return c.captureClient.Start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.captureClient.Stop()
}

// Play plays a WAV clip and blocks until it drained or ctx is done.
func (c *Client) Play(ctx context.Context, clip []byte) error {
	return c.playbackClient.Play(ctx, clip)
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}
}

// CaptureEncoding describes the frames handed to the capture callback.
func (c *Client) CaptureEncoding() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: c.config.SampleRate,
		Channels:   c.config.CaptureChannels,
		Format:     audio.EncodingLinear16,
	}
}

// CaptureFrameBytes is the size of one capture callback frame.
func (c *Client) CaptureFrameBytes() int {
	return c.config.PeriodFrames * c.CaptureEncoding().BytesPerFrame()
}

// DeviceInfo describes an audio endpoint.
type DeviceInfo struct {
	Name      string
	Capture   bool
	IsDefault bool
}

// ListDevices enumerates capture and playback devices.
func ListDevices() ([]DeviceInfo, error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	defer func() {
		_ = audioCtx.Uninit()
		audioCtx.Free()
	}()

	var devices []DeviceInfo
	for _, deviceType := range []malgo.DeviceType{malgo.Capture, malgo.Playback} {
		infos, err := audioCtx.Devices(deviceType)
		if err != nil {
			return nil, fmt.Errorf("failed to list devices: %w", err)
		}
		for _, info := range infos {
			devices = append(devices, DeviceInfo{
				Name:      info.Name(),
				Capture:   deviceType == malgo.Capture,
				IsDefault: info.IsDefault != 0,
			})
		}
	}
	return devices, nil
}

// selectDevice sets the device id on sub when name is not empty.
func selectDevice(audioCtx *malgo.AllocatedContext, deviceType malgo.DeviceType, name string, sub *malgo.SubConfig) error {
	if name == "" {
		return nil
	}

	infos, err := audioCtx.Devices(deviceType)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	for i := range infos {
		if infos[i].Name() == name {
			sub.DeviceID = infos[i].ID.Pointer()
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}
