package miniaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-edge/core/audio"
)

var ErrUnsupportedClip = errors.New("clip does not match the playback device")

const playbackPeriods = 4

type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig
	encoding     audio.EncodingInfo

	mu sync.Mutex
	// playMu keeps one clip in flight at a time.
	playMu sync.Mutex

	audioMu       sync.Mutex
	leftoverAudio []byte
	drained       chan struct{}
	// tailPeriods is how many silent callbacks must follow the last clip
	// bytes before the clip counts as heard; the device still holds that
	// much queued output.
	tailPeriods int
	tailLeft    int
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, config Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * config.PlaybackChannels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = uint32(config.SampleRate)
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(config.PlaybackChannels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = uint32(config.SampleRate / 10) // ~100ms of audio
	c.config.Periods = playbackPeriods

	if err := selectDevice(audioContext, malgo.Playback, config.PlaybackDevice, &c.config.Playback); err != nil {
		return err
	}
	c.audioContext = audioContext
	c.tailPeriods = int(c.config.Periods)
	c.encoding = audio.EncodingInfo{
		SampleRate: config.SampleRate,
		Channels:   config.PlaybackChannels,
		Format:     audio.EncodingLinear16,
	}

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return ErrNotInitialized
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Play(ctx context.Context, clip []byte) error {
	header, pcm, err := audio.DecodeWAV(clip)
	if err != nil {
		return err
	}
	if got := header.EncodingInfo(); got != c.encoding {
		return fmt.Errorf("%w: got %+v, device plays %+v", ErrUnsupportedClip, got, c.encoding)
	}

	c.mu.Lock()
	started := c.device != nil && c.device.IsStarted()
	c.mu.Unlock()
	if !started {
		return fmt.Errorf("%w: playback device not started", ErrNotInitialized)
	}

	c.playMu.Lock()
	defer c.playMu.Unlock()

	drained := c.queue(pcm)

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		c.clearBuffer()
		return ctx.Err()
	}
}

// queue hands pcm to the device callback. The returned channel closes once
// the clip and the device's own buffer have played out.
func (c *playbackClient) queue(pcm []byte) <-chan struct{} {
	drained := make(chan struct{})

	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.leftoverAudio = append([]byte(nil), pcm...)
	c.drained = drained
	c.tailLeft = c.tailPeriods
	return drained
}

func (c *playbackClient) clearBuffer() {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.leftoverAudio = nil
	c.drained = nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return ErrNotInitialized
	}

	c.device.Uninit()
	c.device = nil
	c.clearBuffer()

	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := min(int(frameCount)*bytesPerFrame, len(pOutput))

		c.audioMu.Lock()
		defer c.audioMu.Unlock()

		n := copy(pOutput[:need], c.leftoverAudio)
		clear(pOutput[n:need])
		c.leftoverAudio = c.leftoverAudio[n:]

		if len(c.leftoverAudio) > 0 || c.drained == nil {
			return
		}
		if c.tailLeft > 0 {
			c.tailLeft--
			return
		}
		close(c.drained)
		c.drained = nil
	}
}
