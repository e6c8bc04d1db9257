package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

type captureClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	mu sync.Mutex

	callbackMu sync.RWMutex
	onAudio    func(audio []byte)
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext, config Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * config.CaptureChannels

	c.config = malgo.DefaultDeviceConfig(malgo.Capture)
	c.config.SampleRate = uint32(config.SampleRate)
	c.config.Capture.Format = format
	c.config.Capture.Channels = uint32(config.CaptureChannels)
	c.config.Alsa.NoMMap = 1
	c.config.PerformanceProfile = malgo.LowLatency
	// Callbacks carry exactly PeriodSizeInFrames frames.
	c.config.PeriodSizeInFrames = uint32(config.PeriodFrames)
	c.config.Periods = 3

	if err := selectDevice(audioContext, malgo.Capture, config.CaptureDevice, &c.config.Capture); err != nil {
		return err
	}
	c.audioContext = audioContext

	var err error
	c.device, err = malgo.InitDevice(c.audioContext.Context, c.config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}

			c.callbackMu.RLock()
			onAudio := c.onAudio
			c.callbackMu.RUnlock()
			if onAudio != nil {
				onAudio(pInput[:n])
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	return nil
}

func (c *captureClient) Start(onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return ErrNotInitialized
	}

	c.callbackMu.Lock()
	c.onAudio = onAudio
	c.callbackMu.Unlock()

	if c.device.IsStarted() {
		return nil
	}
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	logger.Debug("capture started", "sample_rate", c.config.SampleRate, "channels", c.config.Capture.Channels)
	return nil
}

// Stop returns once the device stopped; no callback runs after that.
func (c *captureClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return ErrNotInitialized
	}

	c.callbackMu.Lock()
	c.onAudio = nil
	c.callbackMu.Unlock()

	if !c.device.IsStarted() {
		return nil
	}
	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	logger.Debug("capture stopped")
	return nil
}

func (c *captureClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}

	c.callbackMu.Lock()
	c.onAudio = nil
	c.callbackMu.Unlock()
	return nil
}
