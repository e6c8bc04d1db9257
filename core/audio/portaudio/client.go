package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-edge/core/audio"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-edge/core/audio/portaudio"

var logger = otelslog.NewLogger(scopeName)

var ErrUnsupportedClip = errors.New("clip does not match the playback stream")

const defaultFramesPerBuffer = 480

type Option func(*Client)

func WithSampleRate(rate int) Option {
	return func(c *Client) { c.sampleRate = rate }
}

func WithCaptureChannels(channels int) Option {
	return func(c *Client) { c.captureChannels = channels }
}

// WithFramesPerBuffer sets how many frames each capture read returns.
func WithFramesPerBuffer(frames int) Option {
	return func(c *Client) { c.framesPerBuffer = frames }
}

// Client uses blocking PortAudio streams: a read loop for capture and
// sequential writes for playback.
type Client struct {
	sampleRate      int
	captureChannels int
	framesPerBuffer int

	captureStream  *portaudio.Stream
	playbackStream *portaudio.Stream
	in             []int16
	out            []int16

	mu          sync.Mutex
	stopCapture chan struct{}
	captureDone chan struct{}

	playMu sync.Mutex
}

func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		sampleRate:      audio.DefaultSampleRate,
		captureChannels: audio.DefaultChannels,
		framesPerBuffer: defaultFramesPerBuffer,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	c.in = make([]int16, c.framesPerBuffer*c.captureChannels)
	c.out = make([]int16, c.framesPerBuffer)

	var err error
	c.captureStream, err = portaudio.OpenDefaultStream(c.captureChannels, 0, float64(c.sampleRate), c.framesPerBuffer, c.in)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open capture stream: %w", err)
	}
	c.playbackStream, err = portaudio.OpenDefaultStream(0, 1, float64(c.sampleRate), c.framesPerBuffer, c.out)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open playback stream: %w", err)
	}

	return c, nil
}

// StartCapture starts a read loop that hands every buffer to onAudio.
func (c *Client) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopCapture != nil {
		return nil
	}
	if err := c.captureStream.Start(); err != nil {
		return fmt.Errorf("failed to start capture stream: %w", err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.stopCapture, c.captureDone = stop, done

	go func() {
		defer close(done)
		audioBuffer := bytes.Buffer{}
		for {
			select {
			case <-stop:
				return
			default:
			}

			if err := c.captureStream.Read(); err != nil {
				logger.Warn("failed to read from capture stream", "error", err)
				continue
			}

			audioBuffer.Reset()
			_ = binary.Write(&audioBuffer, binary.LittleEndian, c.in)
			onAudio(audioBuffer.Bytes())
		}
	}()

	return nil
}

// StopCapture waits for the read loop to exit before stopping the stream.
func (c *Client) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopCapture == nil {
		return nil
	}
	close(c.stopCapture)
	<-c.captureDone
	c.stopCapture, c.captureDone = nil, nil

	if err := c.captureStream.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture stream: %w", err)
	}
	return nil
}

// Play writes a mono WAV clip buffer by buffer until it ends or ctx is done.
func (c *Client) Play(ctx context.Context, clip []byte) error {
	header, pcm, err := audio.DecodeWAV(clip)
	if err != nil {
		return err
	}
	if int(header.SampleRate) != c.sampleRate || header.NumChannels != 1 || header.BitsPerSample != 16 {
		return fmt.Errorf("%w: %d Hz, %d channels, %d bits", ErrUnsupportedClip, header.SampleRate, header.NumChannels, header.BitsPerSample)
	}

	c.playMu.Lock()
	defer c.playMu.Unlock()

	if err := c.playbackStream.Start(); err != nil {
		return fmt.Errorf("failed to start playback stream: %w", err)
	}
	defer func() {
		if err := c.playbackStream.Stop(); err != nil {
			logger.Warn("failed to stop playback stream", "error", err)
		}
	}()

	bufferSize := len(c.out) * 2
	for offset := 0; offset < len(pcm); offset += bufferSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		block := pcm[offset:min(offset+bufferSize, len(pcm))]
		clear(c.out)
		if err := binary.Read(bytes.NewReader(block[:len(block)&^1]), binary.LittleEndian, c.out[:len(block)/2]); err != nil {
			return fmt.Errorf("failed to decode samples: %w", err)
		}
		if err := c.playbackStream.Write(); err != nil {
			return fmt.Errorf("failed to write to playback stream: %w", err)
		}
	}
	return nil
}

func (c *Client) CaptureEncoding() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: c.sampleRate,
		Channels:   c.captureChannels,
		Format:     audio.EncodingLinear16,
	}
}

func (c *Client) CaptureFrameBytes() int {
	return len(c.in) * 2
}

func (c *Client) Close() {
	_ = c.StopCapture()
	if c.captureStream != nil {
		_ = c.captureStream.Close()
	}
	if c.playbackStream != nil {
		_ = c.playbackStream.Close()
	}
	_ = portaudio.Terminate()
}
