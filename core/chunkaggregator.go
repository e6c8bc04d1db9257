package orchestration

import (
	"errors"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-edge/core/audio"
)

var (
	ErrInvalidFrame  = errors.New("invalid capture frame")
	ErrInvalidConfig = errors.New("invalid configuration")
)

type ChunkMode string

const (
	// ChunkModeFixed emits batches of exactly PacketThreshold frames of
	// PacketSize bytes.
	ChunkModeFixed ChunkMode = "fixed-batch"
	// ChunkModeDynamic accepts frames of any size and emits whatever was
	// appended once PacketThreshold frames have been seen.
	ChunkModeDynamic ChunkMode = "dynamic-batch"
	// ChunkModePassThrough emits every accepted frame as its own batch.
	ChunkModePassThrough ChunkMode = "pass-through"
)

// PrimingPolicy decides what happens to the first frame after capture
// (re)starts. Capture devices tend to deliver a warm-up artifact there.
type PrimingPolicy string

const (
	PrimingDiscardFrame PrimingPolicy = "discard-frame"
	PrimingStripHeader  PrimingPolicy = "strip-header"
	PrimingNone         PrimingPolicy = "none"
)

const (
	// DefaultPacketSize is 20 ms of 24 kHz mono PCM16.
	DefaultPacketSize      = 960
	DefaultPacketThreshold = 5
	DefaultPrimingBytes    = audio.WAVHeaderSize
	defaultGrowBy          = 4096
)

type ChunkAggregatorConfig struct {
	Mode ChunkMode
	// PacketSize is the size of one frame after downmixing. Required in
	// fixed-batch mode.
	PacketSize      int
	PacketThreshold int
	// GrowBy is the dynamic-batch buffer growth step.
	GrowBy       int
	Downmix      bool
	Priming      PrimingPolicy
	PrimingBytes int
}

func DefaultChunkAggregatorConfig() ChunkAggregatorConfig {
	return ChunkAggregatorConfig{
		Mode:            ChunkModeFixed,
		PacketSize:      DefaultPacketSize,
		PacketThreshold: DefaultPacketThreshold,
		GrowBy:          defaultGrowBy,
		Priming:         PrimingDiscardFrame,
		PrimingBytes:    DefaultPrimingBytes,
	}
}

func (c ChunkAggregatorConfig) Validate() error {
	switch c.Mode {
	case ChunkModeFixed:
		if c.PacketSize < 1 {
			return fmt.Errorf("%w: fixed-batch mode needs a positive packet size, got %d", ErrInvalidConfig, c.PacketSize)
		}
	case ChunkModeDynamic, ChunkModePassThrough:
	default:
		return fmt.Errorf("%w: unknown chunk mode %q", ErrInvalidConfig, c.Mode)
	}

	if c.PacketThreshold < 1 {
		return fmt.Errorf("%w: packet threshold must be at least 1, got %d", ErrInvalidConfig, c.PacketThreshold)
	}

	switch c.Priming {
	case PrimingDiscardFrame, PrimingNone, "":
	case PrimingStripHeader:
		if c.PrimingBytes < 1 {
			return fmt.Errorf("%w: strip-header priming needs a positive byte count, got %d", ErrInvalidConfig, c.PrimingBytes)
		}
		// A stripped frame can never be PacketSize bytes long.
		if c.Mode == ChunkModeFixed {
			return fmt.Errorf("%w: strip-header priming needs dynamic-batch or pass-through mode", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown priming policy %q", ErrInvalidConfig, c.Priming)
	}

	return nil
}

// ChunkAggregator folds capture frames into outbound batches.
type ChunkAggregator struct {
	config ChunkAggregatorConfig

	mu     sync.Mutex
	buffer []byte
	frames int
	primed bool
}

func NewChunkAggregator(config ChunkAggregatorConfig) (*ChunkAggregator, error) {
	if config.GrowBy < 1 {
		config.GrowBy = defaultGrowBy
	}
	if config.Priming == "" {
		config.Priming = PrimingDiscardFrame
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	a := &ChunkAggregator{config: config}
	switch config.Mode {
	case ChunkModeFixed:
		a.buffer = make([]byte, 0, config.PacketSize*config.PacketThreshold)
	case ChunkModeDynamic:
		a.buffer = make([]byte, 0, config.GrowBy)
	}
	return a, nil
}

func (a *ChunkAggregator) Config() ChunkAggregatorConfig { return a.config }

// Reset drops any partial batch and re-arms the priming policy. It is
// called whenever capture starts or stops.
func (a *ChunkAggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buffer = a.buffer[:0]
	a.frames = 0
	a.primed = false
}

// Pending reports the number of frames and bytes held for the next batch.
func (a *ChunkAggregator) Pending() (frames, bytes int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames, len(a.buffer)
}

// OnFrame accepts one capture frame and returns a batch when one is
// complete. The returned batch is owned by the caller.
func (a *ChunkAggregator) OnFrame(frame []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.primed {
		a.primed = true
		switch a.config.Priming {
		case PrimingDiscardFrame:
			return nil, nil
		case PrimingStripHeader:
			if len(frame) <= a.config.PrimingBytes {
				return nil, nil
			}
			frame = frame[a.config.PrimingBytes:]
		}
	}

	if a.config.Downmix {
		mono, err := audio.DownmixStereo(frame)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
		}
		frame = mono
	}

	switch a.config.Mode {
	case ChunkModePassThrough:
		if len(frame) == 0 {
			return nil, nil
		}
		return append([]byte(nil), frame...), nil

	case ChunkModeFixed:
		if len(frame) != a.config.PacketSize {
			return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidFrame, a.config.PacketSize, len(frame))
		}

	case ChunkModeDynamic:
		if free := cap(a.buffer) - len(a.buffer); free < len(frame) {
			a.grow(len(frame) - free)
		}
	}

	a.buffer = append(a.buffer, frame...)
	a.frames++
	if a.frames < a.config.PacketThreshold {
		return nil, nil
	}

	batch := make([]byte, len(a.buffer))
	copy(batch, a.buffer)
	a.buffer = a.buffer[:0]
	a.frames = 0
	return batch, nil
}

// grow extends the buffer capacity by whole GrowBy steps until at least
// need more bytes fit.
func (a *ChunkAggregator) grow(need int) {
	steps := (need + a.config.GrowBy - 1) / a.config.GrowBy
	grown := make([]byte, len(a.buffer), cap(a.buffer)+steps*a.config.GrowBy)
	copy(grown, a.buffer)
	a.buffer = grown
}
