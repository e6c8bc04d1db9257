package audio

const (
	DefaultSampleRate = 24000
	DefaultChannels   = 1
	DefaultFormat     = "linear16"
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		Format:     encodingFormat(DefaultFormat),
	}
}

// EncodingInfo describes raw interleaved PCM.
type EncodingInfo struct {
	SampleRate int
	Channels   int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Channels == 0 || e.Format.Name() == ""
}

// BitDepth is the number of bits per sample, 0 for unknown formats.
func (e EncodingInfo) BitDepth() int {
	if size := e.Format.ByteSize(); size > 0 {
		return size * 8
	}
	return 0
}

// BytesPerFrame is the size of one sample for every channel.
func (e EncodingInfo) BytesPerFrame() int {
	return e.Format.ByteSize() * e.Channels
}

// BytesPerSecond is the byte rate of the stream.
func (e EncodingInfo) BytesPerSecond() int {
	return e.SampleRate * e.BytesPerFrame()
}

// Mono returns the same encoding with a single channel.
func (e EncodingInfo) Mono() EncodingInfo {
	e.Channels = 1
	return e
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	case EncodingLinear16:
		return 0
	}

	return 0
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)

// ParseFormat maps a configuration name onto a known format.
func ParseFormat(name string) (encodingFormat, bool) {
	switch f := encodingFormat(name); f {
	case EncodingMulaw, EncodingALaw, EncodingLinear16:
		return f, true
	case "pcm16", "s16le":
		return EncodingLinear16, true
	}
	return "", false
}
