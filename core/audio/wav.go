package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// WAVHeaderSize is the size of a canonical PCM RIFF/WAVE header.
const WAVHeaderSize = 44

var ErrInvalidWAV = errors.New("invalid wav container")

// WAVHeader is the canonical 44-byte PCM header.
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// NewWAVHeader builds a header for dataSize bytes of PCM described by info.
func NewWAVHeader(info EncodingInfo, dataSize int) WAVHeader {
	channels := uint16(info.Channels)
	bitsPerSample := uint16(info.BitDepth())
	blockAlign := channels * bitsPerSample / 8

	return WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + dataSize),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   channels,
		SampleRate:    uint32(info.SampleRate),
		ByteRate:      uint32(info.SampleRate) * uint32(blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(dataSize),
	}
}

// EncodingInfo reports the PCM layout the header describes.
func (h WAVHeader) EncodingInfo() EncodingInfo {
	info := EncodingInfo{SampleRate: int(h.SampleRate), Channels: int(h.NumChannels)}
	switch h.BitsPerSample {
	case 16:
		info.Format = EncodingLinear16
	}
	return info
}

// EncodeWAV wraps pcm in a WAV container. The pcm slice is copied.
func EncodeWAV(info EncodingInfo, pcm []byte) ([]byte, error) {
	if info.IsZero() || info.BitDepth() == 0 {
		return nil, fmt.Errorf("cannot build wav header for encoding %+v", info)
	}

	buf := bytes.NewBuffer(make([]byte, 0, WAVHeaderSize+len(pcm)))
	if err := binary.Write(buf, binary.LittleEndian, NewWAVHeader(info, len(pcm))); err != nil {
		return nil, fmt.Errorf("failed to write wav header: %w", err)
	}
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// DecodeWAV splits a canonical WAV container into its header and PCM body.
// The returned body aliases data.
func DecodeWAV(data []byte) (WAVHeader, []byte, error) {
	var header WAVHeader
	if len(data) < WAVHeaderSize {
		return header, nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrInvalidWAV, WAVHeaderSize, len(data))
	}

	if err := binary.Read(bytes.NewReader(data[:WAVHeaderSize]), binary.LittleEndian, &header); err != nil {
		return header, nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		return header, nil, fmt.Errorf("%w: missing RIFF/WAVE markers", ErrInvalidWAV)
	}
	if string(header.Subchunk2ID[:]) != "data" {
		return header, nil, fmt.Errorf("%w: unexpected chunk %q", ErrInvalidWAV, header.Subchunk2ID[:])
	}
	if header.AudioFormat != 1 {
		return header, nil, fmt.Errorf("%w: unsupported audio format %d", ErrInvalidWAV, header.AudioFormat)
	}

	body := data[WAVHeaderSize:]
	if size := int(header.Subchunk2Size); size < len(body) {
		body = body[:size]
	}

	return header, body, nil
}
