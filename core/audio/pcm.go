package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

var ErrOddStereoFrame = errors.New("stereo frame length is not a multiple of 4 bytes")

// DownmixStereo converts interleaved little-endian stereo PCM16 to mono.
//
// Each output sample is (left + right) / 2, widened before the sum and
// truncated toward zero.
func DownmixStereo(frame []byte) ([]byte, error) {
	if len(frame)%4 != 0 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrOddStereoFrame, len(frame))
	}

	mono := make([]byte, len(frame)/2)
	for i, j := 0, 0; i < len(frame); i, j = i+4, j+2 {
		left := int32(int16(binary.LittleEndian.Uint16(frame[i:])))
		right := int32(int16(binary.LittleEndian.Uint16(frame[i+2:])))
		binary.LittleEndian.PutUint16(mono[j:], uint16(int16((left+right)/2)))
	}

	return mono, nil
}

// Duration reports how long pcm plays for with the given encoding.
func Duration(info EncodingInfo, pcmBytes int) time.Duration {
	rate := info.BytesPerSecond()
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(pcmBytes) * int64(time.Second) / int64(rate))
}
