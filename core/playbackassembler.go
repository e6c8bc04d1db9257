package orchestration

import (
	"errors"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-edge/core/audio"
)

var ErrUnknownResponse = errors.New("no pending audio for response")

// PlaybackItem is a finished response clip, ready for the output device.
type PlaybackItem struct {
	ResponseID string
	// Audio is the WAV encoded clip.
	Audio    []byte
	Encoding audio.EncodingInfo
}

// PCM returns the clip body without its container header.
func (p PlaybackItem) PCM() []byte {
	if len(p.Audio) < audio.WAVHeaderSize {
		return nil
	}
	return p.Audio[audio.WAVHeaderSize:]
}

// PlaybackAssembler collects streamed response audio per response id.
type PlaybackAssembler struct {
	encoding audio.EncodingInfo

	mu      sync.Mutex
	pending map[string][]byte
}

func NewPlaybackAssembler(encoding audio.EncodingInfo) *PlaybackAssembler {
	if encoding.IsZero() {
		encoding = audio.GetDefaultEncodingInfo()
	}
	return &PlaybackAssembler{encoding: encoding, pending: map[string][]byte{}}
}

// OnDelta appends pcm to the clip for responseID.
func (a *PlaybackAssembler) OnDelta(responseID string, pcm []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending[responseID] = append(a.pending[responseID], pcm...)
}

// OnDone finalizes the clip for responseID and forgets it.
func (a *PlaybackAssembler) OnDone(responseID string) (PlaybackItem, error) {
	a.mu.Lock()
	pcm, ok := a.pending[responseID]
	delete(a.pending, responseID)
	a.mu.Unlock()

	if !ok {
		return PlaybackItem{}, fmt.Errorf("%w %q", ErrUnknownResponse, responseID)
	}

	wav, err := audio.EncodeWAV(a.encoding, pcm)
	if err != nil {
		return PlaybackItem{}, fmt.Errorf("failed to wrap response %q: %w", responseID, err)
	}

	return PlaybackItem{ResponseID: responseID, Audio: wav, Encoding: a.encoding}, nil
}

// Pending reports how many responses are still accumulating.
func (a *PlaybackAssembler) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Discard drops every unfinished clip.
func (a *PlaybackAssembler) Discard() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.pending)
}
