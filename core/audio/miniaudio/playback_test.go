package miniaudio

import (
	"bytes"
	"testing"
)

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestPlaybackWaitsForDeviceBufferBeforeDraining(t *testing.T) {
	c := &playbackClient{tailPeriods: 2}
	callback := c.processAudio(2)

	drained := c.queue([]byte{1, 2, 3, 4, 5, 6})
	out := make([]byte, 4)

	callback(out, nil, 2)
	if !bytes.Equal(out, []byte{1, 2, 3, 4}) {
		t.Fatalf("expected first period to carry the clip start, got %v", out)
	}

	callback(out, nil, 2)
	if !bytes.Equal(out, []byte{5, 6, 0, 0}) {
		t.Fatalf("expected last bytes followed by silence, got %v", out)
	}
	if isClosed(drained) {
		t.Fatalf("expected clip to keep playing while the device still holds it")
	}

	callback(out, nil, 2)
	if isClosed(drained) {
		t.Fatalf("expected clip to keep playing until every queued period is out")
	}
	if !bytes.Equal(out, []byte{0, 0, 0, 0}) {
		t.Fatalf("expected silence after the clip, got %v", out)
	}

	callback(out, nil, 2)
	if !isClosed(drained) {
		t.Fatalf("expected clip to drain after %d silent periods", c.tailPeriods)
	}
}

func TestPlaybackWithoutTailDrainsWithLastBytes(t *testing.T) {
	c := &playbackClient{}
	callback := c.processAudio(2)

	drained := c.queue([]byte{1, 2})
	callback(make([]byte, 4), nil, 2)

	if !isClosed(drained) {
		t.Fatalf("expected clip to drain once its bytes were written")
	}
}

func TestPlaybackClearStopsDraining(t *testing.T) {
	c := &playbackClient{tailPeriods: 1}
	callback := c.processAudio(2)

	drained := c.queue([]byte{1, 2, 3, 4})
	c.clearBuffer()

	out := []byte{9, 9, 9, 9}
	callback(out, nil, 2)
	callback(out, nil, 2)

	if !bytes.Equal(out, []byte{0, 0, 0, 0}) {
		t.Fatalf("expected silence after clearing, got %v", out)
	}
	if isClosed(drained) {
		t.Fatalf("expected a cleared clip never to report drained")
	}
}
