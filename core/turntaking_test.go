package orchestration

import (
	"context"
	"errors"
	"testing"
)

func newTestTurnTaking(t *testing.T, mic *testMicrophone, speaker *testSpeaker) *turnTaking {
	t.Helper()
	input := newTestAudioInput(t, mic, nil, nil)
	return newTurnTaking(input, newAudioOutput(speaker, nil), discardLogger())
}

func TestTurnTakingStartCaptureIsIdempotent(t *testing.T) {
	mic := &testMicrophone{}
	turns := newTestTurnTaking(t, mic, &testSpeaker{})

	for range 3 {
		if err := turns.startCapture(context.Background()); err != nil {
			t.Fatalf("expected capture to start, got %v", err)
		}
	}
	if got := mic.startCalls.Load(); got != 1 {
		t.Fatalf("expected one device start, got %d", got)
	}

	for range 2 {
		if err := turns.stopCapture(); err != nil {
			t.Fatalf("expected capture to stop, got %v", err)
		}
	}
	if got := mic.stopCalls.Load(); got != 1 {
		t.Fatalf("expected one device stop, got %d", got)
	}
}

func TestTurnTakingRefusesCaptureDuringPlayback(t *testing.T) {
	mic := &testMicrophone{}
	speaker := &testSpeaker{hold: make(chan struct{})}
	turns := newTestTurnTaking(t, mic, speaker)

	done := make(chan error, 1)
	go func() { done <- turns.play(context.Background(), PlaybackItem{ResponseID: "r1"}) }()
	waitFor(t, "playback to start", func() bool { return len(speaker.clips()) == 1 })

	if err := turns.startCapture(context.Background()); !errors.Is(err, errPlaybackActive) {
		t.Fatalf("expected errPlaybackActive, got %v", err)
	}
	if got := mic.startCalls.Load(); got != 0 {
		t.Fatalf("expected device not to start, got %d", got)
	}

	speaker.hold <- struct{}{}
	if err := <-done; err != nil {
		t.Fatalf("expected playback to finish, got %v", err)
	}
	if err := turns.startCapture(context.Background()); err != nil {
		t.Fatalf("expected capture to start after playback, got %v", err)
	}
}

func TestTurnTakingPlayStopsCaptureFirst(t *testing.T) {
	mic := &testMicrophone{}
	var capturingDuringPlay bool
	speaker := &testSpeaker{}
	turns := newTestTurnTaking(t, mic, speaker)
	speaker.onPlay = func() { capturingDuringPlay, _ = turns.state() }

	if err := turns.startCapture(context.Background()); err != nil {
		t.Fatalf("expected capture to start, got %v", err)
	}
	if err := turns.play(context.Background(), PlaybackItem{ResponseID: "r1"}); err != nil {
		t.Fatalf("expected playback to succeed, got %v", err)
	}

	if capturingDuringPlay {
		t.Fatalf("expected capture to be stopped during playback")
	}
	if got := mic.stopCalls.Load(); got != 1 {
		t.Fatalf("expected device to stop once, got %d", got)
	}
	if capturing, playing := turns.state(); capturing || playing {
		t.Fatalf("expected idle devices after playback, got capturing=%v playing=%v", capturing, playing)
	}
}
