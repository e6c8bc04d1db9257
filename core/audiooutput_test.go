package orchestration

import (
	"context"
	"errors"
	"testing"

	"github.com/koscakluka/ema-edge/core/events"
)

func TestAudioOutputFacadeUnconfiguredIsNoop(t *testing.T) {
	output := newAudioOutput(nil, nil)

	if output.IsConfigured() {
		t.Fatalf("expected facade without client to be unconfigured")
	}
	if err := output.play(context.Background(), PlaybackItem{ResponseID: "r1"}); err != nil {
		t.Fatalf("expected play noop to succeed, got %v", err)
	}
}

func TestAudioOutputFacadeEmitsPlaybackEvents(t *testing.T) {
	speaker := &testSpeaker{}
	var ended []events.AssistantPlaybackEnded
	var started int
	output := newAudioOutput(speaker, func(event events.Event) {
		switch e := event.(type) {
		case events.AssistantPlaybackStarted:
			started++
		case events.AssistantPlaybackEnded:
			ended = append(ended, e)
		}
	})

	if err := output.play(context.Background(), PlaybackItem{ResponseID: "r1", Audio: []byte{1, 2}}); err != nil {
		t.Fatalf("expected play to succeed, got %v", err)
	}

	if started != 1 || len(ended) != 1 {
		t.Fatalf("expected one started and one ended event, got %d and %d", started, len(ended))
	}
	if ended[0].ResponseID != "r1" || ended[0].Err != nil {
		t.Fatalf("expected clean playback end for r1, got %+v", ended[0])
	}
	if clips := speaker.clips(); len(clips) != 1 || len(clips[0]) != 2 {
		t.Fatalf("expected clip to reach the device, got %v", clips)
	}
}

func TestAudioOutputFacadeWrapsDeviceErrors(t *testing.T) {
	deviceErr := errors.New("underrun")
	var endedErr error
	output := newAudioOutput(&testSpeaker{err: deviceErr}, func(event events.Event) {
		if e, ok := event.(events.AssistantPlaybackEnded); ok {
			endedErr = e.Err
		}
	})

	err := output.play(context.Background(), PlaybackItem{ResponseID: "r1"})
	if !errors.Is(err, deviceErr) {
		t.Fatalf("expected device error, got %v", err)
	}
	if !errors.Is(endedErr, deviceErr) {
		t.Fatalf("expected ended event to carry the error, got %v", endedErr)
	}
}
