package orchestration

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/koscakluka/ema-edge/core/audio"
	"github.com/koscakluka/ema-edge/core/events"
	"github.com/koscakluka/ema-edge/core/realtime"
)

func TestOrchestratorSendsSessionUpdateFirst(t *testing.T) {
	s := newTestSession(t, WithSessionConfig(realtime.SessionConfig{Instructions: "be brief", Voice: "verse"}))
	s.start(t)
	s.handshake(t)

	envelopes := s.conn.sentEnvelopes(t)
	if len(envelopes) == 0 || envelopes[0].Type != realtime.EventTypeSessionUpdate {
		t.Fatalf("expected session.update to be the first message, got %+v", envelopes)
	}
	if envelopes[0].Session == nil || envelopes[0].Session.Instructions != "be brief" || envelopes[0].Session.Voice != "verse" {
		t.Fatalf("expected configured session to be sent, got %+v", envelopes[0].Session)
	}
	if uri, _ := s.transport.connectURI.Load().(string); uri != "ws://realtime.test" {
		t.Fatalf("expected transport to dial configured uri, got %q", uri)
	}
}

func TestOrchestratorHandshakeStartsCaptureExactlyOnce(t *testing.T) {
	s := newTestSession(t)
	s.start(t)
	s.handshake(t)

	s.conn.deliver(`{"type":"session.updated"}`)
	s.conn.deliver(`{"type":"session.updated"}`)
	waitFor(t, "repeated session.updated to be processed", func() bool {
		return s.recorder.count(events.KindProtocolMessageReceived) >= 4
	})

	if got := s.mic.startCalls.Load(); got != 1 {
		t.Fatalf("expected capture to start once, got %d", got)
	}
	if got := s.orchestrator.State(); got != StateIdle {
		t.Fatalf("expected state Idle, got %s", got)
	}
	if got := s.orchestrator.Status().SessionID; got != "sess_1" {
		t.Fatalf("expected session id sess_1, got %q", got)
	}
}

func TestOrchestratorStreamsBatchesInCaptureOrder(t *testing.T) {
	s := newTestSession(t)
	s.start(t)
	s.handshake(t)

	frames := [][]byte{
		{0xEE, 0xEE, 0xEE, 0xEE},
		{1, 1, 1, 1}, {2, 2, 2, 2},
		{3, 3, 3, 3}, {4, 4, 4, 4},
		{5, 5, 5, 5}, {6, 6, 6, 6},
		{7, 7, 7, 7},
	}
	for _, frame := range frames {
		if !s.mic.push(frame) {
			t.Fatalf("expected capture to be running")
		}
	}

	waitFor(t, "3 audio batches to be sent", func() bool {
		return len(s.conn.sentOfType(t, realtime.EventTypeInputAudioBufferAppend)) == 3
	})

	appends := s.conn.sentOfType(t, realtime.EventTypeInputAudioBufferAppend)
	for i, envelope := range appends {
		batch, err := base64.StdEncoding.DecodeString(envelope.Audio)
		if err != nil {
			t.Fatalf("expected base64 audio, got %v", err)
		}
		first, second := byte(2*i+1), byte(2*i+2)
		want := []byte{first, first, first, first, second, second, second, second}
		if !bytes.Equal(batch, want) {
			t.Fatalf("expected batch %d to be %v, got %v", i, want, batch)
		}
	}
	if got := s.recorder.count(events.KindUserAudioBatch); got != 3 {
		t.Fatalf("expected 3 batch events, got %d", got)
	}
}

func TestOrchestratorCommitStopsCaptureBeforeFurtherFrames(t *testing.T) {
	s := newTestSession(t)
	s.start(t)
	s.handshake(t)

	s.conn.deliver(`{"type":"input_audio_buffer.speech_started"}`)
	waitFor(t, "UserSpeaking state", func() bool { return s.orchestrator.State() == StateUserSpeaking })

	staleCallback := s.mic.callback()
	s.mic.push([]byte{0, 0, 0, 0})
	s.mic.push([]byte{1, 1, 1, 1})

	s.conn.deliver(`{"type":"input_audio_buffer.committed","item_id":"item_1"}`)
	waitFor(t, "UserCommitted state", func() bool { return s.orchestrator.State() == StateUserCommitted })

	if got := s.mic.stopCalls.Load(); got != 1 {
		t.Fatalf("expected capture to stop once, got %d", got)
	}
	if s.orchestrator.Status().Capturing {
		t.Fatalf("expected capture flag to be cleared after commit")
	}

	staleCallback([]byte{2, 2, 2, 2})
	staleCallback([]byte{3, 3, 3, 3})
	if s.mic.push([]byte{4, 4, 4, 4}) {
		t.Fatalf("expected device callback to be released after stop")
	}

	time.Sleep(20 * time.Millisecond)
	if got := len(s.conn.sentOfType(t, realtime.EventTypeInputAudioBufferAppend)); got != 0 {
		t.Fatalf("expected no batch after commit, got %d", got)
	}
}

func TestOrchestratorPlaysAssembledResponseAndResumesCapture(t *testing.T) {
	s := newTestSession(t, WithOutputEncoding(audio.EncodingInfo{SampleRate: 24000, Channels: 1, Format: audio.EncodingLinear16}))
	capturingDuringPlay := make(chan bool, 1)
	s.speaker.onPlay = func() { capturingDuringPlay <- s.orchestrator.Status().Capturing }
	s.start(t)
	s.handshake(t)

	s.conn.deliver(
		`{"type":"input_audio_buffer.speech_started"}`,
		`{"type":"input_audio_buffer.committed"}`,
		`{"type":"response.content_part.added","response_id":"r1"}`,
		`{"type":"response.audio.delta","response_id":"r1","delta":"AAA="}`,
		`{"type":"response.audio.delta","response_id":"r1","delta":"BBB="}`,
		`{"type":"response.audio.done","response_id":"r1"}`,
	)

	waitFor(t, "one clip to be played", func() bool { return len(s.speaker.clips()) == 1 })
	if <-capturingDuringPlay {
		t.Fatalf("expected capture to be stopped while playing")
	}

	header, body, err := audio.DecodeWAV(s.speaker.clips()[0])
	if err != nil {
		t.Fatalf("expected a wav clip, got %v", err)
	}
	first, _ := base64.StdEncoding.DecodeString("AAA=")
	second, _ := base64.StdEncoding.DecodeString("BBB=")
	if want := append(first, second...); !bytes.Equal(body, want) {
		t.Fatalf("expected body %v, got %v", want, body)
	}
	if header.SampleRate != 24000 || header.NumChannels != 1 || header.BitsPerSample != 16 {
		t.Fatalf("expected 24 kHz mono 16-bit header, got %+v", header)
	}

	waitFor(t, "capture to resume after playback", func() bool {
		return s.orchestrator.State() == StateIdle && s.mic.startCalls.Load() == 2
	})
	if got := s.recorder.overlapViolations(); got != 0 {
		t.Fatalf("expected capture and playback never to overlap, got %d violations", got)
	}
}

func TestOrchestratorPlaysClipsInCompletionOrder(t *testing.T) {
	s := newTestSession(t)
	s.speaker.hold = make(chan struct{})
	s.start(t)
	s.handshake(t)

	s.conn.deliver(
		`{"type":"input_audio_buffer.committed"}`,
		`{"type":"response.audio.delta","response_id":"a","delta":"AQ=="}`,
		`{"type":"response.audio.delta","response_id":"b","delta":"Ag=="}`,
		`{"type":"response.audio.done","response_id":"b"}`,
		`{"type":"response.audio.done","response_id":"a"}`,
	)

	waitFor(t, "first clip to start", func() bool { return len(s.speaker.clips()) == 1 })
	time.Sleep(20 * time.Millisecond)
	if got := len(s.speaker.clips()); got != 1 {
		t.Fatalf("expected second clip to wait for the first, got %d playing", got)
	}

	s.speaker.hold <- struct{}{}
	waitFor(t, "second clip to start", func() bool { return len(s.speaker.clips()) == 2 })
	if got := s.mic.startCalls.Load(); got != 1 {
		t.Fatalf("expected capture to stay stopped between queued clips, got %d starts", got)
	}
	s.speaker.hold <- struct{}{}

	clips := s.speaker.clips()
	if _, body, _ := audio.DecodeWAV(clips[0]); !bytes.Equal(body, []byte{2}) {
		t.Fatalf("expected response b first, got %v", body)
	}
	if _, body, _ := audio.DecodeWAV(clips[1]); !bytes.Equal(body, []byte{1}) {
		t.Fatalf("expected response a second, got %v", body)
	}

	waitFor(t, "capture to resume", func() bool { return s.mic.startCalls.Load() == 2 })
}

func TestOrchestratorKeepsCaptureStoppedWhileNextResponseStreams(t *testing.T) {
	s := newTestSession(t)
	s.speaker.hold = make(chan struct{})
	s.start(t)
	s.handshake(t)

	s.conn.deliver(
		`{"type":"input_audio_buffer.committed"}`,
		`{"type":"response.content_part.added","response_id":"r1"}`,
		`{"type":"response.audio.delta","response_id":"r1","delta":"AQ=="}`,
		`{"type":"response.audio.done","response_id":"r1"}`,
	)
	waitFor(t, "first clip to start", func() bool { return len(s.speaker.clips()) == 1 })

	s.conn.deliver(
		`{"type":"response.content_part.added","response_id":"r2"}`,
		`{"type":"response.audio.delta","response_id":"r2","delta":"Ag=="}`,
	)
	waitFor(t, "second response to start streaming", func() bool {
		return s.orchestrator.current.Load().machine.assembler.Pending() == 1
	})

	s.speaker.hold <- struct{}{}
	waitFor(t, "first clip to finish", func() bool { return !s.orchestrator.Status().Playing })
	time.Sleep(20 * time.Millisecond)
	if got := s.orchestrator.State(); got != StateAssistantResponding {
		t.Fatalf("expected AssistantResponding while r2 streams, got %s", got)
	}
	if got := s.mic.startCalls.Load(); got != 1 {
		t.Fatalf("expected capture to stay stopped while r2 streams, got %d starts", got)
	}

	s.conn.deliver(`{"type":"response.audio.done","response_id":"r2"}`)
	waitFor(t, "second clip to start", func() bool { return len(s.speaker.clips()) == 2 })
	s.speaker.hold <- struct{}{}

	waitFor(t, "capture to resume after the last clip", func() bool {
		return s.orchestrator.State() == StateIdle && s.mic.startCalls.Load() == 2
	})
	if got := s.recorder.overlapViolations(); got != 0 {
		t.Fatalf("expected capture and playback never to overlap, got %d violations", got)
	}
}

func TestOrchestratorResponseWithoutAudioResumesCapture(t *testing.T) {
	s := newTestSession(t)
	s.start(t)
	s.handshake(t)

	s.conn.deliver(
		`{"type":"input_audio_buffer.committed"}`,
		`{"type":"response.content_part.added","response_id":"r1"}`,
		`{"type":"response.done","response":{"id":"r1","status":"completed"}}`,
	)

	waitFor(t, "capture to resume", func() bool {
		return s.orchestrator.State() == StateIdle && s.mic.startCalls.Load() == 2
	})
	if got := len(s.speaker.clips()); got != 0 {
		t.Fatalf("expected nothing to be played, got %d clips", got)
	}
}

func TestOrchestratorUpdatesDisplayAndConversation(t *testing.T) {
	s := newTestSession(t)
	s.start(t)
	s.handshake(t)

	s.conn.deliver(
		`{"type":"conversation.item.input_audio_transcription.completed","item_id":"i1","transcript":"What time is it?"}`,
		`{"type":"response.content_part.added","response_id":"r1"}`,
		`{"type":"response.audio_transcript.delta","response_id":"r1","delta":"It is "}`,
		`{"type":"response.audio_transcript.delta","response_id":"r1","delta":"noon."}`,
	)

	waitFor(t, "assistant transcript", func() bool {
		_, assistant := s.display.texts()
		return assistant == "It is noon."
	})

	user, _ := s.display.texts()
	if user != "What time is it?" {
		t.Fatalf("expected user text on display, got %q", user)
	}
	turn := s.orchestrator.Conversation()
	if turn.User != "What time is it?" || turn.Assistant != "It is noon." || turn.ResponseID != "r1" {
		t.Fatalf("expected conversation snapshot, got %+v", turn)
	}
	if got := s.orchestrator.State(); got != StateAssistantResponding {
		t.Fatalf("expected AssistantResponding, got %s", got)
	}

	s.conn.deliver(
		`{"type":"response.content_part.added","response_id":"r2"}`,
		`{"type":"response.audio_transcript.delta","response_id":"r2","delta":"Again"}`,
	)
	waitFor(t, "assistant transcript reset", func() bool {
		_, assistant := s.display.texts()
		return assistant == "Again"
	})
}

func TestOrchestratorIgnoresUnknownAndMalformedMessages(t *testing.T) {
	s := newTestSession(t)
	s.start(t)
	s.handshake(t)

	s.conn.deliver(
		`{"type":"unknown.future.event","payload":{"x":1}}`,
		`{"no_type":true}`,
		`not json at all`,
	)

	waitFor(t, "messages to be processed", func() bool {
		return s.recorder.count(events.KindProtocolMessageUnhandled) == 1 &&
			s.recorder.count(events.KindProtocolMessageMalformed) == 2
	})
	if got := s.orchestrator.State(); got != StateIdle {
		t.Fatalf("expected state to stay Idle, got %s", got)
	}
	if !s.mic.push([]byte{1, 2, 3, 4}) {
		t.Fatalf("expected capture to keep running")
	}
}

func TestOrchestratorSurvivesFailingDisplay(t *testing.T) {
	s := newTestSession(t)
	s.display.err = errTestDisplay
	s.start(t)
	s.handshake(t)

	s.conn.deliver(`{"type":"conversation.item.input_audio_transcription.completed","transcript":"hi"}`)
	waitFor(t, "transcript event", func() bool { return s.recorder.count(events.KindUserTranscriptFinal) == 1 })

	if got := s.orchestrator.Conversation().User; got != "hi" {
		t.Fatalf("expected transcript to be stored despite display failure, got %q", got)
	}
}

func TestOrchestratorReportsServerErrors(t *testing.T) {
	s := newTestSession(t)
	s.start(t)
	s.handshake(t)

	s.conn.deliver(`{"type":"error","error":{"type":"invalid_request_error","code":"bad_audio","message":"audio too short"}}`)
	waitFor(t, "error event", func() bool { return s.recorder.count(events.KindProtocolError) == 1 })

	if got := s.orchestrator.State(); got != StateIdle {
		t.Fatalf("expected error event to leave state unchanged, got %s", got)
	}
}

func TestOrchestratorTearsDownWhenConnectionEnds(t *testing.T) {
	s := newTestSession(t)
	s.speaker.hold = make(chan struct{})
	s.start(t)
	s.handshake(t)

	s.conn.deliver(
		`{"type":"input_audio_buffer.committed"}`,
		`{"type":"response.audio.delta","response_id":"r1","delta":"AAA="}`,
		`{"type":"response.audio.done","response_id":"r1"}`,
	)
	waitFor(t, "playback to start", func() bool { return s.orchestrator.Status().Playing })

	close(s.conn.inbound)
	err := s.wait(t)
	if !errors.Is(err, realtime.ErrClosed) {
		t.Fatalf("expected connection loss error, got %v", err)
	}

	status := s.orchestrator.Status()
	if status.State != StateDisconnected || status.Capturing || status.Playing {
		t.Fatalf("expected disconnected idle devices, got %+v", status)
	}
	if !s.conn.isClosed() {
		t.Fatalf("expected connection to be closed")
	}
	if got := s.recorder.count(events.KindSessionDisconnected); got != 1 {
		t.Fatalf("expected one disconnect event, got %d", got)
	}
}

func TestOrchestratorCloseIsIdempotent(t *testing.T) {
	s := newTestSession(t)
	s.start(t)
	s.handshake(t)

	s.orchestrator.Close()
	s.orchestrator.Close()

	if err := s.wait(t); err != nil {
		t.Fatalf("expected requested shutdown to return nil, got %v", err)
	}
	if got := s.mic.stopCalls.Load(); got != 1 {
		t.Fatalf("expected capture to stop once, got %d", got)
	}
	if err := s.orchestrator.Orchestrate(context.Background()); !errors.Is(err, ErrOrchestratorClosed) {
		t.Fatalf("expected ErrOrchestratorClosed after close, got %v", err)
	}
}

func TestOrchestratorContextCancellationStopsSession(t *testing.T) {
	s := newTestSession(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.orchestrator.Orchestrate(ctx) }()
	s.handshake(t)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil after cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected orchestrate to return after cancellation")
	}
	if got := s.orchestrator.State(); got != StateDisconnected {
		t.Fatalf("expected Disconnected, got %s", got)
	}
}

func TestOrchestratorReportsConnectFailure(t *testing.T) {
	s := newTestSession(t)
	s.transport.err = errors.New("handshake refused")

	err := s.orchestrator.Orchestrate(context.Background())
	if err == nil {
		t.Fatalf("expected connect failure to be reported")
	}
	if got := s.orchestrator.State(); got != StateDisconnected {
		t.Fatalf("expected Disconnected after failed connect, got %s", got)
	}
	if got := s.mic.startCalls.Load(); got != 0 {
		t.Fatalf("expected capture not to start, got %d", got)
	}
}

func TestOrchestratorRejectsConcurrentRuns(t *testing.T) {
	s := newTestSession(t)
	s.start(t)
	s.handshake(t)

	if err := s.orchestrator.Orchestrate(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestOrchestratorRejectsInvalidChunking(t *testing.T) {
	s := newTestSession(t, WithChunking(ChunkAggregatorConfig{Mode: ChunkModeFixed, PacketThreshold: 1}))

	if err := s.orchestrator.Orchestrate(context.Background()); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestOrchestratorWithoutTransport(t *testing.T) {
	o := NewOrchestrator(WithLogger(discardLogger()))

	if err := o.Orchestrate(context.Background()); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig without transport, got %v", err)
	}
	if got := o.State(); got != StateDisconnected {
		t.Fatalf("expected Disconnected, got %s", got)
	}
}

func TestOrchestratorUsesLatestSessionConfigPerConnection(t *testing.T) {
	s := newTestSession(t, WithSessionConfig(realtime.SessionConfig{Voice: "alloy"}))
	s.orchestrator.SetSessionConfig(realtime.SessionConfig{Voice: "verse"})
	s.start(t)

	waitFor(t, "session.update to be sent", func() bool {
		return len(s.conn.sentOfType(t, realtime.EventTypeSessionUpdate)) == 1
	})
	update := s.conn.sentOfType(t, realtime.EventTypeSessionUpdate)[0]
	if update.Session == nil || update.Session.Voice != "verse" {
		t.Fatalf("expected replaced session config, got %+v", update.Session)
	}
}

func TestOrchestratorCanRunAgainAfterConnectionLoss(t *testing.T) {
	s := newTestSession(t)
	s.start(t)
	s.handshake(t)

	close(s.conn.inbound)
	if err := s.wait(t); !errors.Is(err, realtime.ErrClosed) {
		t.Fatalf("expected connection loss, got %v", err)
	}

	next := newTestConnection()
	s.transport.conn = next
	done := make(chan error, 1)
	go func() { done <- s.orchestrator.Orchestrate(context.Background()) }()

	waitFor(t, "second session.update", func() bool {
		return len(next.sentOfType(t, realtime.EventTypeSessionUpdate)) == 1
	})
	if got := s.orchestrator.State(); got != StateAwaitingHandshakeAck {
		t.Fatalf("expected a fresh session awaiting the handshake, got %s", got)
	}

	s.orchestrator.Close()
	if err := <-done; err != nil {
		t.Fatalf("expected nil after close, got %v", err)
	}
}
