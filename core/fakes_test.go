package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-edge/core/events"
	"github.com/koscakluka/ema-edge/core/realtime"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %s before deadline", description)
}

type testTransport struct {
	conn       *testConnection
	err        error
	connectURI atomic.Value
}

func (tr *testTransport) Connect(_ context.Context, uri string) (Connection, error) {
	tr.connectURI.Store(uri)
	if tr.err != nil {
		return nil, tr.err
	}
	return tr.conn, nil
}

type testConnection struct {
	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	sent    [][]byte
	sendErr error
}

func newTestConnection() *testConnection {
	return &testConnection{inbound: make(chan []byte, 64), closed: make(chan struct{})}
}

func (c *testConnection) Send(_ context.Context, message []byte) error {
	select {
	case <-c.closed:
		return realtime.ErrClosed
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, append([]byte(nil), message...))
	return nil
}

func (c *testConnection) Messages() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			select {
			case <-c.closed:
				return
			case message, ok := <-c.inbound:
				if !ok {
					yield(nil, realtime.ErrClosed)
					return
				}
				if !yield(message, nil) {
					return
				}
			}
		}
	}
}

func (c *testConnection) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *testConnection) deliver(messages ...string) {
	for _, message := range messages {
		c.inbound <- []byte(message)
	}
}

func (c *testConnection) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type sentEnvelope struct {
	Type    string                  `json:"type"`
	EventID string                  `json:"event_id"`
	Audio   string                  `json:"audio"`
	Session *realtime.SessionConfig `json:"session"`
}

func (c *testConnection) sentEnvelopes(t *testing.T) []sentEnvelope {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()

	envelopes := make([]sentEnvelope, 0, len(c.sent))
	for _, message := range c.sent {
		var envelope sentEnvelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			t.Fatalf("expected sent message to be valid json, got %v", err)
		}
		envelopes = append(envelopes, envelope)
	}
	return envelopes
}

func (c *testConnection) sentOfType(t *testing.T, eventType string) []sentEnvelope {
	t.Helper()

	var matching []sentEnvelope
	for _, envelope := range c.sentEnvelopes(t) {
		if envelope.Type == eventType {
			matching = append(matching, envelope)
		}
	}
	return matching
}

type testMicrophone struct {
	mu         sync.Mutex
	onAudio    func([]byte)
	startCalls atomic.Int32
	stopCalls  atomic.Int32
	startErr   error
}

func (m *testMicrophone) StartCapture(_ context.Context, onAudio func([]byte)) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.mu.Lock()
	m.onAudio = onAudio
	m.mu.Unlock()
	m.startCalls.Add(1)
	return nil
}

func (m *testMicrophone) StopCapture() error {
	m.mu.Lock()
	m.onAudio = nil
	m.mu.Unlock()
	m.stopCalls.Add(1)
	return nil
}

func (m *testMicrophone) callback() func([]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onAudio
}

// push delivers a frame the way a device callback would. It reports false
// when capture is not running.
func (m *testMicrophone) push(frame []byte) bool {
	onAudio := m.callback()
	if onAudio == nil {
		return false
	}
	onAudio(frame)
	return true
}

type testSpeaker struct {
	mu     sync.Mutex
	played [][]byte
	hold   chan struct{}
	onPlay func()
	err    error
}

func (s *testSpeaker) Play(ctx context.Context, clip []byte) error {
	s.mu.Lock()
	s.played = append(s.played, clip)
	onPlay := s.onPlay
	hold := s.hold
	s.mu.Unlock()

	if onPlay != nil {
		onPlay()
	}
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func (s *testSpeaker) clips() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.played...)
}

type testDisplay struct {
	mu        sync.Mutex
	user      string
	assistant string
	statuses  []string
	err       error
}

func (d *testDisplay) SetUserText(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.user = text
	return d.err
}

func (d *testDisplay) SetAssistantText(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assistant = text
	return d.err
}

func (d *testDisplay) SetStatus(status string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses = append(d.statuses, status)
	return d.err
}

func (d *testDisplay) texts() (user, assistant string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.user, d.assistant
}

// testEventRecorder records event kinds and checks that capture and
// playback never overlap.
type testEventRecorder struct {
	mu         sync.Mutex
	kinds      []events.Kind
	capturing  bool
	playing    bool
	violations int
}

func (r *testEventRecorder) handle(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.kinds = append(r.kinds, event.Kind())
	switch event.(type) {
	case events.UserCaptureStarted:
		if r.playing {
			r.violations++
		}
		r.capturing = true
	case events.UserCaptureStopped:
		r.capturing = false
	case events.AssistantPlaybackStarted:
		if r.capturing {
			r.violations++
		}
		r.playing = true
	case events.AssistantPlaybackEnded:
		r.playing = false
	}
}

func (r *testEventRecorder) count(kind events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, k := range r.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

func (r *testEventRecorder) overlapViolations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.violations
}

type testSession struct {
	orchestrator *Orchestrator
	transport    *testTransport
	conn         *testConnection
	mic          *testMicrophone
	speaker      *testSpeaker
	display      *testDisplay
	recorder     *testEventRecorder

	finished chan struct{}
	result   error
}

var testChunking = ChunkAggregatorConfig{
	Mode:            ChunkModeFixed,
	PacketSize:      4,
	PacketThreshold: 2,
	Priming:         PrimingDiscardFrame,
}

func newTestSession(t *testing.T, opts ...OrchestratorOption) *testSession {
	t.Helper()

	s := &testSession{
		conn:     newTestConnection(),
		mic:      &testMicrophone{},
		speaker:  &testSpeaker{},
		display:  &testDisplay{},
		recorder: &testEventRecorder{},
		finished: make(chan struct{}),
	}
	s.transport = &testTransport{conn: s.conn}

	defaults := []OrchestratorOption{
		WithTransport(s.transport, "ws://realtime.test"),
		WithAudioInput(s.mic),
		WithAudioOutput(s.speaker),
		WithDisplay(s.display),
		WithChunking(testChunking),
		WithEventHandler(s.recorder.handle),
		WithLogger(discardLogger()),
	}
	s.orchestrator = NewOrchestrator(append(defaults, opts...)...)
	return s
}

func (s *testSession) start(t *testing.T) {
	t.Helper()

	go func() {
		s.result = s.orchestrator.Orchestrate(context.Background())
		close(s.finished)
	}()

	t.Cleanup(func() {
		s.orchestrator.Close()
		select {
		case <-s.finished:
		case <-time.After(2 * time.Second):
			t.Errorf("expected orchestrator to stop after close")
		}
	})
}

func (s *testSession) wait(t *testing.T) error {
	t.Helper()

	select {
	case <-s.finished:
		return s.result
	case <-time.After(2 * time.Second):
		t.Fatalf("expected orchestrate to return before deadline")
		return nil
	}
}

func (s *testSession) handshake(t *testing.T) {
	t.Helper()

	waitFor(t, "session.update to be sent", func() bool {
		return len(s.conn.sentOfType(t, realtime.EventTypeSessionUpdate)) == 1
	})
	s.conn.deliver(
		`{"type":"session.created","event_id":"e1","session":{"id":"sess_1"}}`,
		`{"type":"session.updated","event_id":"e2"}`,
	)
	waitFor(t, "capture to start", func() bool {
		return s.orchestrator.State() == StateIdle && s.mic.startCalls.Load() == 1
	})
}

var errTestDisplay = errors.New("display unavailable")
