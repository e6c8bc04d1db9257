// Package mockserver is a local stand-in for a realtime speech service. It
// acknowledges the session handshake, collects appended audio into WAV
// files and can answer every batch window with an echo response.
package mockserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/koscakluka/ema-edge/core/audio"
	"github.com/koscakluka/ema-edge/core/realtime"
)

const (
	DefaultBatchesPerFile = 50
	DefaultPingInterval   = 10 * time.Second

	writeTimeout = 5 * time.Second
)

type Config struct {
	// OutputDir receives output{n}.wav files. Empty disables recording.
	OutputDir      string
	BatchesPerFile int
	Encoding       audio.EncodingInfo
	PingInterval   time.Duration
	// Echo answers every completed batch window with a response that
	// plays the collected audio back.
	Echo bool
}

type Server struct {
	config   Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu        sync.Mutex
	saveCount int
	saved     []string
}

func New(config Config, logger *slog.Logger) *Server {
	if config.BatchesPerFile < 1 {
		config.BatchesPerFile = DefaultBatchesPerFile
	}
	if config.Encoding.IsZero() {
		config.Encoding = audio.GetDefaultEncodingInfo()
	}
	if config.PingInterval <= 0 {
		config.PingInterval = DefaultPingInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		config: config,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Saved lists the WAV files written so far.
func (s *Server) Saved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.saved...)
}

// Run serves websocket clients on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	server := &http.Server{Handler: s, ReadHeaderTimeout: 5 * time.Second}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})
	defer stop()

	s.logger.Info("mock realtime server listening", "address", "ws://"+listener.Addr().String())
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", "error", err)
		return
	}

	session := &session{
		server: s,
		ws:     ws,
		id:     "sess_" + uuid.NewString(),
		logger: s.logger.With("remote", r.RemoteAddr),
	}
	session.run(r.Context())
}

type session struct {
	server *Server
	ws     *websocket.Conn
	id     string
	logger *slog.Logger

	writeMu sync.Mutex
	buffer  []byte
	batches int
	echoes  int
}

func (c *session) run(ctx context.Context) {
	defer c.ws.Close()
	c.logger.Info("client connected", "session_id", c.id)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.ping(ctx)

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			c.logger.Info("client disconnected", "session_id", c.id, "error", err)
			return
		}

		event, err := realtime.Decode(message)
		if err != nil {
			c.logger.Warn("ignoring malformed client message", "error", err)
			continue
		}
		if err := c.handle(event); err != nil {
			c.logger.Warn("failed to answer client", "type", event.Type, "error", err)
			return
		}
	}
}

func (c *session) ping(ctx context.Context) {
	ticker := time.NewTicker(c.server.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (c *session) handle(event *realtime.Event) error {
	switch event.Type {
	case realtime.EventTypeSessionUpdate:
		if err := c.send(realtime.Event{
			Type:    realtime.EventTypeSessionCreated,
			Session: &realtime.SessionInfo{ID: c.id},
		}); err != nil {
			return err
		}
		return c.send(realtime.Event{Type: realtime.EventTypeSessionUpdated, Session: &realtime.SessionInfo{ID: c.id}})

	case realtime.EventTypeInputAudioBufferAppend:
		pcm, err := base64.StdEncoding.DecodeString(event.Audio)
		if err != nil {
			c.logger.Warn("ignoring undecodable audio", "error", err)
			return nil
		}
		c.buffer = append(c.buffer, pcm...)
		c.batches++
		if c.batches < c.server.config.BatchesPerFile {
			return nil
		}
		return c.flush()

	case realtime.EventTypeInputAudioBufferClear:
		c.buffer, c.batches = nil, 0
		return nil

	default:
		c.logger.Debug("ignoring client event", "type", event.Type)
		return nil
	}
}

func (c *session) flush() error {
	collected := c.buffer
	c.buffer, c.batches = nil, 0

	if err := c.server.save(collected); err != nil {
		c.logger.Error("failed to save audio", "error", err)
	}
	if !c.server.config.Echo {
		return nil
	}
	return c.echo(collected)
}

// echo plays collected back as a complete server-VAD turn.
func (c *session) echo(collected []byte) error {
	c.echoes++
	itemID := fmt.Sprintf("item_%d", c.echoes)
	responseID := fmt.Sprintf("resp_%d", c.echoes)
	transcript := fmt.Sprintf("echoing %s of audio", audio.Duration(c.server.config.Encoding, len(collected)))

	turn := []realtime.Event{
		{Type: realtime.EventTypeInputAudioBufferSpeechStarted, ItemID: itemID},
		{Type: realtime.EventTypeInputAudioBufferSpeechStopped, ItemID: itemID},
		{Type: realtime.EventTypeInputAudioBufferCommitted, ItemID: itemID},
		{Type: realtime.EventTypeConversationItemInputAudioTranscriptionCompleted, ItemID: itemID, Transcript: "(audio)"},
		{Type: realtime.EventTypeResponseContentPartAdded, ResponseID: responseID},
		{Type: realtime.EventTypeResponseAudioTranscriptDelta, ResponseID: responseID, Delta: transcript},
	}

	chunk := max(c.server.config.Encoding.BytesPerSecond()/10, 2)
	for offset := 0; offset < len(collected); offset += chunk {
		end := min(offset+chunk, len(collected))
		turn = append(turn, realtime.Event{
			Type:       realtime.EventTypeResponseAudioDelta,
			ResponseID: responseID,
			Delta:      base64.StdEncoding.EncodeToString(collected[offset:end]),
		})
	}
	turn = append(turn,
		realtime.Event{Type: realtime.EventTypeResponseAudioDone, ResponseID: responseID},
		realtime.Event{Type: realtime.EventTypeResponseDone, Response: &realtime.ResponseInfo{ID: responseID, Status: "completed"}},
	)

	for _, event := range turn {
		if err := c.send(event); err != nil {
			return err
		}
	}
	return nil
}

func (c *session) send(event realtime.Event) error {
	event.EventID = realtime.NewEventID()
	message, err := sonic.ConfigDefault.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", event.Type, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, message)
}

func (s *Server) save(pcm []byte) error {
	if s.config.OutputDir == "" || len(pcm) == 0 {
		return nil
	}

	wav, err := audio.EncodeWAV(s.config.Encoding, pcm)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	s.mu.Lock()
	path := filepath.Join(s.config.OutputDir, fmt.Sprintf("output%d.wav", s.saveCount))
	s.saveCount++
	s.mu.Unlock()

	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.mu.Lock()
	s.saved = append(s.saved, path)
	s.mu.Unlock()
	s.logger.Info("audio saved", "path", path, "duration", audio.Duration(s.config.Encoding, len(pcm)).String())
	return nil
}
