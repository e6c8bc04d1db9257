package realtime

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrClosed = errors.New("realtime: connection closed")

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	closeGracePeriod        = time.Second
	inboundBufferSize       = 64
	debugPreviewLimit       = 500
)

// Connection is an open realtime session transport. Send may be called
// concurrently with ranging over Messages.
type Connection interface {
	Send(ctx context.Context, message []byte) error
	Messages() iter.Seq2[[]byte, error]
	Close() error
}

type DialerOption func(*Dialer)

// WithHeader adds handshake headers, e.g. the ones returned by
// Endpoint.Resolve.
func WithHeader(header http.Header) DialerOption {
	return func(d *Dialer) {
		for key, values := range header {
			for _, value := range values {
				d.header.Add(key, value)
			}
		}
	}
}

func WithHandshakeTimeout(timeout time.Duration) DialerOption {
	return func(d *Dialer) { d.dialer.HandshakeTimeout = timeout }
}

func WithWriteTimeout(timeout time.Duration) DialerOption {
	return func(d *Dialer) { d.writeTimeout = timeout }
}

// WithReadTimeout closes the connection when nothing, pings included, has
// arrived for the given duration. Zero disables the check.
func WithReadTimeout(timeout time.Duration) DialerOption {
	return func(d *Dialer) { d.readTimeout = timeout }
}

// Dialer opens websocket connections to a realtime service.
type Dialer struct {
	dialer       websocket.Dialer
	header       http.Header
	writeTimeout time.Duration
	readTimeout  time.Duration
}

func NewDialer(opts ...DialerOption) *Dialer {
	d := &Dialer{
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		header:       http.Header{},
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Connect dials uri. The returned connection starts reading immediately.
func (d *Dialer) Connect(ctx context.Context, uri string) (Connection, error) {
	ctx, span := tracer.Start(ctx, "connect realtime", trace.WithAttributes(
		attribute.String("realtime.url", Redact(uri)),
	))
	defer span.End()

	ws, resp, err := d.dialer.DialContext(ctx, uri, d.header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("failed to connect (http %d): %w", resp.StatusCode, err)
		} else {
			err = fmt.Errorf("failed to connect: %w", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	conn := newConn(ws, d.writeTimeout, d.readTimeout)
	go conn.readLoop()

	logger.InfoContext(ctx, "realtime connection established", "url", Redact(uri))
	return conn, nil
}

type inboundMessage struct {
	data []byte
	err  error
}

// Conn is a Connection over a gorilla websocket.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	readTimeout  time.Duration

	writeMu   sync.Mutex
	inbound   chan inboundMessage
	closeCh   chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, writeTimeout, readTimeout time.Duration) *Conn {
	c := &Conn{
		ws:           ws,
		writeTimeout: writeTimeout,
		readTimeout:  readTimeout,
		inbound:      make(chan inboundMessage, inboundBufferSize),
		closeCh:      make(chan struct{}),
	}

	if readTimeout > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
		ws.SetPingHandler(func(appData string) error {
			_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
			err := ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeTimeout))
			if errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			return err
		})
	}

	return c
}

// Send writes one text message. Writes are serialized and bounded by the
// write timeout or the context deadline, whichever is sooner.
func (c *Conn) Send(ctx context.Context, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-c.closeCh:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = c.ws.SetWriteDeadline(deadline)

	if logger.Enabled(ctx, slog.LevelDebug) {
		logger.DebugContext(ctx, "sending message", "len", len(message), "content", preview(message))
	}

	if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Messages yields inbound text messages in arrival order. A read failure is
// yielded once as an error, after which the sequence ends. The sequence
// also ends silently after Close.
func (c *Conn) Messages() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			select {
			case <-c.closeCh:
				return
			case message, ok := <-c.inbound:
				if !ok {
					return
				}
				if !yield(message.data, message.err) {
					return
				}
			}
		}
	}
}

// Close sends a close frame and releases the socket. Safe to call more
// than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)

		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod),
		)

		err = c.ws.Close()
	})
	return err
}

func (c *Conn) readLoop() {
	defer close(c.inbound)

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.closeCh:
				return
			default:
			}

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = fmt.Errorf("%w: %v", ErrClosed, err)
			} else {
				err = fmt.Errorf("read error: %w", err)
			}

			select {
			case <-c.closeCh:
			case c.inbound <- inboundMessage{err: err}:
			}
			return
		}

		if c.readTimeout > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		if messageType != websocket.TextMessage {
			continue
		}

		if logger.Enabled(context.Background(), slog.LevelDebug) {
			logger.Debug("received message", "len", len(data), "content", preview(data))
		}

		select {
		case <-c.closeCh:
			return
		case c.inbound <- inboundMessage{data: data}:
		}
	}
}

func preview(message []byte) string {
	if len(message) > debugPreviewLimit {
		return string(message[:debugPreviewLimit]) + "..."
	}
	return string(message)
}
