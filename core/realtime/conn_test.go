package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newEchoServer(t *testing.T, handle func(*websocket.Conn)) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestConnSendAndReceiveInOrder(t *testing.T) {
	uri := newEchoServer(t, func(conn *websocket.Conn) {
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(messageType, data); err != nil {
				return
			}
		}
	})

	conn, err := NewDialer().Connect(context.Background(), uri)
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	defer conn.Close()

	want := []string{"one", "two", "three"}
	for _, message := range want {
		if err := conn.Send(context.Background(), []byte(message)); err != nil {
			t.Fatalf("expected send to succeed, got %v", err)
		}
	}

	var got []string
	for message, err := range conn.Messages() {
		if err != nil {
			t.Fatalf("expected no read error, got %v", err)
		}
		got = append(got, string(message))
		if len(got) == len(want) {
			break
		}
	}

	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestConnReportsRemoteClose(t *testing.T) {
	uri := newEchoServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"session.created"}`))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		time.Sleep(50 * time.Millisecond)
	})

	conn, err := NewDialer().Connect(context.Background(), uri)
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	defer conn.Close()

	var messages int
	var lastErr error
	for message, err := range conn.Messages() {
		if err != nil {
			lastErr = err
			continue
		}
		if len(message) > 0 {
			messages++
		}
	}

	if messages != 1 {
		t.Fatalf("expected 1 message before close, got %d", messages)
	}
	if !errors.Is(lastErr, ErrClosed) {
		t.Fatalf("expected ErrClosed after remote close, got %v", lastErr)
	}
}

func TestConnCloseIsIdempotentAndStopsSends(t *testing.T) {
	uri := newEchoServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	conn, err := NewDialer().Connect(context.Background(), uri)
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("expected first close to succeed, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("expected second close to be a no-op, got %v", err)
	}
	if err := conn.Send(context.Background(), []byte("late")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}

	done := make(chan struct{})
	go func() {
		for range conn.Messages() {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected message iteration to end after close")
	}
}

func TestConnectFailsForUnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := NewDialer().Connect(ctx, "ws://127.0.0.1:1/realtime"); err == nil {
		t.Fatalf("expected connect error for unreachable server")
	}
}
