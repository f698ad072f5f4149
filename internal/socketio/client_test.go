package socketio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/door-sentinel/internal/logging"
	"github.com/sweeney/door-sentinel/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket.io/"
}

func recvInbound(t *testing.T, ch <-chan protocol.Inbound) protocol.Inbound {
	t.Helper()
	select {
	case in := <-ch:
		return in
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound notification")
	}
	return protocol.Inbound{}
}

func recvString(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive a packet")
	}
	return ""
}

func TestClientSession(t *testing.T) {
	received := make(chan string, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("EIO") != "4" || r.URL.Query().Get("transport") != "websocket" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`0{"sid":"abc","upgrades":[],"pingInterval":25000,"pingTimeout":20000}`))
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- string(msg)
			switch {
			case string(msg) == "40":
				conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"ns1"}`))
				conn.WriteMessage(websocket.TextMessage, []byte(`42["get_door_status",{"door":"2"}]`))
				conn.WriteMessage(websocket.TextMessage, []byte("2"))
			case strings.HasPrefix(string(msg), "42"):
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(Config{URL: wsURL(srv), ReconnectDelay: time.Hour, WriteTimeout: time.Second}, logging.Discard())
	if c.Connected() {
		t.Fatal("client connected before Run")
	}
	if err := c.Emit([]byte(`["heartbeat",{}]`)); !errors.Is(err, protocol.ErrTransportDown) {
		t.Fatalf("Emit before connect: got %v, want ErrTransportDown", err)
	}

	go c.Run(ctx)

	if in := recvInbound(t, c.Inbound()); in.Signal != protocol.SignalConnect {
		t.Fatalf("first notification: got %s, want connect", in.Signal)
	}
	if !c.Connected() {
		t.Error("expected Connected() after open packet")
	}

	if err := c.Handshake(); err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if got := recvString(t, received); got != "40" {
		t.Fatalf("server received %q, want 40", got)
	}

	in := recvInbound(t, c.Inbound())
	if in.Signal != protocol.SignalEvent {
		t.Fatalf("second notification: got %s, want event", in.Signal)
	}
	if got := string(in.Payload); got != `["get_door_status",{"door":"2"}]` {
		t.Errorf("event payload: %s", got)
	}

	if got := recvString(t, received); got != "3" {
		t.Fatalf("server received %q, want pong", got)
	}

	if err := c.Emit([]byte(`["door_status",{"door":"2","status":true}]`)); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if got := recvString(t, received); got != `42["door_status",{"door":"2","status":true}]` {
		t.Errorf("server received %q", got)
	}

	// Server hangs up after the event.
	if in := recvInbound(t, c.Inbound()); in.Signal != protocol.SignalDisconnect {
		t.Fatalf("final notification: got %s, want disconnect", in.Signal)
	}
}

func TestClientReconnects(t *testing.T) {
	sessions := make(chan struct{}, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sessions <- struct{}{}
		conn.WriteMessage(websocket.TextMessage, []byte(`0{"sid":"x","pingInterval":25000,"pingTimeout":20000}`))
		conn.WriteMessage(websocket.TextMessage, []byte("1"))
		conn.Close()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(Config{URL: wsURL(srv), ReconnectDelay: 10 * time.Millisecond}, logging.Discard())
	go c.Run(ctx)

	want := []protocol.Signal{
		protocol.SignalConnect, protocol.SignalDisconnect,
		protocol.SignalConnect, protocol.SignalDisconnect,
	}
	for i, w := range want {
		if in := recvInbound(t, c.Inbound()); in.Signal != w {
			t.Fatalf("notification %d: got %s, want %s", i, in.Signal, w)
		}
	}
	if len(sessions) < 2 {
		t.Errorf("expected at least 2 sessions, got %d", len(sessions))
	}
}

func TestClientStopsOnCancel(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:1/socket.io/", ReconnectDelay: time.Hour}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClientRedialsAfterNamespaceDisconnect(t *testing.T) {
	dials := make(chan int, 4)
	received := make(chan string, 16)
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		session := n.Add(1)
		dials <- int(session)

		conn.WriteMessage(websocket.TextMessage, []byte(`0{"sid":"x","pingInterval":25000,"pingTimeout":20000}`))
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- string(msg)
			if string(msg) == "40" && session == 1 {
				conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"ns1"}`))
				conn.WriteMessage(websocket.TextMessage, []byte("41"))
				conn.WriteMessage(websocket.TextMessage, []byte("2"))
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(Config{URL: wsURL(srv), ReconnectDelay: 10 * time.Millisecond}, logging.Discard())
	go c.Run(ctx)

	if in := recvInbound(t, c.Inbound()); in.Signal != protocol.SignalConnect {
		t.Fatalf("first notification: got %s, want connect", in.Signal)
	}
	if err := c.Handshake(); err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if got := recvString(t, received); got != "40" {
		t.Fatalf("server received %q, want 40", got)
	}

	if in := recvInbound(t, c.Inbound()); in.Signal != protocol.SignalDisconnect {
		t.Fatalf("after 41: got %s, want disconnect", in.Signal)
	}
	if in := recvInbound(t, c.Inbound()); in.Signal != protocol.SignalConnect {
		t.Fatalf("after redial: got %s, want connect", in.Signal)
	}
	if len(dials) != 2 {
		t.Errorf("dials: got %d, want 2", len(dials))
	}

	if err := c.Handshake(); err != nil {
		t.Fatalf("second Handshake: %v", err)
	}
	if got := recvString(t, received); got != "40" {
		t.Errorf("server received %q on second session, want 40", got)
	}
}

func TestClientGivesUpOnSilentPeer(t *testing.T) {
	dials := make(chan struct{}, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		dials <- struct{}{}
		// Never send the open packet.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(Config{URL: wsURL(srv), ReconnectDelay: 10 * time.Millisecond}, logging.Discard())
	c.dialer.HandshakeTimeout = 100 * time.Millisecond
	go c.Run(ctx)

	for i := 0; i < 2; i++ {
		select {
		case <-dials:
		case <-time.After(2 * time.Second):
			t.Fatalf("dial %d never happened", i+1)
		}
	}
	if c.Connected() {
		t.Error("Connected() true without an open packet")
	}
	select {
	case in := <-c.Inbound():
		t.Errorf("unexpected notification %s", in.Signal)
	default:
	}
}
