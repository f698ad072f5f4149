package socketio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/door-sentinel/internal/protocol"
)

// ErrNotConnected is returned by writes while no session is open.
var ErrNotConnected = fmt.Errorf("socketio: %w", protocol.ErrTransportDown)

var errNamespaceDisconnect = errors.New("namespace disconnected by server")

const inboundBufferSize = 64

// Config configures a Client.
type Config struct {
	URL            string
	ReconnectDelay time.Duration
	WriteTimeout   time.Duration
}

// Client keeps one Engine.IO session open, redialing after failures.
// Inbound notifications are delivered on Inbound(); Handshake and Emit may
// be called from any goroutine.
type Client struct {
	cfg     Config
	logger  *slog.Logger
	dialer  *websocket.Dialer
	inbound chan protocol.Inbound

	mu   sync.Mutex // guards conn, open and all writes
	conn *websocket.Conn
	open bool
}

// New creates a client. Call Run to start it.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = time.Second
	}
	return &Client{
		cfg:     cfg,
		logger:  logger.With("component", "socketio"),
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		inbound: make(chan protocol.Inbound, inboundBufferSize),
	}
}

// Inbound returns the channel of transport notifications.
func (c *Client) Inbound() <-chan protocol.Inbound {
	return c.inbound
}

// Connected reports whether an Engine.IO session is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.open
}

// Handshake sends the Socket.IO connect packet for the default namespace.
func (c *Client) Handshake() error {
	return c.write(connectPacket)
}

// Emit sends an encoded [name, payload] frame as a Socket.IO event.
func (c *Client) Emit(frame []byte) error {
	return c.write(eventPrefix + string(frame))
}

func (c *Client) write(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.open {
		return ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Run dials and serves sessions until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	target, err := endpoint(c.cfg.URL)
	if err != nil {
		c.logger.Error("invalid socket url", "url", c.cfg.URL, "error", err)
		return
	}

	for {
		err := c.session(ctx, target)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("session ended", "error", err, "retry_in", c.cfg.ReconnectDelay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

func (c *Client) session(ctx context.Context, target string) error {
	conn, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.open = false
	c.mu.Unlock()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	connected := false
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.open = false
		c.mu.Unlock()
		conn.Close()
		if connected {
			c.deliver(ctx, protocol.Inbound{Signal: protocol.SignalDisconnect})
		}
	}()

	// The open packet must arrive within the handshake timeout.
	c.extendDeadline(conn, c.dialer.HandshakeTimeout)

	var liveness time.Duration
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		p, err := parsePacket(msg)
		if err != nil {
			c.logger.Warn("dropping packet", "error", err, "packet", string(msg))
			continue
		}

		switch p.kind {
		case kindOpen:
			liveness = time.Duration(p.open.PingInterval+p.open.PingTimeout) * time.Millisecond
			c.extendDeadline(conn, liveness)
			c.mu.Lock()
			c.open = true
			c.mu.Unlock()
			connected = true
			c.logger.Debug("engine open", "sid", p.open.SID)
			c.deliver(ctx, protocol.Inbound{Signal: protocol.SignalConnect})
		case kindPing:
			c.extendDeadline(conn, liveness)
			if err := c.write(pongPacket); err != nil {
				return fmt.Errorf("pong: %w", err)
			}
		case kindClose:
			return errors.New("closed by server")
		case kindNamespaceConnect:
			c.logger.Debug("namespace connected", "data", string(p.data))
		case kindNamespaceDisconnect:
			return errNamespaceDisconnect
		case kindConnectError:
			c.logger.Warn("namespace connect error", "data", string(p.data))
		case kindEvent:
			c.deliver(ctx, protocol.Inbound{Signal: protocol.SignalEvent, Payload: p.data})
		}
	}
}

func (c *Client) extendDeadline(conn *websocket.Conn, d time.Duration) {
	if d <= 0 {
		return
	}
	if err := conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		c.logger.Debug("set read deadline", "error", err)
	}
}

func (c *Client) deliver(ctx context.Context, in protocol.Inbound) {
	select {
	case c.inbound <- in:
	case <-ctx.Done():
	}
}

// endpoint ensures the URL asks for Engine.IO v4 over websocket.
func endpoint(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/socket.io/"
	}
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
