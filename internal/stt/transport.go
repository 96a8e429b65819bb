package stt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lexiqai/speech-transcriber/internal/config"
)

// Dialer opens a recognition connection
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is one open recognition connection. Send may be called from one
// goroutine while Events is drained by another.
type Conn interface {
	// Send writes one text frame
	Send(frame []byte) error
	// Events delivers inbound messages in arrival order. It is closed when
	// the connection ends for any reason.
	Events() <-chan []byte
	// Err returns the abnormal close reason once Events is closed, nil
	// after a normal close by either side
	Err() error
	// Close sends a normal close and releases the connection
	Close() error
}

// ErrHandshakeRejected is returned when the service answers the upgrade
// request with a non-101 status, usually a signature or clock problem.
var ErrHandshakeRejected = errors.New("handshake rejected")

const eventBuffer = 64

// WebSocketDialer dials with gorilla/websocket and keeps the connection
// alive with pings
type WebSocketDialer struct {
	dialer       websocket.Dialer
	pingInterval time.Duration
	pongWait     time.Duration
	writeTimeout time.Duration
}

// NewWebSocketDialer creates a dialer from the transport settings in cfg
func NewWebSocketDialer(cfg *config.Config) *WebSocketDialer {
	return &WebSocketDialer{
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: time.Duration(cfg.HandshakeTimeout) * time.Second,
		},
		pingInterval: time.Duration(cfg.PingInterval) * time.Second,
		pongWait:     time.Duration(cfg.PongWait) * time.Second,
		writeTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}
}

// Dial performs the websocket handshake against url
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	ws, resp, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: %s", ErrHandshakeRejected, resp.Status)
		}
		return nil, err
	}

	c := &wsConn{
		ws:           ws,
		events:       make(chan []byte, eventBuffer),
		closing:      make(chan struct{}),
		done:         make(chan struct{}),
		pingInterval: d.pingInterval,
		pongWait:     d.pongWait,
		writeTimeout: d.writeTimeout,
	}
	c.start()
	return c, nil
}

type wsConn struct {
	ws           *websocket.Conn
	events       chan []byte
	closing      chan struct{}
	done         chan struct{}
	pingInterval time.Duration
	pongWait     time.Duration
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

func (c *wsConn) start() {
	if c.pongWait > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
		})
	}

	go c.readLoop()
	if c.pingInterval > 0 {
		go c.pingLoop()
	}
}

func (c *wsConn) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			c.setErr(err)
			return
		}
		if c.pongWait > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
		}

		select {
		case c.events <- message:
		case <-c.closing:
			return
		}
	}
}

func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, c.deadline())
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *wsConn) setErr(err error) {
	select {
	case <-c.closing:
		// closed locally; the read error is our own doing
		return
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}

	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *wsConn) deadline() time.Time {
	if c.writeTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.writeTimeout)
}

func (c *wsConn) Send(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(c.deadline()); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *wsConn) Events() <-chan []byte {
	return c.events
}

func (c *wsConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)

		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), c.deadline())
		c.writeMu.Unlock()

		err = c.ws.Close()
		<-c.done
	})
	return err
}
