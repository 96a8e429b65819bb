package stt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-transcriber/internal/config"
)

// fakeDialer hands out fakeConns and counts dial attempts
type fakeDialer struct {
	dials   int32
	err     error
	newConn func() *fakeConn

	mu    sync.Mutex
	conns []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	atomic.AddInt32(&d.dials, 1)
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	if d.newConn != nil {
		c = d.newConn()
	}
	c.url = url
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) Dials() int {
	return int(atomic.LoadInt32(&d.dials))
}

func (d *fakeDialer) lastConn(t *testing.T) *fakeConn {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		t.Fatal("Expected a connection to be dialed")
	}
	return d.conns[len(d.conns)-1]
}

// fakeConn records frames and lets a test script the remote side
type fakeConn struct {
	url string

	// onSend runs after each successful send with the decoded frame
	onSend func(c *fakeConn, frame sentFrame)
	// sendErr fails the n-th send attempt (0-based) when non-nil
	sendErr func(n int) error

	mu       sync.Mutex
	attempts int
	frames   []sentFrame
	events   chan []byte
	closed   bool
	local    bool
	err      error
}

type sentFrame struct {
	raw     []byte
	msg     frameMessage
	payload []byte
	at      time.Time
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan []byte, 64)}
}

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	n := c.attempts
	c.attempts++
	c.mu.Unlock()

	if c.sendErr != nil {
		if err := c.sendErr(n); err != nil {
			return err
		}
	}

	var msg frameMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return err
	}
	payload, err := base64.StdEncoding.DecodeString(msg.Data.Audio)
	if err != nil {
		return err
	}
	sent := sentFrame{raw: frame, msg: msg, payload: payload, at: time.Now()}

	c.mu.Lock()
	c.frames = append(c.frames, sent)
	c.mu.Unlock()

	if c.onSend != nil {
		c.onSend(c, sent)
	}
	return nil
}

func (c *fakeConn) Events() <-chan []byte { return c.events }

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.local = true
	c.mu.Unlock()
	c.shutdown(nil)
	return nil
}

// emit delivers one inbound message unless the connection is closed
func (c *fakeConn) emit(v any) {
	var b []byte
	switch m := v.(type) {
	case string:
		b = []byte(m)
	case []byte:
		b = m
	default:
		b, _ = json.Marshal(m)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.events <- b
	}
}

// remoteClose ends the event stream as the service would; err marks an
// abnormal close
func (c *fakeConn) remoteClose(err error) {
	c.shutdown(err)
}

func (c *fakeConn) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.err = err
	close(c.events)
}

func (c *fakeConn) Frames() []sentFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentFrame(nil), c.frames...)
}

func (c *fakeConn) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *fakeConn) ClosedLocally() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local
}

// closeOnLast answers the LAST frame with one final event and closes
func closeOnLast(final any) func(c *fakeConn, f sentFrame) {
	return func(c *fakeConn, f sentFrame) {
		if f.msg.Data.Status == RoleLast {
			if final != nil {
				c.emit(final)
			}
			c.remoteClose(nil)
		}
	}
}

// wordEvent builds a success event whose ws groups hold the given words
func wordEvent(sid string, status int, groups ...[]string) map[string]any {
	ws := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		cw := make([]map[string]any, 0, len(g))
		for _, w := range g {
			cw = append(cw, map[string]any{"w": w, "sc": 0})
		}
		ws = append(ws, map[string]any{"bg": 0, "cw": cw})
	}
	return map[string]any{
		"code":    0,
		"message": "success",
		"sid":     sid,
		"data": map[string]any{
			"status": status,
			"result": map[string]any{"sn": 1, "ls": status == 2, "ws": ws},
		},
	}
}

func errorEvent(sid string, code int, message string) map[string]any {
	return map[string]any{"code": code, "message": message, "sid": sid}
}

func newTestConfig() *config.Config {
	return &config.Config{
		AppID:                      "app-1",
		APIKey:                     "key-1",
		APISecret:                  "secret-1",
		Host:                       "iat-api.xfyun.cn",
		Path:                       "/v2/iat",
		Scheme:                     "wss",
		Domain:                     "iat",
		Language:                   "zh_cn",
		Accent:                     "mandarin",
		VADEos:                     10000,
		VInfo:                      true,
		FrameSize:                  1280,
		FrameIntervalMs:            0,
		HandshakeTimeout:           5,
		PingInterval:               1,
		PongWait:                   5,
		WriteTimeout:               5,
		SessionTimeout:             5,
		CircuitBreakerMaxFailures:  5,
		CircuitBreakerResetTimeout: 30,
		RetryMaxAttempts:           1,
		RetryInitialBackoff:        1,
		MetricsEnabled:             true,
	}
}

func newTestClient(cfg *config.Config, d Dialer) *Client {
	return NewClient(cfg, WithDialer(d), WithLogger(zerolog.Nop()))
}
