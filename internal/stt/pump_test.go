package stt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestPump(conn Conn, interval time.Duration) *FramePump {
	return NewFramePump(conn, NewFrameEncoder(newTestConfig(), "app-1"), 1280, interval, zerolog.Nop(), nil)
}

func TestFramePump_Run(t *testing.T) {
	conn := newFakeConn()
	pump := newTestPump(conn, 0)

	if err := pump.Run(context.Background(), pcmOfLength(2000)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if pump.FramesSent != 3 {
		t.Errorf("Expected 3 frames, got %d", pump.FramesSent)
	}
	if pump.AudioBytes != 2000 {
		t.Errorf("Expected 2000 audio bytes, got %d", pump.AudioBytes)
	}
	if pump.SendErr != nil {
		t.Errorf("Expected no send error, got %v", pump.SendErr)
	}
}

func TestFramePump_FirstFailureIsReturned(t *testing.T) {
	conn := newFakeConn()
	conn.sendErr = func(int) error { return errors.New("broken pipe") }
	pump := newTestPump(conn, 0)

	err := pump.Run(context.Background(), pcmOfLength(2000))
	if KindOf(err) != KindTransport {
		t.Errorf("Expected transport error, got %v", err)
	}
	if pump.SendErr != nil {
		t.Errorf("Expected FIRST failure to be returned, not kept, got %v", pump.SendErr)
	}
}

func TestFramePump_LastFailureIsKept(t *testing.T) {
	conn := newFakeConn()
	conn.sendErr = func(n int) error {
		if n == 2 {
			return errors.New("i/o timeout")
		}
		return nil
	}
	pump := newTestPump(conn, 0)

	if err := pump.Run(context.Background(), pcmOfLength(2000)); err != nil {
		t.Errorf("Expected nil from Run, got %v", err)
	}
	if KindOf(pump.SendErr) != KindTransport {
		t.Errorf("Expected kept transport error, got %v", pump.SendErr)
	}
	if pump.FramesSent != 2 {
		t.Errorf("Expected 2 frames, got %d", pump.FramesSent)
	}
}

func TestFramePump_StopsOnCancel(t *testing.T) {
	conn := newFakeConn()
	pump := newTestPump(conn, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	conn.onSend = func(c *fakeConn, f sentFrame) {
		if f.msg.Data.Status == RoleFirst {
			cancel()
		}
	}

	start := time.Now()
	if err := pump.Run(ctx, pcmOfLength(1280*20)); err != nil {
		t.Errorf("Expected cancellation to stop without error, got %v", err)
	}
	if pump.FramesSent != 1 {
		t.Errorf("Expected 1 frame before cancel, got %d", pump.FramesSent)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected prompt stop, took %v", elapsed)
	}
}

func TestFramePump_NoPauseAfterLast(t *testing.T) {
	conn := newFakeConn()
	pump := newTestPump(conn, 100*time.Millisecond)

	start := time.Now()
	if err := pump.Run(context.Background(), pcmOfLength(1280)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	elapsed := time.Since(start)

	frames := conn.Frames()
	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(frames))
	}
	// one interval between FIRST and LAST, none after
	if elapsed < 90*time.Millisecond || elapsed >= 190*time.Millisecond {
		t.Errorf("Expected about one interval, took %v", elapsed)
	}
}
