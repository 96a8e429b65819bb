package stt

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lexiqai/speech-transcriber/internal/resilience"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func helloDialer() *fakeDialer {
	return &fakeDialer{newConn: func() *fakeConn {
		c := newFakeConn()
		c.onSend = closeOnLast(wordEvent("sid", 2, []string{"  Hello"}, []string{" world  "}))
		return c
	}}
}

func TestTranscribeFile_RawPCM(t *testing.T) {
	dialer := helloDialer()
	client := newTestClient(newTestConfig(), dialer)
	path := writeFile(t, "sample.pcm", pcmOfLength(3200))

	result := client.TranscribeFile(context.Background(), path)

	if result.Err != nil {
		t.Fatalf("Expected no error, got %v", result.Err)
	}
	if result.Text != "Hello world" {
		t.Errorf("Expected 'Hello world', got %q", result.Text)
	}
	if result.AudioBytes != 3200 {
		t.Errorf("Expected 3200 audio bytes, got %d", result.AudioBytes)
	}
}

func TestTranscribeFile_Errors(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.wav")
	if err := os.WriteFile(corrupt, []byte("RIFF....not really"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.pcm")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	odd := filepath.Join(dir, "odd.pcm")
	if err := os.WriteFile(odd, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		kind ErrorKind
	}{
		{"no path", "", KindConfiguration},
		{"missing file", filepath.Join(dir, "missing.wav"), KindConfiguration},
		{"empty file", empty, KindConfiguration},
		{"corrupt wave", corrupt, KindEncoding},
		{"odd raw length", odd, KindEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialer := &fakeDialer{}
			client := newTestClient(newTestConfig(), dialer)

			result := client.TranscribeFile(context.Background(), tt.path)

			if result.Kind() != tt.kind {
				t.Errorf("Expected %q, got %q (%v)", tt.kind, result.Kind(), result.Err)
			}
			if result.State != StateClosedError {
				t.Errorf("Expected CLOSED_ERROR, got %s", result.State)
			}
			if dialer.Dials() != 0 {
				t.Errorf("Expected no connect attempts, got %d", dialer.Dials())
			}
		})
	}
}

func TestTranscribeText(t *testing.T) {
	client := newTestClient(newTestConfig(), helloDialer())
	path := writeFile(t, "sample.pcm", pcmOfLength(640))

	if text := client.TranscribeText(context.Background(), path); text != "Hello world" {
		t.Errorf("Expected 'Hello world', got %q", text)
	}
}

func TestTranscribeText_FailureIsEmpty(t *testing.T) {
	client := newTestClient(newTestConfig(), &fakeDialer{})
	client.cfg.APIKey = ""
	path := writeFile(t, "sample.pcm", pcmOfLength(640))

	if text := client.TranscribeText(context.Background(), path); text != "" {
		t.Errorf("Expected empty text on failure, got %q", text)
	}
	if text := client.TranscribeText(context.Background(), "/does/not/exist.wav"); text != "" {
		t.Errorf("Expected empty text for a missing file, got %q", text)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	cfg := newTestConfig()
	client := NewClient(cfg)

	if _, ok := client.dialer.(*WebSocketDialer); !ok {
		t.Errorf("Expected websocket dialer by default, got %T", client.dialer)
	}
	if client.Breaker().GetState() != resilience.StateClosed {
		t.Errorf("Expected closed breaker, got %s", client.Breaker().GetState())
	}
	if client.Breaker().Name() != "iflytek" {
		t.Errorf("Expected breaker name iflytek, got %q", client.Breaker().Name())
	}
	if client.retry.MaxAttempts != cfg.RetryMaxAttempts {
		t.Errorf("Expected %d retry attempts, got %d", cfg.RetryMaxAttempts, client.retry.MaxAttempts)
	}
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	dialer := helloDialer()
	client := NewClient(newTestConfig(), WithDialer(dialer), WithClock(func() time.Time { return fixed }))

	client.Transcribe(context.Background(), NewRequest(nil))

	signed, _ := client.signer.Sign(client.creds(), fixed)
	if got := dialer.lastConn(t).url; got != signed.URL {
		t.Errorf("Expected URL signed at the injected time:\n got: %s\nwant: %s", got, signed.URL)
	}
}
