package stt

import (
	"context"
	"time"

	"github.com/lexiqai/speech-transcriber/internal/audio"
)

// Request is one audio sample to recognize. Audio must not be modified
// while a session is running.
type Request struct {
	Audio      []byte
	SampleRate int
	BitDepth   int
	Channels   int
}

// NewRequest wraps 16kHz 16-bit mono PCM
func NewRequest(pcm []byte) Request {
	return Request{
		Audio:      pcm,
		SampleRate: audio.SampleRate,
		BitDepth:   audio.BitDepth,
		Channels:   audio.Channels,
	}
}

// Result is the outcome of one recognition session
type Result struct {
	// Text is the trimmed concatenation of every recognized fragment in
	// delivery order. It may hold partial text when Err is set.
	Text string

	SessionID string       // local correlation id
	RemoteSID string       // sid reported by the service
	State     SessionState // terminal state
	Err       error        // nil on a clean close

	FramesSent     int
	AudioBytes     int
	Events         int
	ProtocolErrors []error
	FinalSeen      bool // an event with data.status == 2 arrived
	Duration       time.Duration
}

// Kind reports the error kind, KindNone for a clean session
func (r Result) Kind() ErrorKind {
	return KindOf(r.Err)
}

// OK reports whether the session closed cleanly
func (r Result) OK() bool {
	return r.Err == nil
}

// Transcriber turns recorded audio into text
type Transcriber interface {
	// Transcribe runs one blocking session. It never panics; failures are
	// reported through Result.Err.
	Transcribe(ctx context.Context, req Request) Result

	// TranscribeFile loads a 16kHz/16-bit/mono wave or raw PCM file and
	// transcribes it.
	TranscribeFile(ctx context.Context, path string) Result
}
