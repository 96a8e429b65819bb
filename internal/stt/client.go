package stt

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-transcriber/internal/audio"
	"github.com/lexiqai/speech-transcriber/internal/config"
	"github.com/lexiqai/speech-transcriber/internal/observability"
	"github.com/lexiqai/speech-transcriber/internal/resilience"
)

const breakerName = "iflytek"

// Client runs recognition sessions against one configured endpoint. It is
// safe for concurrent use; every call gets its own session and connection.
type Client struct {
	cfg     *config.Config
	signer  *Signer
	dialer  Dialer
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryConfig
	now     func() time.Time
	logger  zerolog.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithDialer replaces the websocket dialer
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithClock replaces time.Now for URL signing and durations
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLogger replaces the global logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for cfg
func NewClient(cfg *config.Config, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg,
		signer: NewSigner(cfg.Scheme, cfg.Host, cfg.Path),
		breaker: resilience.NewCircuitBreaker(
			breakerName,
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
		},
		now:    time.Now,
		logger: observability.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = NewWebSocketDialer(cfg)
	}
	return c
}

// Breaker exposes the connection circuit breaker for readiness checks
func (c *Client) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

func (c *Client) creds() config.Credentials {
	return c.cfg.Credentials()
}

// dial connects through the circuit breaker, retrying transient failures.
// Only the handshake is retried; audio is never resent.
func (c *Client) dial(ctx context.Context, url string) (Conn, error) {
	var conn Conn
	err := c.breaker.CallContext(ctx, func(ctx context.Context) error {
		return resilience.Retry(ctx, func(ctx context.Context) error {
			var err error
			conn, err = c.dialer.Dial(ctx, url)
			if err != nil {
				c.logger.Warn().Err(err).Msg("Failed to connect to recognition service")
			}
			return err
		}, c.retry, resilience.IsRetryableNetworkError)
	})

	observability.UpdateCircuitBreakerState(breakerName, int(c.breaker.GetState()))
	// a session that ran out of time says nothing about the service
	if err != nil && ctx.Err() == nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		observability.IncrementCircuitBreakerFailures(breakerName)
	}
	return conn, err
}

// Transcribe runs one session for req
func (c *Client) Transcribe(ctx context.Context, req Request) Result {
	return newSession(c, observability.NewCorrelationID()).Run(ctx, req)
}

// TranscribeFile loads path and transcribes it. Audio problems are reported
// without touching the network.
func (c *Client) TranscribeFile(ctx context.Context, path string) Result {
	sample, err := audio.LoadFile(path)
	if err != nil {
		kind := KindEncoding
		if path == "" || errors.Is(err, os.ErrNotExist) || errors.Is(err, audio.ErrEmptySample) {
			kind = KindConfiguration
		}
		c.logger.Error().Err(err).Str("path", path).Str("kind", string(kind)).Msg("Failed to load audio")
		return Result{
			SessionID: observability.NewCorrelationID(),
			State:     StateClosedError,
			Err:       newError(kind, "load audio", err),
		}
	}

	activity := audio.Analyze(sample.PCM, nil)
	c.logger.Info().
		Str("path", path).
		Int("bytes", len(sample.PCM)).
		Dur("audio_duration", sample.Duration()).
		Float64("speech_ratio", activity.SpeechRatio()).
		Msg("Loaded audio sample")
	if activity.Silent() {
		c.logger.Warn().Str("path", path).Msg("Audio sample has no speech energy, expect an empty transcript")
	}

	return c.Transcribe(ctx, Request{
		Audio:      sample.PCM,
		SampleRate: sample.SampleRate,
		BitDepth:   sample.BitDepth,
		Channels:   sample.Channels,
	})
}

// TranscribeText returns the transcript of path, or an empty string when
// nothing was recognized or the session failed. Failures are only logged.
func (c *Client) TranscribeText(ctx context.Context, path string) string {
	return c.TranscribeFile(ctx, path).Text
}

var _ Transcriber = (*Client)(nil)
