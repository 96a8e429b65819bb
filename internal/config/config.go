package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ErrMissingCredential is returned when one of the three iFlytek credentials is empty.
var ErrMissingCredential = errors.New("missing credential")

// Config holds all configuration for the transcriber
type Config struct {
	// iFlytek credentials. Not tagged required: absence is reported per
	// session as a configuration error instead of failing Load.
	AppID     string `envconfig:"IFLYTEK_APP_ID"`
	APIKey    string `envconfig:"IFLYTEK_API_KEY"`
	APISecret string `envconfig:"IFLYTEK_API_SECRET"`

	// Recognition endpoint
	Host   string `envconfig:"IFLYTEK_HOST" default:"iat-api.xfyun.cn"`
	Path   string `envconfig:"IFLYTEK_PATH" default:"/v2/iat"`
	Scheme string `envconfig:"IFLYTEK_SCHEME" default:"wss"` // wss in production, ws for local fakes

	// Business parameters sent on the first frame
	Domain   string `envconfig:"IAT_DOMAIN" default:"iat"`
	Language string `envconfig:"IAT_LANGUAGE" default:"zh_cn"`
	Accent   string `envconfig:"IAT_ACCENT" default:"mandarin"`
	VADEos   int    `envconfig:"IAT_VAD_EOS" default:"10000"` // end-of-speech silence in milliseconds
	VInfo    bool   `envconfig:"IAT_VINFO" default:"true"`

	// Frame pump
	FrameSize       int `envconfig:"FRAME_SIZE" default:"1280"`      // bytes per frame (40ms at 16kHz/16-bit/mono)
	FrameIntervalMs int `envconfig:"FRAME_INTERVAL_MS" default:"40"` // pause between frames

	// Transport and session deadlines (seconds)
	HandshakeTimeout int `envconfig:"HANDSHAKE_TIMEOUT" default:"10"`
	PingInterval     int `envconfig:"PING_INTERVAL" default:"10"`
	PongWait         int `envconfig:"PONG_WAIT" default:"30"`
	WriteTimeout     int `envconfig:"WRITE_TIMEOUT" default:"5"`
	SessionTimeout   int `envconfig:"SESSION_TIMEOUT" default:"60"` // grace after the audio is streamed; 0 disables the deadline

	// Drop accumulated text when a session ends in an error state
	DiscardPartialOnError bool `envconfig:"DISCARD_PARTIAL_ON_ERROR" default:"false"`

	// Resilience configuration (connection establishment only)
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // seconds
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"` // milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	MetricsAddr    string `envconfig:"METRICS_ADDR" default:""` // e.g. :9090; empty disables the listener

	// Optional YAML file overriding recognition parameters
	ProfilePath string `envconfig:"TRANSCRIBER_PROFILE" default:""`
}

// Credentials is the credential triple used to sign a connection URL
type Credentials struct {
	AppID     string
	APIKey    string
	APISecret string
}

// Validate reports the first missing credential
func (c Credentials) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"IFLYTEK_APP_ID", c.AppID},
		{"IFLYTEK_API_KEY", c.APIKey},
		{"IFLYTEK_API_SECRET", c.APISecret},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrMissingCredential, f.name)
		}
	}
	return nil
}

// Credentials returns the credential triple
func (c *Config) Credentials() Credentials {
	return Credentials{AppID: c.AppID, APIKey: c.APIKey, APISecret: c.APISecret}
}

// Validate checks the non-credential settings
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("IFLYTEK_HOST is required")
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("IFLYTEK_PATH must start with '/', got %q", c.Path)
	}
	if c.Scheme != "ws" && c.Scheme != "wss" {
		return fmt.Errorf("IFLYTEK_SCHEME must be ws or wss, got %q", c.Scheme)
	}
	if c.FrameSize <= 0 || c.FrameSize%2 != 0 {
		return fmt.Errorf("FRAME_SIZE must be a positive even number, got %d", c.FrameSize)
	}
	if c.FrameIntervalMs < 0 {
		return fmt.Errorf("FRAME_INTERVAL_MS must be >= 0, got %d", c.FrameIntervalMs)
	}
	if c.SessionTimeout < 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be >= 0, got %d", c.SessionTimeout)
	}
	return nil
}

// FrameInterval returns the pacing interval between frames
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMs) * time.Millisecond
}

// SessionGrace returns the time allowed on top of streaming, zero when disabled
func (c *Config) SessionGrace() time.Duration {
	return time.Duration(c.SessionTimeout) * time.Second
}

// SessionDeadline returns the overall timeout for a session streaming
// audioBytes of PCM: the paced streaming time plus the grace for the
// handshake and the service's end-of-speech tail. Zero when disabled.
func (c *Config) SessionDeadline(audioBytes int) time.Duration {
	grace := c.SessionGrace()
	if grace <= 0 {
		return 0
	}
	// every frame after FIRST waits one interval, LAST included
	waits := 1
	if c.FrameSize > 0 && audioBytes > 0 {
		waits = (audioBytes + c.FrameSize - 1) / c.FrameSize
	}
	return time.Duration(waits)*c.FrameInterval() + grace
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.ProfilePath != "" {
		if err := cfg.ApplyProfile(cfg.ProfilePath); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
