package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-transcriber/internal/config"
	"github.com/lexiqai/speech-transcriber/internal/observability"
	"github.com/lexiqai/speech-transcriber/internal/resilience"
	"github.com/lexiqai/speech-transcriber/internal/stt"
)

const (
	exitOK      = 0
	exitConfig  = 1
	exitUsage   = 2
	exitFailure = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <audio-file>...\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Transcribes 16kHz 16-bit mono .wav or raw PCM files and prints one transcript per line.")
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Println(observability.Version)
		return exitOK
	}
	if flag.NArg() == 0 {
		flag.Usage()
		return exitUsage
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return exitConfig
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("host", cfg.Host).
		Str("language", cfg.Language).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Int("files", flag.NArg()).
		Msg("Speech transcriber starting")

	client := stt.NewClient(cfg)

	var server *http.Server
	if cfg.MetricsEnabled && cfg.MetricsAddr != "" {
		server = startMetricsServer(cfg, client, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel in-flight sessions on interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-quit:
			logger.Info().Str("signal", sig.String()).Msg("Interrupted, cancelling transcription")
			cancel()
		case <-ctx.Done():
		}
	}()

	code := exitOK
	for _, path := range flag.Args() {
		if ctx.Err() != nil {
			code = exitFailure
			break
		}

		result := client.TranscribeFile(ctx, path)
		fmt.Println(result.Text)

		if !result.OK() {
			code = exitFailure
			logger.Error().
				Err(result.Err).
				Str("path", path).
				Str("kind", string(result.Kind())).
				Str("session_id", result.SessionID).
				Msg("Transcription failed")
		}
	}

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Metrics server forced to shutdown")
		}
	}
	return code
}

func startMetricsServer(cfg *config.Config, client *stt.Client, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness: credentials present and the breaker letting connections through
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"credentials": func(ctx context.Context) (bool, error) {
			if err := cfg.Credentials().Validate(); err != nil {
				return false, err
			}
			return true, nil
		},
		"recognition_service": func(ctx context.Context) (bool, error) {
			if state := client.Breaker().GetState(); state == resilience.StateOpen {
				return false, fmt.Errorf("circuit breaker is %s", state)
			}
			return true, nil
		},
	}))

	// Metrics endpoint (Prometheus)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         cfg.MetricsAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("Metrics server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return server
}
