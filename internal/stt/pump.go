package stt

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lexiqai/speech-transcriber/internal/audio"
	"github.com/lexiqai/speech-transcriber/internal/observability"
)

// FramePump streams one audio buffer as FIRST, CONTINUE... and LAST frames,
// paced to real time
type FramePump struct {
	conn      Conn
	encoder   *FrameEncoder
	frameSize int
	limiter   *rate.Limiter
	logger    zerolog.Logger
	metrics   *observability.Metrics

	// Valid once Run has returned
	FramesSent int
	AudioBytes int
	SendErr    error // CONTINUE or LAST send failure
}

// NewFramePump creates a pump that leaves at least interval between sends.
// A zero interval disables pacing.
func NewFramePump(conn Conn, encoder *FrameEncoder, frameSize int, interval time.Duration, logger zerolog.Logger, metrics *observability.Metrics) *FramePump {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &FramePump{
		conn:      conn,
		encoder:   encoder,
		frameSize: frameSize,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
		metrics:   metrics,
	}
}

// Run sends every frame for pcm. Only a failure to send FIRST is returned;
// later send failures stop the pump and are kept in SendErr so the session
// can still collect what the service already recognized. Cancelling ctx
// stops the pump between frames without error.
func (p *FramePump) Run(ctx context.Context, pcm []byte) error {
	chunks := audio.Chunks(pcm, p.frameSize)
	if len(chunks) == 0 {
		chunks = [][]byte{nil}
	}

	for i, chunk := range chunks {
		role := RoleContinue
		if i == 0 {
			role = RoleFirst
		}
		if !p.send(ctx, role, chunk) {
			if role == RoleFirst && p.SendErr != nil {
				err := p.SendErr
				p.SendErr = nil
				return err
			}
			return nil
		}
	}

	p.send(ctx, RoleLast, nil)
	p.logger.Debug().
		Int("frames", p.FramesSent).
		Int("audio_bytes", p.AudioBytes).
		Msg("Audio stream complete")
	return nil
}

// send paces and writes one frame, reporting whether pumping should go on
func (p *FramePump) send(ctx context.Context, role FrameRole, payload []byte) bool {
	if err := p.limiter.Wait(ctx); err != nil {
		p.logger.Debug().Err(err).Str("role", role.String()).Msg("Frame pump stopped")
		return false
	}

	frame, err := p.encoder.Encode(role, payload)
	if err == nil {
		err = p.conn.Send(frame)
		if err != nil {
			err = newError(KindTransport, "send "+role.String()+" frame", err)
		}
	}
	if err != nil {
		p.SendErr = err
		if p.metrics != nil {
			p.metrics.RecordError(string(KindOf(err)), "frame_pump")
		}
		p.logger.Error().Err(err).
			Str("role", role.String()).
			Int("frames_sent", p.FramesSent).
			Msg("Failed to send frame, stopping audio stream")
		return false
	}

	p.FramesSent++
	p.AudioBytes += len(payload)
	if p.metrics != nil {
		p.metrics.RecordFrame(role.String(), len(payload))
	}
	return true
}
