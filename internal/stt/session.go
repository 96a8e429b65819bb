package stt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lexiqai/speech-transcriber/internal/observability"
)

// SessionState is a step in the life of one recognition session
type SessionState int

const (
	StateIdle SessionState = iota
	StateURLBuilt
	StateConnecting
	StateHandshakeOK
	StateStreaming
	StateClosedOK
	StateClosedError
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateURLBuilt:
		return "URL_BUILT"
	case StateConnecting:
		return "CONNECTING"
	case StateHandshakeOK:
		return "HANDSHAKE_OK"
	case StateStreaming:
		return "STREAMING"
	case StateClosedOK:
		return "CLOSED_OK"
	case StateClosedError:
		return "CLOSED_ERROR"
	}
	return "UNKNOWN"
}

// Terminal reports whether s ends a session
func (s SessionState) Terminal() bool {
	return s == StateClosedOK || s == StateClosedError
}

// Session runs a single sign, connect, stream and collect cycle. A session
// is used once.
type Session struct {
	id      string
	client  *Client
	logger  zerolog.Logger
	metrics *observability.Metrics

	state   SessionState
	history []SessionState
}

func newSession(c *Client, id string) *Session {
	s := &Session{
		id:      id,
		client:  c,
		logger:  observability.WithCorrelationID(c.logger, id),
		state:   StateIdle,
		history: []SessionState{StateIdle},
	}
	if c.cfg.MetricsEnabled {
		s.metrics = observability.NewSessionMetrics(id)
	}
	return s
}

// ID returns the local correlation id
func (s *Session) ID() string { return s.id }

// History returns every state the session passed through, in order
func (s *Session) History() []SessionState {
	return append([]SessionState(nil), s.history...)
}

func (s *Session) transition(to SessionState) {
	s.logger.Debug().
		Str("from", s.state.String()).
		Str("to", to.String()).
		Msg("Session state changed")
	s.state = to
	s.history = append(s.history, to)
}

// closeReason records why the streaming loop ended
type closeReason int

const (
	closedByRemote closeReason = iota
	closedByContext
	closedByPump
	closedByPanic
)

// Run executes the session and never panics
func (s *Session) Run(ctx context.Context, req Request) (result Result) {
	start := s.client.now()
	result.SessionID = s.id

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("Recovered from panic in session")
			result.Err = newError(KindTransport, "session", fmt.Errorf("panic: %v", r))
		}
		s.finish(&result, start)
	}()

	if deadline := s.client.cfg.SessionDeadline(len(req.Audio)); deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	signed, err := s.client.signer.Sign(s.client.creds(), start)
	if err != nil {
		result.Err = err
		return result
	}
	s.transition(StateURLBuilt)

	s.transition(StateConnecting)
	conn, err := s.client.dial(ctx, signed.URL)
	if err != nil {
		if ctx.Err() != nil {
			result.Err = newError(KindCanceled, "connect", ctx.Err())
		} else {
			result.Err = newError(KindTransport, "connect", err)
		}
		return result
	}
	s.transition(StateHandshakeOK)

	s.stream(ctx, conn, req, &result)
	return result
}

// stream runs the pump and the collector until the connection closes, the
// context ends or the first frame cannot be sent
func (s *Session) stream(ctx context.Context, conn Conn, req Request, result *Result) {
	if s.metrics != nil {
		s.metrics.RecordStreamingStart()
	}
	s.transition(StateStreaming)

	collector := NewResultCollector(s.logger, s.metrics)
	pump := NewFramePump(conn, NewFrameEncoder(s.client.cfg, s.client.cfg.AppID),
		s.client.cfg.FrameSize, s.client.cfg.FrameInterval(), s.logger, s.metrics)

	pumpCtx, cancelPump := context.WithCancel(ctx)
	defer cancelPump()

	g, gctx := errgroup.WithContext(pumpCtx)
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Interface("panic", r).Msg("Recovered from panic in frame pump")
				err = newError(KindTransport, "frame pump", fmt.Errorf("panic: %v", r))
			}
		}()
		return pump.Run(gctx, req.Audio)
	})

	reason, panicErr := s.collect(ctx, gctx, conn, collector)

	// Closing first unblocks a pump stuck in Send
	if err := conn.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("Error closing connection")
	}
	cancelPump()
	pumpErr := g.Wait()

	result.RemoteSID = collector.RemoteSID()
	result.Text = collector.Text()
	result.Events = collector.Events()
	result.ProtocolErrors = collector.ProtocolErrors()
	result.FinalSeen = collector.FinalSeen()
	result.FramesSent = pump.FramesSent
	result.AudioBytes = pump.AudioBytes

	switch reason {
	case closedByContext:
		result.Err = newError(KindCanceled, "stream", ctx.Err())
	case closedByPanic:
		result.Err = panicErr
	case closedByPump:
		result.Err = pumpErr
	case closedByRemote:
		switch {
		case conn.Err() != nil:
			result.Err = newError(KindTransport, "receive", conn.Err())
		case result.FinalSeen:
			// transcript complete; a late send failure cannot change it
		case pump.SendErr != nil:
			result.Err = pump.SendErr
		case pumpErr != nil:
			result.Err = pumpErr
		default:
			// the service gave up on the stream after reporting an error code
			if perr := lastServiceError(result.ProtocolErrors); perr != nil {
				result.Err = perr
			}
		}
	}
}

// lastServiceError returns the last error carrying a service error code.
// Malformed messages are skipped; they never end a stream on their own.
func lastServiceError(errs []error) error {
	for i := len(errs) - 1; i >= 0; i-- {
		var perr *ProtocolError
		if errors.As(errs[i], &perr) {
			return errs[i]
		}
	}
	return nil
}

// collect feeds inbound events to collector until the stream ends
func (s *Session) collect(ctx, pumpCtx context.Context, conn Conn, collector *ResultCollector) (reason closeReason, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("Recovered from panic in result collector")
			reason = closedByPanic
			err = newError(KindProtocol, "result collector", fmt.Errorf("panic: %v", r))
		}
	}()

	events := conn.Events()
	for {
		select {
		case message, ok := <-events:
			if !ok {
				return closedByRemote, nil
			}
			collector.Handle(message)
		case <-ctx.Done():
			return closedByContext, nil
		case <-pumpCtx.Done():
			if ctx.Err() != nil {
				return closedByContext, nil
			}
			return closedByPump, nil
		}
	}
}

func (s *Session) finish(result *Result, start time.Time) {
	if result.Err != nil {
		s.transition(StateClosedError)
		if s.client.cfg.DiscardPartialOnError {
			result.Text = ""
		}
	} else {
		s.transition(StateClosedOK)
	}
	result.State = s.state
	result.Duration = s.client.now().Sub(start)

	kind := result.Kind()
	outcome := "ok"
	if kind != KindNone {
		outcome = string(kind)
	}
	if s.metrics != nil {
		if kind != KindNone {
			s.metrics.RecordError(outcome, "session")
		}
		s.metrics.RecordSessionEnd(outcome)
	}

	event := s.logger.Info()
	if result.Err != nil {
		event = s.logger.Warn().Err(result.Err).Str("kind", outcome)
		if errors.Is(result.Err, context.Canceled) || errors.Is(result.Err, context.DeadlineExceeded) {
			event = s.logger.Info().Err(result.Err).Str("kind", outcome)
		}
	}
	event.
		Str("state", result.State.String()).
		Str("remote_sid", result.RemoteSID).
		Int("frames_sent", result.FramesSent).
		Int("events", result.Events).
		Int("protocol_errors", len(result.ProtocolErrors)).
		Bool("final_seen", result.FinalSeen).
		Dur("duration", result.Duration).
		Msg("Recognition session finished")
}
