package stt

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-transcriber/internal/observability"
)

// Inbound recognition event
type recognitionEvent struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	SID     string `json:"sid"`
	Data    *struct {
		Status int `json:"status"`
		Result *struct {
			SN int  `json:"sn"`
			LS bool `json:"ls"`
			WS []struct {
				CW []struct {
					W string `json:"w"`
				} `json:"cw"`
			} `json:"ws"`
		} `json:"result"`
	} `json:"data"`
}

// text joins every word of every group without separators
func (e *recognitionEvent) text() string {
	if e.Data == nil || e.Data.Result == nil {
		return ""
	}
	var sb strings.Builder
	for _, group := range e.Data.Result.WS {
		for _, cw := range group.CW {
			sb.WriteString(cw.W)
		}
	}
	return sb.String()
}

// ResultCollector accumulates recognized text in delivery order. It is not
// safe for concurrent use; the session feeds it from a single goroutine.
type ResultCollector struct {
	logger  zerolog.Logger
	metrics *observability.Metrics

	fragments      []string
	remoteSID      string
	finalSeen      bool
	events         int
	protocolErrors []error
}

// NewResultCollector creates an empty collector
func NewResultCollector(logger zerolog.Logger, metrics *observability.Metrics) *ResultCollector {
	return &ResultCollector{logger: logger, metrics: metrics}
}

// Handle processes one inbound message. Errors never stop collection: a
// nonzero code or an unparseable message is logged and recorded.
func (c *ResultCollector) Handle(message []byte) {
	c.events++

	var event recognitionEvent
	if err := json.Unmarshal(message, &event); err != nil {
		c.protocolErrors = append(c.protocolErrors, newError(KindProtocol, "parse event", err))
		c.record("malformed")
		c.logger.Warn().Err(err).Int("bytes", len(message)).Msg("Failed to parse recognition event")
		return
	}

	if event.SID != "" && c.remoteSID == "" {
		c.remoteSID = event.SID
		c.logger = c.logger.With().Str("remote_sid", event.SID).Logger()
	}

	if event.Code != 0 {
		perr := &ProtocolError{Code: event.Code, Message: event.Message, SID: event.SID}
		c.protocolErrors = append(c.protocolErrors, newError(KindProtocol, "recognition event", perr))
		c.record("error")
		c.logger.Error().
			Int("code", event.Code).
			Str("message", event.Message).
			Msg("Recognition service reported an error")
		return
	}

	c.record("ok")
	if event.Data != nil && event.Data.Status == int(RoleLast) {
		c.finalSeen = true
	}

	if fragment := event.text(); fragment != "" {
		c.fragments = append(c.fragments, fragment)
		if c.metrics != nil {
			c.metrics.RecordFirstResult()
		}
		c.logger.Debug().Str("fragment", fragment).Msg("Recognized fragment")
	}
}

func (c *ResultCollector) record(status string) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordEvent(status)
	if status != "ok" {
		c.metrics.RecordError(string(KindProtocol), "result_collector")
	}
}

// Text returns the trimmed concatenation of all fragments
func (c *ResultCollector) Text() string {
	return strings.TrimSpace(strings.Join(c.fragments, ""))
}

// RemoteSID returns the first sid reported by the service
func (c *ResultCollector) RemoteSID() string { return c.remoteSID }

// FinalSeen reports whether an event with the final status arrived
func (c *ResultCollector) FinalSeen() bool { return c.finalSeen }

// Events returns the number of messages handled
func (c *ResultCollector) Events() int { return c.events }

// ProtocolErrors returns the recorded per-event errors in arrival order
func (c *ResultCollector) ProtocolErrors() []error { return c.protocolErrors }
