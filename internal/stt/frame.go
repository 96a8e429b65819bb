package stt

import (
	"encoding/base64"
	"encoding/json"

	"github.com/lexiqai/speech-transcriber/internal/config"
)

// FrameRole marks a frame's position in the stream
type FrameRole int

const (
	RoleFirst    FrameRole = 0
	RoleContinue FrameRole = 1
	RoleLast     FrameRole = 2
)

func (r FrameRole) String() string {
	switch r {
	case RoleFirst:
		return "first"
	case RoleContinue:
		return "continue"
	case RoleLast:
		return "last"
	}
	return "unknown"
}

const (
	audioFormat   = "audio/L16;rate=16000;channel=1"
	audioEncoding = "raw"
)

// Outbound envelope. common and business are only set on the first frame.
type frameMessage struct {
	Common   *frameCommon   `json:"common,omitempty"`
	Business *frameBusiness `json:"business,omitempty"`
	Data     frameData      `json:"data"`
}

type frameCommon struct {
	AppID string `json:"app_id"`
}

type frameBusiness struct {
	Domain   string `json:"domain"`
	Language string `json:"language"`
	Accent   string `json:"accent"`
	VADEos   int    `json:"vad_eos"`
	VInfo    int    `json:"vinfo"`
}

type frameData struct {
	Status   FrameRole `json:"status"`
	Format   string    `json:"format"`
	Audio    string    `json:"audio"`
	Encoding string    `json:"encoding"`
}

// FrameEncoder renders audio chunks into wire frames
type FrameEncoder struct {
	common   frameCommon
	business frameBusiness
}

// NewFrameEncoder builds an encoder carrying the session parameters in cfg
func NewFrameEncoder(cfg *config.Config, appID string) *FrameEncoder {
	vinfo := 0
	if cfg.VInfo {
		vinfo = 1
	}
	return &FrameEncoder{
		common: frameCommon{AppID: appID},
		business: frameBusiness{
			Domain:   cfg.Domain,
			Language: cfg.Language,
			Accent:   cfg.Accent,
			VADEos:   cfg.VADEos,
			VInfo:    vinfo,
		},
	}
}

// Encode returns the JSON frame for payload. The LAST frame ignores payload.
func (e *FrameEncoder) Encode(role FrameRole, payload []byte) ([]byte, error) {
	msg := frameMessage{
		Data: frameData{
			Status:   role,
			Format:   audioFormat,
			Encoding: audioEncoding,
		},
	}

	switch role {
	case RoleFirst:
		common, business := e.common, e.business
		msg.Common = &common
		msg.Business = &business
		msg.Data.Audio = base64.StdEncoding.EncodeToString(payload)
	case RoleContinue:
		msg.Data.Audio = base64.StdEncoding.EncodeToString(payload)
	case RoleLast:
		msg.Data.Audio = ""
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return nil, newError(KindEncoding, "encode "+role.String()+" frame", err)
	}
	return b, nil
}
