package infrastructure

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"relayWs/internal/modules/realtime/domain"
)

var (
	ErrMalformedInbound = errors.New("malformed inbound frame")
	ErrUnknownInbound   = errors.New("unknown inbound frame type")
)

// InboundKind tags a parsed client frame.
type InboundKind int

const (
	InboundChatSend InboundKind = iota + 1
	InboundPing
)

func (k InboundKind) String() string {
	switch k {
	case InboundChatSend:
		return domain.InboundChatMessage
	case InboundPing:
		return domain.InboundPing
	default:
		return "unknown"
	}
}

// Inbound is a client frame after parsing. Chat is set only for InboundChatSend.
type Inbound struct {
	Kind InboundKind
	Chat domain.ChatSendCommand
}

type inboundEnvelope struct {
	Type string `json:"type"`
}

// ParseInbound decodes a raw client frame. Frames without a type are chat sends.
func ParseInbound(raw []byte) (Inbound, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Inbound{}, fmt.Errorf("%w: expected a json object", ErrMalformedInbound)
	}
	var envelope inboundEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedInbound, err)
	}

	switch strings.ToLower(strings.TrimSpace(envelope.Type)) {
	case "", domain.InboundChatMessage:
		var cmd domain.ChatSendCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedInbound, err)
		}
		return Inbound{Kind: InboundChatSend, Chat: cmd}, nil
	case domain.InboundPing:
		return Inbound{Kind: InboundPing}, nil
	default:
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownInbound, envelope.Type)
	}
}
