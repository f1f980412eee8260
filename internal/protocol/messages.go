package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vtuberd/control-plane/internal/model"
)

// MessageType identifies websocket payload variants.
type MessageType string

// Inbound frame types, per the session reader's handler table.
const (
	TypeExpressionCommand    MessageType = "expression-command"
	TypeMotionCommand        MessageType = "motion-command"
	TypeTextInput             MessageType = "text-input"
	TypeTextGenerationRequest MessageType = "text-generation-request"
	TypeSetBackendMode        MessageType = "set-backend-mode"
	TypeGetBackendMode        MessageType = "get-backend-mode"
	TypeMicAudioData          MessageType = "mic-audio-data"
	TypeMicAudioEnd           MessageType = "mic-audio-end"
)

// Outbound frame types.
const (
	TypeAudio                 MessageType = "audio"
	TypeExpressionAck         MessageType = "expression-ack"
	TypeMotionAck              MessageType = "motion-ack"
	TypeBackendModeSet         MessageType = "backend-mode-set"
	TypeTextGenerationChunk    MessageType = "text-generation-chunk"
	TypeTextGenerationResponse MessageType = "text-generation-response"
	TypeUserInputTranscription MessageType = "user-input-transcription"
	TypeAutonomousChat         MessageType = "autonomous-chat"
	TypeFullText               MessageType = "full-text"
	TypePartialText            MessageType = "partial-text"
	TypeError                  MessageType = "error"
)

// ErrUnsupportedType is returned by ParseClientMessage for any frame type
// not present in the inbound handler table. It is not fatal: the caller
// reflects it back as an error frame and keeps the stream open.
var ErrUnsupportedType = errors.New("unsupported message type")

// Envelope is the minimal shape every inbound frame satisfies.
type Envelope struct {
	Type MessageType `json:"type"`
}

// ExpressionCommand requests TriggerExpression on the session's adapter.
type ExpressionCommand struct {
	Type         MessageType `json:"type"`
	ExpressionID int         `json:"expression_id"`
	DurationMs   int         `json:"duration_ms"`
	Priority     int         `json:"priority"`
}

// MotionCommandIn requests TriggerMotion on the session's adapter.
type MotionCommandIn struct {
	Type        MessageType `json:"type"`
	MotionGroup string      `json:"motion_group"`
	MotionIndex int         `json:"motion_index"`
	Loop        bool        `json:"loop"`
	Priority    int         `json:"priority"`
}

// TextInput carries user-authored chat text to be run through the adapter's
// Speak path (pre-generated text, no agent round trip).
type TextInput struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// TextGenerationRequest asks the adapter's Agent to generate text for prompt.
type TextGenerationRequest struct {
	Type    MessageType    `json:"type"`
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context,omitempty"`
}

// SetBackendMode switches the session's adapter variant.
type SetBackendMode struct {
	Type MessageType `json:"type"`
	Mode string      `json:"mode"` // "internal" | "external-api" | "autonomous"
}

// GetBackendMode has no payload beyond its type.
type GetBackendMode struct {
	Type MessageType `json:"type"`
}

// MicAudioData and MicAudioEnd are accepted but never buffered: ASR is an
// external collaborator outside this module's scope, so these frames are
// ignored and no reply frame is sent.
type MicAudioData struct {
	Type MessageType `json:"type"`
}

type MicAudioEnd struct {
	Type MessageType `json:"type"`
}

// AudioFrame wraps model.AudioPayload with its wire type tag.
type AudioFrame struct {
	Type MessageType `json:"type"`
	model.AudioPayload
}

func NewAudioFrame(p model.AudioPayload) AudioFrame {
	return AudioFrame{Type: TypeAudio, AudioPayload: p}
}

// MotionFrame wraps model.MotionCommand with its wire type tag.
type MotionFrame struct {
	Type MessageType `json:"type"`
	model.MotionCommand
}

func NewMotionFrame(c model.MotionCommand) MotionFrame {
	return MotionFrame{Type: TypeMotionCommand, MotionCommand: c}
}

// ExpressionAck acknowledges an expression-command frame.
type ExpressionAck struct {
	Type         MessageType `json:"type"`
	ExpressionID int         `json:"expression_id"`
	Status       string      `json:"status"`
	Error        string      `json:"error,omitempty"`
}

// MotionAck acknowledges a motion-command frame.
type MotionAck struct {
	Type        MessageType `json:"type"`
	MotionGroup string      `json:"motion_group"`
	MotionIndex int         `json:"motion_index"`
	Status      string      `json:"status"`
	Error       string      `json:"error,omitempty"`
}

// BackendModeSet acknowledges set-backend-mode / get-backend-mode.
type BackendModeSet struct {
	Type MessageType `json:"type"`
	Mode string      `json:"mode"`
}

// TextGenerationChunk streams one piece of generated text.
type TextGenerationChunk struct {
	Type  MessageType `json:"type"`
	Chunk string      `json:"chunk"`
}

// TextGenerationResponse terminates a text-generation-request's stream.
type TextGenerationResponse struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// UserInputTranscription reflects ASR output when an external collaborator
// supplies one; this module never produces it itself.
type UserInputTranscription struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// AutonomousChat is the text-only broadcast companion to a Speak call made
// by the scheduler or the chat ingest pipeline.
type AutonomousChat struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// FullText and PartialText mirror the agent's streaming text output for UI
// rendering independent of text-generation-chunk/response framing.
type FullText struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

type PartialText struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// ErrorFrame reports a non-fatal failure to the renderer.
type ErrorFrame struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

func NewErrorFrame(msg string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Message: msg}
}

// ParseClientMessage decodes an inbound frame by its type tag and validates
// the required fields for that type. Unknown types return ErrUnsupportedType
// rather than an error that would tear down the stream.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeExpressionCommand:
		var msg ExpressionCommand
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeMotionCommand:
		var msg MotionCommandIn
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.MotionGroup == "" {
			return nil, errors.New("invalid motion-command: motion_group required")
		}
		return msg, nil
	case TypeTextInput:
		var msg TextInput
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Text == "" {
			return nil, errors.New("invalid text-input: text required")
		}
		return msg, nil
	case TypeTextGenerationRequest:
		var msg TextGenerationRequest
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Prompt == "" {
			return nil, errors.New("invalid text-generation-request: prompt required")
		}
		return msg, nil
	case TypeSetBackendMode:
		var msg SetBackendMode
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Mode == "" {
			return nil, errors.New("invalid set-backend-mode: mode required")
		}
		return msg, nil
	case TypeGetBackendMode:
		var msg GetBackendMode
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeMicAudioData:
		var msg MicAudioData
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeMicAudioEnd:
		var msg MicAudioEnd
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
