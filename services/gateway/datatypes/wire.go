// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the WebSocket wire protocol: the inbound turn
// request and the three outbound event shapes.
package datatypes

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants for Security Compliance
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single message text.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxImageBytes is the maximum size of an inline base64 image payload.
	MaxImageBytes = 8 * 1024 * 1024 // 8MB

	// MaxHistoryTurns is the maximum number of history turns per request.
	MaxHistoryTurns = 100
)

// Event type discriminators on the WebSocket wire.
const (
	// EventTypeChatMessage is both the inbound turn type and the outbound
	// per-character answer event type.
	EventTypeChatMessage = "chat_message"

	// EventTypeError is the outbound non-fatal error event. The
	// connection stays open after one of these.
	EventTypeError = "error"

	// EventTypeMessageComplete is the outbound terminal event, emitted
	// exactly once per accepted turn, always last.
	EventTypeMessageComplete = "message_complete"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// wireValidate is the validator instance for wire datatypes.
var wireValidate *validator.Validate

func init() {
	wireValidate = validator.New()
	_ = wireValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces the message size limit in bytes, not runes,
// so multi-byte Korean text cannot blow past the memory bound.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// =============================================================================
// Inbound
// =============================================================================

// HistoryTurn is one prior turn the client replays with a request.
// Role uses the LLM wire vocabulary ("user" / "assistant").
type HistoryTurn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"maxbytes"`
}

// TurnRequest is the inbound chat_message payload.
//
// # Fields
//
//   - Type: Required. Must be "chat_message"; anything else is rejected
//     with an error event.
//   - Message: The user's text. May be empty when an image is attached.
//   - ImageBase64: Optional inline image, base64 encoded. May carry a
//     data-URI style MIME prefix (everything through ";base64,"), which
//     is stripped before use.
//   - History: Prior turns in chronological order. Always present in
//     the protocol but may be empty; a missing field decodes to empty.
//
// # Validation
//
//   - Type: required, must equal chat_message
//   - Message: max 32KB
//   - ImageBase64: max 8MB
//   - History: max 100 turns, each turn validated
type TurnRequest struct {
	Type        string        `json:"type" validate:"required,eq=chat_message"`
	Message     string        `json:"message" validate:"maxbytes"`
	ImageBase64 string        `json:"image_base64" validate:"omitempty,max=8388608"`
	History     []HistoryTurn `json:"history" validate:"max=100,dive"`
}

// Validate checks the request after JSON decoding, then applies the one
// rule tags cannot express: a turn needs text or an image.
func (r *TurnRequest) Validate() error {
	if err := wireValidate.Struct(r); err != nil {
		return err
	}
	if strings.TrimSpace(r.Message) == "" && r.ImageBase64 == "" {
		return ErrEmptyTurn
	}
	return nil
}

// Image returns the base64 payload with any data-URI MIME prefix
// removed. Clients send either bare base64 or
// "data:image/jpeg;base64,<payload>"; the model API needs the payload
// re-wrapped with a known prefix, so normalize here.
func (r *TurnRequest) Image() string {
	if idx := strings.Index(r.ImageBase64, ";base64,"); idx >= 0 {
		return r.ImageBase64[idx+len(";base64,"):]
	}
	return r.ImageBase64
}

// =============================================================================
// Outbound
// =============================================================================

// ChatMessageEvent carries one character of the streamed answer.
type ChatMessageEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewChatMessageEvent wraps one answer fragment for the wire.
func NewChatMessageEvent(fragment string) ChatMessageEvent {
	return ChatMessageEvent{Type: EventTypeChatMessage, Message: fragment}
}

// ErrorEvent is a non-fatal per-turn error notification.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewErrorEvent wraps an error description for the wire. The text is a
// client-facing sentence, never a raw internal error.
func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: EventTypeError, Message: message}
}

// MessageCompleteEvent is the fail-safe terminal event. Emotion is
// always a valid label; error paths substitute the default.
type MessageCompleteEvent struct {
	Type    string `json:"type"`
	Emotion string `json:"emotion"`
}

// NewMessageCompleteEvent wraps the terminal emotion label.
func NewMessageCompleteEvent(emotion string) MessageCompleteEvent {
	return MessageCompleteEvent{Type: EventTypeMessageComplete, Emotion: emotion}
}
