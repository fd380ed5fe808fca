// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm abstracts the chat-completion backend used by Moodchat.
//
// The gateway talks to the model exclusively through the LLMClient
// interface so the streaming pipeline can be exercised in tests with a
// fake backend. The only production implementation is OpenAIClient.
package llm

import "context"

// Message roles, matching the provider wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessagePart content types for multimodal user turns.
const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
)

// MessagePart is one typed element of a multimodal message content
// list: either a text fragment or an image referenced by data URI.
type MessagePart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Message is a single conversation turn. When Parts is non-empty it
// takes precedence over Content; part order is preserved on the wire.
type Message struct {
	Role    string        `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []MessagePart `json:"parts,omitempty"`
}

// GenerationParams tunes a completion request. Nil pointer fields fall
// back to provider defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`

	// JSONResponse constrains the model output to a single JSON object
	// when the provider supports a response-format constraint.
	JSONResponse bool `json:"json_response,omitempty"`
}

// StreamEventType discriminates streaming events.
type StreamEventType string

const (
	// StreamEventToken carries one incremental content delta.
	StreamEventToken StreamEventType = "token"

	// StreamEventDone marks the end of a successful stream. Content is
	// empty; the accumulated text lives with the caller.
	StreamEventDone StreamEventType = "done"

	// StreamEventError reports a stream aborted by the provider.
	StreamEventError StreamEventType = "error"
)

// StreamEvent is one event delivered to a StreamCallback.
type StreamEvent struct {
	Type    StreamEventType
	Content string
	Err     error
}

// StreamCallback receives stream events in arrival order. Returning a
// non-nil error aborts the stream; the client stops reading and returns
// that error from ChatStream.
type StreamCallback func(StreamEvent) error

// LLMClient is the contract for chat-completion backends.
// Implementations must be safe for concurrent use; the gateway shares
// one client across all connections.
type LLMClient interface {
	// Chat runs a non-streaming completion over the message list and
	// returns the full assistant reply.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)

	// ChatStream runs a streaming completion, invoking callback for
	// each delta in arrival order, then once with StreamEventDone.
	// Provider failures surface as the returned error; no Done event
	// is delivered in that case.
	ChatStream(ctx context.Context, messages []Message, params GenerationParams,
		callback StreamCallback) error
}
