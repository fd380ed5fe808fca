// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package persona turns a user turn into a streamed character reply.
//
// The Assembler owns the whole reply pipeline for one connection: it
// builds the persona system prompt from the principal's affinity band,
// attaches retrieved memory context, drives the streaming completion,
// recovers the JSON envelope, and re-streams the extracted answer one
// character at a time. It has no persistence side effects; the gateway
// handler decides what to store.
package persona

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/moodchat/moodchat/services/gateway/conversation"
	"github.com/moodchat/moodchat/services/llm"
)

// UpstreamErrorText is the fixed client-facing sentence for completion
// failures. Raw provider errors never reach the wire.
const UpstreamErrorText = "서버 오류: AI 응답을 생성하지 못했어. 잠시 후 다시 시도해줘."

// imageDataURIPrefix wraps inline base64 payloads for the model API.
// JPEG is assumed when the client strips the MIME type.
const imageDataURIPrefix = "data:image/jpeg;base64,"

// Principal is the authenticated-user snapshot the Assembler is bound
// to for the lifetime of a connection. Affinity is read once at
// connection setup; mid-session score changes apply on reconnect.
type Principal struct {
	UserID   string
	Username string
	Affinity int
}

// Outcome classifies how a turn's answer was produced.
type Outcome string

const (
	// OutcomeAnswer is the happy path: envelope parsed (strictly or
	// after repair) and carried an answer.
	OutcomeAnswer Outcome = "answer"

	// OutcomeMissingField means the envelope parsed but had no answer
	// field; the streamed text is a fixed marker.
	OutcomeMissingField Outcome = "missing_field"

	// OutcomeParseFailed means the envelope was damaged beyond repair;
	// the client received the fixed failure sentence.
	OutcomeParseFailed Outcome = "parse_failed"

	// OutcomeUpstreamError means the completion call itself failed.
	OutcomeUpstreamError Outcome = "upstream_error"
)

// EventKind discriminates assembler emissions.
type EventKind int

const (
	// EventAnswerRune carries one character of the recovered answer.
	EventAnswerRune EventKind = iota

	// EventFailure carries a complete client-facing failure sentence,
	// emitted at most once per turn in place of the rune stream.
	EventFailure
)

// Event is one assembler emission.
type Event struct {
	Kind EventKind
	Text string
}

// Emit receives assembler events in order. A non-nil return aborts the
// turn; the assembler stops emitting and surfaces the error.
type Emit func(Event) error

// Turn is one inbound user turn, normalized by the gateway: the image
// payload is bare base64 and history is already in LLM wire form.
type Turn struct {
	Message     string
	ImageBase64 string
	History     []llm.Message
}

// Result summarizes a completed turn.
type Result struct {
	// Answer is the full recovered answer text, identical to the
	// concatenation of the emitted runes (or the failure sentence).
	Answer string

	// Explanation is the model's self-reported grounding, kept for
	// logs only.
	Explanation string

	// Outcome classifies the recovery path.
	Outcome Outcome
}

// Answered reports whether the turn produced a real model answer
// rather than a marker or failure sentence.
func (r Result) Answered() bool {
	return r.Outcome == OutcomeAnswer
}

// Assembler drives the reply pipeline for one authenticated
// connection.
type Assembler struct {
	client    llm.LLMClient
	lookup    conversation.ContextLookup
	principal Principal
	style     string
	logger    *slog.Logger
}

// NewAssembler binds the pipeline to a principal snapshot. The style
// string comes from the user's profile and may be empty. A nil logger
// falls back to slog.Default.
func NewAssembler(client llm.LLMClient, lookup conversation.ContextLookup,
	principal Principal, style string, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		client:    client,
		lookup:    lookup,
		principal: principal,
		style:     style,
		logger:    logger,
	}
}

// StreamAnswer runs one turn end to end: prompt assembly, streaming
// completion, envelope recovery, and rune-by-rune emission of the
// answer. The returned error is non-nil only when emit fails or the
// context is cancelled; completion and recovery failures are folded
// into the Result outcome after a failure event is delivered.
func (a *Assembler) StreamAnswer(ctx context.Context, turn Turn, emit Emit) (Result, error) {
	contextBlock := a.lookupContext(ctx, turn.Message)

	messages := a.buildMessages(turn, contextBlock)

	var envelope Envelope
	err := a.client.ChatStream(ctx, messages, llm.GenerationParams{JSONResponse: true},
		func(ev llm.StreamEvent) error {
			if ev.Type == llm.StreamEventToken {
				envelope.Append(ev.Content)
			}
			return nil
		})
	if err != nil {
		if ctx.Err() != nil {
			return Result{Outcome: OutcomeUpstreamError}, ctx.Err()
		}
		a.logger.Error("completion stream failed",
			"user_id", a.principal.UserID, "error", err)
		if emitErr := emit(Event{Kind: EventFailure, Text: UpstreamErrorText}); emitErr != nil {
			return Result{Outcome: OutcomeUpstreamError}, emitErr
		}
		return Result{Answer: UpstreamErrorText, Outcome: OutcomeUpstreamError}, nil
	}
	envelope.Freeze()

	parsed := ParseAnswer(envelope.String())
	result := Result{
		Answer:      parsed.Answer,
		Explanation: parsed.Explanation,
		Outcome:     outcomeFor(parsed),
	}

	if parsed.State == ParseFailed {
		a.logger.Error("envelope unrecoverable",
			"user_id", a.principal.UserID, "envelope_bytes", len(envelope.String()))
		if emitErr := emit(Event{Kind: EventFailure, Text: parsed.Answer}); emitErr != nil {
			return result, emitErr
		}
		return result, nil
	}

	if parsed.State == ParseRepaired {
		a.logger.Warn("envelope repaired with closing brace",
			"user_id", a.principal.UserID)
	}
	if !parsed.AnswerPresent {
		a.logger.Warn("envelope parsed without answer field",
			"user_id", a.principal.UserID, "state", parsed.State.String())
	}

	for _, r := range parsed.Answer {
		if emitErr := emit(Event{Kind: EventAnswerRune, Text: string(r)}); emitErr != nil {
			return result, fmt.Errorf("answer stream aborted: %w", emitErr)
		}
	}
	return result, nil
}

// lookupContext is best-effort: any lookup failure degrades to an
// empty block so the turn proceeds without memory.
func (a *Assembler) lookupContext(ctx context.Context, message string) string {
	if a.lookup == nil {
		return ""
	}
	block, err := a.lookup.Lookup(ctx, a.principal.UserID, message)
	if err != nil {
		a.logger.Warn("context lookup failed, continuing without context",
			"user_id", a.principal.UserID, "error", err)
		return ""
	}
	return block
}

// buildMessages assembles the completion message list: the system turn
// first, the client-replayed history in order, then the current user
// turn last, as multimodal parts when an image is attached.
func (a *Assembler) buildMessages(turn Turn, contextBlock string) []llm.Message {
	system := BuildSystemPrompt(a.principal.Username, a.principal.Affinity, a.style, contextBlock)

	messages := make([]llm.Message, 0, len(turn.History)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	messages = append(messages, turn.History...)

	if turn.ImageBase64 == "" {
		return append(messages, llm.Message{Role: llm.RoleUser, Content: turn.Message})
	}
	return append(messages, llm.Message{
		Role: llm.RoleUser,
		Parts: []llm.MessagePart{
			{Type: llm.PartTypeImageURL, ImageURL: imageDataURIPrefix + turn.ImageBase64},
			{Type: llm.PartTypeText, Text: turn.Message},
		},
	})
}

func outcomeFor(parsed ParsedAnswer) Outcome {
	switch {
	case parsed.State == ParseFailed:
		return OutcomeParseFailed
	case !parsed.AnswerPresent:
		return OutcomeMissingField
	default:
		return OutcomeAnswer
	}
}
