// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package persona

import (
	"encoding/json"
	"strings"
)

// Fixed answer strings for envelope recovery outcomes. Clients key off
// these exact values, so they never change with the locale.
const (
	// AnswerMissingStrict replaces the answer when the envelope parsed
	// cleanly but carried no answer field.
	AnswerMissingStrict = "JSON Format Error: Answer not found."

	// AnswerMissingRepaired replaces the answer when the envelope only
	// parsed after repair and carried no answer field.
	AnswerMissingRepaired = "JSON Repair Failed: Answer not found."

	// AnswerParseFailed is sent when the envelope is damaged beyond the
	// single-repair budget.
	AnswerParseFailed = "서버 오류: AI 응답 형식이 심각하게 손상되었습니다."
)

// ParseState reports how the envelope was recovered.
type ParseState int

const (
	// ParseStrict means the envelope parsed as-is (after fence trim).
	ParseStrict ParseState = iota

	// ParseRepaired means the envelope parsed after appending one
	// closing brace.
	ParseRepaired

	// ParseFailed means both the strict and repaired parse failed.
	ParseFailed
)

func (s ParseState) String() string {
	switch s {
	case ParseStrict:
		return "strict"
	case ParseRepaired:
		return "repaired"
	default:
		return "failed"
	}
}

// Envelope accumulates the raw completion stream. Deltas are appended
// in arrival order and never reordered or dropped; Freeze marks the end
// of the stream, after which Append panics (an append after freeze is a
// pipeline ordering bug, not a runtime condition).
type Envelope struct {
	buf    strings.Builder
	frozen bool
}

// Append adds one stream delta.
func (e *Envelope) Append(delta string) {
	if e.frozen {
		panic("persona: append to frozen envelope")
	}
	e.buf.WriteString(delta)
}

// Freeze marks the stream as complete. Idempotent.
func (e *Envelope) Freeze() {
	e.frozen = true
}

// String returns the accumulated text.
func (e *Envelope) String() string {
	return e.buf.String()
}

// ParsedAnswer is the outcome of envelope recovery. Answer is always
// populated: with the model's answer, a missing-field marker, or the
// parse-failure sentinel.
type ParsedAnswer struct {
	Answer        string
	Explanation   string
	State         ParseState
	AnswerPresent bool
}

// envelopeBody is the expected model output shape. Answer is a pointer
// so a present-but-empty field is distinguishable from a missing one.
type envelopeBody struct {
	Answer      *string `json:"answer"`
	Explanation string  `json:"explanation"`
}

// ParseAnswer runs the three-state recovery over the frozen envelope
// text: trim markdown code fences, attempt a strict parse, then exactly
// one repair (append a closing brace only when the text does not
// already end with one), then give up with the fixed sentinel. The
// repair budget is deliberately a single brace; anything worse is
// treated as catastrophic rather than guessed at.
func ParseAnswer(raw string) ParsedAnswer {
	cleaned := trimCodeFence(raw)

	var body envelopeBody
	if err := json.Unmarshal([]byte(cleaned), &body); err == nil {
		return resolved(body, ParseStrict, AnswerMissingStrict)
	}

	repaired := cleaned
	if !strings.HasSuffix(repaired, "}") {
		repaired += "}"
	}
	if err := json.Unmarshal([]byte(repaired), &body); err == nil {
		return resolved(body, ParseRepaired, AnswerMissingRepaired)
	}

	return ParsedAnswer{Answer: AnswerParseFailed, State: ParseFailed}
}

func resolved(body envelopeBody, state ParseState, missingMarker string) ParsedAnswer {
	if body.Answer == nil {
		return ParsedAnswer{Answer: missingMarker, Explanation: body.Explanation, State: state}
	}
	return ParsedAnswer{
		Answer:        *body.Answer,
		Explanation:   body.Explanation,
		State:         state,
		AnswerPresent: true,
	}
}

// trimCodeFence removes a ```json ... ``` wrapper some models emit
// despite the JSON-only response format.
func trimCodeFence(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	return cleaned
}
