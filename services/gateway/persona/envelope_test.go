// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAnswerStrict(t *testing.T) {
	t.Parallel()

	got := ParseAnswer(`{"answer":"안녕!","explanation":"인사"}`)
	assert.Equal(t, ParseStrict, got.State)
	assert.True(t, got.AnswerPresent)
	assert.Equal(t, "안녕!", got.Answer)
	assert.Equal(t, "인사", got.Explanation)
}

func TestParseAnswerTrimsCodeFence(t *testing.T) {
	t.Parallel()

	raw := "```json\n{\"answer\":\"hi\",\"explanation\":\"x\"}\n```"
	got := ParseAnswer(raw)
	assert.Equal(t, ParseStrict, got.State)
	assert.Equal(t, "hi", got.Answer)
}

func TestParseAnswerRepairsMissingBrace(t *testing.T) {
	t.Parallel()

	got := ParseAnswer(`{"answer":"hi","explanation":"x"`)
	assert.Equal(t, ParseRepaired, got.State)
	assert.True(t, got.AnswerPresent)
	assert.Equal(t, "hi", got.Answer)
}

func TestParseAnswerRepairAddsAtMostOneBrace(t *testing.T) {
	t.Parallel()

	// Already ends with a brace, so the repair pass re-parses the same
	// text and must not append another.
	got := ParseAnswer(`{"answer":"hi","explanation":}`)
	assert.Equal(t, ParseFailed, got.State)
	assert.Equal(t, AnswerParseFailed, got.Answer)
}

func TestParseAnswerUnrecoverableReturnsSentinel(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"",
		"완전히 JSON이 아닌 텍스트",
		`{"answer": "미완성`,
		`{{"answer":"x"}`,
	} {
		got := ParseAnswer(raw)
		assert.Equal(t, ParseFailed, got.State, "input %q", raw)
		assert.Equal(t, AnswerParseFailed, got.Answer, "input %q", raw)
		assert.False(t, got.AnswerPresent)
	}
}

func TestParseAnswerMissingFieldMarkers(t *testing.T) {
	t.Parallel()

	got := ParseAnswer(`{"explanation":"only"}`)
	assert.Equal(t, ParseStrict, got.State)
	assert.False(t, got.AnswerPresent)
	assert.Equal(t, AnswerMissingStrict, got.Answer)

	got = ParseAnswer(`{"explanation":"only"`)
	assert.Equal(t, ParseRepaired, got.State)
	assert.False(t, got.AnswerPresent)
	assert.Equal(t, AnswerMissingRepaired, got.Answer)
}

func TestParseAnswerEmptyStringAnswerIsPresent(t *testing.T) {
	t.Parallel()

	// An explicit empty answer is distinct from a missing field.
	got := ParseAnswer(`{"answer":"","explanation":"x"}`)
	assert.Equal(t, ParseStrict, got.State)
	assert.True(t, got.AnswerPresent)
	assert.Empty(t, got.Answer)
}

func TestEnvelopeAccumulatesInOrder(t *testing.T) {
	t.Parallel()

	var e Envelope
	for _, delta := range []string{`{"ans`, `wer":"안`, `녕"}`} {
		e.Append(delta)
	}
	e.Freeze()
	assert.Equal(t, `{"answer":"안녕"}`, e.String())
}

func TestEnvelopeAppendAfterFreezePanics(t *testing.T) {
	t.Parallel()

	var e Envelope
	e.Append("x")
	e.Freeze()
	assert.Panics(t, func() { e.Append("y") })
}
