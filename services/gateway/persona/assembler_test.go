// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package persona

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodchat/moodchat/services/llm"
)

// scriptedClient replays a fixed delta sequence through ChatStream and
// captures the request for assertions.
type scriptedClient struct {
	deltas    []string
	streamErr error
	gotMsgs   []llm.Message
	gotParams llm.GenerationParams
}

func (c *scriptedClient) Chat(context.Context, []llm.Message, llm.GenerationParams) (string, error) {
	return "", fmt.Errorf("not used")
}

func (c *scriptedClient) ChatStream(_ context.Context, messages []llm.Message,
	params llm.GenerationParams, callback llm.StreamCallback) error {
	c.gotMsgs = messages
	c.gotParams = params
	if c.streamErr != nil {
		return c.streamErr
	}
	for _, d := range c.deltas {
		if err := callback(llm.StreamEvent{Type: llm.StreamEventToken, Content: d}); err != nil {
			return err
		}
	}
	return callback(llm.StreamEvent{Type: llm.StreamEventDone})
}

type staticLookup struct {
	block string
	err   error
}

func (s *staticLookup) Lookup(context.Context, string, string) (string, error) {
	return s.block, s.err
}

func collectEvents(events *[]Event) Emit {
	return func(ev Event) error {
		*events = append(*events, ev)
		return nil
	}
}

func testPrincipal() Principal {
	return Principal{UserID: "u1", Username: "지민", Affinity: 50}
}

func TestStreamAnswerEmitsAnswerRuneByRune(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{deltas: []string{
		`{"answer":"안녕`, `, 지민!","explanation":"인사"}`,
	}}
	a := NewAssembler(client, &staticLookup{}, testPrincipal(), "", nil)

	var events []Event
	result, err := a.StreamAnswer(context.Background(), Turn{Message: "안녕"}, collectEvents(&events))
	require.NoError(t, err)

	assert.Equal(t, OutcomeAnswer, result.Outcome)
	assert.True(t, result.Answered())
	assert.Equal(t, "안녕, 지민!", result.Answer)
	assert.Equal(t, "인사", result.Explanation)

	// Every event is a single rune and their concatenation equals the
	// recovered answer exactly.
	var rebuilt strings.Builder
	for _, ev := range events {
		require.Equal(t, EventAnswerRune, ev.Kind)
		require.Equal(t, 1, utf8.RuneCountInString(ev.Text))
		rebuilt.WriteString(ev.Text)
	}
	assert.Equal(t, result.Answer, rebuilt.String())
}

func TestStreamAnswerRequestsJSONResponse(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{deltas: []string{`{"answer":"x","explanation":"y"}`}}
	a := NewAssembler(client, &staticLookup{}, testPrincipal(), "", nil)

	_, err := a.StreamAnswer(context.Background(), Turn{Message: "hi"},
		func(Event) error { return nil })
	require.NoError(t, err)
	assert.True(t, client.gotParams.JSONResponse)
}

func TestStreamAnswerMessageOrder(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{deltas: []string{`{"answer":"x","explanation":"y"}`}}
	a := NewAssembler(client, &staticLookup{block: "[관련 기억 검색 결과: 테스트]"},
		testPrincipal(), "", nil)

	history := []llm.Message{
		{Role: llm.RoleUser, Content: "이전 질문"},
		{Role: llm.RoleAssistant, Content: "이전 답변"},
	}
	_, err := a.StreamAnswer(context.Background(),
		Turn{Message: "지금 질문", History: history},
		func(Event) error { return nil })
	require.NoError(t, err)

	require.Len(t, client.gotMsgs, 4)
	assert.Equal(t, llm.RoleSystem, client.gotMsgs[0].Role)
	assert.Contains(t, client.gotMsgs[0].Content, "[관련 기억 검색 결과: 테스트]")
	assert.Equal(t, "이전 질문", client.gotMsgs[1].Content)
	assert.Equal(t, "이전 답변", client.gotMsgs[2].Content)
	assert.Equal(t, "지금 질문", client.gotMsgs[3].Content)
}

func TestStreamAnswerImageTurnUsesParts(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{deltas: []string{`{"answer":"x","explanation":"y"}`}}
	a := NewAssembler(client, &staticLookup{}, testPrincipal(), "", nil)

	_, err := a.StreamAnswer(context.Background(),
		Turn{Message: "이거 봐", ImageBase64: "AAAA"},
		func(Event) error { return nil })
	require.NoError(t, err)

	user := client.gotMsgs[len(client.gotMsgs)-1]
	require.Len(t, user.Parts, 2)
	assert.Equal(t, llm.PartTypeImageURL, user.Parts[0].Type)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", user.Parts[0].ImageURL)
	assert.Equal(t, llm.PartTypeText, user.Parts[1].Type)
	assert.Equal(t, "이거 봐", user.Parts[1].Text)
}

func TestStreamAnswerUpstreamErrorEmitsSingleFailure(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{streamErr: fmt.Errorf("connection refused")}
	a := NewAssembler(client, &staticLookup{}, testPrincipal(), "", nil)

	var events []Event
	result, err := a.StreamAnswer(context.Background(), Turn{Message: "hi"}, collectEvents(&events))
	require.NoError(t, err)

	assert.Equal(t, OutcomeUpstreamError, result.Outcome)
	require.Len(t, events, 1)
	assert.Equal(t, EventFailure, events[0].Kind)
	assert.Equal(t, UpstreamErrorText, events[0].Text)
	// The raw provider error must not leak to the wire.
	assert.NotContains(t, events[0].Text, "connection refused")
}

func TestStreamAnswerUnrecoverableEnvelopeEmitsSentinel(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{deltas: []string{"이건 JSON이 아니야"}}
	a := NewAssembler(client, &staticLookup{}, testPrincipal(), "", nil)

	var events []Event
	result, err := a.StreamAnswer(context.Background(), Turn{Message: "hi"}, collectEvents(&events))
	require.NoError(t, err)

	assert.Equal(t, OutcomeParseFailed, result.Outcome)
	assert.False(t, result.Answered())
	require.Len(t, events, 1)
	assert.Equal(t, EventFailure, events[0].Kind)
	assert.Equal(t, AnswerParseFailed, events[0].Text)
}

func TestStreamAnswerRepairedEnvelopeStillStreams(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{deltas: []string{`{"answer":"hi","explanation":"x"`}}
	a := NewAssembler(client, &staticLookup{}, testPrincipal(), "", nil)

	var events []Event
	result, err := a.StreamAnswer(context.Background(), Turn{Message: "hi"}, collectEvents(&events))
	require.NoError(t, err)

	assert.Equal(t, OutcomeAnswer, result.Outcome)
	assert.Equal(t, "hi", result.Answer)
	assert.Len(t, events, 2)
}

func TestStreamAnswerMissingFieldStreamsMarker(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{deltas: []string{`{"explanation":"only"}`}}
	a := NewAssembler(client, &staticLookup{}, testPrincipal(), "", nil)

	var events []Event
	result, err := a.StreamAnswer(context.Background(), Turn{Message: "hi"}, collectEvents(&events))
	require.NoError(t, err)

	assert.Equal(t, OutcomeMissingField, result.Outcome)
	var rebuilt strings.Builder
	for _, ev := range events {
		require.Equal(t, EventAnswerRune, ev.Kind)
		rebuilt.WriteString(ev.Text)
	}
	assert.Equal(t, AnswerMissingStrict, rebuilt.String())
}

func TestStreamAnswerLookupErrorDegradesToNoContext(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{deltas: []string{`{"answer":"x","explanation":"y"}`}}
	a := NewAssembler(client, &staticLookup{err: fmt.Errorf("search down")},
		testPrincipal(), "", nil)

	result, err := a.StreamAnswer(context.Background(), Turn{Message: "hi"},
		func(Event) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnswer, result.Outcome)
	assert.NotContains(t, client.gotMsgs[0].Content, "기억 컨텍스트")
}

func TestStreamAnswerEmitErrorAbortsRuneStream(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{deltas: []string{`{"answer":"안녕하세요","explanation":"x"}`}}
	a := NewAssembler(client, &staticLookup{}, testPrincipal(), "", nil)

	gone := fmt.Errorf("peer closed")
	var emitted int
	_, err := a.StreamAnswer(context.Background(), Turn{Message: "hi"},
		func(Event) error {
			emitted++
			if emitted == 2 {
				return gone
			}
			return nil
		})
	assert.ErrorIs(t, err, gone)
	assert.Equal(t, 2, emitted)
}
