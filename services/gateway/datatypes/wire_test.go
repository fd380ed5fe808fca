// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnRequestValidateAcceptsTextTurn(t *testing.T) {
	t.Parallel()

	req := TurnRequest{Type: EventTypeChatMessage, Message: "안녕"}
	assert.NoError(t, req.Validate())
}

func TestTurnRequestValidateAcceptsImageOnlyTurn(t *testing.T) {
	t.Parallel()

	req := TurnRequest{Type: EventTypeChatMessage, ImageBase64: "AAAA"}
	assert.NoError(t, req.Validate())
}

func TestTurnRequestValidateRejectsWrongType(t *testing.T) {
	t.Parallel()

	req := TurnRequest{Type: "ping", Message: "hi"}
	assert.Error(t, req.Validate())
}

func TestTurnRequestValidateRejectsEmptyTurn(t *testing.T) {
	t.Parallel()

	req := TurnRequest{Type: EventTypeChatMessage, Message: "   "}
	assert.ErrorIs(t, req.Validate(), ErrEmptyTurn)
}

func TestTurnRequestValidateRejectsOversizedMessage(t *testing.T) {
	t.Parallel()

	req := TurnRequest{
		Type:    EventTypeChatMessage,
		Message: strings.Repeat("a", MaxMessageContentBytes+1),
	}
	assert.Error(t, req.Validate())
}

func TestTurnRequestValidateRejectsBadHistoryRole(t *testing.T) {
	t.Parallel()

	req := TurnRequest{
		Type:    EventTypeChatMessage,
		Message: "hi",
		History: []HistoryTurn{{Role: "ai", Content: "x"}},
	}
	assert.Error(t, req.Validate())
}

func TestTurnRequestMissingHistoryDecodesEmpty(t *testing.T) {
	t.Parallel()

	var req TurnRequest
	require.NoError(t, json.Unmarshal([]byte(`{"type":"chat_message","message":"hi"}`), &req))
	require.NoError(t, req.Validate())
	assert.Empty(t, req.History)
}

func TestImageStripsMIMEPrefix(t *testing.T) {
	t.Parallel()

	req := TurnRequest{ImageBase64: "data:image/jpeg;base64,AAAABBBB"}
	assert.Equal(t, "AAAABBBB", req.Image())
}

func TestImagePassesBarePayloadThrough(t *testing.T) {
	t.Parallel()

	req := TurnRequest{ImageBase64: "AAAABBBB"}
	assert.Equal(t, "AAAABBBB", req.Image())
}

func TestOutboundEventWireShapes(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(NewChatMessageEvent("안"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"chat_message","message":"안"}`, string(raw))

	raw, err = json.Marshal(NewMessageCompleteEvent("happiness"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message_complete","emotion":"happiness"}`, string(raw))

	raw, err = json.Marshal(NewErrorEvent("bad turn"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","message":"bad turn"}`, string(raw))
}
