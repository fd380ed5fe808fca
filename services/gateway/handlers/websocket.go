// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/moodchat/moodchat/pkg/auth"
	"github.com/moodchat/moodchat/services/gateway/conversation"
	"github.com/moodchat/moodchat/services/gateway/datatypes"
	"github.com/moodchat/moodchat/services/gateway/emotion"
	"github.com/moodchat/moodchat/services/gateway/observability"
	"github.com/moodchat/moodchat/services/gateway/persona"
	"github.com/moodchat/moodchat/services/llm"
)

// closeCodeAuthFailed is the WebSocket close code sent when token
// validation fails. Clients key off this exact code to trigger
// re-login instead of a reconnect loop.
const closeCodeAuthFailed = 4000

// Client-facing error sentences. Raw internal errors never reach the
// wire.
const (
	errInvalidFormat = "Invalid message format."
	errTurnFailed    = "메시지 처리 중 오류가 발생했어. 다시 시도해줘."
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	// Generous buffers: inbound turns may carry base64 images.
	ReadBufferSize:  10 * 1024 * 1024,
	WriteBufferSize: 10 * 1024 * 1024,
}

// MessageStore is the persistence slice the gateway needs per turn.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg datatypes.Message) error
	ListMessages(ctx context.Context, userID string, limit int) ([]datatypes.Message, error)
}

// ProfileStore loads the persona profile at connection setup.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (datatypes.Profile, error)
}

// Gateway bundles the collaborators of the chat WebSocket endpoint.
type Gateway struct {
	Auth       auth.AuthProvider
	LLM        llm.LLMClient
	Lookup     conversation.ContextLookup
	Messages   MessageStore
	Profiles   ProfileStore
	Classifier *emotion.Classifier
	Metrics    *observability.GatewayMetrics
	Logger     *slog.Logger
}

func (g *Gateway) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

func sendJSON(ws *websocket.Conn, v any) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleChatWebSocket is the session gateway: it upgrades the
// connection, authenticates the token query parameter, binds a persona
// assembler to the principal, and then processes turns strictly one at
// a time until the client disconnects.
//
// Authentication failures are fatal to the connection (close code
// 4000 before any turn traffic). Everything after authentication is
// recovered per turn: a failed or even panicking turn ends with the
// fail-safe terminal event and the connection stays open.
func (g *Gateway) HandleChatWebSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			g.logger().Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		principal, ok := g.authenticate(c, ws)
		if !ok {
			return
		}

		if g.Metrics != nil {
			g.Metrics.RecordSession(true)
			g.Metrics.SessionOpened()
			defer g.Metrics.SessionClosed()
		}

		// Load the profile once; the affinity band is fixed for the
		// lifetime of the connection.
		profile := g.loadProfile(c.Request.Context(), principal.UserID)
		assembler := persona.NewAssembler(g.LLM, g.Lookup, persona.Principal{
			UserID:   principal.UserID,
			Username: principal.Username,
			Affinity: profile.AffinityScore,
		}, profile.PreferredStyle, g.logger())

		g.logger().Info("websocket session started",
			"user_id", principal.UserID, "affinity", profile.AffinityScore)

		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				g.logger().Info("websocket client disconnected",
					"user_id", principal.UserID, "error", err.Error())
				return
			}
			g.handleTurn(c.Request.Context(), ws, assembler, principal, raw)
		}
	}
}

// authenticate validates the token query parameter. On failure the
// connection is closed with the auth-reject code before any turn
// traffic.
func (g *Gateway) authenticate(c *gin.Context, ws *websocket.Conn) (*auth.Principal, bool) {
	token := c.Query("token")
	principal, err := g.Auth.Validate(c.Request.Context(), token)
	if err != nil {
		g.logger().Warn("websocket authentication failed", "error", err)
		if g.Metrics != nil {
			g.Metrics.RecordSession(false)
			g.Metrics.RecordError(observability.StageAuth)
		}
		deadline := time.Now().Add(time.Second)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeCodeAuthFailed, "authentication failed"),
			deadline)
		return nil, false
	}
	return principal, true
}

// loadProfile falls back to the zero-score default when the store
// fails; a missing profile is already the default at the store layer.
func (g *Gateway) loadProfile(ctx context.Context, userID string) datatypes.Profile {
	profile, err := g.Profiles.GetProfile(ctx, userID)
	if err != nil {
		g.logger().Warn("profile load failed, using default persona band",
			"user_id", userID, "error", err)
		return datatypes.DefaultProfile(userID)
	}
	return profile
}

// handleTurn processes one inbound frame end to end. Once a turn is
// accepted (decoded and validated), exactly one message_complete event
// is sent, always last, whatever happens in between. Panics are
// recovered here so one broken turn cannot take down the session.
func (g *Gateway) handleTurn(ctx context.Context, ws *websocket.Conn,
	assembler *persona.Assembler, principal *auth.Principal, raw []byte) {

	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			g.logger().Error("panic in turn processing",
				"user_id", principal.UserID, "panic", r, "stack", string(debug.Stack()))
			g.recordTurn("panic", start)
			_ = sendJSON(ws, datatypes.NewErrorEvent(errTurnFailed))
			_ = sendJSON(ws, datatypes.NewMessageCompleteEvent(emotion.DefaultLabel.Name))
		}
	}()

	var req datatypes.TurnRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		g.rejectTurn(ws, start, "invalid frame", err)
		return
	}
	if err := req.Validate(); err != nil {
		g.rejectTurn(ws, start, "invalid turn request", err)
		return
	}

	// The turn context dies with the turn: a disconnect mid-stream
	// surfaces as an emit failure, and the cancel tears down the
	// in-flight completion request.
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The user's side of the turn is persisted before the model is
	// invoked, so the transcript survives completion failures.
	userMsg := datatypes.Message{
		UserID:  principal.UserID,
		Role:    datatypes.MessageRoleUser,
		Content: req.Message,
	}
	if err := g.Messages.SaveMessage(turnCtx, userMsg); err != nil {
		g.logger().Error("failed to persist user message",
			"user_id", principal.UserID, "error", err)
		if g.Metrics != nil {
			g.Metrics.RecordError(observability.StagePersist)
		}
		g.recordTurn("persist_failed", start)
		_ = sendJSON(ws, datatypes.NewErrorEvent(errTurnFailed))
		_ = sendJSON(ws, datatypes.NewMessageCompleteEvent(emotion.DefaultLabel.Name))
		return
	}

	turn := persona.Turn{
		Message:     req.Message,
		ImageBase64: req.Image(),
		History:     toLLMHistory(req.History),
	}

	// Both answer runes and failure sentences travel as chat_message
	// events; the client renders whatever arrives.
	result, err := assembler.StreamAnswer(turnCtx, turn, func(ev persona.Event) error {
		return ws.WriteJSON(datatypes.NewChatMessageEvent(ev.Text))
	})
	if err != nil {
		// The socket is gone or the context died; attempt the terminal
		// event anyway and let the read loop observe the close.
		g.logger().Warn("answer stream aborted",
			"user_id", principal.UserID, "error", err)
		if g.Metrics != nil {
			g.Metrics.RecordError(observability.StageSend)
		}
		g.recordTurn("aborted", start)
		_ = sendJSON(ws, datatypes.NewMessageCompleteEvent(emotion.DefaultLabel.Name))
		return
	}
	if result.Outcome == persona.OutcomeUpstreamError && g.Metrics != nil {
		g.Metrics.RecordError(observability.StageLLM)
	}

	label := g.persistAndClassify(turnCtx, principal.UserID, result)

	g.recordTurn(string(result.Outcome), start)
	if g.Metrics != nil {
		g.Metrics.RecordEmotion(label.Name)
	}
	_ = sendJSON(ws, datatypes.NewMessageCompleteEvent(label.Name))
}

// persistAndClassify stores the assistant side of the turn and derives
// the terminal emotion label. Only real answers are persisted and
// classified; marker and failure texts are server artifacts, not the
// character speaking, so they stay out of the transcript and take the
// default label. An empty answer is skipped with a warning but still
// completes the turn.
func (g *Gateway) persistAndClassify(ctx context.Context, userID string,
	result persona.Result) emotion.Label {

	if !result.Answered() {
		return emotion.DefaultLabel
	}
	if strings.TrimSpace(result.Answer) == "" {
		g.logger().Warn("model produced an empty answer, skipping persistence",
			"user_id", userID)
		return emotion.DefaultLabel
	}

	// Persist before classification: the transcript must not depend on
	// the classifier being reachable.
	aiMsg := datatypes.Message{
		UserID:  userID,
		Role:    datatypes.MessageRoleAI,
		Content: result.Answer,
	}
	if err := g.Messages.SaveMessage(ctx, aiMsg); err != nil {
		g.logger().Error("failed to persist assistant message",
			"user_id", userID, "error", err)
		if g.Metrics != nil {
			g.Metrics.RecordError(observability.StagePersist)
		}
	}

	return g.Classifier.Classify(ctx, result.Answer)
}

func (g *Gateway) rejectTurn(ws *websocket.Conn, start time.Time, reason string, err error) {
	g.logger().Warn(reason, "error", err)
	if g.Metrics != nil {
		g.Metrics.RecordError(observability.StageDecode)
	}
	g.recordTurn("invalid", start)
	_ = sendJSON(ws, datatypes.NewErrorEvent(errInvalidFormat))
}

func (g *Gateway) recordTurn(outcome string, start time.Time) {
	if g.Metrics != nil {
		g.Metrics.RecordTurn(outcome, time.Since(start).Seconds())
	}
}

// toLLMHistory converts replayed client history to the completion wire
// form, preserving order.
func toLLMHistory(history []datatypes.HistoryTurn) []llm.Message {
	if len(history) == 0 {
		return nil
	}
	out := make([]llm.Message, 0, len(history))
	for _, h := range history {
		out = append(out, llm.Message{Role: h.Role, Content: h.Content})
	}
	return out
}
