// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the gateway service.
//
// This file contains the persisted record types. For the WebSocket wire
// protocol, see wire.go.
package datatypes

import "time"

// Message roles for persisted chat messages.
const (
	MessageRoleUser = "user"
	MessageRoleAI   = "ai"
)

// Message is one persisted side of a chat turn.
//
// # Fields
//
//   - ID: Unique identifier (UUID v4), generated at save time when empty.
//   - UserID: Owner of the conversation. Both user and ai messages are
//     keyed by the human participant.
//   - Role: "user" or "ai".
//   - Content: The message text. For image-only turns this may be empty
//     on the user side.
//   - Emotion: Post-hoc emotion label attached to ai messages. Empty for
//     user messages.
//   - CreatedAt: Save timestamp, filled at save time when zero.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Emotion   string    `json:"emotion,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Activity is one diary-style activity record: where the user was, what
// they did, who they were with. The context lookup searches these.
type Activity struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Place     string    `json:"place"`
	Memo      string    `json:"memo"`
	Companion string    `json:"companion"`
	CreatedAt time.Time `json:"created_at"`
}

// User is an account record. Inactive accounts fail authentication even
// with a valid token.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Active   bool   `json:"active"`
}

// Profile is the persona state attached to a user: the affinity score
// that selects the persona band and an optional preferred reply style.
type Profile struct {
	UserID         string `json:"user_id"`
	AffinityScore  int    `json:"affinity_score"`
	PreferredStyle string `json:"preferred_style,omitempty"`
}

// DefaultProfile is the profile applied when a user has none persisted:
// affinity starts at zero, which maps to the lowest persona band.
func DefaultProfile(userID string) Profile {
	return Profile{UserID: userID, AffinityScore: 0}
}
