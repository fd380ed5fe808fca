// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/moodchat/moodchat/services/gateway/datatypes"
	"github.com/moodchat/moodchat/services/gateway/middleware"
)

// defaultHistoryLimit bounds unqualified history queries.
const defaultHistoryLimit = 50

// maxHistoryLimit is the hard cap on a single history page.
const maxHistoryLimit = 500

// MessagesResponse is the REST history payload.
type MessagesResponse struct {
	Messages []datatypes.Message `json:"messages"`
	Count    int                 `json:"count"`
}

// HandleListMessages returns the authenticated user's persisted chat
// history, newest first. Runs behind AuthMiddleware; the principal
// scopes the query, so users can only read their own transcript.
func HandleListMessages(store MessageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := middleware.GetPrincipal(c)
		if principal == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := defaultHistoryLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}

		messages, err := store.ListMessages(c.Request.Context(), principal.UserID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
			return
		}
		if messages == nil {
			messages = []datatypes.Message{}
		}
		c.JSON(http.StatusOK, MessagesResponse{Messages: messages, Count: len(messages)})
	}
}
