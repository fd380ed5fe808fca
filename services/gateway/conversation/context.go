// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package conversation supplies contextual memory for a chat turn.
//
// The persona prompt builder depends only on the narrow ContextLookup
// interface; the concrete implementation searches the user's persisted
// activity records by keyword. Context is strictly best-effort: lookup
// failures degrade to an empty block and never fail the turn.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/moodchat/moodchat/services/gateway/datatypes"
)

// maxContextResults caps how many activity records enter the prompt.
const maxContextResults = 10

// ContextLookup resolves a context block for a user turn. The returned
// string is either empty or a complete block ready to append to the
// system prompt.
type ContextLookup interface {
	Lookup(ctx context.Context, userID, query string) (string, error)
}

// ActivityLister is the slice of the store ActivitySearch needs.
type ActivityLister interface {
	ListActivities(ctx context.Context, userID string) ([]datatypes.Activity, error)
}

// ActivitySearch is a keyword search over the user's activity records.
// It splits the query into whitespace-delimited keywords, keeps unique
// tokens longer than one rune plus the whole trimmed message, and
// matches them as substrings against each record's memo, place, and
// companion fields.
type ActivitySearch struct {
	activities ActivityLister
	logger     *slog.Logger
}

// NewActivitySearch builds an ActivitySearch. A nil logger falls back
// to slog.Default.
func NewActivitySearch(activities ActivityLister, logger *slog.Logger) *ActivitySearch {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivitySearch{activities: activities, logger: logger}
}

// Lookup implements ContextLookup. The error return is always nil;
// store failures are logged and reported as an empty context so the
// turn proceeds without memory.
func (s *ActivitySearch) Lookup(ctx context.Context, userID, query string) (string, error) {
	keywords := extractKeywords(query)
	if len(keywords) == 0 {
		return "", nil
	}

	acts, err := s.activities.ListActivities(ctx, userID)
	if err != nil {
		s.logger.Warn("activity search failed, continuing without context",
			"user_id", userID, "error", err)
		return "", nil
	}

	// Records arrive newest first; keep that order in the prompt.
	var hits []datatypes.Activity
	for _, act := range acts {
		if matchesAny(act, keywords) {
			hits = append(hits, act)
			if len(hits) == maxContextResults {
				break
			}
		}
	}
	if len(hits) == 0 {
		return "", nil
	}
	return formatContext(hits), nil
}

// extractKeywords tokenizes the query: unique whitespace-split tokens
// longer than one rune, plus the whole trimmed message for phrase-level
// matches. Single-rune tokens are dropped as noise.
func extractKeywords(query string) []string {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var keywords []string
	add := func(k string) {
		if utf8.RuneCountInString(k) <= 1 {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keywords = append(keywords, k)
	}
	for _, tok := range strings.Fields(trimmed) {
		add(tok)
	}
	add(trimmed)
	return keywords
}

func matchesAny(act datatypes.Activity, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(act.Memo, k) ||
			strings.Contains(act.Place, k) ||
			strings.Contains(act.Companion, k) {
			return true
		}
	}
	return false
}

// formatContext renders the hits into the fixed memory block the
// persona prompt expects.
func formatContext(hits []datatypes.Activity) string {
	entries := make([]string, 0, len(hits))
	for _, act := range hits {
		date := "날짜 미상"
		if !act.CreatedAt.IsZero() {
			date = act.CreatedAt.Format("2006-01-02")
		}
		entries = append(entries, fmt.Sprintf(
			"'%s'의 기억(장소: %s, 동행: %s, 메모: %s)",
			date, orNA(act.Place), orNA(act.Companion), orNA(act.Memo)))
	}
	return "[관련 기억 검색 결과: " + strings.Join(entries, ", ") + "]"
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
