// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package emotion classifies finished reply text into one of seven
// emotion labels.
//
// Classification is post-hoc and advisory: it runs after the answer has
// been streamed and persisted, and it must never fail the turn.
// Classify therefore returns a label unconditionally; every failure
// mode collapses to the neutral default.
package emotion

import (
	"context"
	"log/slog"
	"strings"
)

// Label is one of the seven emotion categories. The zero value is not
// valid; use DefaultLabel for fallbacks.
type Label struct {
	// ID is the stable numeric identifier (0-6) used in the scoring
	// prompt and for deterministic tie-breaking.
	ID int

	// Name is the English wire label emitted in message_complete events.
	Name string

	// Korean is the label name used in the scoring prompt.
	Korean string
}

// The seven labels, in id order.
var (
	LabelFear      = Label{ID: 0, Name: "fear", Korean: "공포"}
	LabelSurprise  = Label{ID: 1, Name: "surprise", Korean: "놀람"}
	LabelAnger     = Label{ID: 2, Name: "anger", Korean: "분노"}
	LabelSadness   = Label{ID: 3, Name: "sadness", Korean: "슬픔"}
	LabelNeutral   = Label{ID: 4, Name: "neutral", Korean: "중립"}
	LabelHappiness = Label{ID: 5, Name: "happiness", Korean: "행복"}
	LabelDisgust   = Label{ID: 6, Name: "disgust", Korean: "혐오"}
)

// Labels lists all categories in id order.
var Labels = []Label{
	LabelFear, LabelSurprise, LabelAnger, LabelSadness,
	LabelNeutral, LabelHappiness, LabelDisgust,
}

// DefaultLabel is the fallback for blank input and every error path.
var DefaultLabel = LabelNeutral

// labelByID resolves an id to its Label. Unknown ids resolve to the
// default.
func labelByID(id int) Label {
	if id < 0 || id >= len(Labels) {
		return DefaultLabel
	}
	return Labels[id]
}

// LabelScore is one scored category from a Scorer.
type LabelScore struct {
	LabelID int     `json:"label,string"`
	Score   float64 `json:"score"`
}

// Scorer produces a score per emotion category for a piece of text.
// Implementations may return fewer than seven entries; missing
// categories score zero.
type Scorer interface {
	Score(ctx context.Context, text string) ([]LabelScore, error)
}

// Classifier turns scorer output into a single label.
type Classifier struct {
	scorer Scorer
	logger *slog.Logger
}

// NewClassifier builds a Classifier. A nil logger falls back to
// slog.Default.
func NewClassifier(scorer Scorer, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{scorer: scorer, logger: logger}
}

// Classify returns the dominant emotion label for text. Blank text
// short-circuits to the default without invoking the scorer. Scorer
// failures and empty score lists also yield the default. Ties break
// toward the lower label id so the result is deterministic.
func (c *Classifier) Classify(ctx context.Context, text string) Label {
	if strings.TrimSpace(text) == "" {
		return DefaultLabel
	}

	scores, err := c.scorer.Score(ctx, text)
	if err != nil {
		c.logger.Warn("emotion scoring failed, using default label",
			"label", DefaultLabel.Name, "error", err)
		return DefaultLabel
	}
	if len(scores) == 0 {
		return DefaultLabel
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score || (s.Score == best.Score && s.LabelID < best.LabelID) {
			best = s
		}
	}
	return labelByID(best.LabelID)
}
