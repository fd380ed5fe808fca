// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package emotion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/moodchat/moodchat/services/llm"
)

// scorerTemperature keeps the scoring pass near-deterministic.
const scorerTemperature float32 = 0.2

// scorerSystemPrompt frames the model as a Korean emotion analyst.
const scorerSystemPrompt = "당신은 한국어 감정 분석 전문가입니다."

// LLMScorer asks a chat-completion model to score each of the seven
// emotion categories for a sentence and parses the JSON array out of
// the reply.
type LLMScorer struct {
	client llm.LLMClient
}

// NewLLMScorer builds a scorer over any LLMClient.
func NewLLMScorer(client llm.LLMClient) *LLMScorer {
	return &LLMScorer{client: client}
}

// Score implements Scorer.
func (s *LLMScorer) Score(ctx context.Context, text string) ([]LabelScore, error) {
	temp := scorerTemperature
	reply, err := s.client.Chat(ctx,
		[]llm.Message{
			{Role: llm.RoleSystem, Content: scorerSystemPrompt},
			{Role: llm.RoleUser, Content: buildScoringPrompt(text)},
		},
		llm.GenerationParams{Temperature: &temp})
	if err != nil {
		return nil, fmt.Errorf("emotion scoring request failed: %w", err)
	}
	return parseScores(reply)
}

// buildScoringPrompt asks for a score per category as a JSON array. The
// category ids and Korean names are fixed; the example pins the output
// shape.
func buildScoringPrompt(text string) string {
	var b strings.Builder
	b.WriteString("아래 문장의 감정을 각각의 점수(0~1)로 평가하세요.\n")
	b.WriteString("가능한 감정은 다음 7가지입니다:\n")
	for i, label := range Labels {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d: %s", label.ID, label.Korean)
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "문장: %q\n\n", text)
	b.WriteString("각 감정에 대해 확률처럼 보이는 점수를 부여한 뒤,\n")
	b.WriteString("아래 JSON 배열 형식으로 출력하세요.\n")
	b.WriteString("예시:\n")
	b.WriteString(`[
  {"label": "0", "score": 0.05},
  {"label": "1", "score": 0.12},
  {"label": "2", "score": 0.08},
  {"label": "3", "score": 0.20},
  {"label": "4", "score": 0.40},
  {"label": "5", "score": 0.10},
  {"label": "6", "score": 0.05}
]`)
	return b.String()
}

// parseScores extracts the outermost [...] from the model reply and
// decodes it. Models often wrap the array in prose or code fences, so
// scan for the brackets rather than decoding the whole reply.
func parseScores(reply string) ([]LabelScore, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in scoring reply")
	}
	var scores []LabelScore
	if err := json.Unmarshal([]byte(reply[start:end+1]), &scores); err != nil {
		return nil, fmt.Errorf("decode scoring reply: %w", err)
	}
	return scores, nil
}
