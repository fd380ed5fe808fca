// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the chat
// gateway.
//
// # Description
//
// Metrics cover the WebSocket session lifecycle and the per-turn
// pipeline: session counts, turn counters by outcome, turn latency,
// emitted emotion labels, and error counters. All metric operations are
// thread-safe via Prometheus's internal locking; metrics are exposed on
// the /metrics endpoint.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const metricsNamespace = "moodchat"

const gatewaySubsystem = "gateway"

// GatewayMetrics holds all Prometheus metrics for the chat gateway.
//
// # Fields
//
//   - SessionsTotal: Counter of WebSocket sessions by auth result.
//   - ActiveSessions: Gauge of currently connected sessions.
//   - TurnsTotal: Counter of processed turns by outcome.
//   - TurnDurationSeconds: Histogram of full turn latency by outcome.
//   - EmotionLabelsTotal: Counter of emitted terminal emotion labels.
//   - ErrorsTotal: Counter of errors by stage.
type GatewayMetrics struct {
	// SessionsTotal counts connection attempts.
	// Labels: result (accepted, rejected)
	SessionsTotal *prometheus.CounterVec

	// ActiveSessions tracks currently open WebSocket sessions.
	ActiveSessions prometheus.Gauge

	// TurnsTotal counts processed turns.
	// Labels: outcome (answer, missing_field, parse_failed,
	// upstream_error, invalid, panic)
	TurnsTotal *prometheus.CounterVec

	// TurnDurationSeconds measures receive-to-terminal-event latency.
	// Labels: outcome
	TurnDurationSeconds *prometheus.HistogramVec

	// EmotionLabelsTotal counts terminal event labels.
	// Labels: label (fear, surprise, anger, sadness, neutral,
	// happiness, disgust)
	EmotionLabelsTotal *prometheus.CounterVec

	// ErrorsTotal counts errors by pipeline stage.
	// Labels: stage (auth, decode, persist, llm, classify, send)
	ErrorsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, set by InitMetrics.
var DefaultMetrics *GatewayMetrics

// InitMetrics creates and registers all gateway metrics on the default
// Prometheus registry. Call once at startup; a second call panics on
// duplicate registration.
func InitMetrics() *GatewayMetrics {
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewMetrics registers all gateway metrics on reg. Tests use this with
// a private registry to keep parallel runs isolated.
func NewMetrics(reg prometheus.Registerer) *GatewayMetrics {
	factory := promauto.With(reg)
	return &GatewayMetrics{
		SessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "sessions_total",
				Help:      "Total WebSocket connection attempts by result",
			},
			[]string{"result"},
		),

		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "active_sessions",
				Help:      "Number of currently open WebSocket sessions",
			},
		),

		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "turns_total",
				Help:      "Total processed chat turns by outcome",
			},
			[]string{"outcome"},
		),

		TurnDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "turn_duration_seconds",
				Help:      "Latency from turn receipt to terminal event in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),

		EmotionLabelsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "emotion_labels_total",
				Help:      "Total terminal emotion labels emitted",
			},
			[]string{"label"},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "errors_total",
				Help:      "Total gateway errors by pipeline stage",
			},
			[]string{"stage"},
		),
	}
}

// =============================================================================
// Stage Names
// =============================================================================

// Stage labels a pipeline step for error metrics.
type Stage string

const (
	StageAuth     Stage = "auth"
	StageDecode   Stage = "decode"
	StagePersist  Stage = "persist"
	StageLLM      Stage = "llm"
	StageClassify Stage = "classify"
	StageSend     Stage = "send"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordSession records a connection attempt.
func (m *GatewayMetrics) RecordSession(accepted bool) {
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	m.SessionsTotal.WithLabelValues(result).Inc()
}

// SessionOpened increments the active session gauge.
func (m *GatewayMetrics) SessionOpened() {
	m.ActiveSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *GatewayMetrics) SessionClosed() {
	m.ActiveSessions.Dec()
}

// RecordTurn records a completed turn and its latency.
func (m *GatewayMetrics) RecordTurn(outcome string, seconds float64) {
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnDurationSeconds.WithLabelValues(outcome).Observe(seconds)
}

// RecordEmotion records the terminal event's emotion label.
func (m *GatewayMetrics) RecordEmotion(label string) {
	m.EmotionLabelsTotal.WithLabelValues(label).Inc()
}

// RecordError records an error at a pipeline stage.
func (m *GatewayMetrics) RecordError(stage Stage) {
	m.ErrorsTotal.WithLabelValues(string(stage)).Inc()
}
