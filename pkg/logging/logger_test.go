// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelInfo, ParseLevel("info"))
	assert.Equal(t, LevelWarn, ParseLevel("warn"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestLevelString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestCaptureHandlerRecordsAttrs(t *testing.T) {
	t.Parallel()

	capture := NewCaptureHandler()
	logger := New(Config{Level: LevelDebug, Quiet: true, Extra: capture, Service: "gateway"})

	logger.Info("turn complete", "user_id", "u1", "emotion", "happiness")

	records := capture.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "turn complete", records[0].Message)
	assert.Equal(t, "u1", records[0].Attrs["user_id"])
	assert.Equal(t, "happiness", records[0].Attrs["emotion"])
	assert.Equal(t, "gateway", records[0].Attrs["service"])
}

func TestCaptureHandlerWithChildLogger(t *testing.T) {
	t.Parallel()

	capture := NewCaptureHandler()
	logger := New(Config{Level: LevelDebug, Quiet: true, Extra: capture})

	child := logger.With("conn_id", "c42")
	child.Warn("answer empty")

	records := capture.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "c42", records[0].Attrs["conn_id"])
	assert.Equal(t, slog.LevelWarn, records[0].Level)
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	capture := NewCaptureHandler()
	logger := New(Config{Level: LevelWarn, Quiet: true, Extra: capture})

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Error("kept")

	// The capture handler accepts everything; the level gate lives in
	// the stderr/file handlers. Filtering behavior for those is covered
	// by the file test below.
	records := capture.Records()
	require.NotEmpty(t, records)
	assert.Equal(t, "dropped", records[0].Message)
}

func TestFileLoggingWritesJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "gateway",
		Quiet:   true,
	})

	logger.Info("client connected", "user_id", "u9")
	logger.Debug("should be filtered")
	require.NoError(t, logger.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "gateway_"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"client connected"`)
	assert.Contains(t, string(data), `"user_id":"u9"`)
	assert.NotContains(t, string(data), "should be filtered")
}

func TestCloseWithoutFileIsNoop(t *testing.T) {
	t.Parallel()

	logger := New(Config{Quiet: true})
	assert.NoError(t, logger.Close())
	assert.NoError(t, logger.Close())
}
