// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads gateway configuration with priority
// env > file > defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// jwtSecretPath is checked when MOODCHAT_JWT_SECRET is unset, for
// deployments that mount the secret as a file.
const jwtSecretPath = "/run/secrets/moodchat_jwt_secret"

// Config is the full gateway configuration.
//
// Thread Safety: safe to read concurrently, not safe to modify after
// Load.
type Config struct {
	// Server contains the HTTP listener settings.
	Server ServerConfig `yaml:"server"`

	// Store contains the embedded database settings.
	Store StoreConfig `yaml:"store"`

	// LLM contains the completion backend settings.
	LLM LLMConfig `yaml:"llm"`

	// Auth contains token verification settings.
	Auth AuthConfig `yaml:"auth"`

	// Log contains logging settings.
	Log LogConfig `yaml:"log"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Port         int           `yaml:"port" validate:"gt=0,lte=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gt=0"`
}

// StoreConfig contains embedded database settings.
type StoreConfig struct {
	DataDir        string        `yaml:"data_dir" validate:"required"`
	SyncWrites     bool          `yaml:"sync_writes"`
	GCInterval     time.Duration `yaml:"gc_interval"`
	GCDiscardRatio float64       `yaml:"gc_discard_ratio"`
}

// LLMConfig contains completion backend settings. The API key itself
// stays out of the config file; the llm package reads it from the
// environment or a container secret.
type LLMConfig struct {
	// ChatModel drives the persona reply stream. Needs multimodal
	// support for image turns.
	ChatModel string `yaml:"chat_model" validate:"required"`

	// EmotionModel scores the emotion classification pass. A small
	// model is fine here.
	EmotionModel string `yaml:"emotion_model" validate:"required"`
}

// AuthConfig contains token verification settings.
type AuthConfig struct {
	// JWTSecret signs and verifies access tokens. Loaded from the
	// environment or secret file, never from YAML.
	JWTSecret string `yaml:"-" validate:"required,min=16"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// Default returns the baseline configuration before file and env
// overrides.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:         8085,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			DataDir:        "./data/moodchat",
			SyncWrites:     true,
			GCInterval:     5 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		LLM: LLMConfig{
			ChatModel:    "gpt-4o",
			EmotionModel: "gpt-4o-mini",
		},
		Log: LogConfig{
			Level: "info",
			JSON:  true,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (missing file tolerated), then environment overrides, then
// validation. An empty path skips the file step.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	loadEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("MOODCHAT_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = i
		}
	}
	if v := os.Getenv("MOODCHAT_DATA_DIR"); v != "" {
		cfg.Store.DataDir = v
	}
	if v := os.Getenv("MOODCHAT_CHAT_MODEL"); v != "" {
		cfg.LLM.ChatModel = v
	}
	if v := os.Getenv("MOODCHAT_EMOTION_MODEL"); v != "" {
		cfg.LLM.EmotionModel = v
	}
	if v := os.Getenv("MOODCHAT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("MOODCHAT_LOG_DIR"); v != "" {
		cfg.Log.Dir = v
	}

	if v := os.Getenv("MOODCHAT_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	} else if raw, err := os.ReadFile(jwtSecretPath); err == nil {
		cfg.Auth.JWTSecret = strings.TrimSpace(string(raw))
	}
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
