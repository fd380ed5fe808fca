// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/moodchat/moodchat/pkg/auth"
	"github.com/moodchat/moodchat/pkg/logging"
	"github.com/moodchat/moodchat/services/gateway/config"
	"github.com/moodchat/moodchat/services/gateway/conversation"
	"github.com/moodchat/moodchat/services/gateway/emotion"
	"github.com/moodchat/moodchat/services/gateway/handlers"
	"github.com/moodchat/moodchat/services/gateway/observability"
	"github.com/moodchat/moodchat/services/gateway/routes"
	"github.com/moodchat/moodchat/services/gateway/store"
	"github.com/moodchat/moodchat/services/llm"
)

func main() {
	cfg, err := config.Load(os.Getenv("MOODCHAT_CONFIG"))
	if err != nil {
		log.Fatalf("FATAL: configuration: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Log.Level),
		LogDir:  cfg.Log.Dir,
		Service: "gateway",
		JSON:    cfg.Log.JSON,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	db, err := store.Open(store.Config{
		Path:       cfg.Store.DataDir,
		SyncWrites: cfg.Store.SyncWrites,
		Logger:     logger.Slog(),
	})
	if err != nil {
		log.Fatalf("FATAL: store: %v", err)
	}
	defer db.Close()

	if cfg.Store.GCInterval > 0 {
		gc, err := store.NewGCRunner(db, cfg.Store.GCInterval,
			cfg.Store.GCDiscardRatio, logger.Slog())
		if err != nil {
			log.Fatalf("FATAL: store gc: %v", err)
		}
		gc.Start()
		defer gc.Stop()
	}

	st := store.New(db)

	slog.Info("Configuring the LLM client",
		"chat_model", cfg.LLM.ChatModel, "emotion_model", cfg.LLM.EmotionModel)
	os.Setenv("OPENAI_MODEL", cfg.LLM.ChatModel)
	chatClient, err := llm.NewOpenAIClient()
	if err != nil {
		log.Fatalf("FATAL: LLM client: %v", err)
	}
	os.Setenv("OPENAI_MODEL", cfg.LLM.EmotionModel)
	emotionClient, err := llm.NewOpenAIClient()
	if err != nil {
		log.Fatalf("FATAL: emotion LLM client: %v", err)
	}

	metrics := observability.InitMetrics()

	provider, err := auth.NewJWTProvider([]byte(cfg.Auth.JWTSecret), st)
	if err != nil {
		log.Fatalf("FATAL: auth provider: %v", err)
	}

	gateway := &handlers.Gateway{
		Auth:       provider,
		LLM:        chatClient,
		Lookup:     conversation.NewActivitySearch(st, logger.Slog()),
		Messages:   st,
		Profiles:   st,
		Classifier: emotion.NewClassifier(emotion.NewLLMScorer(emotionClient), logger.Slog()),
		Metrics:    metrics,
		Logger:     logger.Slog(),
	}

	router := gin.Default()
	routes.SetupRoutes(router, gateway, gateway.Auth)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Info("Starting the gateway server", "addr", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
