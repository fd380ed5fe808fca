// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moodchat/moodchat/pkg/auth"
	"github.com/moodchat/moodchat/services/gateway/handlers"
	"github.com/moodchat/moodchat/services/gateway/middleware"
)

// SetupRoutes wires the gateway's endpoints onto the router. The
// WebSocket endpoint authenticates itself (token query parameter);
// the REST endpoints sit behind the bearer-token middleware.
func SetupRoutes(router *gin.Engine, gateway *handlers.Gateway, provider auth.AuthProvider) {
	router.GET("/health", handlers.HandleHealth())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.GET("/chat/ws", gateway.HandleChatWebSocket())

		authed := v1.Group("")
		authed.Use(middleware.AuthMiddleware(provider))
		{
			authed.GET("/messages", handlers.HandleListMessages(gateway.Messages))
		}
	}
}
