// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/regatlas/regatlas/services/orchestrator/handlers"
	"github.com/regatlas/regatlas/services/orchestrator/middleware"
	"github.com/regatlas/regatlas/services/orchestrator/pipeline"
)

func SetupRoutes(router *gin.Engine, controller *pipeline.Controller, limiter *middleware.RateLimiter) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)
		api.POST("/ask", limiter.Middleware(), handlers.HandleAsk(controller))
	}
}
