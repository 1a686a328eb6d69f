// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports liveness plus the configured backends. It never
// touches the backends themselves; a health probe must stay cheap.
func HealthCheck(c *gin.Context) {
	backend := os.Getenv("LLM_BACKEND_TYPE")
	if backend == "" {
		backend = "ollama"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"service":     "regatlas-orchestrator",
		"llm_backend": backend,
	})
}
