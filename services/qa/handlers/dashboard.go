// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/MedQA/services/qa/engine"
	"github.com/AleutianAI/MedQA/services/qa/observability"
)

// HandleDashboard returns the engine's quality metrics rollup together
// with the orchestration pass-rate counters.
func HandleDashboard(eng *engine.Engine, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.RecordRequest("dashboard", http.StatusOK)
		c.JSON(http.StatusOK, gin.H{
			"dashboard": eng.Collector().Dashboard(),
			"stats":     eng.Stats(),
		})
	}
}

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "medqa"})
}
