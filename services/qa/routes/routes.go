// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/MedQA/pkg/logging"
	"github.com/AleutianAI/MedQA/services/qa/engine"
	"github.com/AleutianAI/MedQA/services/qa/handlers"
	"github.com/AleutianAI/MedQA/services/qa/middleware"
	"github.com/AleutianAI/MedQA/services/qa/observability"
)

// SetupRoutes wires the QA API onto the router. store may be nil when
// persistence is not configured; the history endpoint then answers 503.
func SetupRoutes(router *gin.Engine, eng *engine.Engine, store handlers.AssessmentReader,
	metrics *observability.Metrics, limiter *middleware.RateLimiter, log *logging.Logger) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	if limiter != nil {
		v1.Use(limiter.Middleware())
	}
	{
		v1.POST("/assess", handlers.HandleAssess(eng, metrics, log))
		v1.GET("/assessments/:patientId", handlers.HandleListAssessments(store, metrics, log))
		v1.GET("/dashboard", handlers.HandleDashboard(eng, metrics))
	}
}
