// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the QA HTTP API.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/MedQA/pkg/logging"
	"github.com/AleutianAI/MedQA/services/qa/engine"
	"github.com/AleutianAI/MedQA/services/qa/model"
	"github.com/AleutianAI/MedQA/services/qa/observability"
)

// HandleAssess validates and grades a posted analysis bundle.
//
// # Description
//
// Binds the request body to an AnalysisBundle, rejects malformed JSON
// with 400 and tag-validation failures with 422, then runs the engine
// and returns the assessment. Engine aborts map to 500.
func HandleAssess(eng *engine.Engine, metrics *observability.Metrics, log *logging.Logger) gin.HandlerFunc {
	if log == nil {
		log = logging.Default()
	}
	return func(c *gin.Context) {
		started := time.Now()

		var bundle model.AnalysisBundle
		if err := c.ShouldBindJSON(&bundle); err != nil {
			metrics.RecordRequest("assess", http.StatusBadRequest)
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed analysis bundle: " + err.Error()})
			return
		}
		if err := bundle.Validate(); err != nil {
			metrics.RecordRequest("assess", http.StatusUnprocessableEntity)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid analysis bundle: " + err.Error()})
			return
		}

		assessment, err := eng.Assess(c.Request.Context(), &bundle)
		if err != nil {
			if errors.Is(err, engine.ErrNilBundle) {
				metrics.RecordRequest("assess", http.StatusBadRequest)
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.Error("assessment failed", "report_id", bundle.ReportID, "error", err)
			metrics.RecordRequest("assess", http.StatusInternalServerError)
			metrics.RecordAssessment(time.Since(started).Seconds(), false)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "assessment aborted"})
			return
		}

		metrics.RecordRequest("assess", http.StatusOK)
		metrics.RecordAssessment(time.Since(started).Seconds(), true)
		metrics.RecordIssues(assessment.Issues)
		metrics.RecordQualityLevel(string(assessment.Level))

		c.JSON(http.StatusOK, assessment)
	}
}
