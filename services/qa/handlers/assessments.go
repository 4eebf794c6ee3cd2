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
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/MedQA/pkg/logging"
	"github.com/AleutianAI/MedQA/pkg/validation"
	"github.com/AleutianAI/MedQA/services/qa/engine"
	"github.com/AleutianAI/MedQA/services/qa/observability"
)

// defaultListLimit caps assessment history responses unless the caller
// asks for less.
const defaultListLimit = 50

// AssessmentReader is the read half of the assessment store.
type AssessmentReader interface {
	ListByPatient(ctx context.Context, patientID string, limit int) ([]*engine.Assessment, error)
}

// HandleListAssessments returns a patient's assessment history, newest
// first. A nil store means persistence is not configured and the
// endpoint answers 503.
func HandleListAssessments(store AssessmentReader, metrics *observability.Metrics, log *logging.Logger) gin.HandlerFunc {
	if log == nil {
		log = logging.Default()
	}
	return func(c *gin.Context) {
		if store == nil {
			metrics.RecordRequest("assessments", http.StatusServiceUnavailable)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "assessment persistence is not configured"})
			return
		}

		patientID := c.Param("patientId")
		if err := validation.ValidatePatientID(patientID); err != nil {
			metrics.RecordRequest("assessments", http.StatusBadRequest)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		limit := defaultListLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				metrics.RecordRequest("assessments", http.StatusBadRequest)
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}

		assessments, err := store.ListByPatient(c.Request.Context(), patientID, limit)
		if err != nil {
			log.Error("listing assessments failed", "patient_id", patientID, "error", err)
			metrics.RecordRequest("assessments", http.StatusInternalServerError)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list assessments"})
			return
		}

		metrics.RecordRequest("assessments", http.StatusOK)
		c.JSON(http.StatusOK, gin.H{
			"patient_id":  patientID,
			"count":       len(assessments),
			"assessments": assessments,
		})
	}
}
