// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/MedQA/pkg/logging"
	"github.com/AleutianAI/MedQA/pkg/ux"
	"github.com/AleutianAI/MedQA/services/qa/engine"
	"github.com/AleutianAI/MedQA/services/qa/model"
)

// runAssess grades one bundle from disk. Exits non-zero when the
// bundle does not pass validation, so pipelines can gate on it.
func runAssess(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(assessInput)
	if err != nil {
		log.Fatalf("failed to read %s: %v", assessInput, err)
	}

	var bundle model.AnalysisBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		log.Fatalf("failed to parse the analysis bundle: %v", err)
	}
	if err := bundle.Validate(); err != nil {
		log.Fatalf("invalid analysis bundle: %v", err)
	}

	logger := logging.New(logging.Config{Service: "medqa", Quiet: true})
	defer logger.Close()

	eng, err := engine.NewEngine(nil, engine.WithLogger(logger))
	if err != nil {
		log.Fatalf("failed to build the QA engine: %v", err)
	}

	assessment, err := eng.Assess(context.Background(), &bundle)
	if err != nil {
		log.Fatalf("assessment aborted: %v", err)
	}

	out, err := json.MarshalIndent(assessment, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode the assessment: %v", err)
	}

	if assessOutput != "" {
		if err := os.WriteFile(assessOutput, append(out, '\n'), 0640); err != nil {
			log.Fatalf("failed to write %s: %v", assessOutput, err)
		}
		fmt.Printf("assessment written to %s (level: %s)\n",
			assessOutput, ux.QualityBadge(string(assessment.Level)))
	} else {
		fmt.Println(string(out))
	}

	if !assessment.PassedValidation {
		os.Exit(1)
	}
}
