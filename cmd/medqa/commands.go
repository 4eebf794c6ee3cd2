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
	"os"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	servePort      string
	serveDataDir   string
	serveRateLimit float64
	serveBurst     int
	serveNoTracing bool

	assessInput  string
	assessOutput string

	dashboardInput  string
	dashboardServer string

	rootCmd = &cobra.Command{
		Use:   "medqa",
		Short: "Quality assurance engine for AI-generated medical analyses",
		Long: `MedQA validates AI-generated medical analyses before release:
terminology checks against embedded knowledge bases, hallucination
detection, research citation validation, and quality scoring.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the QA HTTP API",
		Run:   runServe, // Defined in cmd_serve.go
	}

	assessCmd = &cobra.Command{
		Use:   "assess",
		Short: "Assess a single analysis bundle from a JSON file",
		Run:   runAssess, // Defined in cmd_assess.go
	}

	dashboardCmd = &cobra.Command{
		Use:   "dashboard",
		Short: "Print the quality metrics dashboard",
		Run:   runDashboard, // Defined in cmd_dashboard.go
	}
)

// envOr returns the environment value when the flag kept its default.
func envOr(flagValue, key, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (env MEDQA_PORT, default 8341)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "assessment store directory (env MEDQA_DATA_DIR; empty disables persistence)")
	serveCmd.Flags().Float64Var(&serveRateLimit, "rate-limit", 20, "requests per second per client on /v1")
	serveCmd.Flags().IntVar(&serveBurst, "burst", 40, "rate limit burst per client")
	serveCmd.Flags().BoolVar(&serveNoTracing, "no-tracing", false, "disable the OTLP trace exporter")

	assessCmd.Flags().StringVar(&assessInput, "input", "", "path to the analysis bundle JSON (required)")
	assessCmd.Flags().StringVar(&assessOutput, "output", "", "write the assessment JSON here instead of stdout")
	_ = assessCmd.MarkFlagRequired("input")

	dashboardCmd.Flags().StringVar(&dashboardInput, "input", "", "read an exported dashboard JSON file")
	dashboardCmd.Flags().StringVar(&dashboardServer, "server", "", "QA server base URL (env MEDQA_SERVER_URL, default http://localhost:8341)")

	rootCmd.AddCommand(serveCmd, assessCmd, dashboardCmd)
}
