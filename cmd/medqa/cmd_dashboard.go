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
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/MedQA/pkg/ux"
	"github.com/AleutianAI/MedQA/services/qa/qualitymetrics"
)

// runDashboard prints the quality metrics rollup, either from an
// exported JSON file or from a running QA server.
func runDashboard(cmd *cobra.Command, args []string) {
	var data []byte
	var err error

	if dashboardInput != "" {
		data, err = os.ReadFile(dashboardInput)
		if err != nil {
			log.Fatalf("failed to read %s: %v", dashboardInput, err)
		}
		printDashboard(data)
		return
	}

	server := envOr(dashboardServer, "MEDQA_SERVER_URL", "http://localhost:8341")
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(server + "/v1/dashboard")
	if err != nil {
		log.Fatalf("failed to reach the QA server at %s: %v", server, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("QA server answered %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("failed to read the dashboard response: %v", err)
	}
	printDashboard(body)
}

func printDashboard(data []byte) {
	// Both the server response and a collector export wrap the
	// dashboard (with stats and history respectively).
	var wrapped struct {
		Dashboard qualitymetrics.Dashboard `json:"dashboard"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		log.Fatalf("failed to parse the dashboard: %v", err)
	}
	d := wrapped.Dashboard

	ux.Title("Quality dashboard")
	ux.Muted(fmt.Sprintf("generated %s, %d samples recorded (dropped: %d)",
		d.GeneratedAt.Format(time.RFC3339), d.TotalRecorded, d.Dropped))
	fmt.Println()

	for _, m := range d.Metrics {
		fmt.Printf("  %-22s %8.3f  target %7.3f  %s", m.Name, m.Latest, m.Target,
			ux.StatusBadge(m.MeetingTarget))
		if m.Trend != nil {
			fmt.Printf("  %s", ux.Styles.Muted.Render(
				fmt.Sprintf("trend: %s (strength %.2f)", m.Trend.Direction, m.Trend.Strength)))
		}
		fmt.Println()
	}

	if len(d.FailurePatterns) > 0 {
		fmt.Println()
		fmt.Println(ux.Styles.Warning.Render("  Persistent failures:"))
		for _, p := range d.FailurePatterns {
			fmt.Printf("    %s %-22s missed target in %d samples (%.0f%%)\n",
				ux.IconWarning.Render(), p.Metric, p.Occurrences, p.FailureRate*100)
		}
	}
}
