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
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/AleutianAI/MedQA/pkg/logging"
	"github.com/AleutianAI/MedQA/services/qa/engine"
	"github.com/AleutianAI/MedQA/services/qa/handlers"
	"github.com/AleutianAI/MedQA/services/qa/middleware"
	"github.com/AleutianAI/MedQA/services/qa/observability"
	"github.com/AleutianAI/MedQA/services/qa/routes"
	badgerstore "github.com/AleutianAI/MedQA/services/qa/storage/badger"
)

// initTracer wires the OTLP gRPC exporter. The collector endpoint comes
// from OTEL_EXPORTER_OTLP_ENDPOINT.
func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "localhost:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("medqa-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func runServe(cmd *cobra.Command, args []string) {
	port := envOr(servePort, "MEDQA_PORT", "8341")
	dataDir := envOr(serveDataDir, "MEDQA_DATA_DIR", "")

	logger := logging.New(logging.Config{Service: "medqa", JSON: true})
	defer logger.Close()

	if !serveNoTracing {
		cleanup, err := initTracer()
		if err != nil {
			log.Fatalf("failed to setup the OTLP tracer: %v", err)
		}
		defer cleanup(context.Background())
	}

	eng, err := engine.NewEngine(nil, engine.WithLogger(logger))
	if err != nil {
		log.Fatalf("failed to build the QA engine: %v", err)
	}

	var store handlers.AssessmentReader
	if dataDir != "" {
		cfg := badgerstore.DefaultConfig(dataDir)
		cfg.Logger = logger.Slog()
		s, err := badgerstore.Open(cfg)
		if err != nil {
			log.Fatalf("failed to open the assessment store at %s: %v", dataDir, err)
		}
		defer s.Close()
		store = s

		// Rebuild the engine so assessments persist.
		eng, err = engine.NewEngine(nil, engine.WithLogger(logger), engine.WithStore(s))
		if err != nil {
			log.Fatalf("failed to build the QA engine: %v", err)
		}
		logger.Info("assessment persistence enabled", "data_dir", dataDir)
	} else {
		logger.Info("MEDQA_DATA_DIR not set, running without assessment persistence")
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	limiter := middleware.NewRateLimiter(serveRateLimit, serveBurst, metrics)

	router := gin.Default()
	router.Use(otelgin.Middleware("medqa-service"))
	routes.SetupRoutes(router, eng, store, metrics, limiter, logger)

	logger.Info("starting the QA server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
