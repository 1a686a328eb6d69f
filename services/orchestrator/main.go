// Copyright (C) 2026 RegAtlas (maintainers@regatlas.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/regatlas/regatlas/services/llm"
	"github.com/regatlas/regatlas/services/orchestrator/datatypes"
	"github.com/regatlas/regatlas/services/orchestrator/middleware"
	"github.com/regatlas/regatlas/services/orchestrator/observability"
	"github.com/regatlas/regatlas/services/orchestrator/pipeline"
	"github.com/regatlas/regatlas/services/orchestrator/retrieval"
	"github.com/regatlas/regatlas/services/orchestrator/routes"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "regatlas-otel-collector:4317"
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
		resource.WithAttributes(semconv.ServiceNameKey.String("regatlas-orchestrator")))
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

// newWeaviateClient builds the client from WEAVIATE_SERVICE_URL. Unlike the
// chat path this service cannot run without its index, so a missing or
// invalid URL is fatal.
func newWeaviateClient() (*weaviate.Client, error) {
	weaviateURL := os.Getenv("WEAVIATE_SERVICE_URL")
	// Sanitize: trim quotes and whitespace in case the runtime passes them literally
	weaviateURL = strings.Trim(weaviateURL, "\"' ")
	if weaviateURL == "" {
		weaviateURL = "http://regatlas-weaviate:8080"
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil {
		return nil, err
	}
	clientConf := weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	}
	return weaviate.NewClient(clientConf)
}

func newLLMClient() (llm.LLMClient, error) {
	llmBackendType := os.Getenv("LLM_BACKEND_TYPE")
	switch llmBackendType {
	case "openai":
		slog.Info("Using OpenAI LLM backend")
		return llm.NewOpenAIClient()
	case "ollama":
		slog.Info("Using Ollama LLM backend")
		return llm.NewOllamaClient()
	// TODO: add cases for "anthropic", "gemini" once those clients land
	default:
		slog.Warn("LLM_BACKEND_TYPE not set or invalid, defaulting to ollama")
		return llm.NewOllamaClient()
	}
}

func main() {
	port := os.Getenv("ORCHESTRATOR_PORT")
	if port == "" {
		port = "12310"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	metrics := observability.InitMetrics()

	weaviateClient, err := newWeaviateClient()
	if err != nil {
		log.Fatalf("Failed to create Weaviate client: %v", err)
	}
	if err := datatypes.EnsureWeaviateSchema(context.Background(), weaviateClient); err != nil {
		log.Fatalf("Failed to ensure Weaviate schema: %v", err)
	}

	llmClient, err := newLLMClient()
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	embedder, err := retrieval.NewOllamaEmbedder()
	if err != nil {
		log.Fatalf("Failed to initialize embedder: %v", err)
	}
	searcher := retrieval.NewWeaviateSearcher(weaviateClient, embedder)

	// Verification matcher: lexical is deterministic and free; the LLM
	// matcher catches paraphrased claims. Default to the model.
	var matcher pipeline.ClaimMatcher
	if os.Getenv("CLAIM_MATCHER") == "lexical" {
		slog.Info("Using lexical claim matcher")
		matcher = pipeline.NewLexicalClaimMatcher()
	} else {
		matcher = pipeline.NewLLMClaimMatcher(llmClient)
	}

	controller := pipeline.NewController(
		pipeline.NewQueryClassifier(llmClient),
		pipeline.NewRetrievalPlanner(searcher),
		pipeline.NewAnswerSynthesizer(llmClient),
		pipeline.NewComplianceValidator(matcher),
		pipeline.DefaultStageTimeouts(),
		metrics,
	)

	limiter := middleware.NewRateLimiter(1, 5)

	router := gin.Default()
	router.Use(otelgin.Middleware("regatlas-orchestrator"))

	routes.SetupRoutes(router, controller, limiter)

	log.Println("Starting the orchestrator server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
