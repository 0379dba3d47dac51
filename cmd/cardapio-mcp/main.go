package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cardapiodigital/cardapio-mcp/configs"
	"github.com/cardapiodigital/cardapio-mcp/internal/adapter/inbound/mcphttp"
	"github.com/cardapiodigital/cardapio-mcp/internal/adapter/outbound/postgres"
	"github.com/cardapiodigital/cardapio-mcp/internal/usecase"
)

const serverVersion = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === Configuration ===
	cfg, err := configs.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// === Logging ===
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.ParsedLogLevel()}))
	slog.SetDefault(logger)
	logger.Info("Logger initialized.", slog.String("level", cfg.ParsedLogLevel().String()))

	// === OpenTelemetry Initialization ===
	shutdownOtel, err := initOtelProvider(cfg)
	if err != nil {
		logger.Error("Failed to initialize OpenTelemetry.", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry TracerProvider.", slog.Any("error", err))
		}
	}()

	// === Catalog Store ===
	repo, err := postgres.Open(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("Failed to open catalog store.", slog.Any("error", err))
		os.Exit(1)
	}

	// Startup self-test: one trivial query against the store. A failure here
	// is logged but does not stop the server; the store may come up later.
	if err := repo.Ping(ctx); err != nil {
		logger.Error("Startup store check failed. Server startup continuing.", slog.Any("error", err))
	} else {
		logger.Info("Catalog store reachable.")
	}

	// === Use Cases & Tool Registry ===
	searchUC := usecase.NewSearchProductsUseCase(repo, logger)
	listUC := usecase.NewListCategoriesUseCase(repo, cfg.CatalogID, logger)
	storeUC := usecase.NewStoreInfoUseCase(cfg.StoreInfo)
	toolset := usecase.NewToolset(searchUC, listUC, storeUC, cfg.CatalogURL(), logger)
	logger.Info("Tool registry initialized.", slog.Int("tools", len(toolset.Definitions())))

	// === HTTP Transport ===
	handler := mcphttp.NewHandler(toolset, repo, mcphttp.Options{
		ServiceName:       cfg.ServiceName,
		Version:           serverVersion,
		AuthToken:         cfg.AuthToken,
		KeepAliveInterval: cfg.KeepAliveInterval,
	}, logger)

	server := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     handler.Routes(),
		ReadTimeout: cfg.ServerReadTimeout,
		IdleTimeout: cfg.ServerIdleTimeout,
		// WriteTimeout deliberately unset: the SSE stream is long-lived.
	}

	go func() {
		logger.Info("HTTP server starting.",
			slog.String("address", cfg.ListenAddr),
			slog.Bool("auth_required", cfg.AuthToken != ""))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed to start.", slog.Any("error", err))
			stop()
		}
	}()

	// Wait for interrupt signal.
	<-ctx.Done()

	// === Server Shutdown ===
	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed.", slog.Any("error", err))
	}
	logger.Info("Server shut down gracefully.")
}

// initOtelProvider initializes the OpenTelemetry SDK and sets up the OTLP
// trace exporter. It returns a shutdown function to be called on exit.
// Tracing is disabled when OTEL_EXPORTER_OTLP_ENDPOINT is unset.
func initOtelProvider(cfg *configs.Config) (func(context.Context) error, error) {
	ctx := context.Background()

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, OpenTelemetry tracing disabled.")
		return func(context.Context) error { return nil }, nil
	}

	slog.Info("Initializing OTLP exporter.", slog.String("endpoint", endpoint))

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to OTLP endpoint: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
		),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(r),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) error {
		providerErr := tp.Shutdown(ctx)
		connErr := conn.Close()
		return errors.Join(providerErr, connErr)
	}, nil
}
