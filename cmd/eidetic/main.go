package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/eidetic/internal/adapter"
	"github.com/hazyhaar/eidetic/internal/analyst"
	"github.com/hazyhaar/eidetic/internal/config"
	"github.com/hazyhaar/eidetic/internal/designer"
	"github.com/hazyhaar/eidetic/internal/eventbus"
	"github.com/hazyhaar/eidetic/internal/httpapi"
	"github.com/hazyhaar/eidetic/internal/mcpserver"
	"github.com/hazyhaar/eidetic/internal/oracle"
	"github.com/hazyhaar/eidetic/internal/pipeline"
	"github.com/hazyhaar/eidetic/internal/reconciler"
	"github.com/hazyhaar/eidetic/internal/store"
)

func main() {
	port := env("PORT", "8085")
	dataDir := env("DATA_DIR", "data")
	oracleEndpoint := env("ORACLE_ENDPOINT", "")
	agentEndpointTemplate := env("AGENT_ENDPOINT_TEMPLATE", "")
	webhookSecret := os.Getenv("WEBHOOK_SECRET")
	mcpTransport := env("MCP_TRANSPORT", "")
	logLevel := env("LOG_LEVEL", "info")

	if oracleEndpoint == "" {
		slog.Error("ORACLE_ENDPOINT is required")
		os.Exit(1)
	}
	if agentEndpointTemplate == "" {
		slog.Error("AGENT_ENDPOINT_TEMPLATE is required (must contain one %s for the agent id)")
		os.Exit(1)
	}

	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.Defaults()
	cfg.DataDir = dataDir

	registry := store.NewRegistry(cfg.DataDir, logger.With("component", "store"))
	defer registry.Close()

	llm := oracle.NewHTTPOracle(oracleEndpoint, logger.With("component", "oracle"))

	an := analyst.New(llm, analyst.Config{Model: cfg.Analyst.Model, Temperature: cfg.Analyst.Temperature}, logger.With("component", "analyst"))
	rc := reconciler.New(reconciler.Config{
		MergeOverlapThreshold:    cfg.MergeOverlapThreshold,
		PruneConfidenceThreshold: cfg.PruneConfidenceThreshold,
		PruneMinInterviews:       cfg.PruneMinInterviews,
	}, logger.With("component", "reconciler"))
	des := designer.New(llm, designer.Config{
		Model:                       cfg.Designer.Model,
		Temperature:                 cfg.Designer.Temperature,
		MaxPropositionsInScript:     cfg.MaxPropositionsInScript,
		MaxInterviewDurationMinutes: cfg.MaxInterviewDurationMinutes,
	}, logger.With("component", "designer"))

	bus := eventbus.New(logger.With("component", "eventbus"))
	defer bus.Close()

	adp := adapter.NewHTTPAdapter(agentEndpointTemplate, logger.With("component", "adapter"))

	pl := pipeline.New(registry, an, rc, des, cfg, logger.With("component", "pipeline"),
		pipeline.WithPublisher(adp),
		pipeline.WithEventPublisher(bus),
	)

	receiver := &adapter.WebhookReceiver{Secret: webhookSecret}
	api := httpapi.New(receiver, pl, bus, logger.With("component", "httpapi"))

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// WriteTimeout is intentionally unset: the event-stream route holds
		// its connection open for as long as the client stays subscribed.
		IdleTimeout: 120 * time.Second,
	}

	if mcpTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "eidetic", Version: "1.0.0"}, nil)
		mcpserver.New(registry, adp, logger.With("component", "mcpserver")).Register(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("mcp server", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
