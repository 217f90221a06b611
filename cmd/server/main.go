package main

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/Ayuboiii/AILAB/internal/bandit"
	"github.com/Ayuboiii/AILAB/internal/experiment"
	"github.com/Ayuboiii/AILAB/internal/explain"
	"github.com/Ayuboiii/AILAB/internal/inference"
	"github.com/Ayuboiii/AILAB/internal/metrics"
	"github.com/Ayuboiii/AILAB/internal/notify"
	"github.com/Ayuboiii/AILAB/internal/store"
	"github.com/Ayuboiii/AILAB/pkg/otel"
)

// recordStore is the combined store contract the server wires up.
type recordStore interface {
	experiment.Store
	bandit.Store
	Close() error
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	// Tracing
	if getEnv("OTEL_ENABLED", "") == "true" {
		cfg := otel.DefaultConfig("ailab")
		cfg.CollectorEndpoint = getEnv("OTEL_COLLECTOR_ENDPOINT", cfg.CollectorEndpoint)
		cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
		tp, err := otel.InitTracer(ctx, cfg)
		if err != nil {
			logger.Error("failed to init tracing", "error", err)
			os.Exit(1)
		}
		defer otel.Shutdown(context.Background(), tp)
	}

	// Record store
	var recStore recordStore
	var err error
	switch backend := getEnv("STORE_BACKEND", "memory"); backend {
	case "memory":
		recStore = store.NewMemory()
	case "postgres":
		connStr := getEnv("POSTGRES_CONN", "")
		if connStr == "" {
			logger.Error("POSTGRES_CONN is required when STORE_BACKEND=postgres")
			os.Exit(1)
		}
		recStore, err = store.NewPostgres(connStr)
		if err != nil {
			logger.Error("failed to create postgres store", "error", err)
			os.Exit(1)
		}
	default:
		logger.Error("unknown STORE_BACKEND", "backend", backend)
		os.Exit(1)
	}

	// Observer notification
	var notifier notify.Notifier
	switch backend := getEnv("NOTIFY_BACKEND", "log"); backend {
	case "log":
		notifier = &notify.LogNotifier{Logger: logger}
	case "redis":
		notifier, err = notify.NewRedisNotifier(
			getEnv("REDIS_ADDR", "localhost:6379"),
			getEnv("REDIS_PASSWORD", ""),
			getEnvInt("REDIS_DB", 0),
			getEnv("NOTIFY_CHANNEL", ""),
		)
		if err != nil {
			logger.Error("failed to create redis notifier", "error", err)
			os.Exit(1)
		}
	default:
		logger.Error("unknown NOTIFY_BACKEND", "backend", backend)
		os.Exit(1)
	}

	// Inference transport. A missing key leaves the caller nil: submissions
	// are accepted and fail during execution, picks run without
	// explanations.
	apiKey := getEnv("INFERENCE_API_KEY", "")
	model := getEnv("INFERENCE_MODEL", "llama3.1-8b")
	var caller inference.Caller
	if apiKey == "" {
		logger.Warn("INFERENCE_API_KEY not set; execution and explanations will be degraded")
	} else {
		switch transport := getEnv("INFERENCE_TRANSPORT", "openai"); transport {
		case "openai":
			caller = inference.NewOpenAICaller(apiKey, getEnv("INFERENCE_BASE_URL", ""), model)
		case "rest":
			caller = inference.NewRESTCaller(apiKey, getEnv("INFERENCE_BASE_URL", ""), model)
		default:
			logger.Error("unknown INFERENCE_TRANSPORT", "transport", transport)
			os.Exit(1)
		}
	}

	m := metrics.New()

	// Lifecycle manager
	manager := experiment.NewManager(recStore, notifier, caller, m, logger, experiment.Config{
		Workers:          getEnvInt("WORKERS", 4),
		QueueSize:        getEnvInt("QUEUE_SIZE", 64),
		ExecutionTimeout: time.Duration(getEnvInt("EXECUTION_TIMEOUT_SEC", 120)) * time.Second,
		DefaultModel:     model,
	})

	// Bandit orchestrator with best-effort explanations
	var explainer bandit.Explainer
	if caller != nil {
		explainer = explain.NewClient(caller, explain.Options{
			Model:   getEnv("EXPLAIN_MODEL", model),
			Retries: getEnvInt("EXPLAIN_RETRIES", 3),
		}, logger)
	}
	orchestrator := bandit.NewOrchestrator(recStore, explainer, m, logger,
		rand.New(rand.NewSource(time.Now().UnixNano())))

	// Rate limiter on mutating endpoints
	tokenRate := getEnvInt("TOKEN_RATE", 100)
	srv := &Server{
		manager:      manager,
		orchestrator: orchestrator,
		metrics:      m,
		limiter:      rate.NewLimiter(rate.Limit(tokenRate), tokenRate*2),
		logger:       logger,
	}
	srv.metricsAuth.user = getEnv("METRICS_USER", "")
	srv.metricsAuth.password = getEnv("METRICS_PASS", "")
	srv.metricsAuth.enabled = srv.metricsAuth.user != ""

	port := getEnv("PORT", "8080")
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-shutdown
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	manager.Close()
	if err := recStore.Close(); err != nil {
		logger.Error("error closing store", "error", err)
	}
	if closer, ok := notifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("error closing notifier", "error", err)
		}
	}

	logger.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
