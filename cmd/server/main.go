package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mickekring/live-subtitles/internal/config"
	"github.com/mickekring/live-subtitles/internal/engine"
	"github.com/mickekring/live-subtitles/internal/model"
	"github.com/mickekring/live-subtitles/internal/observability"
	"github.com/mickekring/live-subtitles/internal/resilience"
	"github.com/mickekring/live-subtitles/internal/server"
	"github.com/mickekring/live-subtitles/internal/session"
	"github.com/mickekring/live-subtitles/internal/transcribe"
	"github.com/mickekring/live-subtitles/internal/translate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before the logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("default_model", cfg.DefaultModel).
		Str("model_cache", cfg.ModelCacheDir).
		Str("ollama_url", cfg.OllamaURL).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Live Subtitles backend starting")

	catalog, err := model.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load model catalog")
	}

	downloader := model.NewHTTPDownloader(&resilience.RetryConfig{
		MaxAttempts:    cfg.DownloadMaxRetries,
		InitialBackoff: time.Duration(cfg.DownloadRetryBackoff) * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	})

	models := model.NewManager(
		catalog,
		cfg.ModelCacheDir,
		engine.DefaultLoader(),
		downloader,
		time.Duration(cfg.ModelLoadTimeout)*time.Second,
		logger,
	)

	// Warm the default model so the first session does not pay the load cost
	if _, err := models.RequestLoad(cfg.DefaultModel); err != nil {
		logger.Warn().Err(err).Str("model", cfg.DefaultModel).Msg("Default model preload failed")
	}

	breaker := resilience.NewCircuitBreaker(
		"ollama",
		cfg.TranslateMaxFailures,
		time.Duration(cfg.TranslateResetTimeout)*time.Second,
	)
	translateClient := translate.NewClient(cfg.OllamaURL, time.Duration(cfg.OllamaTimeout)*time.Second, breaker, logger)
	translator := translate.NewDispatcher(translateClient, logger)

	transcriber := transcribe.NewDispatcher(models, cfg.Language, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/", server.HandleRoot())
	mux.HandleFunc("/ws/transcribe", session.HandleTranscribeWS(cfg, models, transcriber, translator))
	mux.HandleFunc("/check-model", server.HandleCheckModel(models))
	mux.HandleFunc("/model-status", server.HandleModelStatus(models))
	mux.HandleFunc("/load-model", server.HandleLoadModel(models))
	mux.HandleFunc("/download-progress", server.HandleDownloadProgress(models))
	mux.HandleFunc("/translate", server.HandleTranslate(translateClient, cfg.TranslationModel))
	mux.HandleFunc("/ollama-models", server.HandleTranslationModels(translateClient))

	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"ollama": translateClient.Healthy,
		"model_cache": func(ctx context.Context) (bool, error) {
			if err := os.MkdirAll(cfg.ModelCacheDir, 0o755); err != nil {
				return false, err
			}
			return true, nil
		},
	}))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: mux,
		// No ReadTimeout: transcription WebSocket sessions are long-lived
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws/transcribe", cfg.Port)).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
