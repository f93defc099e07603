package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pcannon/weather-assistant/internal/config"
	"github.com/pcannon/weather-assistant/internal/genai"
	httphandler "github.com/pcannon/weather-assistant/internal/http"
	"github.com/pcannon/weather-assistant/internal/observability"
	"github.com/pcannon/weather-assistant/internal/weather"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if cfg.WeatherAPIKey == "" {
		logger.Warn("WEATHER_API_KEY not set; /api/weather will fail until it is")
	}
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set; generation endpoints will fail until it is")
	}

	weatherClient := weather.NewClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	generator := genai.NewClient(
		cfg.GeminiAPIKey,
		cfg.GeminiAPIURL,
		cfg.GeminiModel,
		cfg.GeminiTimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)

	handler := httphandler.NewHandler(weatherClient, generator, logger, cfg.LocationMinLength, cfg.LocationMaxLength)

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/weather", handler.GetWeather).Methods("GET", "POST")
	api.HandleFunc("/extract-city", handler.PostExtractCity).Methods("POST")
	api.HandleFunc("/chat", handler.PostChat).Methods("POST")
	api.HandleFunc("/translate", handler.PostTranslate).Methods("POST")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httphandler.CORS(cfg.CORSAllowOrigin, router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // generation calls can be slow
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
