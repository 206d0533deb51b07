package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	appLogger "github.com/FACorreiaa/go-city-adventures/app/logger"
	"github.com/FACorreiaa/go-city-adventures/app/observability/metrics"
	"github.com/FACorreiaa/go-city-adventures/app/tracer"
	"github.com/FACorreiaa/go-city-adventures/config"
	"github.com/FACorreiaa/go-city-adventures/internal/api/adventure"
	"github.com/FACorreiaa/go-city-adventures/internal/api/attractions"
	"github.com/FACorreiaa/go-city-adventures/internal/api/city"
	"github.com/FACorreiaa/go-city-adventures/internal/api/facts"
	generativeAI "github.com/FACorreiaa/go-city-adventures/internal/api/generative_ai"
	"github.com/FACorreiaa/go-city-adventures/internal/api/intent"
	"github.com/FACorreiaa/go-city-adventures/internal/api/speech"
	api "github.com/FACorreiaa/go-city-adventures/internal/router"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Observability Setup ---
	promHandler := tracer.InitTracingAndMetrics("city-adventures")
	metrics.InitAppMetrics()

	// --- Provider Gateway Setup ---
	openAIKey := os.Getenv("OPENAI_API_KEY")
	geminiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")

	chatClient, err := generativeAI.NewChatClient(ctx, cfg, openAIKey, geminiKey, logger)
	if err != nil {
		logger.Error("Failed to initialize chat client", slog.Any("error", err))
		os.Exit(1)
	}
	mediaClient := generativeAI.NewOpenAIClient(cfg, openAIKey, logger)

	// --- Dependency Injection ---
	cityService := city.NewServiceImpl(logger)
	cityHandler := city.NewCityHandler(cityService, logger)

	attractionsService := attractions.NewServiceImpl(chatClient, cfg.Attractions.Count, cfg.Attractions.CacheTTL, logger)
	attractionsHandler := attractions.NewHandler(attractionsService, logger)

	adventureService := adventure.NewServiceImpl(chatClient, mediaClient, logger)
	adventureHandler := adventure.NewHandler(adventureService, chatClient, logger)

	factsService := facts.NewServiceImpl(chatClient, logger)
	factsHandler := facts.NewHandler(factsService, chatClient, logger)

	intentService := intent.NewServiceImpl(chatClient, logger)
	intentHandler := intent.NewHandler(intentService, logger)

	speechHandler := speech.NewHandler(mediaClient, logger)

	// --- Router Setup ---
	routerConfig := &api.Config{
		CityHandler:        cityHandler,
		AttractionsHandler: attractionsHandler,
		AdventureHandler:   adventureHandler,
		FactsHandler:       factsHandler,
		IntentHandler:      intentHandler,
		SpeechHandler:      speechHandler,
	}
	mainRouter := api.SetupRouter(routerConfig)

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(appLogger.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.StripSlashes)
	router.Use(middleware.Timeout(cfg.Server.Timeout))
	router.Use(middleware.Compress(5, "application/json"))
	router.Mount("/", mainRouter)

	// --- HTTP Servers ---
	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:    serverAddress,
		Handler: router,
		// No WriteTimeout: adventure generation streams for longer than any
		// sane fixed deadline; the request context handles cancellation.
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
		ErrorLog:    slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	promMux := http.NewServeMux()
	promMux.Handle("/metrics", promHandler)
	promSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Handlers.Prometheus.Port),
		Handler: promMux,
	}

	pprofMux := http.NewServeMux()
	pprofMux.HandleFunc("/debug/pprof/", pprof.Index)
	pprofMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	pprofMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	pprofMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	pprofMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	pprofSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Handlers.Pprof.Port),
		Handler: pprofMux,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("Starting prometheus server", slog.String("address", promSrv.Addr))
		if err := promSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("prometheus server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("Starting pprof server", slog.String("address", pprofSrv.Addr))
		if err := pprofSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("pprof server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()

		logger.Info("Shutdown signal received, starting graceful shutdown...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		var shutdownErr error
		for _, s := range []*http.Server{srv, promSrv, pprofSrv} {
			if err := s.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
				shutdownErr = err
			}
		}
		return shutdownErr
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger() *slog.Logger {
	var logger *slog.Logger
	env := os.Getenv("APP_ENV")

	if env == "development" || env == "" {
		// Colored logs for development
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		jsonOpts := &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: false,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
