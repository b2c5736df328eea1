package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hookmaster/hookmaster/internal/analyze"
	"github.com/hookmaster/hookmaster/internal/config"
	"github.com/hookmaster/hookmaster/internal/handler"
	"github.com/hookmaster/hookmaster/internal/store"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	setupLogging(cfg.LogLevel)

	s, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer s.Close()

	h := handler.NewHandler(s, analyze.New(cfg.AnalyzeURL, cfg.AnalyzeKey))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Request logging - skip capture routes so inbound bodies are untouched
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !strings.HasPrefix(req.URL.Path, "/hooks/") {
				middleware.Logger(next).ServeHTTP(w, req)
			} else {
				next.ServeHTTP(w, req)
			}
		})
	})

	r.Get("/healthz", h.Health)

	// Admin API, polled by the inspector client
	r.Route("/api", func(r chi.Router) {
		r.Get("/endpoints", h.ListEndpoints)
		r.Post("/endpoints", h.CreateEndpoint)
		r.Delete("/endpoints/{endpointID}", h.DeleteEndpoint)
		r.Get("/requests/{endpointID}", h.ListRequests)
		r.Delete("/requests/{endpointID}", h.ClearRequests)
		r.Post("/analyze/{requestID}", h.AnalyzeRequest)
		r.Get("/samples/{provider}", h.SamplePayload)
	})

	// Live feed
	r.Get("/ws/{endpointID}", h.WebSocket)

	// Webhook receiver
	r.HandleFunc("/hooks/{endpointID}", h.CaptureWebhook)
	r.HandleFunc("/hooks/{endpointID}/*", h.CaptureWebhook)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("driver", cfg.StoreDriver).Msg("starting server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server")
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver == "sqlite" {
		return store.NewSQLiteStore(cfg.DataFile, cfg.RetentionCap)
	}
	return store.NewFileStore(cfg.DataFile, cfg.RetentionCap)
}

func setupLogging(level string) {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: zerolog.TimeFieldFormat})
}
