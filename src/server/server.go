package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	logger "github.com/sirupsen/logrus"

	"optionsledger/src/handler"
	"optionsledger/src/ledger"
	"optionsledger/src/quotes"
)

// NewRouter wires every ledger endpoint. quoteSvc may be nil, in which case
// /quotes is not served.
func NewRouter(ledgerSvc *ledger.Service, quoteSvc *quotes.Service, cfg *Config) http.Handler {
	r := chi.NewRouter()

	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	r.Route("/trades", func(r chi.Router) {
		r.Get("/", handler.ListTradesHandler(ledgerSvc))
		r.Post("/", handler.CreateTradeHandler(ledgerSvc))
		r.Get("/export", handler.ExportHandler(ledgerSvc))
		r.Post("/import", handler.ImportHandler(ledgerSvc))
		r.Put("/{id}", handler.EditTradeHandler(ledgerSvc))
		r.Delete("/{id}", handler.DeleteTradeHandler(ledgerSvc))
		r.Post("/{id}/roll", handler.RollTradeHandler(ledgerSvc))
		r.Post("/{id}/close", handler.CloseTradeHandler(ledgerSvc))
	})

	r.Get("/kpis", handler.KPIsHandler(ledgerSvc))
	r.Get("/kpis/tickers", handler.TickersHandler(ledgerSvc))
	r.Get("/history", handler.HistoryHandler(ledgerSvc))
	r.Get("/ws", handler.StreamHandler(ledgerSvc, cfg.CORSAllowedOrigins))

	if quoteSvc != nil {
		r.Get("/quotes", handler.QuotesHandler(quoteSvc))
	}

	return r
}

// StartServer serves h until SIGINT or SIGTERM, then drains in-flight
// requests for up to five seconds.
func StartServer(port string, h http.Handler) {
	// Server setup
	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
