// Package httpapi exposes the ledger, alert store, market analytics and
// reporting over a JSON HTTP API, plus a websocket feed for alert
// notifications.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/alimda/cryptofolio/internal/domain"
	"github.com/alimda/cryptofolio/internal/realtime"
	"github.com/alimda/cryptofolio/internal/usecase/alerts"
	"github.com/alimda/cryptofolio/internal/usecase/ledger"
	"github.com/alimda/cryptofolio/internal/usecase/reporting"
)

// MarketSource supplies the latest market snapshot to the read endpoints.
type MarketSource interface {
	Latest() (*domain.MarketSnapshot, bool)
}

// Config holds server configuration
type Config struct {
	Port     int
	APIToken string
	DevMode  bool
	Log      zerolog.Logger

	Ledger    *ledger.Service
	Alerts    *alerts.Store
	Market    MarketSource
	Reporting *reporting.Service
	Hub       *realtime.Hub
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	apiToken  string
	ledger    *ledger.Service
	alerts    *alerts.Store
	market    MarketSource
	reporting *reporting.Service
	hub       *realtime.Hub
	upgrader  websocket.Upgrader
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		apiToken:  cfg.APIToken,
		ledger:    cfg.Ledger,
		alerts:    cfg.Alerts,
		market:    cfg.Market,
		reporting: cfg.Reporting,
		hub:       cfg.Hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/ws", s.handleWebsocket)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/portfolio", func(r chi.Router) {
			r.Post("/buy", s.handleBuy)
			r.Post("/sell", s.handleSell)
			r.Get("/valuation", s.handleValuation)
			r.Get("/transactions", s.handleTransactions)
			r.Get("/export", s.handleExport)
			r.Post("/import", s.handleImport)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.handleListAlerts)
			r.Post("/", s.handleCreateAlert)
			r.Post("/{id}/deactivate", s.handleDeactivateAlert)
			r.Post("/{id}/activate", s.handleActivateAlert)
			r.Delete("/{id}", s.handleDeleteAlert)
		})

		r.Get("/market/analysis", s.handleMarketAnalysis)
		r.Get("/reports/daily", s.handleDailyReport)
		r.Get("/reports/portfolio", s.handlePortfolioReport)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler returns the underlying router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// authMiddleware enforces the static bearer token when one is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiToken != "" {
			if r.Header.Get("Authorization") != "Bearer "+s.apiToken {
				writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// handleWebsocket upgrades the connection and parks it in the hub. The read
// loop only exists to detect the client going away.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	s.hub.AddClient(conn)
	s.log.Debug().Int("clients", s.hub.ClientCount()).Msg("Websocket client connected")

	go func() {
		defer s.hub.RemoveClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
