package web

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/7aylabs/popchain/internal/adapters/reporting"
	"github.com/7aylabs/popchain/internal/core/services/ledger"
	"github.com/7aylabs/popchain/internal/core/services/triangulation"
)

// Server handles HTTP and WebSocket connections for the operator surface.
type Server struct {
	Addr      string
	Handlers  *Handlers
	WSManager *WSManager
	srv       *http.Server
}

// NewServer wires the operator API over the pipeline services.
func NewServer(addr string, engine *triangulation.Engine, led *ledger.Ledger) *Server {
	return &Server{
		Addr: addr,
		Handlers: &Handlers{
			Engine:   engine,
			Ledger:   led,
			Exporter: reporting.NewPDFExporter(),
		},
		WSManager: NewWSManager(),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/reporters", s.Handlers.GetReporters).Methods(http.MethodGet)
	api.HandleFunc("/devices", s.Handlers.GetDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices/{hash}/history", s.Handlers.GetDeviceHistory).Methods(http.MethodGet)
	api.HandleFunc("/devices/{hash}/track", s.Handlers.GetTrack).Methods(http.MethodGet)
	api.HandleFunc("/reveals", s.Handlers.GetReveals).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.Handlers.GetStats).Methods(http.MethodGet)
	api.HandleFunc("/report", s.Handlers.GetSurveyReport).Methods(http.MethodGet)

	r.HandleFunc("/ws", s.WSManager.HandleWebSocket)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Run starts the server and shuts it down gracefully on context cancel.
func (s *Server) Run(ctx context.Context) error {
	handler := otelhttp.NewHandler(s.Routes(), "popchain-api")

	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("web server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("web server shutdown error: %v", err)
		}
	}()

	log.Printf("web server listening on %s", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
