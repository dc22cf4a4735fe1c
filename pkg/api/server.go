package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vault-deposit/pkg/deposit"
	"vault-deposit/pkg/strategy"
	"vault-deposit/pkg/wallet"
)

// Strategies is the strategy catalogue the API serves
type Strategies interface {
	strategy.Provider
	List() []strategy.Config
}

// API server
type Server struct {
	r          chi.Router
	log        *slog.Logger
	orch       *deposit.Orchestrator
	strategies Strategies
	wallet     wallet.Connector
	hub        *Hub
	opts       ServerOpts
}

type ServerOpts struct {
	Logger       *slog.Logger
	Addr         string
	Orchestrator *deposit.Orchestrator
	Strategies   Strategies
	Wallet       wallet.Connector

	// Hub receives orchestrator transitions; it should be the same hub
	// passed as OnTransition when building the orchestrator
	Hub *Hub
}

// Create API server
func NewServer(opts ServerOpts) (*Server, error) {
	if opts.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if opts.Strategies == nil {
		return nil, fmt.Errorf("strategies are required")
	}
	if opts.Wallet == nil {
		return nil, fmt.Errorf("wallet is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Hub == nil {
		opts.Hub = NewHub(opts.Logger.With("component", "stream"))
	}

	s := &Server{
		log:        opts.Logger,
		orch:       opts.Orchestrator,
		strategies: opts.Strategies,
		wallet:     opts.Wallet,
		hub:        opts.Hub,
		opts:       opts,
	}
	s.routes()

	return s, nil
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("📡 API server listening", "addr", s.opts.Addr)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down API server")
	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	return nil
}

// Turns server into http server
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.r.ServeHTTP(w, r)
}

// Returns JSON response to the API user. HTTP status code
// and data must be provided
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		fmt.Fprintf(w, "%s", err.Error())
	}
}

// Returns an error to the API user
func ERROR(w http.ResponseWriter, statusCode int, err error) {
	w.WriteHeader(statusCode)
	err = json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()})
	if err != nil {
		fmt.Fprintf(w, "%s", err.Error())
	}
}
