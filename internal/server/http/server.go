// Package httpserver exposes the PassKit web service over HTTP.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/and161185/passkit-server/internal/service"
)

// Config holds HTTP listener settings.
type Config struct {
	Addr         string
	PathPrefix   string // e.g. "/v1"; the web service URL of the pass points at its parent
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodyBytes int64
}

// DefaultConfig returns a default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		PathPrefix:   "/v1",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		MaxBodyBytes: 1 << 20,
	}
}

// Services are the domain operations served by the handlers.
type Services struct {
	Registrations service.RegistrationService
	Updates       service.UpdateService
	Delivery      service.DeliveryService
	Logs          service.LogService
}

// Server wires services into HTTP handlers.
type Server struct {
	cfg        Config
	log        *zap.Logger
	svc        Services
	httpServer *http.Server
}

// New constructs a server with injected services.
func New(cfg Config, log *zap.Logger, svc Services) *Server {
	s := &Server{cfg: cfg, log: log, svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Recover(log))
	r.Use(Logging(log))
	s.registerRoutes(r)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Serve accepts connections on lis until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http listening", zap.String("addr", lis.Addr().String()))
		if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}

func (s *Server) registerRoutes(r chi.Router) {
	r.Get("/healthz", s.handleHealth)

	passkit := func(r chi.Router) {
		r.Post("/devices/{deviceID}/registrations/{passTypeID}/{serial}", s.handleRegister)
		r.Delete("/devices/{deviceID}/registrations/{passTypeID}/{serial}", s.handleUnregister)
		r.Get("/devices/{deviceID}/registrations/{passTypeID}", s.handleListUpdated)
		r.Get("/passes/{passTypeID}/{serial}", s.handleLatestPass)
		r.Post("/log", s.handleLog)
	}
	if s.cfg.PathPrefix == "" {
		passkit(r)
		return
	}
	r.Route(s.cfg.PathPrefix, passkit)
}
