// Package grpcserver exposes gRPC health checking for the PassKit service.
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported next to the overall ("") status.
const ServiceName = "passkit.WebService"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health serves grpc.health.v1 with a status derived from periodic database pings.
type Health struct {
	log      *zap.Logger
	db       Pinger
	interval time.Duration
	srv      *grpc.Server
	hs       *health.Server
}

// NewHealth constructs the health server. dev enables server reflection.
func NewHealth(log *zap.Logger, db Pinger, interval time.Duration, dev bool) *Health {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	if dev {
		reflection.Register(srv)
	}
	h := &Health{log: log, db: db, interval: interval, srv: srv, hs: hs}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Serve answers health checks on lis until ctx is cancelled.
func (h *Health) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		h.log.Info("health listening", zap.String("addr", lis.Addr().String()))
		errCh <- h.srv.Serve(lis)
	}()

	h.check(ctx)
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			h.check(ctx)
		case err := <-errCh:
			return err
		case <-ctx.Done():
			h.hs.Shutdown()
			done := make(chan struct{})
			go func() {
				h.srv.GracefulStop()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				h.srv.Stop()
			}
			return nil
		}
	}
}

func (h *Health) check(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, h.interval/2)
	defer cancel()
	if err := h.db.Ping(pctx); err != nil {
		if ctx.Err() == nil {
			h.log.Warn("database ping failed", zap.Error(err))
		}
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	h.set(healthpb.HealthCheckResponse_SERVING)
}

func (h *Health) set(st healthpb.HealthCheckResponse_ServingStatus) {
	h.hs.SetServingStatus("", st)
	h.hs.SetServingStatus(ServiceName, st)
}
