// Command passkit-server serves the PassKit web service protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/passkit-server/internal/config"
	"github.com/and161185/passkit-server/internal/limiter"
	"github.com/and161185/passkit-server/internal/migrate"
	"github.com/and161185/passkit-server/internal/push"
	"github.com/and161185/passkit-server/internal/repository/postgres"
	grpcserver "github.com/and161185/passkit-server/internal/server/grpc"
	httpserver "github.com/and161185/passkit-server/internal/server/http"
	"github.com/and161185/passkit-server/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations and serves HTTP plus gRPC health.
func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	// Flags override env
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flag.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "gRPC health listen address")
	flag.StringVar(&cfg.DSN, "dsn", cfg.DSN, "PostgreSQL DSN")
	flag.StringVar(&cfg.RenderDir, "render-dir", cfg.RenderDir, "serve passes from <dir>/<passTypeID>/<serial>.pkpass")
	flag.BoolVar(&cfg.Dev, "dev", cfg.Dev, "development logging and gRPC reflection")
	tail := flag.Int("tail-logs", 0, "print the N most recent device log lines and exit")
	flag.Parse()

	logger := newLogger(cfg.Dev)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("healthAddr", cfg.HealthAddr),
	)

	if *tail > 0 {
		if err := tailLogs(cfg, *tail); err != nil {
			logger.Error("tail logs", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(dev bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// tailLogs prints recent device diagnostics, one line per entry.
func tailLogs(cfg config.Config, n int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, cfg.DSN, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := postgres.NewLogRepo(db).RecentLogs(ctx, n)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s %s\n", e.CreatedAt.UTC().Format(time.RFC3339), e.Message)
	}
	return nil
}

func run(cfg config.Config, logger *zap.Logger) error {
	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN, logger); err != nil {
		return err
	}

	db, err := postgres.New(ctx, cfg.DSN, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer db.Close()

	// Repositories
	passRepo := postgres.NewPassRepo(db)
	regRepo := postgres.NewRegistrationRepo(db)
	logRepo := postgres.NewLogRepo(db)

	// Strategies, resolved once
	var renderer service.PassRenderer = service.RawRenderer{}
	if cfg.RenderDir != "" {
		renderer = service.DirRenderer{Root: cfg.RenderDir}
		logger.Info("rendering passes from directory", zap.String("dir", cfg.RenderDir))
	}
	resolver := service.NewResolver(service.RepoLookup(passRepo), cfg.RevealMissing)

	// Push events
	dispatcher := push.NewDispatcher(logger, push.LogPusher{Log: logger.Named("push")}, cfg.PushQueue, cfg.PushWorkers)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := dispatcher.Close(closeCtx); err != nil {
			logger.Warn("push queue not drained", zap.Error(err))
		}
	}()

	var lim limiter.Limiter
	if cfg.LogMaxRequests > 0 {
		lim = limiter.NewPG(db.Pool, cfg.LogWindow, cfg.LogMaxRequests)
	}

	// Services
	svc := httpserver.Services{
		Registrations: service.NewRegistrationService(resolver, regRepo, dispatcher),
		Updates:       service.NewUpdateService(regRepo),
		Delivery:      service.NewDeliveryService(resolver, renderer),
		Logs:          service.NewLogService(logRepo, lim, []byte(cfg.LogIPSalt)),
	}

	httpSrv := httpserver.New(httpserver.Config{
		Addr:         cfg.Addr,
		PathPrefix:   cfg.PathPrefix,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		MaxBodyBytes: cfg.MaxBodyBytes,
	}, logger, svc)
	health := grpcserver.NewHealth(logger.Named("health"), db, cfg.HealthInterval, cfg.Dev)

	// Listen
	httpLis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	healthLis, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		_ = httpLis.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpSrv.Serve(gctx, httpLis) })
	g.Go(func() error { return health.Serve(gctx, healthLis) })
	return g.Wait()
}
