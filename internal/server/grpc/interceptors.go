package grpcserver

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const healthPrefix = "/grpc.health.v1.Health/"

// callLevel keeps successful health probes out of info logs.
func callLevel(method string, code codes.Code) zapcore.Level {
	if code == codes.OK && strings.HasPrefix(method, healthPrefix) {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func peerAddr(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	return p.Addr.String()
}

// LoggingUnary writes one line per call with its status code and latency.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		code := status.Code(err)
		if ce := log.Check(callLevel(info.FullMethod, code), "grpc call"); ce != nil {
			ce.Write(
				zap.String("method", info.FullMethod),
				zap.Stringer("code", code),
				zap.Duration("dur", time.Since(start)),
				zap.String("peer", peerAddr(ctx)),
			)
		}
		return resp, err
	}
}

// RecoverUnary converts a handler panic into codes.Internal.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			log.Error("grpc handler panic",
				zap.String("method", info.FullMethod),
				zap.Any("reason", r),
				zap.ByteString("stack", debug.Stack()),
			)
			resp, err = nil, status.Error(codes.Internal, "internal")
		}()
		return next(ctx, req)
	}
}
