// Package grpc serves the bridge's gRPC health endpoint.
//
// The server speaks the standard grpc.health.v1 protocol so process
// supervisors and load balancers can query it. Interceptors add logging and
// panic recovery; an OpenTelemetry stats handler traces every call.
package grpc

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/blendmate/bridge/coreengine/observability"
)

// =============================================================================
// LOGGING INTERCEPTORS
// =============================================================================

// LoggingInterceptor logs the method, duration and status code of each
// unary call. Failures log at warn since health checks fail routinely.
func LoggingInterceptor(logger observability.Logger) grpc.UnaryServerInterceptor {
	logger = observability.OrNop(logger)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(logger, "grpc_request", info.FullMethod, start, err)
		return resp, err
	}
}

// StreamLoggingInterceptor is LoggingInterceptor for streams such as Health/Watch.
func StreamLoggingInterceptor(logger observability.Logger) grpc.StreamServerInterceptor {
	logger = observability.OrNop(logger)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		logger.Debug("grpc_stream_started", "method", info.FullMethod)
		err := handler(srv, ss)
		logCall(logger, "grpc_stream", info.FullMethod, start, err)
		return err
	}
}

func logCall(logger observability.Logger, prefix, method string, start time.Time, err error) {
	durationMS := time.Since(start).Milliseconds()
	if err != nil {
		logger.Warn(prefix+"_failed",
			"method", method,
			"duration_ms", durationMS,
			"code", status.Code(err).String(),
			"error", err.Error(),
		)
		return
	}
	logger.Debug(prefix+"_completed",
		"method", method,
		"duration_ms", durationMS,
	)
}

// =============================================================================
// RECOVERY INTERCEPTORS
// =============================================================================

// RecoveryHandler turns a recovered panic value into the call's error.
type RecoveryHandler func(p any) error

// DefaultRecoveryHandler returns codes.Internal carrying the panic value.
func DefaultRecoveryHandler(p any) error {
	return status.Errorf(codes.Internal, "panic recovered: %v", p)
}

// RecoveryInterceptor converts handler panics into errors.
func RecoveryInterceptor(logger observability.Logger, handler RecoveryHandler) grpc.UnaryServerInterceptor {
	logger = observability.OrNop(logger)
	if handler == nil {
		handler = DefaultRecoveryHandler
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				logPanic(logger, info.FullMethod, p)
				resp, err = nil, handler(p)
			}
		}()
		return next(ctx, req)
	}
}

// StreamRecoveryInterceptor converts stream handler panics into errors.
func StreamRecoveryInterceptor(logger observability.Logger, handler RecoveryHandler) grpc.StreamServerInterceptor {
	logger = observability.OrNop(logger)
	if handler == nil {
		handler = DefaultRecoveryHandler
	}
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) (err error) {
		defer func() {
			if p := recover(); p != nil {
				logPanic(logger, info.FullMethod, p)
				err = handler(p)
			}
		}()
		return next(srv, ss)
	}
}

func logPanic(logger observability.Logger, method string, p any) {
	logger.Error("grpc_panic_recovered",
		"method", method,
		"panic", fmt.Sprintf("%v", p),
		"stack", string(debug.Stack()),
	)
}

// =============================================================================
// SERVER OPTIONS
// =============================================================================

// ServerOptions returns the standard option set: recovery outermost, then
// logging, plus OpenTelemetry tracing.
func ServerOptions(logger observability.Logger) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(logger, nil),
			LoggingInterceptor(logger),
		),
		grpc.ChainStreamInterceptor(
			StreamRecoveryInterceptor(logger, nil),
			StreamLoggingInterceptor(logger),
		),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	}
}
