package grpc

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/blendmate/bridge/coreengine/bridge"
	"github.com/blendmate/bridge/coreengine/observability"
)

// ServiceName is the health service that tracks the counterpart connection.
// The empty service name reports process liveness and stays SERVING until
// shutdown.
const ServiceName = "blendmate.bridge"

// ErrServerStarted is returned when a HealthServer is served twice.
var ErrServerStarted = errors.New("health server already started")

// HealthServer exposes grpc.health.v1 with ServiceName SERVING while the
// bridge holds an open socket.
type HealthServer struct {
	logger observability.Logger
	health *health.Server
	server *grpc.Server

	mu       sync.Mutex
	listener net.Listener
	errCh    chan error
}

// NewHealthServer builds the server. Without opts it uses ServerOptions.
func NewHealthServer(logger observability.Logger, opts ...grpc.ServerOption) *HealthServer {
	logger = observability.OrNop(logger)
	if len(opts) == 0 {
		opts = ServerOptions(logger)
	}

	h := &HealthServer{
		logger: logger,
		health: health.NewServer(),
		server: grpc.NewServer(opts...),
	}
	healthpb.RegisterHealthServer(h.server, h.health)
	h.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// SetConnected flips ServiceName between SERVING and NOT_SERVING.
func (h *HealthServer) SetConnected(connected bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if connected {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(ServiceName, st)
	h.logger.Debug("health_status_changed", "service", ServiceName, "status", st.String())
}

// Watch mirrors b's connection state from now on.
func (h *HealthServer) Watch(b *bridge.Bridge) {
	b.OnConnectionChange(h.SetConnected)
	h.SetConnected(b.Connected())
}

// StartBackground listens on address and serves in a goroutine. The
// returned channel yields the serve error, if any, and is then closed.
func (h *HealthServer) StartBackground(address string) (<-chan error, error) {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", address, err)
	}
	errCh, err := h.Serve(lis)
	if err != nil {
		lis.Close()
		return nil, err
	}
	return errCh, nil
}

// Serve serves on an existing listener in a goroutine.
func (h *HealthServer) Serve(lis net.Listener) (<-chan error, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener != nil {
		return nil, ErrServerStarted
	}
	h.listener = lis
	h.errCh = make(chan error, 1)

	h.logger.Info("health_server_started", "address", lis.Addr().String())
	go func(errCh chan error) {
		defer close(errCh)
		if err := h.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}(h.errCh)
	return h.errCh, nil
}

// Addr returns the bound address, nil before Serve.
func (h *HealthServer) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

// Shutdown marks every service NOT_SERVING and stops gracefully, forcing
// the stop after timeout.
func (h *HealthServer) Shutdown(timeout time.Duration) {
	h.health.Shutdown()

	done := make(chan struct{})
	go func() {
		h.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("health_server_stopped")
	case <-time.After(timeout):
		h.logger.Warn("health_server_shutdown_timeout", "timeout_ms", timeout.Milliseconds())
		h.server.Stop()
	}
}
