// Package server exposes the daemon's gRPC health endpoint.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name clients can query besides "".
const ServiceName = "harvester"

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// Health is a gRPC server carrying only the health and reflection
// services.
type Health struct {
	srv    *grpc.Server
	hs     *health.Server
	logger *slog.Logger

	mu      sync.Mutex
	status  healthpb.HealthCheckResponse_ServingStatus
	closing bool
}

func NewHealth(logger *slog.Logger) *Health {
	if logger == nil {
		logger = slog.Default()
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	// Reflection for grpcurl
	reflection.Register(srv)

	h := &Health{srv: srv, hs: hs, logger: logger}
	h.SetServing(true)
	return h
}

// SetServing flips both the overall and the named service status. It is a
// no-op once Stop has begun.
func (h *Health) SetServing(ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := healthpb.HealthCheckResponse_SERVING
	if !ok {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	if h.closing || h.status == st {
		return
	}
	h.status = st
	h.hs.SetServingStatus("", st)
	h.hs.SetServingStatus(ServiceName, st)
	h.logger.Info("server.health.status", "status", st.String())
}

// Serve blocks serving on lis until Stop.
func (h *Health) Serve(lis net.Listener) error {
	h.logger.Info("server.grpc.listening", "addr", lis.Addr().String())
	if err := h.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Watch runs check every interval and mirrors its result into the health
// status until ctx is done.
func (h *Health) Watch(ctx context.Context, interval time.Duration, check Checker) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		cctx, cancel := context.WithTimeout(ctx, interval)
		err := check(cctx)
		cancel()
		if err != nil && ctx.Err() == nil {
			h.logger.Warn("server.health.check_failed", "error", err)
		}
		if ctx.Err() != nil {
			return
		}
		h.SetServing(err == nil)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Stop marks the server NOT_SERVING and drains in-flight RPCs, forcing a
// stop when ctx expires first.
func (h *Health) Stop(ctx context.Context) {
	h.SetServing(false)
	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()
	h.hs.Shutdown()

	done := make(chan struct{})
	go func() {
		h.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		h.logger.Warn("server.grpc.force_stop", "error", ctx.Err())
		h.srv.Stop()
		<-done
	}
}
