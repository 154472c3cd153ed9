package server

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startHealth(t *testing.T) (*Health, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	h := NewHealth(nil)
	go func() { _ = h.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return h, healthpb.NewHealthClient(conn)
}

func status(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q) error = %v", service, err)
	}
	return res.GetStatus()
}

func TestHealthServingTransitions(t *testing.T) {
	h, c := startHealth(t)

	if got := status(t, c, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("initial status = %s, want SERVING", got)
	}
	h.SetServing(false)
	if got := status(t, c, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status after SetServing(false) = %s, want NOT_SERVING", got)
	}
	h.SetServing(true)
	if got := status(t, c, ServiceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status after SetServing(true) = %s, want SERVING", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.Stop(ctx)
	// stopped servers refuse flips
	h.SetServing(true)
}

func TestHealthWatchMirrorsChecker(t *testing.T) {
	h, c := startHealth(t)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		h.Stop(ctx)
	}()

	var failing atomic.Bool
	failing.Store(true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Watch(ctx, 10*time.Millisecond, func(context.Context) error {
		if failing.Load() {
			return errors.New("db down")
		}
		return nil
	})

	waitFor := func(want healthpb.HealthCheckResponse_ServingStatus) {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if status(t, c, "") == want {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Fatalf("status never became %s", want)
	}
	waitFor(healthpb.HealthCheckResponse_NOT_SERVING)
	failing.Store(false)
	waitFor(healthpb.HealthCheckResponse_SERVING)
}
