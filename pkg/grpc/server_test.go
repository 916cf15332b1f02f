package grpc_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/shashiranjanraj/phonedeals/pkg/grpc"
)

func dial(t *testing.T, probe grpc.Probe) grpc_health_v1.HealthClient {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.Serve(context.Background(), lis, probe)
	t.Cleanup(srv.Stop)

	conn, err := grpclib.NewClient(srv.Addr().String(), grpclib.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return grpc_health_v1.NewHealthClient(conn)
}

func status(t *testing.T, c grpc_health_v1.HealthClient, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthServingWithoutProbe(t *testing.T) {
	c := dial(t, nil)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, status(t, c, ""))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, status(t, c, grpc.Service))
}

func TestHealthFollowsProbe(t *testing.T) {
	c := dial(t, func(context.Context) error { return errors.New("db down") })
	assert.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		resp, err := c.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: grpc.Service})
		return err == nil && resp.GetStatus() == grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 20*time.Millisecond)
}
