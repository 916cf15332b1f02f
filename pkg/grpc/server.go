// Package grpc runs the operational gRPC listener: the standard health
// service (grpc.health.v1.Health) plus reflection, so orchestrators and
// grpcurl can probe the process alongside the HTTP API.
//
//	srv, err := grpc.Start(ctx, config.GRPCPort(), db.PingContext)
//	...
//	srv.Stop()
package grpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/shashiranjanraj/phonedeals/pkg/logger"
	"github.com/shashiranjanraj/phonedeals/pkg/metrics"
)

// Service is the health-check service name that tracks database readiness.
// The empty name reports overall process liveness.
const Service = "phonedeals.Marketplace"

const probeEvery = 10 * time.Second

var (
	handled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "phonedeals",
		Subsystem: "grpc",
		Name:      "handled_total",
		Help:      "gRPC calls completed by method and code.",
	}, []string{"method", "code"})

	handling = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "phonedeals",
		Subsystem: "grpc",
		Name:      "handling_seconds",
		Help:      "gRPC call latency in seconds.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"method"})
)

func init() {
	metrics.MustRegister(handled, handling)
}

// Probe reports whether a dependency is reachable.
type Probe func(ctx context.Context) error

// Server is a running gRPC listener.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	lis    net.Listener
	cancel context.CancelFunc
}

// Start listens on port and serves until Stop. When probe is non-nil the
// Service status follows its result.
func Start(ctx context.Context, port string, probe Probe) (*Server, error) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, fmt.Errorf("grpc: listen on :%s: %w", port, err)
	}
	return Serve(ctx, lis, probe), nil
}

// Serve runs on an existing listener. Tests use it with an ephemeral port.
func Serve(ctx context.Context, lis net.Listener, probe Probe) *Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(recovery, observe))

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	ctx, cancel := context.WithCancel(ctx)
	s := &Server{srv: srv, health: hs, lis: lis, cancel: cancel}
	if probe != nil {
		go s.watch(ctx, probe)
	} else {
		hs.SetServingStatus(Service, grpc_health_v1.HealthCheckResponse_SERVING)
	}

	logger.Info("gRPC server starting", "addr", lis.Addr().String())
	go func() {
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc: serve", "error", err)
		}
	}()
	return s
}

// Addr is the bound listener address.
func (s *Server) Addr() net.Addr { return s.lis.Addr() }

func (s *Server) watch(ctx context.Context, probe Probe) {
	t := time.NewTicker(probeEvery)
	defer t.Stop()
	for {
		s.check(ctx, probe)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (s *Server) check(ctx context.Context, probe Probe) {
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	st := grpc_health_v1.HealthCheckResponse_SERVING
	if err := probe(pctx); err != nil {
		logger.Warn("grpc: readiness probe failed", "error", err)
		st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(Service, st)
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	logger.Info("gRPC server shutting down")
	s.cancel()
	s.health.Shutdown()
	s.srv.GracefulStop()
}

func recovery(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("grpc: panic recovered",
				"method", info.FullMethod,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = status.Error(codes.Internal, "internal server error")
		}
	}()
	return next(ctx, req)
}

func observe(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := next(ctx, req)
	code := status.Code(err)

	handled.WithLabelValues(info.FullMethod, code.String()).Inc()
	handling.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
	logger.Debug("grpc: request",
		"method", info.FullMethod,
		"duration_ms", time.Since(start).Milliseconds(),
		"code", code.String(),
	)
	return resp, err
}
