package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/canteen-orders/internal/ingest"
	"github.com/joseph-ayodele/canteen-orders/internal/server"
)

// ServeConfig controls the long-running server process.
type ServeConfig struct {
	Queue      QueueConfig
	WatchRoots []string // optional folders fed to the batch queue
	Debounce   time.Duration
}

// Serve runs the gRPC API, the metrics endpoint and the batch queue (plus
// folder watches when configured) until ctx is done, then drains them.
func (a *App) Serve(ctx context.Context, sc ServeConfig) error {
	log := a.Logger
	if err := server.PingDB(ctx, a.DB, log, 5*time.Second); err != nil {
		return err
	}

	queue := a.NewQueue(sc.Queue)
	ingestor := a.NewIngestor(queue)
	svc := server.NewOrdersService(a.Orders, a.Export, ingestor, log)
	grpcServer, hs := server.NewGRPCServer(svc, log)

	lis, err := net.Listen("tcp", a.Config.Server.GRPCAddr)
	if err != nil {
		log.Error("failed to listen on address", "addr", a.Config.Server.GRPCAddr, "error", err)
		return err
	}
	metricsServer := server.NewMetricsServer(a.Config.Server.MetricsAddr, a.Registry)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("canteen-orders listening", "addr", lis.Addr().String(), "backend", a.Backend)
		return grpcServer.Serve(lis)
	})
	if a.Config.Server.MetricsAddr != "" {
		g.Go(func() error {
			log.Info("metrics listening", "addr", a.Config.Server.MetricsAddr)
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	if len(sc.WatchRoots) > 0 {
		g.Go(func() error {
			err := ingestor.Watch(gctx, ingest.WatchConfig{
				Roots:       sc.WatchRoots,
				InitialScan: true,
				Debounce:    sc.Debounce,
				SkipHidden:  true,
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
		queue.Shutdown(shutdownCtx)
		return nil
	})
	return g.Wait()
}
