package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/metrics"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/orchestrator"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/rpc"
)

var (
	serveAddr        string
	serveMetricsAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve Query, Diagnose and Structure over gRPC",
	Long: `Serve the loaded network over gRPC (diagnoser.v1.Diagnoser). When a
metrics address is configured, Prometheus metrics are exposed on /metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "gRPC listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "metrics listen address (overrides config)")
}

// #region serve
func runServe(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		a.cfg.Addr = serveAddr
	}
	if serveMetricsAddr != "" {
		a.cfg.MetricsAddr = serveMetricsAddr
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, a.model.Name())

	p, err := a.pipeline(orchestrator.WithObserver(m))
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Addr, err)
	}
	gs := grpc.NewServer(grpc.UnaryInterceptor(rpc.UnaryInterceptor(m)))
	rpc.RegisterDiagnoserServer(gs, rpc.NewServer(p))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("[SERVE] gRPC listening on %s (model=%s query=%s)", lis.Addr(), a.model.Name(), p.Config().Query)
		return gs.Serve(lis)
	})

	var hs *http.Server
	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		hs = &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Printf("[SERVE] metrics listening on %s", a.cfg.MetricsAddr)
			if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Printf("[SERVE] shutting down")
		gs.GracefulStop()
		if hs != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(sctx)
		}
		return nil
	})

	return g.Wait()
}

// #endregion serve
