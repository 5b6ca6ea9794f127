package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bgzfiltra/internal/config"
	"bgzfiltra/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// runScheduled repeats the run on the cron expression until ctx is cancelled. A failed run
// is logged and counted; the next tick tries again.
func runScheduled(ctx context.Context, cfg *config.AppConfig, expr, addr string) error {
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	runner, closeFn, err := newRunner(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer closeFn()

	cronLog := cron.PrintfLogger(&log.Logger)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLog)))
	if _, err := c.AddFunc(expr, func() {
		if err := runner.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduled run failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c.Start()
		log.Info().Str("schedule", expr).Msg("Scheduler started")
		<-gctx.Done()
		stopped := c.Stop()
		<-stopped.Done()
		log.Info().Msg("Scheduler stopped")
		return nil
	})

	if addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           metricsMux(registry),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", addr).Msg("Serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func metricsMux(registry *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	return mux
}
