package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"fieldops/services/coordination-api/internal/config"
	"fieldops/services/coordination-api/internal/domain/events"
	"fieldops/services/coordination-api/internal/domain/health"
	"fieldops/services/coordination-api/internal/infrastructure/crontab"
	"fieldops/services/coordination-api/internal/infrastructure/kvstore"
	"fieldops/services/coordination-api/internal/infrastructure/logger"
	"fieldops/services/coordination-api/internal/infrastructure/metrics"
	"fieldops/services/coordination-api/internal/infrastructure/observability"
	"fieldops/services/coordination-api/internal/interfaces/httpserver"

	_ "net/http/pprof"
)

type Application struct {
	httpServer *httpserver.HTTPServer
	crontab    *crontab.Crontab
	monitor    *health.Monitor
	mirror     *kvstore.Mirror
	bus        *events.Bus
	config     *config.Config
}

func init() {
	logger.GetLogger()
}

// @title FieldOps Coordination API
// @version 1.0
// @description Adaptive provider resilience and routing engine for field operations integrations.
// @BasePath /
func (application *Application) Start() {
	background := context.Background()
	ctx, cancel := context.WithCancel(background)
	defer cancel()

	application.bus.OnDrop(metrics.EventsDroppedTotal.Inc)

	var eg errgroup.Group
	eg.Go(func() error {
		err := http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", application.config.PprofPort), nil)
		if err != nil {
			cancel()
		}
		return err
	})
	eg.Go(func() error {
		return metrics.Serve(ctx, application.config.MetricsPort)
	})
	eg.Go(func() error {
		err := application.crontab.Run(ctx)
		if err != nil {
			cancel()
		}
		return err
	})
	eg.Go(func() error {
		return application.monitor.Run(ctx)
	})
	eg.Go(func() error {
		return application.mirror.Run(ctx, application.bus)
	})
	eg.Go(func() error {
		err := application.httpServer.Run()
		if err != nil {
			cancel()
		}
		return err
	})

	if err := eg.Wait(); err != nil {
		panic(err)
	}
}

func main() {
	ctx := context.Background()
	log := logger.GetLogger()

	application, err := CreateApplication()
	if err != nil {
		log.Fatal().Err(err).Msg("create application")
	}

	otelShutdown, err := observability.Setup(ctx, application.config, log)
	if err != nil {
		log.Error().Err(err).Msg("initialize observability")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown telemetry")
			}
		}()
	}

	application.Start()
}
