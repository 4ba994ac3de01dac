package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bloodlink/internal/api"
	"bloodlink/internal/api/handler/v1handler"
	"bloodlink/internal/config"
	"bloodlink/internal/match"
	"bloodlink/internal/matching"
	"bloodlink/internal/pipeline"
	"bloodlink/internal/registry"
	"bloodlink/internal/worker"
	"bloodlink/pkg/geocode/nominatim"
	"bloodlink/pkg/logger"
	"bloodlink/pkg/metrics"
	"bloodlink/pkg/notify"
	"bloodlink/pkg/notify/gateway"
)

func setupServer(ctx context.Context, cfg *config.Config, deps api.Deps) func(ctx context.Context) {
	server, err := api.NewServer(deps, api.NewOptions(cfg))
	if err != nil {
		logger.Fatal(ctx, "could not create webserver", zap.Error(err))
	}

	go func() {
		logger.Info(ctx, "starting webserver...")
		if err := server.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "could not start webserver", zap.Error(err))
			}
		}
	}()

	return func(ctx context.Context) {
		logger.Info(ctx, "stopping webserver...")
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(ctx, "could not stop webserver", zap.Error(err))
		}
	}
}

func serveCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts API server and background matching workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

			strg, closeStrg := getPostgres(ctx, cfg)
			defer closeStrg()

			engine := metrics.NewEngine()
			reg := registry.New(cfg.Matching.CellSizeKm)

			httpClient := &http.Client{Timeout: 30 * time.Second}
			notifier := gateway.New(httpClient,
				cfg.Notifier.BaseURL,
				cfg.Notifier.Token,
				notify.Channel(cfg.Notifier.Channel))
			geocoder := nominatim.New(httpClient, cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent)

			pipe := pipeline.New(pipeline.Config{
				InitialRadiusKm:   cfg.Matching.InitialRadiusKm,
				CriticalRadiiKm:   cfg.Matching.CriticalRadiiKm,
				TopN:              cfg.Matching.TopN,
				NotifyTimeout:     cfg.Matching.NotifyTimeout,
				NotifyConcurrency: cfg.Matching.NotifyConcurrency,
				Weights: match.Weights{
					Proximity:     cfg.Matching.WeightProximity,
					Reliability:   cfg.Matching.WeightReliability,
					Experience:    cfg.Matching.WeightExperience,
					VerifiedBonus: cfg.Matching.VerifiedBonus,
				},
				DeferralPeriod: cfg.Matching.DeferralPeriod,
			}, notifier, engine)

			service := matching.New(strg, reg, pipe, engine, matching.NewOptions(cfg))

			// load the donor registry before accepting traffic
			if err := service.Hydrate(ctx); err != nil {
				logger.Fatal(ctx, "could not hydrate donor registry", zap.Error(err))
			}

			riverClient, err := worker.Start(ctx, strg.Pool, service)
			if err != nil {
				logger.Fatal(ctx, "could not start workers", zap.Error(err))
			}

			stopWebserver := setupServer(ctx, cfg, api.Deps{
				Deps: v1handler.Deps{
					Matching: service,
					Geocoder: geocoder,
				},
			})

			// wait for interrupt
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
			defer cancel()

			stopWebserver(shutdownCtx)

			logger.Info(ctx, "stopping workers...")
			if err := riverClient.Stop(shutdownCtx); err != nil {
				logger.Error(ctx, "could not stop workers", zap.Error(err))
			}
		},
	}

	return cmd
}
