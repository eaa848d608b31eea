package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"buchhaltung/internal/amqp"
	"buchhaltung/internal/calendar"
	"buchhaltung/internal/catalog"
	"buchhaltung/internal/cli"
	apphttp "buchhaltung/internal/http"
	"buchhaltung/internal/log"
	"buchhaltung/internal/middleware/ratelimit"
	"buchhaltung/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.OpenStore(context.Background(), logger, cfg)
	if res.Cleanup != nil {
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Error("Failed to close store", log.FieldError, err)
			}
		}()
	}

	cat := catalog.New(res.Store, logger)
	cat.Reload(context.Background())

	var (
		ledgerOpts = []services.Option{services.WithLogger(logger)}
		boardOpts  = []calendar.Option{calendar.WithLogger(logger)}
		serverOpts = []apphttp.Option{
			apphttp.WithLogger(logger),
			apphttp.WithRateLimit(ratelimit.Config{
				RequestsPerMinute: cfg.RateLimitPerMin,
				CleanupInterval:   ratelimit.DefaultConfig().CleanupInterval,
				MutatingOnly:      true,
			}),
		}
		publisher *amqp.Client
		listener  *amqp.Client
	)

	if cfg.AMQPEnabled() {
		var err error
		publisher, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, amqp.WithLogger(logger))
		if err != nil {
			logger.Error("Failed to initialize AMQP publisher", log.FieldError, err)
			os.Exit(1)
		}
		defer publisher.Close()

		ledgerOpts = append(ledgerOpts, services.WithPublisher(publisher, cfg.InstanceID))
		boardOpts = append(boardOpts, calendar.WithPublisher(publisher, cfg.InstanceID))
		serverOpts = append(serverOpts, apphttp.WithBrokerCheck(func() error {
			if !publisher.Healthy() {
				return errors.New("amqp publisher unavailable")
			}
			return nil
		}))

		listener, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange,
			amqp.WithExclusiveQueue(services.RemoteBindingKeys...),
			amqp.WithLogger(logger))
		if err != nil {
			// Other instances' catalog changes are picked up on the next refresh.
			logger.Warn("Catalog sync disabled", log.FieldError, err)
			listener = nil
		} else {
			defer listener.Close()
		}
		logger.Info("Change events enabled",
			"exchange", cfg.AMQPExchange,
			"instance", cfg.InstanceID)
	} else {
		logger.Info("AMQP_URL not set, change events disabled")
	}

	ledger := services.NewLedger(res.Store, cat, ledgerOpts...)
	board := calendar.NewBoard(res.Store, boardOpts...)
	srv := apphttp.NewServer(":"+cfg.Port, ledger, board, res.Store, serverOpts...)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	if listener != nil {
		go func() {
			if err := listener.Consume(ctx, ledger.ApplyRemoteChange); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Catalog sync consumer stopped", log.FieldError, err)
			}
		}()
	}

	logger.Info("Starting buchhaltung server",
		"port", cfg.Port,
		"backend", res.Type.String(),
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
