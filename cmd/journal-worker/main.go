package main

import (
	"context"
	"errors"
	"os"

	"buchhaltung/internal/amqp"
	"buchhaltung/internal/backend"
	"buchhaltung/internal/catalog"
	"buchhaltung/internal/cli"
	"buchhaltung/internal/config"
	"buchhaltung/internal/log"
	"buchhaltung/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting journal-worker")

	cfg := config.Load()
	if err := cfg.ValidateJournal(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	// The catalog resolves client, project and category names for new rows.
	res := cli.OpenStore(context.Background(), logger, cfg)
	if res.Cleanup != nil {
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Error("Failed to close store", log.FieldError, err)
			}
		}()
	}
	cat := catalog.New(res.Store, logger)

	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	journal, err := backend.NewFactory(logger).OpenJournal(context.Background(), bc)
	if err != nil {
		logger.Error("Failed to open journal", log.FieldError, err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange,
		amqp.WithQueue(cfg.JournalQueue, worker.BindingKeys...),
		amqp.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	w := worker.NewJournalWorker(journal.Journal, cat, logger)
	if err := w.StartupCheck(ctx); err != nil {
		// Without the seen ids redelivered events may be journaled twice.
		logger.Error("Journal startup check failed", log.FieldError, err)
	}

	logger.Info("Consuming change events",
		"queue", cfg.JournalQueue,
		"exchange", cfg.AMQPExchange,
		"remote_journal", journal.Remote)
	if err := client.Consume(ctx, w.HandleChange); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Journal worker stopped")
}
