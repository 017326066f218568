package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/FrK06/web-rag-original/internal/app"
	"github.com/FrK06/web-rag-original/internal/config"
	"github.com/FrK06/web-rag-original/internal/jobs"
	"github.com/FrK06/web-rag-original/internal/logger"
	"github.com/FrK06/web-rag-original/internal/store/rabbitmq"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
		File:   cfg.LogFile,
	})
	if err != nil {
		logrus.WithError(err).Fatal("logger init failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := app.NewServices(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build services")
	}
	defer services.Close()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.WithError(err).Fatal("rabbit dial")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.WithError(err).Fatal("rabbit channel")
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.WithError(err).Fatal("queue declare")
	}

	// prefetch no more than the pool can work on
	if err := ch.Qos(cfg.WorkerConcurrency, 0, false); err != nil {
		log.WithError(err).Fatal("qos")
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.WithError(err).Fatal("consume")
	}

	runner := jobs.NewRunner(services.ChatRepo, services.Orchestrator, cfg.LLMTimeout*3, log)

	log.WithFields(logrus.Fields{
		"queue":       cfg.RabbitQueue,
		"concurrency": cfg.WorkerConcurrency,
	}).Info("worker started")

	rabbitmq.Serve(ctx, msgs, cfg.WorkerConcurrency, runner.Handle, log)
	log.Info("worker stopped")
}
