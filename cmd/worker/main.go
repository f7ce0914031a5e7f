package main

import (
	"context"
	"log"
	"time"

	"vidflow/internal/activities"
	"vidflow/internal/config"
	"vidflow/internal/events"
	"vidflow/internal/storage"
	"vidflow/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := config.NewLogger(cfg.Tunables.LogLevel)

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	var notifier events.Notifier = events.NopNotifier{}
	if cfg.KafkaBrokers != "" {
		producer, err := events.NewProducer(cfg.KafkaBrokers, logger)
		if err != nil {
			log.Fatal(err)
		}
		defer producer.Close()
		notifier = events.NewKafkaNotifier(producer, cfg.NotificationTopic)
	}

	a := activities.New(cfg, db, notifier)
	activities.Register(w, a)

	logger.Info("vidflow worker started", "temporal", cfg.TemporalAddress, "queue", cfg.TemporalTaskQueue, "gateway_mode", cfg.GatewayMode)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
