package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/weddify/binks/internal/config"
	"github.com/weddify/binks/internal/domain/coupon"
	"github.com/weddify/binks/internal/domain/order"
	"github.com/weddify/binks/internal/email"
	"github.com/weddify/binks/internal/infrastructure/msk"
	"github.com/weddify/binks/internal/infrastructure/store"
	"github.com/weddify/binks/internal/notification"
)

var notificationHandler *notification.Handler

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Lambda Notifier] Invalid configuration: %v", err)
	}

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Lambda Notifier] Failed to connect to PostgreSQL: %v", err)
	}

	orders := order.NewService(store.NewPostgresStore(db), coupon.NewEvaluator(), order.Config{})
	notificationHandler = notification.NewHandler(orders, email.NewService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From))

	log.Printf("[Lambda Notifier] Initialized successfully (SMTP: %s:%s)", cfg.SMTP.Host, cfg.SMTP.Port)
}

// handler receives batches from an MSK or self-managed Kafka event source
// subscribed to the events topic. Failed records are logged and skipped, the
// same as the long-running consumer, so a retried batch never re-sends mail.
func handler(ctx context.Context, event events.KafkaEvent) error {
	processed, failed := msk.Dispatch(ctx, event, notificationHandler.HandleEvent)
	log.Printf("[Lambda Notifier] Processed %d/%d records successfully", processed, processed+failed)
	return nil
}

func main() {
	lambda.Start(handler)
}
