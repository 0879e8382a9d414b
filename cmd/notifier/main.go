package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/weddify/binks/internal/config"
	"github.com/weddify/binks/internal/domain/coupon"
	"github.com/weddify/binks/internal/domain/order"
	"github.com/weddify/binks/internal/email"
	"github.com/weddify/binks/internal/infrastructure/kafka"
	"github.com/weddify/binks/internal/infrastructure/store"
	"github.com/weddify/binks/internal/notification"
)

const consumerGroup = "binks-notifier"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Notifier] Invalid configuration: %v", err)
	}
	if !cfg.KafkaEnabled() {
		log.Fatal("[Notifier] KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Println("[Notifier] ========================================")
	log.Println("[Notifier] binks - Credential Delivery Mailer")
	log.Println("[Notifier] ========================================")
	log.Printf("[Notifier] Kafka: %v", cfg.KafkaBrokers)
	log.Printf("[Notifier] Topic: %s", cfg.KafkaTopic)
	log.Printf("[Notifier] Group: %s", consumerGroup)
	log.Printf("[Notifier] SMTP: %s:%s", cfg.SMTP.Host, cfg.SMTP.Port)

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Notifier] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("[Notifier] Connected to PostgreSQL")

	// Read-only use: Get never reaches the coupon evaluator or the publisher.
	orders := order.NewService(store.NewPostgresStore(db), coupon.NewEvaluator(), order.Config{})
	handler := notification.NewHandler(orders, email.NewService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From))

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, consumerGroup)
	defer consumer.Close()

	log.Println("[Notifier] Starting event consumer...")
	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[Notifier] Consumer error: %v", err)
	}
	log.Println("[Notifier] Shutting down...")
}
