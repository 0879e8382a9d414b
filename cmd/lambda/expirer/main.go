package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/weddify/binks/internal/config"
	"github.com/weddify/binks/internal/domain/coupon"
	"github.com/weddify/binks/internal/domain/order"
	domainevents "github.com/weddify/binks/internal/events"
	"github.com/weddify/binks/internal/infrastructure/kafka"
	"github.com/weddify/binks/internal/infrastructure/store"
)

var orderService *order.Service

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Lambda Expirer] Invalid configuration: %v", err)
	}

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Lambda Expirer] Failed to connect to PostgreSQL: %v", err)
	}

	var publisher domainevents.Publisher = domainevents.NopPublisher{}
	if cfg.KafkaEnabled() {
		publisher = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	orderService = order.NewService(store.NewPostgresStore(db), coupon.NewEvaluator(), order.Config{
		ExpiryWindow: cfg.OrderExpiry(),
	}, order.WithPublisher(publisher))

	log.Println("[Lambda Expirer] Initialized successfully")
}

// handler runs one expiry sweep per scheduled invocation.
func handler(ctx context.Context, event events.CloudWatchEvent) error {
	log.Printf("[Lambda Expirer] Triggered by %s (%s)", event.Source, event.ID)

	n, err := orderService.ExpirePendingOrders(ctx)
	if err != nil {
		log.Printf("[Lambda Expirer] Sweep failed after %d orders: %v", n, err)
		return err
	}
	log.Printf("[Lambda Expirer] Expired %d orders", n)
	return nil
}

func main() {
	lambda.Start(handler)
}
