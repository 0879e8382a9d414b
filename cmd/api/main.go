package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/weddify/binks/internal/api"
	"github.com/weddify/binks/internal/auth"
	"github.com/weddify/binks/internal/config"
	"github.com/weddify/binks/internal/domain/coupon"
	"github.com/weddify/binks/internal/domain/order"
	"github.com/weddify/binks/internal/domain/payment"
	"github.com/weddify/binks/internal/domain/product"
	"github.com/weddify/binks/internal/domain/stock"
	"github.com/weddify/binks/internal/events"
	"github.com/weddify/binks/internal/gateway/pakasir"
	"github.com/weddify/binks/internal/infrastructure/kafka"
	"github.com/weddify/binks/internal/infrastructure/redisx"
	"github.com/weddify/binks/internal/infrastructure/store"
	"github.com/weddify/binks/internal/sweeper"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[API] Invalid configuration: %v", err)
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("[API] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Println("[API] ========================================")
	log.Println("[API] binks storefront")
	log.Println("[API] ========================================")

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("[API] Connected to PostgreSQL")

	pg := store.NewPostgresStore(db)
	if err := pg.Migrate(ctx); err != nil {
		log.Fatalf("[API] Migration failed: %v", err)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.KafkaEnabled() {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publisher = producer
		log.Printf("[API] Publishing events to %s via %v", cfg.KafkaTopic, cfg.KafkaBrokers)
	} else {
		log.Println("[API] KAFKA_BROKERS not set, events are not published")
	}

	var guard *redisx.Guard
	if cfg.RedisAddr != "" {
		guard = redisx.NewGuard(redisx.New(cfg.RedisAddr))
		if err := guard.Ping(ctx); err != nil {
			log.Printf("[API] Redis at %s unreachable, continuing without it: %v", cfg.RedisAddr, err)
			_ = guard.Close()
			guard = nil
		} else {
			defer guard.Close()
			log.Printf("[API] Connected to Redis at %s", cfg.RedisAddr)
		}
	}

	evaluator := coupon.NewEvaluator()
	orderSvc := order.NewService(pg, evaluator, order.Config{
		ExpiryWindow:  cfg.OrderExpiry(),
		ServiceFee:    cfg.Order.ServiceFee,
		StrictCoupons: cfg.CouponStrict,
	}, order.WithPublisher(publisher))

	gateway := pakasir.NewClient(pakasir.Config{
		BaseURL:     cfg.Pakasir.BaseURL,
		ProjectSlug: cfg.Pakasir.ProjectSlug,
		APIKey:      cfg.Pakasir.APIKey,
		Timeout:     cfg.Pakasir.Timeout,
	}, nil)
	if cfg.Pakasir.WebhookSecret == "" {
		log.Println("[API] PAKASIR_WEBHOOK_SECRET not set, webhook signatures are not checked")
	}

	handlers := api.NewHandlers(api.Services{
		Products: product.NewService(pg),
		Orders:   orderSvc,
		Payments: payment.NewService(pg, orderSvc, gateway, publisher, payment.Config{SandboxMode: cfg.Pakasir.SandboxMode}),
		Coupons:  coupon.NewService(pg, evaluator),
		Stock:    stock.NewService(pg),
	}, guard, cfg.Pakasir.WebhookSecret)

	jwtService := auth.NewJWTService(cfg.JWTSecret, auth.DefaultTokenExpiry)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handlers, jwtService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("[API] Server started on :%s", cfg.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := sweeper.New(orderSvc, cfg.ExpirySweepInterval).Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("[API] Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("[API] Exited with error: %v", err)
		os.Exit(1)
	}
	log.Println("[API] Stopped")
}
