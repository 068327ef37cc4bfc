package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/devdisplay/webshop/internal/catalog"
	"github.com/devdisplay/webshop/internal/checkout"
	"github.com/devdisplay/webshop/internal/config"
	"github.com/devdisplay/webshop/internal/httpx"
	kafkax "github.com/devdisplay/webshop/internal/kafka"
	"github.com/devdisplay/webshop/internal/mail"
	"github.com/devdisplay/webshop/internal/orders"
	"github.com/devdisplay/webshop/internal/postgres"
	"github.com/devdisplay/webshop/internal/recon"
	"github.com/devdisplay/webshop/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("db schema: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderRecorded, 1024)
	prod.Start(ctx)

	// Repos
	catalogRepo := &catalog.Repo{DB: db}
	if err := catalogRepo.Seed(ctx); err != nil {
		log.Fatalf("catalog seed: %v", err)
	}
	orderRepo := &orders.Repo{DB: db}

	// Gateways & services
	gateway := checkout.NewStripeGateway(cfg.StripeAPIKey, cfg.Currency)
	mailer := &mail.ConfirmationMailer{
		Ledger:    orderRepo,
		Redis:     rdb,
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
		Currency:  cfg.Currency,
		ShopURL:   cfg.FrontendURL,
		Sandbox:   cfg.SendGridSandbox,
	}
	reconciler := &recon.Reconciler{
		Gateway:  gateway,
		Store:    orderRepo,
		Mailer:   mailer,
		Producer: prod,
		Service:  cfg.ServiceName,
		Currency: cfg.Currency,
	}

	// Router & handlers
	router := httpx.NewRouter()
	(&httpx.ProductsHandler{Store: catalogRepo}).Register(router)
	(&httpx.PaymentsHandler{Gateway: gateway, Redis: rdb, FrontendURL: cfg.FrontendURL}).Register(router)
	(&httpx.OrdersHandler{Store: orderRepo, Mailer: mailer}).Register(router)
	(&httpx.WebhookHandler{Secret: cfg.StripeWebhookSecret, Reconciler: reconciler}).Register(router)
	httpx.MountStatic(router, cfg.WebDir)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()
	cancel()
	prod.WaitClosed()
}
