package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/GeorgesCH/studio-class-scheduler/internal/booking"
	"github.com/GeorgesCH/studio-class-scheduler/internal/config"
	"github.com/GeorgesCH/studio-class-scheduler/internal/database"
	"github.com/GeorgesCH/studio-class-scheduler/internal/handler"
	"github.com/GeorgesCH/studio-class-scheduler/internal/payments"
	"github.com/GeorgesCH/studio-class-scheduler/internal/queue"
	"github.com/GeorgesCH/studio-class-scheduler/internal/refund"
	"github.com/GeorgesCH/studio-class-scheduler/internal/repository"
	"github.com/GeorgesCH/studio-class-scheduler/internal/router"
	"github.com/GeorgesCH/studio-class-scheduler/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; response cache and rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	templates := repository.NewTemplateRepo(db)
	instances := repository.NewInstanceRepo(db)
	occurrences := repository.NewOccurrenceRepo(db)
	registrations := repository.NewRegistrationRepo(db)
	waitlist := repository.NewWaitlistRepo(db)
	policies := repository.NewPolicyRepo(db)
	cancellations := repository.NewCancellationRepo(db)
	wallets := repository.NewWalletRepo(db)

	publisher := service.NewPublisher(queue.BrokerURL())
	bookingSvc := booking.NewService(db, occurrences, registrations, waitlist, publisher)

	gateway := payments.NewGateway(cfg.PaymentGatewayURL)
	store := repository.NewRefundStore(cancellations, registrations, users)
	orchestrator := refund.NewOrchestrator(store, gateway, wallets, publisher, bookingSvc)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterPublic(e, handler.NewPublicHandler(templates, occurrences), rdb)
	router.RegisterStudio(e, cfg.JWTSecret,
		handler.NewTemplateHandler(templates),
		handler.NewScheduleHandler(templates, instances, occurrences),
		handler.NewPolicyHandler(policies),
		handler.NewCancellationHandler(cancellations, registrations, occurrences, templates, policies, orchestrator))
	router.RegisterCustomer(e, cfg.JWTSecret,
		handler.NewBookingHandler(bookingSvc, registrations, occurrences),
		handler.NewCancellationHandler(cancellations, registrations, occurrences, templates, policies, orchestrator),
		handler.NewWalletHandler(wallets, users))

	// Background workers.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()
	go sweepPromotions(bookingSvc, time.Duration(cfg.WaitlistSweepSec)*time.Second)
	go purgeTokens(tokens)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// sweepPromotions releases seats whose payment window lapsed and promotes
// the next waitlisted customers.
func sweepPromotions(svc *booking.Service, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for now := range t.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := svc.ExpirePromotions(ctx, now.UTC())
		cancel()
		if err != nil {
			log.Printf("waitlist sweep: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("waitlist sweep: expired %d promotion(s)", n)
		}
	}
}

// purgeTokens deletes expired refresh tokens hourly.
func purgeTokens(tokens *repository.TokenRepo) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for range t.C {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		n, err := tokens.PurgeExpired(ctx)
		cancel()
		if err != nil {
			log.Printf("token purge: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("token purge: removed %d expired token(s)", n)
		}
	}
}
